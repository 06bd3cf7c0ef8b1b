package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	trexport "github.com/DanielFerrariR/tr-exporter"
)

type call struct {
	kind   SubscriptionKind
	params map[string]any
}

// fakeTransport records outbound subscriptions so tests can replay the
// matching inbound payloads by hand.
type fakeTransport struct {
	calls        []call
	disconnected bool
	failOn       SubscriptionKind
}

func (f *fakeTransport) Subscribe(kind SubscriptionKind, params map[string]any) error {
	if f.failOn != "" && kind == f.failOn {
		return fmt.Errorf("transport refused %s", kind)
	}
	f.calls = append(f.calls, call{kind: kind, params: params})
	return nil
}

func (f *fakeTransport) Disconnect() error {
	f.disconnected = true
	return nil
}

func (f *fakeTransport) kinds() []SubscriptionKind {
	kinds := make([]SubscriptionKind, len(f.calls))
	for i, c := range f.calls {
		kinds[i] = c.kind
	}
	return kinds
}

func data(kind SubscriptionKind, id, payload string) Message {
	return Message{
		Command: CommandData,
		Payload: json.RawMessage(payload),
		Sub:     &Subscription{Kind: kind, ID: id},
	}
}

const accountPayload = `{"accountNumber":"DE12345","currencyId":"EUR","amount":"1024.50"}`

func TestFullRun(t *testing.T) {
	transport := &fakeTransport{}
	m := New(transport)
	assert.Equal(t, AwaitingConnection, m.State())

	require.NoError(t, m.HandleMessage(Message{Command: CommandConnected}))
	assert.Equal(t, AwaitingAccountInfo, m.State())

	require.NoError(t, m.HandleMessage(data(SubCash, "", accountPayload)))
	assert.Equal(t, PaginatingActivities, m.State())

	// Two activity pages. The gift activity must later yield a synthetic
	// transaction whose details get requested like any other.
	require.NoError(t, m.HandleMessage(data(SubActivities, "", `{
		"items": [{"id":"a1","timestamp":"2024-03-01T10:00:00.000Z","title":"Stock Gift","subtitle":"Accepted","icon":"logos/US0378331005/v2"}],
		"cursors": {"after":"page2"}
	}`)))
	assert.Equal(t, PaginatingActivities, m.State())
	require.NoError(t, m.HandleMessage(data(SubActivities, "", `{
		"items": [{"id":"a2","timestamp":"2024-02-01T10:00:00.000Z","title":"Legal Documents","subtitle":"Accepted","icon":"timeline/documents"}],
		"cursors": {}
	}`)))
	assert.Equal(t, PaginatingTransactions, m.State())

	require.NoError(t, m.HandleMessage(data(SubTransactions, "", `{
		"items": [{"id":"t1","timestamp":"2024-04-01T10:00:00.000Z","title":"Apple","subtitle":"Buy Order","icon":"logos/US0378331005/v2","status":"EXECUTED","amount":{"currency":"EUR","value":-100.5,"fractionDigits":2}}],
		"cursors": {}
	}`)))
	assert.Equal(t, AwaitingTransactionDetails, m.State())

	// Details for the feed transaction and the synthetic gift.
	require.NoError(t, m.HandleMessage(data(SubDetails, "t1", `{
		"id":"t1",
		"sections":[{"type":"table","title":"Transaction","data":[{"title":"Shares","detail":{"text":"0.5"}}]}]
	}`)))
	assert.Equal(t, AwaitingTransactionDetails, m.State())
	require.NoError(t, m.HandleMessage(data(SubDetails, "a1", `{
		"id":"a1",
		"sections":[{"type":"header","title":"You received a gift","data":{"icon":"logos/US0378331005/v2"}}]
	}`)))
	assert.Equal(t, Complete, m.State())
	assert.True(t, transport.disconnected)

	result, err := m.Result()
	require.NoError(t, err)
	assert.Equal(t, "DE12345", result.Account.AccountNumber)
	require.Len(t, result.Activities, 2)
	assert.Equal(t, trexport.ActivityReceivedGift, result.Activities[0].EventType)
	assert.Equal(t, trexport.ActivityLegalDocumentsAccepted, result.Activities[1].EventType)

	require.Len(t, result.Transactions, 2)
	// Sorted newest first, so the feed trade precedes the older gift.
	assert.Equal(t, "t1", result.Transactions[0].ID)
	assert.Equal(t, trexport.TxTrade, result.Transactions[0].EventType)
	assert.NotEmpty(t, result.Transactions[0].Sections)
	assert.Equal(t, "a1", result.Transactions[1].ID)
	assert.True(t, result.Transactions[1].Synthetic())
	assert.Equal(t, trexport.TxReceivedGift, result.Transactions[1].EventType)

	// One detail request per transaction, synthetic included.
	assert.Equal(t, []SubscriptionKind{
		SubCash, SubActivities, SubActivities, SubTransactions, SubDetails, SubDetails,
	}, transport.kinds())
	assert.Equal(t, map[string]any{"after": "page2"}, transport.calls[2].params)
}

func TestTransactionPagination(t *testing.T) {
	transport := &fakeTransport{}
	m := New(transport)
	require.NoError(t, m.HandleMessage(Message{Command: CommandConnected}))
	require.NoError(t, m.HandleMessage(data(SubCash, "", accountPayload)))
	require.NoError(t, m.HandleMessage(data(SubActivities, "", `{"items":[],"cursors":{}}`)))

	require.NoError(t, m.HandleMessage(data(SubTransactions, "", `{
		"items": [{"id":"t1","timestamp":"2024-04-01T10:00:00.000Z","title":"Apple","subtitle":"Buy Order","icon":"logos/US0378331005/v2","status":"EXECUTED","amount":null}],
		"cursors": {"after":"next"}
	}`)))
	assert.Equal(t, PaginatingTransactions, m.State())
	last := transport.calls[len(transport.calls)-1]
	assert.Equal(t, SubTransactions, last.kind)
	assert.Equal(t, map[string]any{"after": "next"}, last.params)

	require.NoError(t, m.HandleMessage(data(SubTransactions, "", `{
		"items": [{"id":"t2","timestamp":"2024-03-15T10:00:00.000Z","title":"Apple","subtitle":"Sell Order","icon":"logos/US0378331005/v2","status":"EXECUTED","amount":null}],
		"cursors": {"after":""}
	}`)))
	assert.Equal(t, AwaitingTransactionDetails, m.State())

	result := func() *Result { r, _ := m.Result(); return r }
	assert.Nil(t, result())
	require.NoError(t, m.HandleMessage(data(SubDetails, "t1", `{"id":"t1","sections":[]}`)))
	require.NoError(t, m.HandleMessage(data(SubDetails, "t2", `{"id":"t2","sections":[]}`)))
	assert.Equal(t, Complete, m.State())
	require.Len(t, result().Transactions, 2)
}

func TestEmptyAccountCompletesImmediately(t *testing.T) {
	transport := &fakeTransport{}
	m := New(transport)
	require.NoError(t, m.HandleMessage(Message{Command: CommandConnected}))
	require.NoError(t, m.HandleMessage(data(SubCash, "", accountPayload)))
	require.NoError(t, m.HandleMessage(data(SubActivities, "", `{"items":[],"cursors":{}}`)))
	require.NoError(t, m.HandleMessage(data(SubTransactions, "", `{"items":[],"cursors":{}}`)))

	assert.Equal(t, Complete, m.State())
	assert.True(t, transport.disconnected)
	result, err := m.Result()
	require.NoError(t, err)
	assert.Empty(t, result.Transactions)
}

func TestKeepAliveNeverAffectsState(t *testing.T) {
	transport := &fakeTransport{}
	m := New(transport)

	keepAlive := Message{Command: CommandKeepAlive, Payload: json.RawMessage(`"echo"`)}
	require.NoError(t, m.HandleMessage(keepAlive))
	assert.Equal(t, AwaitingConnection, m.State())

	require.NoError(t, m.HandleMessage(Message{Command: CommandConnected}))
	require.NoError(t, m.HandleMessage(keepAlive))
	assert.Equal(t, AwaitingAccountInfo, m.State())
	assert.Equal(t, []SubscriptionKind{SubCash}, transport.kinds())
}

func TestUnknownDetailIDIsNotFatal(t *testing.T) {
	transport := &fakeTransport{}
	m := New(transport)
	require.NoError(t, m.HandleMessage(Message{Command: CommandConnected}))
	require.NoError(t, m.HandleMessage(data(SubCash, "", accountPayload)))
	require.NoError(t, m.HandleMessage(data(SubActivities, "", `{"items":[],"cursors":{}}`)))
	require.NoError(t, m.HandleMessage(data(SubTransactions, "", `{
		"items": [{"id":"t1","timestamp":"2024-04-01T10:00:00.000Z","title":"Interest","subtitle":null,"icon":"timeline/interest","status":"EXECUTED","amount":{"currency":"EUR","value":1.23,"fractionDigits":2}}],
		"cursors": {}
	}`)))

	require.NoError(t, m.HandleMessage(data(SubDetails, "bogus", `{"id":"bogus","sections":[]}`)))
	assert.Equal(t, AwaitingTransactionDetails, m.State())

	require.NoError(t, m.HandleMessage(data(SubDetails, "t1", `{"id":"t1","sections":[]}`)))
	assert.Equal(t, Complete, m.State())
}

func TestTransportFailureAborts(t *testing.T) {
	transport := &fakeTransport{}
	m := New(transport)
	require.NoError(t, m.HandleMessage(Message{Command: CommandConnected}))

	m.Fail(errors.New("websocket: close 4001 unauthorized"))
	assert.Equal(t, Errored, m.State())
	assert.True(t, m.Done())

	result, err := m.Result()
	assert.Nil(t, result)
	assert.ErrorContains(t, err, "close 4001")

	// Poisoned for good: later messages are dropped.
	require.NoError(t, m.HandleMessage(data(SubCash, "", accountPayload)))
	assert.Equal(t, Errored, m.State())
}

func TestSubscribeErrorAborts(t *testing.T) {
	transport := &fakeTransport{failOn: SubActivities}
	m := New(transport)
	require.NoError(t, m.HandleMessage(Message{Command: CommandConnected}))

	err := m.HandleMessage(data(SubCash, "", accountPayload))
	assert.ErrorContains(t, err, "transport refused")
	assert.Equal(t, Errored, m.State())
}

func TestLenientModeSkipsUnrecognized(t *testing.T) {
	transport := &fakeTransport{}
	m := New(transport)
	require.NoError(t, m.HandleMessage(Message{Command: CommandConnected}))
	require.NoError(t, m.HandleMessage(data(SubCash, "", accountPayload)))
	require.NoError(t, m.HandleMessage(data(SubActivities, "", `{"items":[],"cursors":{}}`)))
	require.NoError(t, m.HandleMessage(data(SubTransactions, "", `{
		"items": [{"id":"t1","timestamp":"2024-04-01T10:00:00.000Z","title":"Mystery","subtitle":"Never seen before","icon":"x","status":"EXECUTED","amount":null}],
		"cursors": {}
	}`)))
	assert.Equal(t, AwaitingTransactionDetails, m.State())

	require.NoError(t, m.HandleMessage(data(SubDetails, "t1", `{"id":"t1","sections":[]}`)))
	result, err := m.Result()
	require.NoError(t, err)
	// Kept in the list, just without an event type.
	require.Len(t, result.Transactions, 1)
	assert.Empty(t, result.Transactions[0].EventType)
}

func TestStrictModeFailsOnUnrecognized(t *testing.T) {
	transport := &fakeTransport{}
	m := New(transport, Strict())
	require.NoError(t, m.HandleMessage(Message{Command: CommandConnected}))
	require.NoError(t, m.HandleMessage(data(SubCash, "", accountPayload)))
	require.NoError(t, m.HandleMessage(data(SubActivities, "", `{"items":[],"cursors":{}}`)))

	err := m.HandleMessage(data(SubTransactions, "", `{
		"items": [{"id":"t1","timestamp":"2024-04-01T10:00:00.000Z","title":"Mystery","subtitle":"Never seen before","icon":"x","status":"EXECUTED","amount":null}],
		"cursors": {}
	}`))
	assert.ErrorContains(t, err, "unrecognized transaction t1")
	assert.Equal(t, Errored, m.State())
}

func TestOutOfPhasePayloadsAreIgnored(t *testing.T) {
	transport := &fakeTransport{}
	m := New(transport)
	require.NoError(t, m.HandleMessage(Message{Command: CommandConnected}))

	// Activity page before account info: dropped, no state change.
	require.NoError(t, m.HandleMessage(data(SubActivities, "", `{"items":[],"cursors":{}}`)))
	assert.Equal(t, AwaitingAccountInfo, m.State())
	assert.Equal(t, []SubscriptionKind{SubCash}, transport.kinds())
}
