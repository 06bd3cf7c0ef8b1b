// Package ingest drives the subscription protocol that downloads an
// account's full timeline: account info, paginated activities, paginated
// transactions, then one detail payload per transaction.
//
// The whole package is a single-threaded state machine. The transport
// delivers one decoded message at a time, in order, and all accumulated
// state is owned by the machine and touched only from HandleMessage.
// There is no resumption: any transport-level failure poisons the run
// and the caller starts over.
package ingest

import (
	"encoding/json"
	"fmt"
	"log"
	"slices"

	trexport "github.com/DanielFerrariR/tr-exporter"
)

// SubscriptionKind identifies which logical request a payload answers.
type SubscriptionKind string

const (
	SubCash         SubscriptionKind = "availableCash"
	SubActivities   SubscriptionKind = "timelineActivityLog"
	SubTransactions SubscriptionKind = "timelineTransactions"
	SubDetails      SubscriptionKind = "timelineDetailV2"
)

// Command is the kind of an inbound transport message.
type Command string

const (
	// CommandConnected is delivered once after the transport handshake.
	CommandConnected Command = "connected"
	// CommandData carries a subscription payload.
	CommandData Command = "data"
	// CommandKeepAlive is the transport's liveness echo. Filtered before
	// any state handler runs; never affects state.
	CommandKeepAlive Command = "keep-alive"
)

// Message is one decoded inbound message. The transport has already
// stripped wire framing; Payload is the decoded JSON body and Sub
// identifies the subscription the payload answers, when there is one.
type Message struct {
	Command Command
	Payload json.RawMessage
	Sub     *Subscription
}

// Subscription identifies a logical request. ID is only set for detail
// requests and carries the transaction id the details belong to.
type Subscription struct {
	Kind SubscriptionKind
	ID   string
}

// Transport is the outbound half of the protocol.
type Transport interface {
	// Subscribe issues a subscription request of the given kind.
	Subscribe(kind SubscriptionKind, params map[string]any) error
	// Disconnect closes the transport once ingestion is complete.
	Disconnect() error
}

// State enumerates the phases of an ingestion run.
type State int

const (
	AwaitingConnection State = iota
	AwaitingAccountInfo
	PaginatingActivities
	PaginatingTransactions
	AwaitingTransactionDetails
	Complete
	Errored
)

func (s State) String() string {
	switch s {
	case AwaitingConnection:
		return "awaiting-connection"
	case AwaitingAccountInfo:
		return "awaiting-account-info"
	case PaginatingActivities:
		return "paginating-activities"
	case PaginatingTransactions:
		return "paginating-transactions"
	case AwaitingTransactionDetails:
		return "awaiting-transaction-details"
	case Complete:
		return "complete"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}

// Result is everything an ingestion run produced: the account summary
// and the classified, detail-enriched record lists, ready for the
// portfolio mapper.
type Result struct {
	Account      trexport.AccountInformation
	Activities   []*trexport.Activity
	Transactions []*trexport.Transaction
}

// Machine is the ingestion state machine. Create one per run with New;
// a Machine cannot be reused.
type Machine struct {
	transport Transport
	strict    bool

	state        State
	account      trexport.AccountInformation
	activities   []*trexport.Activity
	transactions []*trexport.Transaction
	pending      map[string]struct{}

	result *Result
	err    error
}

// Option configures a Machine.
type Option func(*Machine)

// Strict makes an unclassifiable record fatal to the whole run instead
// of a logged skip. The default is lenient: unmatched records are
// reported and dropped, never silently.
func Strict() Option {
	return func(m *Machine) { m.strict = true }
}

// New creates a Machine that issues requests through the transport.
func New(transport Transport, opts ...Option) *Machine {
	m := &Machine{
		transport: transport,
		state:     AwaitingConnection,
		pending:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the machine's current state.
func (m *Machine) State() State { return m.state }

// Done reports whether the run reached a terminal state.
func (m *Machine) Done() bool { return m.state == Complete || m.state == Errored }

// Result returns the run's output once the machine is Complete, or the
// failure that moved it to Errored.
func (m *Machine) Result() (*Result, error) {
	switch m.state {
	case Complete:
		return m.result, nil
	case Errored:
		return nil, m.err
	default:
		return nil, fmt.Errorf("ingestion still %s", m.state)
	}
}

// Fail moves the machine to Errored. The transport calls it on abnormal
// closure or socket error; such failures abort the whole ingestion with
// no partial output.
func (m *Machine) Fail(err error) {
	if m.state == Errored || m.state == Complete {
		return
	}
	m.state = Errored
	m.err = err
}

// fail records err and returns it, so handlers can poison-and-propagate
// in one statement.
func (m *Machine) fail(err error) error {
	m.Fail(err)
	return err
}

// HandleMessage feeds one inbound message through the machine. Messages
// must arrive in delivery order; keep-alives are filtered here and never
// reach a state handler.
func (m *Machine) HandleMessage(msg Message) error {
	if msg.Command == CommandKeepAlive {
		return nil
	}
	if m.Done() {
		return nil
	}

	if msg.Command == CommandConnected {
		if m.state != AwaitingConnection {
			log.Printf("ignoring duplicate connected message in state %s", m.state)
			return nil
		}
		log.Println("connection ready, requesting account information")
		if err := m.transport.Subscribe(SubCash, nil); err != nil {
			return m.fail(err)
		}
		m.state = AwaitingAccountInfo
		return nil
	}

	if msg.Sub == nil {
		// Not an answer to anything we asked. Log and carry on.
		log.Printf("ignoring message without subscription context: %s", string(msg.Payload))
		return nil
	}

	switch msg.Sub.Kind {
	case SubCash:
		return m.handleAccountInfo(msg.Payload)
	case SubActivities:
		return m.handleActivityPage(msg.Payload)
	case SubTransactions:
		return m.handleTransactionPage(msg.Payload)
	case SubDetails:
		return m.handleDetails(msg.Sub.ID, msg.Payload)
	default:
		log.Printf("ignoring payload for unknown subscription kind %q", msg.Sub.Kind)
		return nil
	}
}

func (m *Machine) handleAccountInfo(payload json.RawMessage) error {
	if m.state != AwaitingAccountInfo {
		log.Printf("ignoring account info in state %s", m.state)
		return nil
	}
	if err := json.Unmarshal(payload, &m.account); err != nil {
		return m.fail(fmt.Errorf("malformed account info payload: %w", err))
	}
	log.Printf("account information fetched for %s", m.account.AccountNumber)

	if err := m.transport.Subscribe(SubActivities, nil); err != nil {
		return m.fail(err)
	}
	m.state = PaginatingActivities
	return nil
}

// page is the common shape of a paginated response. An absent or empty
// "after" cursor is the sole completion signal.
type page struct {
	Items   json.RawMessage `json:"items"`
	Cursors struct {
		After  string `json:"after"`
		Before string `json:"before"`
	} `json:"cursors"`
}

func (m *Machine) handleActivityPage(payload json.RawMessage) error {
	if m.state != PaginatingActivities {
		log.Printf("ignoring activity page in state %s", m.state)
		return nil
	}
	var p page
	if err := json.Unmarshal(payload, &p); err != nil {
		return m.fail(fmt.Errorf("malformed activity page: %w", err))
	}
	var items []*trexport.Activity
	if err := json.Unmarshal(p.Items, &items); err != nil {
		return m.fail(fmt.Errorf("malformed activity items: %w", err))
	}
	m.activities = append(m.activities, items...)

	if p.Cursors.After != "" {
		return m.subscribeNextPage(SubActivities, p.Cursors.After)
	}

	// Last page: classify everything before moving on.
	for _, a := range m.activities {
		event, ok := trexport.ClassifyActivity(a)
		if !ok {
			if m.strict {
				return m.fail(fmt.Errorf("unrecognized activity %s (title %q, subtitle %v)", a.ID, a.Title, a.Subtitle))
			}
			log.Printf("unrecognized activity %s (title %q)", a.ID, a.Title)
			continue
		}
		a.EventType = event
	}
	log.Printf("all %d activities fetched", len(m.activities))

	if err := m.transport.Subscribe(SubTransactions, nil); err != nil {
		return m.fail(err)
	}
	m.state = PaginatingTransactions
	return nil
}

func (m *Machine) handleTransactionPage(payload json.RawMessage) error {
	if m.state != PaginatingTransactions {
		log.Printf("ignoring transaction page in state %s", m.state)
		return nil
	}
	var p page
	if err := json.Unmarshal(payload, &p); err != nil {
		return m.fail(fmt.Errorf("malformed transaction page: %w", err))
	}
	var items []*trexport.Transaction
	if err := json.Unmarshal(p.Items, &items); err != nil {
		return m.fail(fmt.Errorf("malformed transaction items: %w", err))
	}
	m.transactions = append(m.transactions, items...)

	if p.Cursors.After != "" {
		return m.subscribeNextPage(SubTransactions, p.Cursors.After)
	}

	for _, t := range m.transactions {
		event, ok := trexport.ClassifyTransaction(t)
		if !ok {
			if m.strict {
				return m.fail(fmt.Errorf("unrecognized transaction %s (title %q, subtitle %v)", t.ID, t.Title, t.Subtitle))
			}
			log.Printf("unrecognized transaction %s (title %q)", t.ID, t.Title)
			continue
		}
		t.EventType = event
	}

	// The feed omits received gifts and corporate actions; derive them
	// from the activities before requesting details, so their detail
	// payloads are fetched like everyone else's.
	m.transactions = append(m.transactions, trexport.SyntheticTransactions(m.activities)...)
	slices.SortFunc(m.transactions, func(a, b *trexport.Transaction) int {
		return b.Timestamp.Compare(a.Timestamp) // newest first
	})
	log.Printf("all %d transactions fetched, requesting details", len(m.transactions))

	for _, t := range m.transactions {
		m.pending[t.ID] = struct{}{}
	}
	m.state = AwaitingTransactionDetails
	for _, t := range m.transactions {
		if err := m.transport.Subscribe(SubDetails, map[string]any{"id": t.ID}); err != nil {
			return m.fail(err)
		}
	}
	if len(m.pending) == 0 {
		// An account with no transactions at all is still a valid run.
		return m.complete()
	}
	return nil
}

func (m *Machine) subscribeNextPage(kind SubscriptionKind, after string) error {
	if err := m.transport.Subscribe(kind, map[string]any{"after": after}); err != nil {
		return m.fail(err)
	}
	return nil
}

func (m *Machine) handleDetails(id string, payload json.RawMessage) error {
	if m.state != AwaitingTransactionDetails {
		log.Printf("ignoring detail payload in state %s", m.state)
		return nil
	}

	i := slices.IndexFunc(m.transactions, func(t *trexport.Transaction) bool { return t.ID == id })
	if i < 0 {
		log.Printf("received details for unknown transaction id %s", id)
		return nil
	}

	var detail struct {
		Sections json.RawMessage `json:"sections"`
	}
	if err := json.Unmarshal(payload, &detail); err != nil {
		return m.fail(fmt.Errorf("malformed detail payload for %s: %w", id, err))
	}
	sections, err := trexport.DecodeSections(detail.Sections)
	if err != nil {
		return m.fail(fmt.Errorf("malformed sections for %s: %w", id, err))
	}
	m.transactions[i].Sections = sections

	delete(m.pending, id)
	if len(m.pending) > 0 {
		return nil
	}
	return m.complete()
}

// complete finalizes the run: exactly one transition to Complete.
func (m *Machine) complete() error {
	log.Println("all transaction details fetched")
	m.result = &Result{
		Account:      m.account,
		Activities:   m.activities,
		Transactions: m.transactions,
	}
	m.state = Complete
	if err := m.transport.Disconnect(); err != nil {
		log.Printf("disconnect failed (ignored): %v", err)
	}
	return nil
}
