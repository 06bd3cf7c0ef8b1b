// Package traderepublic implements the broker-facing collaborators: the
// websocket transport speaking the broker's text frame protocol, and the
// dividend statement fetcher with its on-disk cache.
package traderepublic

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/DanielFerrariR/tr-exporter/ingest"
)

// DefaultEndpoint is the broker's websocket endpoint.
const DefaultEndpoint = "wss://api.traderepublic.com"

// connectVersion is the protocol version announced in the connect frame.
const connectVersion = 31

// Client speaks the broker's text frame protocol over a websocket:
//
//	-> connect 31 {"locale":"en"}
//	<- connected
//	-> sub 1 {"type":"availableCash","token":"..."}
//	<- 1 A {...payload...}
//	-> unsub 1
//	<- echo 1712345678
//	-> echo 1712345678
//
// Every subscription is one-shot: the client tears it down as soon as
// its answer arrives. Subscription ids are sequential and never reused,
// so a late answer for a torn-down id is recognizable.
type Client struct {
	conn   *websocket.Conn
	token  string
	locale string

	nextID int
	subs   map[int]ingest.Subscription
}

// Dial connects to the broker's websocket endpoint. The session token
// must be pre-established; login is out of scope here.
func Dial(endpoint, token, locale string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("cannot reach %q: %w", endpoint, err)
	}
	c := &Client{
		conn:   conn,
		token:  token,
		locale: locale,
		subs:   make(map[int]ingest.Subscription),
	}
	hello, err := json.Marshal(map[string]string{"locale": locale})
	if err != nil {
		return nil, err
	}
	frame := fmt.Sprintf("connect %d %s", connectVersion, hello)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("cannot send connect frame: %w", err)
	}
	return c, nil
}

// Subscribe implements ingest.Transport. The subscription body carries
// the request type, the session token and any extra parameters (cursor,
// transaction id).
func (c *Client) Subscribe(kind ingest.SubscriptionKind, params map[string]any) error {
	body := map[string]any{"type": string(kind), "token": c.token}
	for k, v := range params {
		body[k] = v
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	c.nextID++
	sub := ingest.Subscription{Kind: kind}
	if id, ok := params["id"].(string); ok {
		sub.ID = id
	}
	c.subs[c.nextID] = sub

	frame := fmt.Sprintf("sub %d %s", c.nextID, payload)
	return c.conn.WriteMessage(websocket.TextMessage, []byte(frame))
}

// Disconnect implements ingest.Transport.
func (c *Client) Disconnect() error {
	goodbye := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	c.conn.WriteMessage(websocket.CloseMessage, goodbye)
	return c.conn.Close()
}

// Run reads frames until the machine reaches a terminal state. A close
// with code 1000 or 1001 is a normal end; any other read failure fails
// the machine and the run.
func (c *Client) Run(m *ingest.Machine) error {
	for !m.Done() {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Println("connection closed by server")
				return nil
			}
			m.Fail(fmt.Errorf("connection lost: %w", err))
			return err
		}
		msg, reply, err := c.decodeFrame(string(frame))
		if err != nil {
			m.Fail(err)
			return err
		}
		if reply != "" {
			if err := c.conn.WriteMessage(websocket.TextMessage, []byte(reply)); err != nil {
				m.Fail(fmt.Errorf("cannot answer keep-alive: %w", err))
				return err
			}
		}
		if msg == nil {
			continue
		}
		if err := m.HandleMessage(*msg); err != nil {
			return err
		}
	}
	return nil
}

// decodeFrame turns one inbound text frame into an ingest message. The
// second return is a frame to write back: the keep-alive echo, or the
// unsubscribe of an answered one-shot subscription.
func (c *Client) decodeFrame(frame string) (*ingest.Message, string, error) {
	if frame == "connected" {
		return &ingest.Message{Command: ingest.CommandConnected}, "", nil
	}
	if strings.HasPrefix(frame, "echo ") {
		return &ingest.Message{Command: ingest.CommandKeepAlive}, frame, nil
	}

	// Everything else is "<id> <code> <payload>".
	parts := strings.SplitN(frame, " ", 3)
	if len(parts) < 2 {
		log.Printf("ignoring unrecognized frame %q", frame)
		return nil, "", nil
	}
	id, err := strconv.Atoi(parts[0])
	if err != nil {
		log.Printf("ignoring frame with non-numeric id %q", frame)
		return nil, "", nil
	}
	payload := ""
	if len(parts) == 3 {
		payload = parts[2]
	}

	switch parts[1] {
	case "A":
		sub, ok := c.subs[id]
		if !ok {
			log.Printf("ignoring answer for unknown subscription %d", id)
			return nil, "", nil
		}
		// One-shot: tear the subscription down on first answer.
		delete(c.subs, id)
		return &ingest.Message{
			Command: ingest.CommandData,
			Payload: json.RawMessage(payload),
			Sub:     &sub,
		}, fmt.Sprintf("unsub %d", id), nil
	case "C":
		// Continuation marker, no payload of interest.
		return nil, "", nil
	case "E":
		sub := c.subs[id]
		return nil, "", fmt.Errorf("subscription %d (%s) rejected: %s", id, sub.Kind, payload)
	default:
		log.Printf("ignoring frame with unknown code %q", parts[1])
		return nil, "", nil
	}
}
