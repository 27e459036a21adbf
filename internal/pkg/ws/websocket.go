package ws

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sugawarayuuta/sonnet"
)

// Request represents a JSON-RPC request sent to a solana node.
type Request struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type subscribeResponse struct {
	ID     int                    `json:"id"`
	Error  map[string]interface{} `json:"error"`
	Result sonnet.RawMessage      `json:"result"`
}

// Connection is a thin wrapper around websocket connection which provides convenience methods
// for subscribing a feed.
type Connection struct {
	conn *websocket.Conn
}

// SubscribeSlotsUpdates subscribes to slot lifecycle notifications (slotsUpdatesSubscribe).
func (c *Connection) SubscribeSlotsUpdates(id int) (*Subscription, error) {
	return c.subscribe(NewRequest(id, "slotsUpdatesSubscribe", nil), slotsUpdates)
}

// SubscribeSlot subscribes to slot processed notifications (slotSubscribe).
func (c *Connection) SubscribeSlot(id int) (*Subscription, error) {
	return c.subscribe(NewRequest(id, "slotSubscribe", nil), slot)
}

func (c *Connection) subscribe(req *Request, t subscriptionType) (*Subscription, error) {
	body, err := sonnet.Marshal(req)
	if err != nil {
		return nil, err
	}

	if err = c.conn.WriteMessage(websocket.TextMessage, body); err != nil {
		return nil, err
	}

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}

	var res subscribeResponse
	if err = sonnet.Unmarshal(data, &res); err != nil {
		return nil, err
	}

	if res.Error != nil {
		return nil, fmt.Errorf("error from RPC: %v", res.Error)
	}

	if len(res.Result) == 0 {
		return nil, fmt.Errorf("no subscription id in response to %s", req.Method)
	}

	return &Subscription{
		ID:   strings.Trim(string(res.Result), `"`),
		Conn: c,
		Type: t,
	}, nil
}

// Close closes a connection.
func (c *Connection) Close() error {
	if err := c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	); err != nil {
		_ = c.conn.Close()
		return err
	}

	return c.conn.Close()
}

// Abort closes the underlying network connection without a close handshake,
// unblocking a pending NextMessage.
func (c *Connection) Abort() error {
	return c.conn.Close()
}

// SetReadDeadline bounds the next read. A read that hits it fails with a
// net.Error whose Timeout reports true, and the connection is unusable after.
func (c *Connection) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// NewConnection dials uri. The context bounds the handshake.
func NewConnection(ctx context.Context, uri string, header http.Header) (*Connection, error) {
	if !strings.HasPrefix(uri, "wss:") && !strings.HasPrefix(uri, "ws:") {
		return nil, fmt.Errorf("invalid WebSocket connection protocol in %q", uri)
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 45 * time.Second,
	}
	if strings.HasPrefix(uri, "wss") {
		dialer.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	conn, resp, err := dialer.DialContext(ctx, uri, header)
	if err != nil {
		return nil, err
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	return &Connection{
		conn: conn,
	}, nil
}

type subscriptionType byte

const (
	slotsUpdates subscriptionType = 1
	slot         subscriptionType = 2
)

// Subscription represents a subscription to a websocket feed.
type Subscription struct {
	ID   string
	Conn *Connection
	Type subscriptionType
}

// Unsubscribe unsubscribes from the feed.
func (s *Subscription) Unsubscribe() error {
	var method string
	switch s.Type {
	case slotsUpdates:
		method = "slotsUpdatesUnsubscribe"
	case slot:
		method = "slotUnsubscribe"
	default:
		return fmt.Errorf("unknown subscription type: %d", s.Type)
	}

	id, err := sonnet.Number(s.ID).Int64()
	if err != nil {
		return fmt.Errorf("subscription id %q: %w", s.ID, err)
	}

	body, err := sonnet.Marshal(NewRequest(1, method, []interface{}{id}))
	if err != nil {
		return err
	}

	return s.Conn.conn.WriteMessage(websocket.TextMessage, body)
}

// NextMessage is a convenience method which reads and returns the next data item from the feed.
func (s *Subscription) NextMessage() ([]byte, error) {
	_, r, err := s.Conn.conn.NextReader()
	if err != nil {
		return nil, err
	}

	return io.ReadAll(r)
}

// NewRequest is a convenience method to create a Request struct.
func NewRequest(id int, method string, params []interface{}) *Request {
	return &Request{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	}
}
