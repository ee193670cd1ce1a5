// Package realtime holds the connection settings of the Supabase Realtime
// service and a thin websocket transport for it. Channel semantics are left
// to the caller.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ProtocolVersion is sent as the vsn query parameter.
const ProtocolVersion = "1.0.0"

var (
	ErrNotConnected     = errors.New("realtime: not connected")
	ErrAlreadyConnected = errors.New("realtime: already connected")
)

var noDeadline time.Time

// Client is a realtime connection to one endpoint.
type Client struct {
	endpoint string
	params   map[string]string
	dialer   *websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn
}

// New builds a client for endpoint (an http(s) or ws(s) URL, typically
// ending in /realtime/v1). params are appended to the socket URL.
func New(endpoint string, params map[string]string) *Client {
	p := make(map[string]string, len(params))
	for k, v := range params {
		p[k] = v
	}
	return &Client{
		endpoint: endpoint,
		params:   p,
		dialer:   websocket.DefaultDialer,
	}
}

// Endpoint returns the endpoint the client was built with.
func (c *Client) Endpoint() string { return c.endpoint }

// Params returns a copy of the connection parameters.
func (c *Client) Params() map[string]string {
	out := make(map[string]string, len(c.params))
	for k, v := range c.params {
		out[k] = v
	}
	return out
}

// SocketURL returns the websocket URL: the endpoint with a ws scheme, a
// /websocket suffix and the params plus vsn as query.
func (c *Client) SocketURL() (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("parse realtime endpoint: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	if !strings.HasSuffix(u.Path, "/websocket") {
		u.Path = strings.TrimSuffix(u.Path, "/") + "/websocket"
	}

	q := u.Query()
	for k, v := range c.params {
		q.Set(k, v)
	}
	q.Set("vsn", ProtocolVersion)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Connect dials the socket.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return ErrAlreadyConnected
	}

	target, err := c.SocketURL()
	if err != nil {
		return err
	}
	conn, resp, err := c.dialer.DialContext(ctx, target, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("dial realtime: %w", err)
	}
	c.conn = conn
	return nil
}

// Connected reports whether a socket is open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Send writes v as a JSON text frame.
func (c *Client) Send(ctx context.Context, v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
		defer c.conn.SetWriteDeadline(noDeadline)
	}
	if err := c.conn.WriteJSON(v); err != nil {
		return fmt.Errorf("send realtime message: %w", err)
	}
	return nil
}

// Receive reads the next frame and decodes it as JSON into v.
func (c *Client) Receive(ctx context.Context, v any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
		defer conn.SetReadDeadline(noDeadline)
	}
	if err := conn.ReadJSON(v); err != nil {
		return fmt.Errorf("receive realtime message: %w", err)
	}
	return nil
}

// Close sends a close frame and releases the socket. Closing a client that
// is not connected is a no-op.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	err := c.conn.Close()
	c.conn = nil
	return err
}
