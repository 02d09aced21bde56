// Package ws bridges browser WebSocket connections to the bi-directional
// agent runtime: an input adapter normalizing inbound turns, an output
// adapter serializing runtime events, and the connection handlers that
// wire them to a resolved session.
package ws

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/coder/websocket"
)

// Transport is the duplex message channel the adapters operate on. The
// production implementation wraps a WebSocket connection; tests substitute
// an in-memory one.
type Transport interface {
	// ReadMessage blocks until one complete message arrives.
	ReadMessage(ctx context.Context) ([]byte, error)

	// WriteMessage sends one complete text message.
	WriteMessage(ctx context.Context, data []byte) error
}

type connTransport struct {
	conn *websocket.Conn
}

func newConnTransport(conn *websocket.Conn) *connTransport {
	return &connTransport{conn: conn}
}

func (t *connTransport) ReadMessage(ctx context.Context) ([]byte, error) {
	_, data, err := t.conn.Read(ctx)
	return data, err
}

func (t *connTransport) WriteMessage(ctx context.Context, data []byte) error {
	return t.conn.Write(ctx, websocket.MessageText, data)
}

// isDisconnect reports whether err means the peer is gone, as opposed to a
// genuine failure worth surfacing.
func isDisconnect(err error) bool {
	if websocket.CloseStatus(err) != -1 {
		return true
	}
	return errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, context.Canceled)
}
