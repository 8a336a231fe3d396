// Package websocket はcoder/websocketでrig.Transportを実装します。
package websocket

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coder/websocket"

	"umbra/rig"
)

type wsTransport struct {
	conn *websocket.Conn
}

func NewTransportFrom(conn *websocket.Conn) rig.Transport {
	return &wsTransport{conn: conn}
}

func (t *wsTransport) Read(ctx context.Context) ([]byte, error) {
	_, data, err := t.conn.Read(ctx)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (t *wsTransport) Write(ctx context.Context, data []byte) error {
	return t.conn.Write(ctx, websocket.MessageText, data)
}

func (t *wsTransport) Close(code int32, reason string) error {
	return t.conn.Close(websocket.StatusCode(code), reason)
}

// Dialer はURLへwebsocket接続するrig.Dialerです。
type Dialer struct {
	URL    string
	Header http.Header
}

func (d Dialer) Dial(ctx context.Context) (rig.Transport, error) {
	conn, _, err := websocket.Dial(ctx, d.URL, &websocket.DialOptions{HTTPHeader: d.Header})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", d.URL, err)
	}
	conn.SetReadLimit(1 << 20)
	return NewTransportFrom(conn), nil
}
