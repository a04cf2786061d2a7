// Package ws implements transport.Transport over a gorilla/websocket
// connection, letting two OS processes run the same Router/SharedObject
// stack a pair of in-process goroutines would, at the cost of the shared
// buffer becoming a one-time copy taken at share time rather than literal
// shared memory: later writes on either side are not propagated.
package ws

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lightning-js/threadx/internal/transport"
)

// Transport wraps a *websocket.Conn as a transport.Transport, pairing one
// reader goroutine that feeds Messages() with a plain synchronous Post,
// grounded on the readPump half of a websocket relay's Hub/Client split:
// only the read side has its own goroutine; Post writes on the caller's
// goroutine.
type Transport struct {
	id      string
	conn    *websocket.Conn
	inbound chan []byte
	closed  atomic.Bool
	once    sync.Once
}

// New wraps conn and starts its read pump. Each connection gets a unique
// debug id, useful for correlating log lines across a pool of peers when
// several are dialed from the same process.
func New(conn *websocket.Conn) *Transport {
	t := &Transport{id: uuid.NewString(), conn: conn, inbound: make(chan []byte, 64)}
	go t.readPump()
	return t
}

// ID returns this connection's debug-correlation id.
func (t *Transport) ID() string { return t.id }

func (t *Transport) readPump() {
	defer close(t.inbound)
	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			return
		}
		select {
		case t.inbound <- data:
		default:
			// Slow consumer: drop rather than block the socket's read loop,
			// matching the Hub broadcast's close-on-full-buffer behavior.
			return
		}
	}
}

func (t *Transport) Post(ctx context.Context, msg []byte, transferables ...[]byte) error {
	if t.closed.Load() {
		return transport.ErrClosed
	}
	return t.conn.WriteMessage(websocket.BinaryMessage, msg)
}

func (t *Transport) Messages() <-chan []byte { return t.inbound }

func (t *Transport) Terminate() error {
	t.closed.Store(true)
	return t.conn.Close()
}

func (t *Transport) Close() error {
	t.closed.Store(true)
	var err error
	t.once.Do(func() {
		_ = t.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		err = t.conn.Close()
	})
	return err
}
