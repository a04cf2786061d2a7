// Package transport defines the bidirectional message-channel primitive
// the core consumes to talk to peer workers, plus two concrete
// implementations: an in-process pipe for goroutine workers, and a
// websocket-backed one for process/network workers.
package transport

import "context"

// Transport is a bidirectional message channel: post a message (with
// optional transferable byte payloads) and receive an inbound stream of
// the same shape from the peer. Router treats every registered peer as a
// Transport; it never depends on how bytes actually move.
type Transport interface {
	// Post sends msg (already framed by the caller) to the peer.
	// transferables are opaque byte payloads a JS host would move instead
	// of copy; the implementations in this module (InProc, ws) do not
	// deliver them, only msg reaches the peer.
	Post(ctx context.Context, msg []byte, transferables ...[]byte) error

	// Messages returns the channel of inbound frames from the peer. It is
	// closed when the peer closes its side or disconnects; ws also closes it
	// when this side closes, InProc does not.
	Messages() <-chan []byte

	// Terminate forcibly tears down the transport, used when a graceful
	// Close did not complete within a caller-supplied timeout.
	Terminate() error

	// Close gracefully shuts the transport down.
	Close() error
}

// LoopbackCarrier is an optional capability a Transport may implement when
// both ends genuinely live in the same process (e.g. InProc): it lets the
// Router hand the peer an actual shared value — a buffer.Region — instead
// of a serialized copy, the same way a JS host transfers a
// SharedArrayBuffer by reference rather than structured-cloning it.
// Transports that cross a real process boundary (ws) do not implement
// this; Router falls back to reconstructing a Region from the control
// message's raw bytes in that case.
type LoopbackCarrier interface {
	PutLoopback(key float64, value any)
	TakeLoopback(key float64) (any, bool)
}
