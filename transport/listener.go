// Package transport defines the boundary between an external message broker
// and the dispatch engine. It deliberately stops short of a broker client:
// the engine consumes a (target, event) tuple stream regardless of whether
// it arrived over AMQP, a test channel, or anything else a future listener
// wires up against amqp_url.
package transport

import (
	"context"

	"github.com/nimbusnet/rugengine/engine"
	"github.com/nimbusnet/rugengine/logger"
)

// Message is one inbound unit: a routing target and the event it carries.
type Message struct {
	Target string
	Event  engine.Event
}

// Listener produces a stream of inbound messages and can be asked to stop.
// A real AMQP consumer satisfies this by translating basic.deliver frames
// into Messages; ChannelListener here is the in-process reference
// implementation used by tests and by cmd/rugengine until a broker listener
// is wired up.
type Listener interface {
	Messages() <-chan Message
	Close() error
}

// ChannelListener is a Listener backed by a buffered Go channel. Producers
// call Publish; Run drains Messages() into the engine.
type ChannelListener struct {
	ch chan Message
}

// NewChannelListener returns a ChannelListener with the given buffer depth.
func NewChannelListener(buffer int) *ChannelListener {
	return &ChannelListener{ch: make(chan Message, buffer)}
}

// Publish enqueues msg, blocking if the buffer is full.
func (l *ChannelListener) Publish(msg Message) {
	l.ch <- msg
}

// Messages implements Listener.
func (l *ChannelListener) Messages() <-chan Message {
	return l.ch
}

// Close implements Listener.
func (l *ChannelListener) Close() error {
	close(l.ch)
	return nil
}

// Run drains listener into ingress until the context is cancelled or the
// listener's channel closes. Each message is handled synchronously with
// respect to this loop. HandleMessage enqueues work rather than running it,
// though it can block on a network lookup when an event's router has to be
// resolved from its tenant; the router reconciliation itself happens on
// worker goroutines inside the engine.
func Run(ctx context.Context, listener Listener, ingress *engine.Ingress) error {
	messages := listener.Messages()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			if _, err := ingress.HandleMessage(msg.Target, msg.Event); err != nil {
				logger.Warnw("failed to handle inbound message",
					"target", msg.Target, "error", err.Error())
			}
		}
	}
}
