package registry

import (
	"log/slog"
	"sync"

	"tmuxy/internal/emitter"
)

// broadcastBufferSize bounds each client's outgoing channel (§5 memory
// bounds: "the broadcast channel for state updates is bounded (100)").
const broadcastBufferSize = 100

// broadcastHub fans one session's state updates out to every subscribed
// client. It implements emitter.Emitter directly, so a Monitor can push
// into it without knowing how many clients are attached. Grounded on the
// teacher's `internal/wsserver/hub.go` RWMutex-guarded subscriber idiom,
// generalized from a single connection to many.
type broadcastHub struct {
	mu   sync.RWMutex
	subs map[string]*subscriber
}

type subscriber struct {
	states chan emitter.StateUpdate
	errs   chan string
}

// Subscription is a client's borrowed receivers on a session's broadcast
// channel (§3 Session Registry entry, §5 ownership: "clients hold only
// borrowed receivers").
type Subscription struct {
	ID     string
	States <-chan emitter.StateUpdate
	Errors <-chan string
}

func newBroadcastHub() *broadcastHub {
	return &broadcastHub{subs: make(map[string]*subscriber)}
}

// Subscribe registers a new client under the given id (the registry's
// connection id, so Unsubscribe can be keyed the same way on detach) and
// returns its borrowed receivers.
func (b *broadcastHub) Subscribe(id string) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := &subscriber{
		states: make(chan emitter.StateUpdate, broadcastBufferSize),
		errs:   make(chan string, broadcastBufferSize),
	}
	b.subs[id] = sub
	return Subscription{ID: id, States: sub.states, Errors: sub.errs}
}

// Unsubscribe removes and closes a client's channels.
func (b *broadcastHub) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(sub.states)
		close(sub.errs)
	}
}

// EmitState fans a state update out to every subscriber. A subscriber
// whose buffer is full is lossy at the tail (§5): the oldest queued
// update is dropped to make room, and a lag notice is logged rather than
// disconnecting the client.
func (b *broadcastHub) EmitState(update emitter.StateUpdate) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, sub := range b.subs {
		select {
		case sub.states <- update:
		default:
			select {
			case <-sub.states:
			default:
			}
			select {
			case sub.states <- update:
			default:
			}
			slog.Warn("[registry] client lagged, dropped oldest state update", "subscriber", id)
			select {
			case sub.errs <- "lagged: one or more state updates were dropped":
			default:
			}
		}
	}
}

// EmitError fans an error message out to every subscriber, best-effort.
func (b *broadcastHub) EmitError(msg string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		select {
		case sub.errs <- msg:
		default:
		}
	}
}
