// Package events provides the in-process event bus shared by the shell,
// the webview mirror, the dev stream and automation mode.
package events

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/xid"
)

// Reserved is the event-name prefix owned by the shell itself. Application
// code may subscribe to reserved events but must not publish them.
const Reserved = "oriel:"

// Shell-published event kinds.
const (
	KindReady       = Reserved + "ready"
	KindUpdated     = Reserved + "updated"
	KindInvoke      = Reserved + "invoke"
	KindPluginSetup = Reserved + "plugin-setup"
	KindWindowClose = Reserved + "window-close"
	KindShutdown    = Reserved + "shutdown"
)

// Event is an immutable notification of shell or application activity.
type Event struct {
	ID     string    `json:"id"`
	Kind   string    `json:"kind"`
	Window string    `json:"window,omitempty"`
	Time   time.Time `json:"time"`
	Data   any       `json:"data,omitempty"`
}

// New builds an event with a fresh ID and the current time.
func New(kind, window string, data any) Event {
	return Event{
		ID:     xid.New().String(),
		Kind:   kind,
		Window: window,
		Time:   time.Now(),
		Data:   data,
	}
}

// IsReserved reports whether the event name belongs to the shell namespace.
func IsReserved(kind string) bool {
	return strings.HasPrefix(kind, Reserved)
}

// Subscription receives events from a Bus.
type Subscription struct {
	C       <-chan Event
	ch      chan Event
	dropped atomic.Int64
}

// Dropped returns how many events were discarded because this subscriber's
// buffer was full.
func (s *Subscription) Dropped() int { return int(s.dropped.Load()) }

// Bus fans out events to all active subscribers. It is safe for concurrent
// use.
type Bus struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool
}

// NewBus creates a Bus ready for use.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[*Subscription]struct{}),
	}
}

// Subscribe creates a new subscription with the given channel buffer size.
// The caller should read from sub.C and eventually call Unsubscribe.
func (b *Bus) Subscribe(bufSize int) *Subscription {
	ch := make(chan Event, bufSize)
	sub := &Subscription{C: ch, ch: ch}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(ch)
		return sub
	}
	b.subs[sub] = struct{}{}

	return sub
}

// Unsubscribe removes the subscription and closes its channel.
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.ch)
	}
}

// Publish sends an event to all subscribers. If a subscriber's buffer is
// full the event is dropped for that subscriber so a slow consumer cannot
// stall dispatch.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for sub := range b.subs {
		select {
		case sub.ch <- e:
		default:
			sub.dropped.Add(1)
		}
	}
}

// Close terminates all subscriptions. Publish and Subscribe become no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		delete(b.subs, sub)
		close(sub.ch)
	}
}
