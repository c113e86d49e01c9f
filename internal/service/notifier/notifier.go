// Package notifier delivers ledger outcomes to the presentation layer. Every
// subscriber owns an unbounded mailbox drained by its own goroutine, so
// publishers never block and no event is dropped while anyone is listening.
// Events published before the first subscription are held in a backlog and
// handed to the first subscriber.
package notifier

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrClosed is returned once the notifier or the subscription has been closed.
var ErrClosed = errors.New("notifier closed")

// Event is one outcome of a ledger request.
type Event struct {
	RequestID string      `json:"requestId"`
	Name      string      `json:"event"`
	Terminal  bool        `json:"terminal"`
	Error     bool        `json:"error"`
	Empty     bool        `json:"empty"`
	Data      interface{} `json:"data,omitempty"`
	Err       error       `json:"-"`
}

// Notifier fans events out to subscribers.
type Notifier struct {
	mu      sync.Mutex
	subs    map[uint64]*mailbox
	nextID  uint64
	backlog []Event
	closed  bool
	logger  *zap.Logger
}

// New builds an empty notifier.
func New(logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{subs: make(map[uint64]*mailbox), logger: logger}
}

// Publish hands ev to every current subscriber without blocking.
func (n *Notifier) Publish(ev Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		n.logger.Warn("event published after close", zap.String("event", ev.Name), zap.String("request_id", ev.RequestID))
		return ErrClosed
	}

	if len(n.subs) == 0 {
		n.backlog = append(n.backlog, ev)
		return nil
	}

	for _, mb := range n.subs {
		mb.push(ev)
	}
	return nil
}

// Subscribe registers a new listener. The caller must Close the subscription.
func (n *Notifier) Subscribe() *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	mb := newMailbox()
	var id uint64
	if n.closed {
		mb.shutdown()
	} else {
		if len(n.subs) == 0 && len(n.backlog) > 0 {
			mb.queue = append(mb.queue, n.backlog...)
			n.backlog = nil
		}
		n.nextID++
		id = n.nextID
		n.subs[id] = mb
	}
	go mb.pump()

	return &Subscription{C: mb.out, id: id, mb: mb, n: n}
}

// Close stops accepting events. Subscribers still receive what was queued,
// then their channels are closed.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return
	}
	n.closed = true
	for _, mb := range n.subs {
		mb.shutdown()
	}
	if len(n.backlog) > 0 {
		n.logger.Warn("notifier closed with undelivered events", zap.Int("count", len(n.backlog)))
	}
}

func (n *Notifier) unsubscribe(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.subs, id)
}

// Subscription is one listener's view of the event stream.
type Subscription struct {
	C    <-chan Event
	id   uint64
	mb   *mailbox
	n    *Notifier
	once sync.Once
}

// Close detaches the subscription. Events still queued for it are discarded.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.n.unsubscribe(s.id)
		close(s.mb.done)
	})
}

// Await collects the events of requestID until its terminal event arrives.
// Events of other requests are skipped.
func (s *Subscription) Await(ctx context.Context, requestID string) ([]Event, error) {
	var events []Event
	for {
		if err := ctx.Err(); err != nil {
			return events, err
		}
		select {
		case <-ctx.Done():
			return events, ctx.Err()
		case ev, ok := <-s.C:
			if !ok {
				return events, ErrClosed
			}
			if ev.RequestID != requestID {
				continue
			}
			events = append(events, ev)
			if ev.Terminal {
				return events, nil
			}
		}
	}
}

type mailbox struct {
	mu      sync.Mutex
	queue   []Event
	closing bool
	signal  chan struct{}
	done    chan struct{}
	out     chan Event
}

func newMailbox() *mailbox {
	return &mailbox{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
		out:    make(chan Event),
	}
}

func (m *mailbox) push(ev Event) {
	m.mu.Lock()
	m.queue = append(m.queue, ev)
	m.mu.Unlock()
	m.wake()
}

func (m *mailbox) shutdown() {
	m.mu.Lock()
	m.closing = true
	m.mu.Unlock()
	m.wake()
}

func (m *mailbox) wake() {
	select {
	case m.signal <- struct{}{}:
	default:
	}
}

func (m *mailbox) pump() {
	defer close(m.out)

	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			closing := m.closing
			m.mu.Unlock()
			if closing {
				return
			}
			select {
			case <-m.signal:
				continue
			case <-m.done:
				return
			}
		}

		ev := m.queue[0]
		m.queue[0] = Event{}
		m.queue = m.queue[1:]
		m.mu.Unlock()

		select {
		case m.out <- ev:
		case <-m.done:
			return
		}
	}
}
