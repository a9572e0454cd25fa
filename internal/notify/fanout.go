package notify

import (
	"errors"
	"sync"
	"sync/atomic"
)

var (
	ErrFanoutClosed       = errors.New("notify: fanout is closed")
	ErrSubscriberExists   = errors.New("notify: subscriber already exists")
	ErrSubscriberNotFound = errors.New("notify: subscriber not found")
	ErrNilChannel         = errors.New("notify: nil channel provided")
)

// SubscriberStats tracks event delivery to one subscriber
type SubscriberStats struct {
	Sent    uint64
	Dropped uint64
}

type subscriber struct {
	id    string
	ch    chan<- Event
	stats *SubscriberStats
}

// Fanout distributes events to in-process subscribers.
//
// Delivery never blocks the streamer: when a subscriber's channel is full the
// event is dropped for that subscriber and counted.
type Fanout struct {
	mu             sync.RWMutex
	subscribers    map[string]*subscriber
	totalPublished uint64
	closed         bool
}

var _ Notifier = (*Fanout)(nil)

// NewFanout creates an empty fanout.
func NewFanout() *Fanout {
	return &Fanout{
		subscribers: make(map[string]*subscriber),
	}
}

// Subscribe registers ch under id.
func (f *Fanout) Subscribe(id string, ch chan<- Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrFanoutClosed
	}
	if _, exists := f.subscribers[id]; exists {
		return ErrSubscriberExists
	}
	if ch == nil {
		return ErrNilChannel
	}

	f.subscribers[id] = &subscriber{
		id:    id,
		ch:    ch,
		stats: &SubscriberStats{},
	}
	return nil
}

// Notify delivers ev to every subscriber without blocking.
// Notify on a closed fanout is a no-op.
func (f *Fanout) Notify(ev Event) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil
	}

	atomic.AddUint64(&f.totalPublished, 1)

	for _, sub := range f.subscribers {
		select {
		case sub.ch <- ev:
			atomic.AddUint64(&sub.stats.Sent, 1)
		default:
			atomic.AddUint64(&sub.stats.Dropped, 1)
		}
	}
	return nil
}

// Unsubscribe removes a subscriber. The channel is not closed.
func (f *Fanout) Unsubscribe(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.subscribers[id]; !exists {
		return ErrSubscriberNotFound
	}
	delete(f.subscribers, id)
	return nil
}

// Stats returns delivery statistics for a subscriber.
func (f *Fanout) Stats(id string) (SubscriberStats, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	sub, exists := f.subscribers[id]
	if !exists {
		return SubscriberStats{}, ErrSubscriberNotFound
	}
	return SubscriberStats{
		Sent:    atomic.LoadUint64(&sub.stats.Sent),
		Dropped: atomic.LoadUint64(&sub.stats.Dropped),
	}, nil
}

// Published returns how many events were fanned out.
func (f *Fanout) Published() uint64 {
	return atomic.LoadUint64(&f.totalPublished)
}

// Close drops all subscribers. Further Subscribe calls fail.
func (f *Fanout) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true
	f.subscribers = nil
}
