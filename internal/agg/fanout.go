// Package agg aggregates per-exchange streams into venue-tagged broadcast
// streams and routes outbound order commands back to the owning exchange.
package agg

import "sync"

// fanoutBuffer is the per-subscriber channel capacity. A subscriber that
// falls this far behind loses events; subscribers are expected to drain
// promptly and do slow work off the channel.
const fanoutBuffer = 1024

// Fanout broadcasts values to any number of subscribers. Publishing never
// blocks.
type Fanout[T any] struct {
	mu   sync.Mutex
	subs map[int]chan T
	next int
}

func NewFanout[T any]() *Fanout[T] {
	return &Fanout[T]{subs: make(map[int]chan T)}
}

// Subscribe returns a receive channel and a cancel function. Cancelling
// closes the channel.
func (f *Fanout[T]) Subscribe() (<-chan T, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.next
	f.next++
	ch := make(chan T, fanoutBuffer)
	f.subs[id] = ch

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if sub, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers v to every subscriber, dropping it for any whose buffer is
// full.
func (f *Fanout[T]) Publish(v T) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, ch := range f.subs {
		select {
		case ch <- v:
		default:
		}
	}
}

// CloseAll closes every subscriber channel.
func (f *Fanout[T]) CloseAll() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for id, ch := range f.subs {
		delete(f.subs, id)
		close(ch)
	}
}
