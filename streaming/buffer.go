package streaming

import (
	"errors"
	"slices"
	"sync"
	"time"
)

// ErrClosed is returned by Append once a terminal event has been recorded.
var ErrClosed = errors.New("streaming: buffer closed")

// Buffer is the append-only event sequence for one stream. It has exactly
// one writer and any number of concurrent readers. All waiting (writer wakes
// readers) goes through a single condition variable so that snapshotting the
// history and registering for the live tail happen under one critical
// section.
type Buffer struct {
	mu       sync.Mutex
	cond     *sync.Cond
	events   []Event
	closed   bool
	closedAt time.Time
}

// NewBuffer creates an empty, open buffer.
func NewBuffer() *Buffer {
	b := &Buffer{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Append adds an event and wakes all waiting subscribers. It fails with
// ErrClosed once a terminal event has been appended; appending a terminal
// event closes the buffer.
func (b *Buffer) Append(ev Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	b.events = append(b.events, ev)
	if ev.Terminal() {
		b.closed = true
		b.closedAt = time.Now()
	}
	b.cond.Broadcast()
	return nil
}

// Closed reports whether a terminal event has been appended.
func (b *Buffer) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// ClosedAt returns when the buffer closed. ok is false while it is open.
func (b *Buffer) ClosedAt() (t time.Time, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closedAt, b.closed
}

// Len returns the number of events appended so far.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

// SnapshotAndSubscribe atomically returns every event appended so far and a
// subscription delivering every event appended afterwards, up to and
// including the terminal one. The subscription channel closes once the
// terminal event has been delivered (immediately, for an already closed
// buffer whose history is fully contained in the snapshot).
//
// The caller must either drain the subscription or Cancel it.
func (b *Buffer) SnapshotAndSubscribe() ([]Event, *Subscription) {
	b.mu.Lock()
	history := slices.Clone(b.events)
	sub := &Subscription{
		buf:  b,
		ch:   make(chan Event),
		stop: make(chan struct{}),
	}
	cursor := len(b.events)
	b.mu.Unlock()

	go sub.pump(cursor)
	return history, sub
}

// Subscription is a live reader attached to a Buffer. It never mutates the
// buffer; detaching (Cancel) has no effect on the producer.
type Subscription struct {
	buf      *Buffer
	ch       chan Event
	stop     chan struct{}
	stopOnce sync.Once
	stopped  bool // guarded by buf.mu
}

// Events returns the delivery channel. It is closed after the terminal
// event has been sent, or after Cancel.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Cancel detaches the subscription. Safe to call multiple times and
// concurrently with delivery.
func (s *Subscription) Cancel() {
	s.stopOnce.Do(func() {
		s.buf.mu.Lock()
		s.stopped = true
		s.buf.cond.Broadcast()
		s.buf.mu.Unlock()
		close(s.stop)
	})
}

// pump walks the buffer's event slice by cursor, blocking on the buffer's
// condition variable until new events arrive, the buffer closes, or the
// subscription is cancelled.
func (s *Subscription) pump(cursor int) {
	defer close(s.ch)
	for {
		s.buf.mu.Lock()
		for cursor >= len(s.buf.events) && !s.buf.closed && !s.stopped {
			s.buf.cond.Wait()
		}
		if s.stopped || (cursor >= len(s.buf.events) && s.buf.closed) {
			s.buf.mu.Unlock()
			return
		}
		ev := s.buf.events[cursor]
		cursor++
		s.buf.mu.Unlock()

		select {
		case s.ch <- ev:
		case <-s.stop:
			return
		}
	}
}
