package manager

import (
	"context"
	"strings"
	"sync"
)

// EventKind classifies a stream event.
type EventKind int

const (
	KindToken EventKind = iota
	KindDone
	KindBusy
	KindCancelled
	KindOverflow
	KindError
	KindTimeout
)

var kindNames = [...]string{"token", "done", "busy", "cancelled", "overflow", "error", "timeout"}

func (k EventKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Event is one streamed item. Exactly one event per stream has Final set and
// it is always the last one.
type Event struct {
	Text  string
	Final bool
	Kind  EventKind
	// Err carries the classified failure for KindOverflow, KindError and KindTimeout.
	Err error
}

// Stream delivers the events of one generation request in order. Producers
// never block: events are queued and pumped to the Events channel, which is
// closed after the final event.
type Stream struct {
	ID string

	out     chan Event
	notify  chan struct{}
	abandon chan struct{}

	mu       sync.Mutex
	queue    []Event
	finished bool
	dropOnce sync.Once
	cancel   func()
}

func newStream(id string, cancel func()) *Stream {
	s := &Stream{
		ID:      id,
		out:     make(chan Event, 16),
		notify:  make(chan struct{}, 1),
		abandon: make(chan struct{}),
		cancel:  cancel,
	}
	go s.pump()
	return s
}

// terminalStream returns a stream that only carries one final event.
func terminalStream(id string, ev Event) *Stream {
	s := newStream(id, nil)
	s.finish(ev)
	return s
}

// FailedStream returns a stream whose only event is ev, marked final. Front
// ends use it to reject a request before it reaches the manager.
func FailedStream(id string, ev Event) *Stream {
	return terminalStream(id, ev)
}

// Events returns the receive side of the stream.
func (s *Stream) Events() <-chan Event { return s.out }

// Cancel asks the manager to stop this request. The stream then ends with a
// KindCancelled event unless it already finished.
func (s *Stream) Cancel() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Abandon stops delivery without waiting for a final event. Use it when the
// consumer goes away; the request itself keeps running.
func (s *Stream) Abandon() {
	s.dropOnce.Do(func() { close(s.abandon) })
}

// Collect drains the stream and returns the concatenated text of all events
// and the final event. It returns ctx.Err() if ctx ends first.
func (s *Stream) Collect(ctx context.Context) (string, Event, error) {
	var b strings.Builder
	for {
		select {
		case ev, ok := <-s.out:
			if !ok {
				return b.String(), Event{Final: true, Kind: KindCancelled}, nil
			}
			b.WriteString(ev.Text)
			if ev.Final {
				return b.String(), ev, nil
			}
		case <-ctx.Done():
			s.Abandon()
			return b.String(), Event{}, ctx.Err()
		}
	}
}

// StreamTo adapts the stream to a (token, final) callback and blocks until
// the final event was delivered.
func (s *Stream) StreamTo(onToken func(tok string, final bool)) Event {
	for ev := range s.out {
		onToken(ev.Text, ev.Final)
		if ev.Final {
			return ev
		}
	}
	return Event{Final: true, Kind: KindCancelled}
}

// send queues a non-final event. It reports false once the stream finished.
func (s *Stream) send(ev Event) bool {
	ev.Final = false
	return s.push(ev)
}

// finish queues the final event. Only the first call wins.
func (s *Stream) finish(ev Event) bool {
	ev.Final = true
	return s.push(ev)
}

// Finished reports whether the final event was queued.
func (s *Stream) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

func (s *Stream) push(ev Event) bool {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return false
	}
	s.finished = ev.Final
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
	return true
}

func (s *Stream) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-s.notify:
				continue
			case <-s.abandon:
				return
			}
		}
		ev := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
		select {
		case s.out <- ev:
		case <-s.abandon:
			return
		}
		if ev.Final {
			return
		}
	}
}
