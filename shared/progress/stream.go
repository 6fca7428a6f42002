package progress

import "sync"

// DefaultBuffer is the stream capacity used by the HTTP transport.
const DefaultBuffer = 16

// Stream is a bounded, single-producer event channel. The orchestrator
// publishes and closes; the transport ranges over Events.
type Stream struct {
	ch       chan Event
	once     sync.Once
	mu       sync.Mutex
	closed   bool
	terminal bool
}

func NewStream(buffer int) *Stream {
	if buffer < 0 {
		buffer = 0
	}
	return &Stream{ch: make(chan Event, buffer)}
}

// Publish queues an event, blocking while the buffer is full. Events after
// a terminal event or after Close are dropped and false is returned.
func (s *Stream) Publish(step Step, message string, data any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.terminal {
		return false
	}
	if step.Terminal() {
		s.terminal = true
	}
	s.ch <- Event{Step: step, Message: message, Progress: step.Percent(), Data: data}
	return true
}

// Close ends the stream. It is safe to call more than once.
func (s *Stream) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
	})
}

func (s *Stream) Events() <-chan Event {
	return s.ch
}
