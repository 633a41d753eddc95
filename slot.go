package viewfinder

import "sync"

// Frame pairs a frame buffer with its mapped image.
type Frame struct {
	Buffer *FrameBuffer
	Image  *Image
}

// FrameSlot is a single-frame mailbox between a capture goroutine and the
// render goroutine. Put overwrites any unconsumed frame, releasing it; Next
// blocks until a frame is available. After Stop, Put releases frames
// immediately and Next returns false.
//
// FrameSlot is safe for concurrent use by one producer and one consumer.
type FrameSlot struct {
	mu      sync.Mutex
	cond    *sync.Cond
	frame   *Frame
	stopped bool
	release func(*FrameBuffer)

	dropped  uint64
	consumed uint64
}

// NewFrameSlot creates an empty slot. release, if non-nil, receives the
// buffers of dropped frames.
func NewFrameSlot(release func(*FrameBuffer)) *FrameSlot {
	s := &FrameSlot{release: release}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Put publishes f. An unconsumed previous frame is dropped and released.
// Put reports whether f was accepted; frames put after Stop are released
// and rejected.
func (s *FrameSlot) Put(f Frame) bool {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		s.releaseFrame(&f)
		return false
	}
	old := s.frame
	if old != nil {
		s.dropped++
	}
	s.frame = &f
	s.cond.Signal()
	s.mu.Unlock()

	if old != nil {
		s.releaseFrame(old)
	}
	return true
}

// Take returns the pending frame without blocking.
func (s *FrameSlot) Take() (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.takeLocked()
}

// Next blocks until a frame is available or the slot is stopped. It
// returns false once the slot is stopped.
func (s *FrameSlot) Next() (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.frame == nil && !s.stopped {
		s.cond.Wait()
	}
	return s.takeLocked()
}

func (s *FrameSlot) takeLocked() (Frame, bool) {
	if s.frame == nil {
		return Frame{}, false
	}
	f := *s.frame
	s.frame = nil
	s.consumed++
	return f, true
}

// Stop releases the pending frame, wakes a blocked Next and rejects
// further frames. Stop is idempotent.
func (s *FrameSlot) Stop() {
	s.mu.Lock()
	s.stopped = true
	pending := s.frame
	s.frame = nil
	s.cond.Broadcast()
	s.mu.Unlock()

	if pending != nil {
		s.releaseFrame(pending)
	}
}

// Flush releases the pending frame, if any, and reports whether one was
// held. Unlike Stop, the slot keeps accepting frames.
func (s *FrameSlot) Flush() bool {
	s.mu.Lock()
	pending := s.frame
	s.frame = nil
	s.mu.Unlock()

	if pending == nil {
		return false
	}
	s.releaseFrame(pending)
	return true
}

// Stopped reports whether Stop was called.
func (s *FrameSlot) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Dropped returns the number of frames overwritten before consumption.
func (s *FrameSlot) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Consumed returns the number of frames handed to the consumer.
func (s *FrameSlot) Consumed() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consumed
}

func (s *FrameSlot) releaseFrame(f *Frame) {
	if s.release != nil && f.Buffer != nil {
		s.release(f.Buffer)
	}
}
