package viewfinder

import (
	"sync"
	"testing"
	"time"
)

type releaseLog struct {
	mu   sync.Mutex
	bufs []*FrameBuffer
}

func (l *releaseLog) release(b *FrameBuffer) {
	l.mu.Lock()
	l.bufs = append(l.bufs, b)
	l.mu.Unlock()
}

func (l *releaseLog) released() []*FrameBuffer {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*FrameBuffer(nil), l.bufs...)
}

func TestFrameSlotLatestWins(t *testing.T) {
	var log releaseLog
	s := NewFrameSlot(log.release)

	a, b, c := &FrameBuffer{Cookie: "a"}, &FrameBuffer{Cookie: "b"}, &FrameBuffer{Cookie: "c"}
	s.Put(Frame{Buffer: a})
	s.Put(Frame{Buffer: b})
	s.Put(Frame{Buffer: c})

	f, ok := s.Take()
	if !ok || f.Buffer != c {
		t.Fatalf("Take() = %v, %v; want frame c", f.Buffer, ok)
	}
	if _, ok := s.Take(); ok {
		t.Error("second Take() returned a frame")
	}
	if got := s.Dropped(); got != 2 {
		t.Errorf("Dropped() = %d, want 2", got)
	}
	if got := s.Consumed(); got != 1 {
		t.Errorf("Consumed() = %d, want 1", got)
	}
	rel := log.released()
	if len(rel) != 2 || rel[0] != a || rel[1] != b {
		t.Errorf("released = %v, want [a b]", rel)
	}
}

func TestFrameSlotStopReleasesPending(t *testing.T) {
	var log releaseLog
	s := NewFrameSlot(log.release)

	pending := &FrameBuffer{}
	s.Put(Frame{Buffer: pending})
	s.Stop()
	s.Stop()

	if !s.Stopped() {
		t.Error("Stopped() = false after Stop")
	}
	if rel := log.released(); len(rel) != 1 || rel[0] != pending {
		t.Errorf("released = %v, want the pending buffer", rel)
	}

	late := &FrameBuffer{}
	if s.Put(Frame{Buffer: late}) {
		t.Error("Put after Stop accepted the frame")
	}
	if rel := log.released(); len(rel) != 2 || rel[1] != late {
		t.Errorf("late frame not released: %v", rel)
	}
	if _, ok := s.Next(); ok {
		t.Error("Next() after Stop returned a frame")
	}
}

func TestFrameSlotFlushKeepsAccepting(t *testing.T) {
	var log releaseLog
	s := NewFrameSlot(log.release)

	if s.Flush() {
		t.Error("Flush() on an empty slot reported a frame")
	}
	pending := &FrameBuffer{}
	s.Put(Frame{Buffer: pending})
	if !s.Flush() {
		t.Error("Flush() = false with a pending frame")
	}
	if rel := log.released(); len(rel) != 1 || rel[0] != pending {
		t.Errorf("released = %v, want the pending buffer", rel)
	}
	if s.Stopped() {
		t.Error("Flush() stopped the slot")
	}

	next := &FrameBuffer{}
	if !s.Put(Frame{Buffer: next}) {
		t.Fatal("Put after Flush rejected the frame")
	}
	f, ok := s.Take()
	if !ok || f.Buffer != next {
		t.Errorf("Take() = %v, %v; want the new frame", f.Buffer, ok)
	}
	if got := s.Dropped(); got != 0 {
		t.Errorf("Dropped() = %d, want 0", got)
	}
}

func TestFrameSlotNextBlocks(t *testing.T) {
	s := NewFrameSlot(nil)
	want := &FrameBuffer{}

	got := make(chan *FrameBuffer, 1)
	go func() {
		f, ok := s.Next()
		if !ok {
			got <- nil
			return
		}
		got <- f.Buffer
	}()

	s.Put(Frame{Buffer: want})
	select {
	case b := <-got:
		if b != want {
			t.Errorf("Next() = %v, want %v", b, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Next() did not return")
	}
}

func TestFrameSlotStopWakesNext(t *testing.T) {
	s := NewFrameSlot(nil)
	done := make(chan bool, 1)
	go func() {
		_, ok := s.Next()
		done <- ok
	}()

	// Give the consumer a chance to block before stopping.
	time.Sleep(10 * time.Millisecond)
	s.Stop()
	select {
	case ok := <-done:
		if ok {
			t.Error("Next() returned a frame after Stop")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not wake Next")
	}
}
