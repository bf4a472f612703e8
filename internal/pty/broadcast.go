package pty

import "sync"

const subscriberBuffer = 256

// hub fans out output chunks to every live subscription. A subscription only
// sees chunks published after it was taken.
type hub struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

func newHub() *hub {
	return &hub{subs: map[*Subscription]struct{}{}}
}

// Subscription is an independent cursor over future output. C is closed
// once the session's reader has stopped and every chunk has been delivered.
type Subscription struct {
	C <-chan []byte

	ch      chan []byte
	h       *hub
	mu      sync.Mutex
	dropped int
}

func (h *hub) subscribe() *Subscription {
	ch := make(chan []byte, subscriberBuffer)
	s := &Subscription{C: ch, ch: ch, h: h}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return s
	}
	h.subs[s] = struct{}{}
	return s
}

// publish never blocks the reader: a subscriber whose buffer is full loses
// the chunk.
func (h *hub) publish(chunk []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for s := range h.subs {
		select {
		case s.ch <- chunk:
		default:
			s.mu.Lock()
			s.dropped++
			s.mu.Unlock()
		}
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for s := range h.subs {
		close(s.ch)
	}
	h.subs = nil
}

// Close detaches the subscription. Pending chunks are discarded.
func (s *Subscription) Close() {
	h := s.h
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.ch)
	}
}

// Dropped returns how many chunks were lost because the subscriber fell
// behind.
func (s *Subscription) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}
