package pty

import "testing"

func TestHub_SubscribersSeeOnlyLaterChunks(t *testing.T) {
	h := newHub()
	early := h.subscribe()
	h.publish([]byte("one"))
	late := h.subscribe()
	h.publish([]byte("two"))
	h.close()

	var got []string
	for c := range early.C {
		got = append(got, string(c))
	}
	if len(got) != 2 || got[0] != "one" || got[1] != "two" {
		t.Fatalf("early: %v", got)
	}
	got = nil
	for c := range late.C {
		got = append(got, string(c))
	}
	if len(got) != 1 || got[0] != "two" {
		t.Fatalf("late: %v", got)
	}
}

func TestHub_SubscribeAfterCloseIsClosed(t *testing.T) {
	h := newHub()
	h.close()
	s := h.subscribe()
	if _, ok := <-s.C; ok {
		t.Fatalf("expected closed channel")
	}
	h.close()
}

func TestHub_FullSubscriberDropsInsteadOfBlocking(t *testing.T) {
	h := newHub()
	s := h.subscribe()
	for i := 0; i < subscriberBuffer+5; i++ {
		h.publish([]byte{'x'})
	}
	if s.Dropped() != 5 {
		t.Fatalf("dropped=%d", s.Dropped())
	}
}

func TestSubscription_CloseDetaches(t *testing.T) {
	h := newHub()
	s := h.subscribe()
	s.Close()
	s.Close()
	h.publish([]byte("ignored"))
	if _, ok := <-s.C; ok {
		t.Fatalf("expected closed channel")
	}
}

func TestIncompleteUTF8Tail(t *testing.T) {
	euro := []byte("€") // 3 bytes
	cases := []struct {
		name string
		in   []byte
		want int
	}{
		{"empty", nil, 0},
		{"ascii", []byte("abc"), 0},
		{"complete multibyte", append([]byte("a"), euro...), 0},
		{"one of three", append([]byte("a"), euro[0]), 1},
		{"two of three", append([]byte("a"), euro[:2]...), 2},
		{"two of four", []byte{'a', 0xF0, 0x9F}, 2},
		{"stray continuation", []byte{'a', 0x80}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := incompleteUTF8Tail(tc.in); got != tc.want {
				t.Fatalf("got %d want %d", got, tc.want)
			}
		})
	}
}
