package pty

import "unicode/utf8"

// incompleteUTF8Tail returns how many trailing bytes of b form the start of
// a multi-byte sequence that has not been fully read yet.
func incompleteUTF8Tail(b []byte) int {
	n := len(b)
	if n == 0 {
		return 0
	}
	// A sequence is at most 4 bytes, so only the last 3 can be a partial one.
	for i := 1; i <= 3 && i <= n; i++ {
		c := b[n-i]
		if c < 0x80 {
			return 0
		}
		if !utf8.RuneStart(c) {
			continue
		}
		var need int
		switch {
		case c&0xE0 == 0xC0:
			need = 2
		case c&0xF0 == 0xE0:
			need = 3
		case c&0xF8 == 0xF0:
			need = 4
		default:
			return 0
		}
		if i < need {
			return i
		}
		return 0
	}
	return 0
}
