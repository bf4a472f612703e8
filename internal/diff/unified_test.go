package diff

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestUnified_RoundTrip(t *testing.T) {
	cases := []struct {
		name string
		a, b string
	}{
		{"single change", "a\nb\nc\n", "a\nB\nc\n"},
		{"append", "a\nb\n", "a\nb\nc\nd\n"},
		{"prepend", "x\ny\n", "w\nx\ny\n"},
		{"delete middle", "1\n2\n3\n4\n5\n", "1\n2\n4\n5\n"},
		{"far apart changes", "1\n2\n3\n4\n5\n6\n7\n8\n9\n10\n11\n12\n13\n14\n15\n", "one\n2\n3\n4\n5\n6\n7\n8\n9\n10\n11\n12\n13\n14\nfifteen\n"},
		{"drop trailing newline", "a\nb\n", "a\nb"},
		{"add trailing newline", "a\nb", "a\nb\n"},
		{"no newline both sides", "a\nb", "a\nc"},
		{"from empty", "", "new\nfile\n"},
		{"to empty", "old\nfile\n", ""},
		{"blank lines", "a\n\n\nb\n", "a\n\nb\n\n"},
		{"crlf", "a\r\nb\r\n", "a\r\nB\r\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			text := Unified("f.txt", "f.txt", tc.a, tc.b, DefaultContext)
			v, err := Parse(text)
			if err != nil {
				t.Fatalf("Parse: %v\n%s", err, text)
			}
			v.AcceptAll()

			dir := t.TempDir()
			path := filepath.Join(dir, "f.txt")
			if tc.a != "" {
				writeFile(t, path, tc.a)
			}
			if _, err := Apply(v, dir); err != nil {
				t.Fatalf("Apply: %v\n%s", err, text)
			}
			if got := readFile(t, path); got != tc.b {
				t.Fatalf("round trip mismatch\ngot  %q\nwant %q\ndiff:\n%s", got, tc.b, text)
			}
		})
	}
}

func TestUnified_IdenticalIsEmpty(t *testing.T) {
	if got := Unified("f", "f", "same\n", "same\n", 3); got != "" {
		t.Fatalf("got %q", got)
	}
}

func TestUnified_SeparateHunksForDistantChanges(t *testing.T) {
	var a, b strings.Builder
	for i := 0; i < 30; i++ {
		line := strings.Repeat("x", i+1)
		a.WriteString(line + "\n")
		if i == 2 || i == 25 {
			line = "changed"
		}
		b.WriteString(line + "\n")
	}
	text := Unified("f", "f", a.String(), b.String(), 3)
	if n := strings.Count(text, "\n@@ "); n != 2 {
		t.Fatalf("want 2 hunks, got %d:\n%s", n, text)
	}
}

func TestRender_DoesNotTouchDisk(t *testing.T) {
	v := mustParse(t, Unified("f", "f", "a\nb\n", "a\nc\n", 1))
	v.AcceptAll()
	got, err := Render(&v.Files[0], "a\nb\n")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "a\nc\n" {
		t.Fatalf("got %q", got)
	}
}
