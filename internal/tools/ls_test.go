package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func listDir(t *testing.T, args string) (string, error) {
	t.Helper()
	return newBuiltinRegistry(t).Execute(context.Background(), "ls", args, NewContext(t.TempDir()))
}

func lsFixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "b.txt", "b")
	writeFile(t, root, "a/one.txt", "1")
	writeFile(t, root, "a/deep/two.txt", "2")
	if err := os.Symlink(filepath.Join(root, "b.txt"), filepath.Join(root, "link")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	return root
}

func TestLs_BreadthFirstWithDepth(t *testing.T) {
	root := lsFixture(t)
	out, err := listDir(t, fmt.Sprintf(`{"dir_path":%q}`, root))
	if err != nil {
		t.Fatal(err)
	}
	want := strings.Join([]string{
		"Absolute path: " + root,
		"a/",
		"b.txt",
		"link@",
		"  deep/",
		"  one.txt",
	}, "\n")
	if out != want {
		t.Fatalf("got:\n%s\nwant:\n%s", out, want)
	}

	out, err = listDir(t, fmt.Sprintf(`{"dir_path":%q,"depth":3}`, root))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(out, "    two.txt") {
		t.Fatalf("depth 3 missing nested file:\n%s", out)
	}
}

func TestLs_Pagination(t *testing.T) {
	root := lsFixture(t)
	out, err := listDir(t, fmt.Sprintf(`{"dir_path":%q,"offset":2,"limit":2}`, root))
	if err != nil {
		t.Fatal(err)
	}
	want := "Absolute path: " + root + "\nb.txt\nlink@\nMore than 2 entries found"
	if out != want {
		t.Fatalf("got:\n%s\nwant:\n%s", out, want)
	}

	_, err = listDir(t, fmt.Sprintf(`{"dir_path":%q,"offset":50}`, root))
	if !IsRespondToModel(err) || !strings.Contains(err.Error(), "offset exceeds entry count") {
		t.Fatalf("err=%v", err)
	}
}

func TestLs_Errors(t *testing.T) {
	root := t.TempDir()
	file := writeFile(t, root, "f", "x")
	cases := []struct {
		name string
		args string
		want string
	}{
		{"relative", `{"dir_path":"rel"}`, "dir_path must be an absolute path"},
		{"not a dir", fmt.Sprintf(`{"dir_path":%q}`, file), "dir_path is not a directory"},
		{"zero depth", fmt.Sprintf(`{"dir_path":%q,"depth":0}`, root), "depth must be greater than zero"},
		{"zero limit", fmt.Sprintf(`{"dir_path":%q,"limit":0}`, root), "limit must be greater than zero"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := listDir(t, tc.args)
			if !IsRespondToModel(err) || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err=%v", err)
			}
		})
	}

	out, err := listDir(t, fmt.Sprintf(`{"dir_path":%q}`, t.TempDir()))
	if err != nil || !strings.HasPrefix(out, "Absolute path: ") || strings.Contains(out, "\n") {
		t.Fatalf("empty dir: out=%q err=%v", out, err)
	}
}
