// Package changes records file mutations made by tools, grouped per tool
// invocation, so that recent groups can be rolled back.
package changes

import (
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/zeebo/blake3"
)

type Kind int

const (
	Created Kind = iota
	Modified
	Deleted
	Renamed
)

func (k Kind) String() string {
	switch k {
	case Created:
		return "created"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	case Renamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// FileChange is one recorded mutation. Original holds the content the file
// had before the mutation; it is nil for Created. For Renamed, Path is the new
// location and From the old one.
type FileChange struct {
	Path      string
	Kind      Kind
	From      string
	Original  []byte
	Digest    string
	Timestamp time.Time
}

func newChange(path string, kind Kind, original []byte) FileChange {
	c := FileChange{Path: path, Kind: kind, Timestamp: time.Now()}
	if original != nil {
		c.Original = append([]byte(nil), original...)
		c.Digest = Digest(original)
	}
	return c
}

// Digest returns the hex blake3 hash of b.
func Digest(b []byte) string {
	sum := blake3.Sum256(b)
	return hex.EncodeToString(sum[:])
}

type Group struct {
	ID          string
	Tool        string
	Description string
	Changes     []FileChange
	Timestamp   time.Time
}

func NewGroup(tool, description string) *Group {
	return &Group{
		ID:          ulid.Make().String(),
		Tool:        tool,
		Description: description,
		Timestamp:   time.Now(),
	}
}

func (g *Group) Add(c FileChange) { g.Changes = append(g.Changes, c) }

func (g *Group) Created(path string) { g.Add(newChange(path, Created, nil)) }

func (g *Group) Modified(path string, original []byte) {
	if original == nil {
		original = []byte{}
	}
	g.Add(newChange(path, Modified, original))
}

func (g *Group) Deleted(path string, original []byte) {
	if original == nil {
		original = []byte{}
	}
	g.Add(newChange(path, Deleted, original))
}

func (g *Group) Renamed(from, to string, original []byte) {
	if original == nil {
		original = []byte{}
	}
	c := newChange(to, Renamed, original)
	c.From = from
	g.Add(c)
}

func (g *Group) Empty() bool { return g == nil || len(g.Changes) == 0 }

// Summary is a read-only view of a recorded group.
type Summary struct {
	Index       int
	ID          string
	Tool        string
	Description string
	FileCount   int
	Timestamp   time.Time
}
