// Package diff parses unified diffs into a file/hunk/line model with per-hunk
// review decisions, and applies the accepted hunks to files on disk.
package diff

type LineKind int

const (
	LineContext LineKind = iota
	LineAdd
	LineRemove
)

func (k LineKind) String() string {
	switch k {
	case LineAdd:
		return "add"
	case LineRemove:
		return "remove"
	default:
		return "context"
	}
}

// Decision is the review state of a hunk. Only Accepted hunks are applied.
type Decision int

const (
	DecisionPending Decision = iota
	DecisionAccepted
	DecisionRejected
	DecisionSkipped
)

func (d Decision) String() string {
	switch d {
	case DecisionAccepted:
		return "accepted"
	case DecisionRejected:
		return "rejected"
	case DecisionSkipped:
		return "skipped"
	default:
		return "pending"
	}
}

type Line struct {
	Kind    LineKind
	Content string
	// NoNewline is set when the line was followed by a
	// "\ No newline at end of file" marker.
	NoNewline bool
}

type Hunk struct {
	Header string
	// OldStart and NewStart are 1-indexed. OldStart is 0 only for hunks
	// against an empty file.
	OldStart int
	OldLines int
	NewStart int
	NewLines int
	Lines    []Line
	Decision Decision
}

func (h *Hunk) SetDecision(d Decision) { h.Decision = d }

// Counts returns the number of added and removed lines.
func (h *Hunk) Counts() (added, removed int) {
	for _, l := range h.Lines {
		switch l.Kind {
		case LineAdd:
			added++
		case LineRemove:
			removed++
		}
	}
	return added, removed
}

type File struct {
	OldPath string
	NewPath string
	Hunks   []Hunk
}

const DevNull = "/dev/null"

// Path returns the path the file is written to: the new path unless the
// file is being deleted.
func (f *File) Path() string {
	if f.NewPath != DevNull {
		return f.NewPath
	}
	return f.OldPath
}

func (f *File) HasAccepted() bool {
	for i := range f.Hunks {
		if f.Hunks[i].Decision == DecisionAccepted {
			return true
		}
	}
	return false
}

type View struct {
	Files []File
}

// SetAll applies d to every hunk in the view.
func (v *View) SetAll(d Decision) {
	for fi := range v.Files {
		for hi := range v.Files[fi].Hunks {
			v.Files[fi].Hunks[hi].Decision = d
		}
	}
}

func (v *View) AcceptAll() { v.SetAll(DecisionAccepted) }

// Stats totals added and removed lines across all hunks regardless of
// decision.
func (v *View) Stats() (files, added, removed int) {
	for fi := range v.Files {
		for hi := range v.Files[fi].Hunks {
			a, r := v.Files[fi].Hunks[hi].Counts()
			added += a
			removed += r
		}
	}
	return len(v.Files), added, removed
}
