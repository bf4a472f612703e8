package diff

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyDiff         = errors.New("diff is empty")
	ErrMissingFileHeader = errors.New("missing file header before hunk")
	ErrInvalidHunkHeader = errors.New("invalid hunk header")

	ErrNothingToApply  = errors.New("no accepted hunks to apply")
	ErrInvalidPath     = errors.New("unsupported diff path")
	ErrContextMismatch = errors.New("context mismatch while applying diff")
	ErrMissingFile     = errors.New("missing file header for diff")
)

// ApplyError attributes an apply failure to the file being written. Line is
// the 1-indexed line of the original file where verification failed, or 0.
type ApplyError struct {
	Path string
	Line int
	Err  error
}

func (e *ApplyError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: line %d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *ApplyError) Unwrap() error { return e.Err }
