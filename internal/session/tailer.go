// internal/session/tailer.go
package session

import (
	"io"
	"os"
	"strings"
)

// FileState tracks tailing progress for one log file: how many bytes
// have been consumed, and the trailing incomplete line (if any) carried
// over from the previous read.
type FileState struct {
	Offset    int64
	Remainder string
}

// Tailer reads newly appended bytes from append-only log files. State
// is an explicit per-file map owned by a single run loop; there are no
// ambient globals and no locking; the loop is the only accessor.
type Tailer struct {
	states map[string]*FileState
}

// NewTailer creates a Tailer with empty state.
func NewTailer() *Tailer {
	return &Tailer{states: make(map[string]*FileState)}
}

// Known reports whether the tailer has seen this file before.
func (t *Tailer) Known(path string) bool {
	_, ok := t.states[path]
	return ok
}

// Prime marks a file as consumed up to its current size without reading
// it. Used in once-style scenarios where history should be skipped
// structurally rather than filtered by timestamp.
func (t *Tailer) Prime(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	t.states[path] = &FileState{Offset: info.Size()}
}

// PrimeAtZero registers a file with offset zero so the next poll reads
// it from the beginning. Continuous-watch runs use this on first sight
// of a file: no bytes are skipped structurally, and temporal filtering
// is left entirely to event timestamps.
func (t *Tailer) PrimeAtZero(path string) {
	if _, ok := t.states[path]; !ok {
		t.states[path] = &FileState{}
	}
}

// Poll reads the bytes appended to path since the last poll and returns
// the complete lines they form. A trailing fragment without a newline is
// held back as the remainder and returned on a later poll once its
// newline arrives. A file smaller than the stored offset was truncated
// or rotated; tailing restarts from the beginning.
func (t *Tailer) Poll(path string) ([]string, error) {
	st, ok := t.states[path]
	if !ok {
		st = &FileState{}
		t.states[path] = st
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	size := info.Size()
	if size < st.Offset {
		st.Offset = 0
		st.Remainder = ""
	}
	if size == st.Offset {
		return nil, nil
	}

	if _, err := f.Seek(st.Offset, io.SeekStart); err != nil {
		return nil, err
	}

	delta := make([]byte, size-st.Offset)
	n, err := io.ReadFull(f, delta)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, err
	}
	st.Offset += int64(n)

	chunk := st.Remainder + string(delta[:n])
	fragments := strings.Split(chunk, "\n")

	// The final fragment has no newline yet; defer it.
	st.Remainder = fragments[len(fragments)-1]
	return fragments[:len(fragments)-1], nil
}
