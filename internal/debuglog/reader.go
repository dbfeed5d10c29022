// internal/debuglog/reader.go
package debuglog

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
)

// MaxTailBytes bounds how much of the debug log a reader loads. The log
// is append-only and shared between processes; anything beyond the tail
// is history nobody replays.
const MaxTailBytes = 32 * 1024 * 1024

// TailRecord is the parsed view of a debug log line a reader cares
// about. Unknown fields are ignored; kind-specific fields the reaper
// needs are declared explicitly.
type TailRecord struct {
	TS          string `json:"ts"`
	PID         int    `json:"pid"`
	Kind        string `json:"kind"`
	RunID       string `json:"run_id"`
	Mode        string `json:"mode"`
	Root        string `json:"root"`
	ProjectRoot string `json:"project_root"`
}

// ReadTail parses up to MaxTailBytes from the end of the debug log at
// path, in chronological order. Malformed lines are skipped, which
// covers both a partial line at the cut point and a write torn by a
// concurrent appender. A missing log yields no records and no error.
func ReadTail(path string) ([]TailRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	start := int64(0)
	if info.Size() > MaxTailBytes {
		start = info.Size() - MaxTailBytes
	}
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	var records []TailRecord
	for _, line := range bytes.Split(data, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var rec TailRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		if rec.Kind == "" {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}
