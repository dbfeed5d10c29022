// internal/session/locator.go
package session

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LogExtension is the file extension session logs are written with.
// Logs live under a root directory partitioned into date subdirectories.
const LogExtension = ".jsonl"

// Locate enumerates session log files under root, recursively. When
// sinceEpochSec is positive, only files modified at or after that time
// are returned; older logs cannot contain events worth replaying.
// The result is sorted lexicographically so repeated passes visit files
// in a stable order. A missing root yields an empty list, not an error.
func Locate(root string, sinceEpochSec int64) []string {
	if _, err := os.Stat(root); err != nil {
		return nil
	}

	var files []string
	filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if !strings.HasSuffix(info.Name(), LogExtension) {
			return nil
		}
		if sinceEpochSec > 0 && info.ModTime().Unix() < sinceEpochSec {
			return nil
		}
		files = append(files, path)
		return nil
	})

	sort.Strings(files)
	return files
}
