package frame

import (
	"os"
	"path/filepath"
	"strings"
)

// Load reads a table from disk, choosing the reader from the extension:
// .gob snapshots, .xlsx workbooks (first sheet), anything else as delimited
// text (optionally gzip-compressed). For a CSV with a sibling .gob snapshot
// that is at least as recent, the snapshot is read instead.
func Load(path string, opts ReadOptions) (*Frame, error) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".gob"):
		return LoadGob(path)
	case strings.HasSuffix(lower, ".xlsx"), strings.HasSuffix(lower, ".xlsm"):
		return ReadXLSX(path, "", opts)
	}

	if snap := SnapshotPath(path); snap != "" {
		if fresh(snap, path) {
			if f, err := LoadGob(snap); err == nil {
				return f, nil
			}
		}
	}
	return ReadCSVFile(path, opts)
}

// SnapshotPath returns the gob snapshot path paired with a CSV path
// ("data.csv" -> "data.gob"), or "" for other files.
func SnapshotPath(path string) string {
	lower := strings.ToLower(path)
	for _, ext := range []string{".csv.gz", ".csv"} {
		if strings.HasSuffix(lower, ext) {
			return path[:len(path)-len(ext)] + ".gob"
		}
	}
	return ""
}

func fresh(snapshot, source string) bool {
	si, err := os.Stat(snapshot)
	if err != nil {
		return false
	}
	src, err := os.Stat(filepath.Clean(source))
	if err != nil {
		return false
	}
	return !si.ModTime().Before(src.ModTime())
}
