package frame

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
)

type snapshot struct {
	Names []string
	Cols  [][]string
	Rows  int
}

// SaveGob writes a binary snapshot of the frame, much faster to reload than
// the CSV it was built from.
func SaveGob(path string, f *Frame) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	fh, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create gob file: %w", err)
	}
	defer fh.Close()

	if err := gob.NewEncoder(fh).Encode(snapshot{Names: f.names, Cols: f.cols, Rows: f.rows}); err != nil {
		return fmt.Errorf("encode gob: %w", err)
	}
	return fh.Close()
}

// LoadGob reads a snapshot written by SaveGob.
func LoadGob(path string) (*Frame, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	var s snapshot
	if err := gob.NewDecoder(fh).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode gob %s: %w", path, err)
	}
	for i := range s.Cols {
		if s.Cols[i] == nil {
			s.Cols[i] = make([]string, s.Rows)
		}
	}
	return FromColumns(s.Names, s.Cols)
}
