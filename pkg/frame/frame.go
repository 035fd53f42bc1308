// Package frame is a small in-memory columnar table of text cells, with
// numeric views parsed on demand. Frames are built once, then only read or
// extended with derived columns, so a loaded frame can be shared between
// concurrent readers.
package frame

import (
	"errors"
	"fmt"
	"sync"
)

// ErrColumnMissing is returned (wrapped with the column name) when a required
// column is absent.
var ErrColumnMissing = errors.New("column missing")

// Frame holds named columns of equal length.
type Frame struct {
	names []string
	index map[string]int
	cols  [][]string
	rows  int

	mu   sync.Mutex
	nums map[string][]Num
}

// New returns an empty frame with the given columns.
func New(names ...string) *Frame {
	f := &Frame{index: make(map[string]int, len(names))}
	for _, n := range names {
		f.addColumn(n, nil)
	}
	return f
}

// FromColumns builds a frame from column slices, which must have equal length.
func FromColumns(names []string, cols [][]string) (*Frame, error) {
	if len(names) != len(cols) {
		return nil, fmt.Errorf("frame: %d names for %d columns", len(names), len(cols))
	}
	f := New()
	for i, n := range names {
		if i > 0 && len(cols[i]) != len(cols[0]) {
			return nil, fmt.Errorf("frame: column %q has %d rows, want %d", n, len(cols[i]), len(cols[0]))
		}
		if _, dup := f.index[n]; dup {
			return nil, fmt.Errorf("frame: duplicate column %q", n)
		}
		f.addColumn(n, cols[i])
	}
	if len(cols) > 0 {
		f.rows = len(cols[0])
	}
	return f, nil
}

func (f *Frame) addColumn(name string, values []string) {
	f.index[name] = len(f.names)
	f.names = append(f.names, name)
	f.cols = append(f.cols, values)
}

// Len returns the number of rows.
func (f *Frame) Len() int { return f.rows }

// Columns returns the column names in order.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.names))
	copy(out, f.names)
	return out
}

// Has reports whether the column exists.
func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Resolve returns the first candidate column present in the frame.
func (f *Frame) Resolve(candidates ...string) (string, bool) {
	for _, c := range candidates {
		if f.Has(c) {
			return c, true
		}
	}
	return "", false
}

// Column returns the raw cells of a column. The slice must not be modified.
func (f *Frame) Column(name string) ([]string, error) {
	i, ok := f.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrColumnMissing, name)
	}
	return f.cols[i], nil
}

// Value returns one cell, or "" when the column does not exist.
func (f *Frame) Value(row int, name string) string {
	i, ok := f.index[name]
	if !ok {
		return ""
	}
	return f.cols[i][row]
}

// Row returns a copy of one row in column order.
func (f *Frame) Row(row int) []string {
	out := make([]string, len(f.cols))
	for i, c := range f.cols {
		out[i] = c[row]
	}
	return out
}

// Nums returns the column parsed with ParseNum. The parsed view is computed
// once per column and must not be modified.
func (f *Frame) Nums(name string) ([]Num, error) {
	raw, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if n, ok := f.nums[name]; ok {
		return n, nil
	}
	parsed := make([]Num, len(raw))
	for i, s := range raw {
		parsed[i] = ParseNum(s)
	}
	if f.nums == nil {
		f.nums = make(map[string][]Num)
	}
	f.nums[name] = parsed
	return parsed, nil
}

// AppendRow appends one row; values are matched to columns by position.
// Short rows are padded with "", extra values are dropped.
func (f *Frame) AppendRow(values ...string) {
	for i := range f.cols {
		v := ""
		if i < len(values) {
			v = values[i]
		}
		f.cols[i] = append(f.cols[i], v)
	}
	f.rows++
	f.dropNums()
}

// Set adds a derived column, or replaces an existing one.
func (f *Frame) Set(name string, values []string) error {
	if len(values) != f.rows && len(f.names) > 0 {
		return fmt.Errorf("frame: column %q has %d rows, want %d", name, len(values), f.rows)
	}
	if i, ok := f.index[name]; ok {
		f.cols[i] = values
	} else {
		f.addColumn(name, values)
	}
	if len(f.names) == 1 {
		f.rows = len(values)
	}
	f.mu.Lock()
	delete(f.nums, name)
	f.mu.Unlock()
	return nil
}

// SetNums adds or replaces a numeric column, formatting missing values as "".
func (f *Frame) SetNums(name string, values []Num) error {
	raw := make([]string, len(values))
	for i, v := range values {
		raw[i] = v.String()
	}
	if err := f.Set(name, raw); err != nil {
		return err
	}
	f.mu.Lock()
	if f.nums == nil {
		f.nums = make(map[string][]Num)
	}
	f.nums[name] = values
	f.mu.Unlock()
	return nil
}

// Rename applies old -> new renames for columns that exist, unless the new
// name is already taken. It returns the renames that were applied.
func (f *Frame) Rename(aliases map[string]string) map[string]string {
	applied := make(map[string]string)
	for oldName, newName := range aliases {
		i, ok := f.index[oldName]
		if !ok || f.Has(newName) {
			continue
		}
		delete(f.index, oldName)
		f.index[newName] = i
		f.names[i] = newName
		applied[oldName] = newName
	}
	if len(applied) > 0 {
		f.dropNums()
	}
	return applied
}

// Filter returns a new frame with the rows for which keep returns true.
func (f *Frame) Filter(keep func(row int) bool) *Frame {
	var idx []int
	for r := 0; r < f.rows; r++ {
		if keep(r) {
			idx = append(idx, r)
		}
	}
	return f.take(idx)
}

func (f *Frame) take(idx []int) *Frame {
	out := New(f.names...)
	for c := range f.cols {
		col := make([]string, len(idx))
		for j, r := range idx {
			col[j] = f.cols[c][r]
		}
		out.cols[c] = col
	}
	out.rows = len(idx)
	return out
}

// Select returns a new frame with only the named columns, in that order.
func (f *Frame) Select(names ...string) (*Frame, error) {
	out := New()
	for _, n := range names {
		col, err := f.Column(n)
		if err != nil {
			return nil, err
		}
		out.addColumn(n, col)
	}
	out.rows = f.rows
	return out, nil
}

// Distinct returns the distinct non-empty values of a column in first-seen
// order.
func (f *Frame) Distinct(name string) []string {
	col, err := f.Column(name)
	if err != nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, v := range col {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func (f *Frame) dropNums() {
	f.mu.Lock()
	f.nums = nil
	f.mu.Unlock()
}
