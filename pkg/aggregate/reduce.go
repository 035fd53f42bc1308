package aggregate

import (
	"strings"

	"github.com/hazyhaar/climmo/pkg/frame"
)

// Op is a reduction applied to one column of each group.
type Op int

const (
	// Sum adds the present values; a group without any sums to 0.
	Sum Op = iota
	// Mean averages the present values; a group without any has no mean.
	Mean
	// Count counts the present values.
	Count
)

// Reduction names an input column, how to reduce it and the output column.
type Reduction struct {
	Column string
	Op     Op
	As     string
}

func (r Reduction) name() string {
	if r.As != "" {
		return r.As
	}
	return r.Column
}

type acc struct {
	sum float64
	n   int
}

// Reduce groups f by keys and applies each reduction per group. The output
// has the key columns followed by one column per reduction, in ascending key
// order. Rows with an empty key cell are dropped.
func Reduce(f *frame.Frame, keys []string, reds ...Reduction) (*frame.Frame, error) {
	keyCols, err := columns(f, keys)
	if err != nil {
		return nil, err
	}
	inputs := make([][]frame.Num, len(reds))
	for i, red := range reds {
		if inputs[i], err = f.Nums(red.Column); err != nil {
			return nil, err
		}
	}

	accs := make(map[string][]acc)
	var groups []Group
	for r := 0; r < f.Len(); r++ {
		key, ok := rowKey(keyCols, r)
		if !ok {
			continue
		}
		id := strings.Join(key, keySep)
		a, seen := accs[id]
		if !seen {
			a = make([]acc, len(reds))
			accs[id] = a
			groups = append(groups, Group{Key: key})
		}
		for i := range reds {
			if n := inputs[i][r]; n.Valid {
				a[i].sum += n.V
				a[i].n++
			}
		}
	}
	sortGroups(groups)

	names := append([]string(nil), keys...)
	for _, red := range reds {
		names = append(names, red.name())
	}
	out := frame.New(names...)
	for _, g := range groups {
		a := accs[strings.Join(g.Key, keySep)]
		row := append([]string(nil), g.Key...)
		for i, red := range reds {
			row = append(row, reduce(red.Op, a[i]).String())
		}
		out.AppendRow(row...)
	}
	return out, nil
}

func reduce(op Op, a acc) frame.Num {
	switch op {
	case Sum:
		return frame.Some(a.sum)
	case Count:
		return frame.Some(float64(a.n))
	default:
		if a.n == 0 {
			return frame.Num{}
		}
		return frame.Some(a.sum / float64(a.n))
	}
}
