package frame

import (
	"bytes"
	"math"
	"strconv"
	"strings"
)

// Num is a nullable float parsed permissively from a text cell.
type Num struct {
	V     float64
	Valid bool
}

// Some returns a valid Num.
func Some(v float64) Num { return Num{V: v, Valid: true} }

var blankReplacer = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "", "\t", "")

// ParseNum reads a number the way spreadsheets and French exports write them:
// "1 234,5", "1234.5", "1,234.5". Anything it cannot read, including NaN and
// infinities, is missing rather than an error.
func ParseNum(s string) Num {
	s = blankReplacer.Replace(strings.TrimSpace(s))
	if s == "" {
		return Num{}
	}
	hasComma := strings.Contains(s, ",")
	hasDot := strings.Contains(s, ".")
	switch {
	case hasComma && hasDot:
		s = strings.ReplaceAll(s, ",", "")
	case hasComma:
		if strings.Count(s, ",") > 1 {
			return Num{}
		}
		s = strings.Replace(s, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return Num{}
	}
	return Some(v)
}

// String formats a valid Num with the shortest exact representation and an
// invalid one as "".
func (n Num) String() string {
	if !n.Valid {
		return ""
	}
	return FormatFloat(n.V)
}

// FormatFloat formats v with the shortest representation that round-trips.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// MarshalJSON writes a missing Num as null.
func (n Num) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, n.V, 'f', -1, 64), nil
}

// UnmarshalJSON reads a number or null.
func (n *Num) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*n = Num{}
		return nil
	}
	v, err := strconv.ParseFloat(string(bytes.TrimSpace(data)), 64)
	if err != nil {
		return err
	}
	*n = Some(v)
	return nil
}
