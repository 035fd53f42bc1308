package frame

import (
	"errors"
	"testing"
)

func sample(t *testing.T) *Frame {
	t.Helper()
	f, err := FromColumns(
		[]string{"dep", "prix"},
		[][]string{{"75", "13", "75"}, {"1000", "x", "1100"}},
	)
	if err != nil {
		t.Fatalf("FromColumns: %v", err)
	}
	return f
}

func TestFromColumns_Mismatch(t *testing.T) {
	if _, err := FromColumns([]string{"a", "b"}, [][]string{{"1"}, {"1", "2"}}); err == nil {
		t.Fatal("expected error for ragged columns")
	}
	if _, err := FromColumns([]string{"a", "a"}, [][]string{{"1"}, {"2"}}); err == nil {
		t.Fatal("expected error for duplicate column")
	}
}

func TestNumsAndMissingColumn(t *testing.T) {
	f := sample(t)
	nums, err := f.Nums("prix")
	if err != nil {
		t.Fatalf("Nums: %v", err)
	}
	if !nums[0].Valid || nums[0].V != 1000 || nums[1].Valid {
		t.Errorf("Nums = %+v", nums)
	}
	if _, err := f.Nums("absent"); !errors.Is(err, ErrColumnMissing) {
		t.Errorf("err = %v, want ErrColumnMissing", err)
	}
}

func TestSetAndFilter(t *testing.T) {
	f := sample(t)
	if err := f.Set("annee", []string{"2020", "2020", "2025"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := f.Set("bad", []string{"1"}); err == nil {
		t.Fatal("expected length error")
	}
	paris := f.Filter(func(r int) bool { return f.Value(r, "dep") == "75" })
	if paris.Len() != 2 {
		t.Fatalf("Len = %d, want 2", paris.Len())
	}
	if got := paris.Value(1, "annee"); got != "2025" {
		t.Errorf("annee = %q, want 2025", got)
	}
	if f.Len() != 3 {
		t.Errorf("source frame modified: Len = %d", f.Len())
	}
}

func TestSetNumsReplacesCachedView(t *testing.T) {
	f := sample(t)
	if _, err := f.Nums("prix"); err != nil {
		t.Fatalf("Nums: %v", err)
	}
	if err := f.SetNums("prix", []Num{Some(1), {}, Some(3)}); err != nil {
		t.Fatalf("SetNums: %v", err)
	}
	nums, _ := f.Nums("prix")
	if nums[0].V != 1 || nums[1].Valid {
		t.Errorf("Nums after SetNums = %+v", nums)
	}
	if got := f.Value(1, "prix"); got != "" {
		t.Errorf("missing value written as %q, want empty", got)
	}
}

func TestRenameAndResolve(t *testing.T) {
	f := sample(t)
	applied := f.Rename(map[string]string{"prix": "prix_m2", "absent": "x", "dep": "prix_m2"})
	if applied["prix"] != "prix_m2" || len(applied) != 1 {
		t.Errorf("applied = %v", applied)
	}
	col, ok := f.Resolve("prix", "prix_m2")
	if !ok || col != "prix_m2" {
		t.Errorf("Resolve = %q, %v", col, ok)
	}
	if _, ok := f.Resolve("nope"); ok {
		t.Error("Resolve(nope) found a column")
	}
}

func TestSelectAndDistinct(t *testing.T) {
	f := sample(t)
	s, err := f.Select("prix")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(s.Columns()) != 1 || s.Len() != 3 {
		t.Errorf("Select = %v rows %d", s.Columns(), s.Len())
	}
	if _, err := f.Select("nope"); err == nil {
		t.Error("expected error selecting missing column")
	}
	if d := f.Distinct("dep"); len(d) != 2 || d[0] != "75" || d[1] != "13" {
		t.Errorf("Distinct = %v", d)
	}
}

func TestAppendRowPadsAndTruncates(t *testing.T) {
	f := New("a", "b")
	f.AppendRow("1")
	f.AppendRow("2", "3", "4")
	if f.Len() != 2 {
		t.Fatalf("Len = %d", f.Len())
	}
	if f.Value(0, "b") != "" || f.Value(1, "b") != "3" {
		t.Errorf("rows = %v %v", f.Row(0), f.Row(1))
	}
}
