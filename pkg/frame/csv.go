package frame

import (
	"bufio"
	"compress/gzip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// ReadOptions controls how delimited text is read.
type ReadOptions struct {
	// Delimiter is the field separator; 0 sniffs it from the header line.
	Delimiter rune
	// Encoding is an IANA/WHATWG label ("windows-1252", "iso-8859-1");
	// empty means UTF-8.
	Encoding string
	// KeepHeaders disables column-name normalisation.
	KeepHeaders bool
}

var sniffCandidates = []rune{';', ',', '|', '\t'}

// ReadCSV reads a delimited file with a header row. Rows that cannot be
// parsed are skipped and counted; ragged rows are padded or truncated to the
// header width.
func ReadCSV(r io.Reader, opts ReadOptions) (*Frame, error) {
	r, err := DecodeReader(r, opts.Encoding)
	if err != nil {
		return nil, err
	}

	br := bufio.NewReader(r)
	headerLine, err := br.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read header: %w", err)
		}
		if strings.TrimSpace(headerLine) == "" {
			return nil, fmt.Errorf("read header: empty input")
		}
	}
	headerLine = strings.TrimPrefix(headerLine, "\ufeff")

	delim := opts.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(headerLine)
	}

	cr := csv.NewReader(io.MultiReader(strings.NewReader(headerLine), br))
	cr.Comma = delim
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	names := make([]string, len(header))
	seen := make(map[string]int)
	for i, h := range header {
		n := strings.TrimSpace(h)
		if !opts.KeepHeaders {
			n = NormalizeColumn(n)
		}
		if n == "" {
			n = "col_" + strconv.Itoa(i+1)
		}
		if k := seen[n]; k > 0 {
			seen[n] = k + 1
			n = n + "_" + strconv.Itoa(k+1)
		} else {
			seen[n] = 1
		}
		names[i] = n
	}

	f := New(names...)
	var skipped int
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				skipped++
				continue
			}
			return nil, fmt.Errorf("read row: %w", err)
		}
		for i := range record {
			record[i] = strings.TrimSpace(record[i])
		}
		f.AppendRow(record...)
	}
	if skipped > 0 {
		slog.Warn("unparseable csv rows skipped", "rows", skipped)
	}
	return f, nil
}

// ReadCSVFile reads a delimited file from disk; ".gz" files are decompressed.
func ReadCSVFile(path string, opts ReadOptions) (*Frame, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	var r io.Reader = fh
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		gz, err := gzip.NewReader(fh)
		if err != nil {
			return nil, fmt.Errorf("gunzip %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	f, err := ReadCSV(r, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return f, nil
}

// WriteCSV writes the frame as comma-separated UTF-8 with a header row and
// no index column.
func WriteCSV(w io.Writer, f *Frame) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(f.names); err != nil {
		return err
	}
	for r := 0; r < f.rows; r++ {
		if err := cw.Write(f.Row(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes the frame to path through a temporary file, creating
// the parent directory.
func WriteCSVFile(path string, f *Frame) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*.csv")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	bw := bufio.NewWriter(tmp)
	if err := WriteCSV(bw, f); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func sniffDelimiter(line string) rune {
	best, bestCount := ',', 0
	for _, d := range sniffCandidates {
		if n := strings.Count(line, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

// DecodeReader wraps r so that text in the named encoding (an IANA or WHATWG
// label such as "windows-1252") is read as UTF-8. An empty label or UTF-8
// returns r unchanged.
func DecodeReader(r io.Reader, enc string) (io.Reader, error) {
	if isUTF8(enc) {
		return r, nil
	}
	e, err := htmlindex.Get(enc)
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding %q: %w", enc, err)
	}
	return transform.NewReader(r, e.NewDecoder()), nil
}

func isUTF8(enc string) bool {
	e := strings.ToLower(strings.ReplaceAll(enc, "-", ""))
	return e == "utf8" || e == ""
}
