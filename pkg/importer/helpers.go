package importer

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/hazyhaar/climmo/pkg/frame"
)

// downloadFile downloads url to dest with retries and timeout.
func downloadFile(ctx context.Context, url, dest string) error {
	client := &http.Client{Timeout: 10 * time.Minute}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			lastErr = fmt.Errorf("HTTP %d for %s", resp.StatusCode, url)
			continue
		}

		f, err := os.Create(dest)
		if err != nil {
			resp.Body.Close()
			return fmt.Errorf("create file: %w", err)
		}

		_, copyErr := io.Copy(f, resp.Body)
		resp.Body.Close()
		closeErr := f.Close()

		if copyErr != nil {
			lastErr = copyErr
			continue
		}
		if closeErr != nil {
			return closeErr
		}
		return nil
	}
	return fmt.Errorf("download %s failed after 3 attempts: %w", url, lastErr)
}

// fetch places the source at dir and returns its local path. http(s) URLs
// are downloaded; file:// URLs and plain paths are copied.
func fetch(ctx context.Context, source, dir string) (string, error) {
	u, err := url.Parse(source)
	if err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		name := path.Base(u.Path)
		if name == "" || name == "/" || name == "." {
			name = "source.csv"
		}
		dest := filepath.Join(dir, name)
		fmt.Printf("  telechargement %s...\n", source)
		return dest, downloadFile(ctx, source, dest)
	}

	local := source
	if err == nil && u.Scheme == "file" {
		local = u.Path
	}
	dest := filepath.Join(dir, filepath.Base(local))
	fmt.Printf("  copie %s...\n", local)
	return dest, copyFile(local, dest)
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// unzipFile extracts a ZIP archive to destDir and returns the list of extracted file paths.
func unzipFile(src, destDir string) ([]string, error) {
	r, err := zip.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	defer r.Close()

	var paths []string
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}

		destPath := filepath.Join(destDir, filepath.Base(f.Name))
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open zip entry %s: %w", f.Name, err)
		}

		out, err := os.Create(destPath)
		if err != nil {
			rc.Close()
			return nil, fmt.Errorf("create %s: %w", destPath, err)
		}

		if _, err := io.Copy(out, rc); err != nil {
			rc.Close()
			out.Close()
			return nil, fmt.Errorf("extract %s: %w", f.Name, err)
		}
		rc.Close()
		out.Close()
		paths = append(paths, destPath)
	}
	return paths, nil
}

var tableExts = []string{".csv", ".csv.gz", ".txt", ".xlsx"}

func isTable(p string) bool {
	lower := strings.ToLower(p)
	for _, ext := range tableExts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// fetchTable fetches source into dir and reads it as a frame. ZIP archives
// are extracted and their first table file is read.
func fetchTable(ctx context.Context, source, dir string, opts frame.ReadOptions) (*frame.Frame, error) {
	local, err := fetch(ctx, source, dir)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(strings.ToLower(local), ".zip") {
		files, err := unzipFile(local, dir)
		if err != nil {
			return nil, err
		}
		local = ""
		for _, f := range files {
			if isTable(f) {
				local = f
				break
			}
		}
		if local == "" {
			return nil, fmt.Errorf("no table file in archive %s", filepath.Base(source))
		}
	}
	if strings.HasSuffix(strings.ToLower(local), ".xlsx") {
		return frame.ReadXLSX(local, "", opts)
	}
	return frame.ReadCSVFile(local, opts)
}

// keepColumns returns the frame restricted to the wanted columns it has, in
// the order given.
func keepColumns(f *frame.Frame, wanted []string) *frame.Frame {
	var present []string
	for _, c := range wanted {
		if f.Has(c) {
			present = append(present, c)
		}
	}
	out, _ := f.Select(present...)
	return out
}

// ensureDir creates a directory if it doesn't exist.
func ensureDir(path string) error {
	return os.MkdirAll(path, 0o755)
}
