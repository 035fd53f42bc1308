// Package cache keeps loaded datasets in memory keyed by file path and
// modification time, and optionally shares computed results through Redis.
package cache

import (
	"container/list"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/hazyhaar/climmo/pkg/frame"
	"github.com/hazyhaar/climmo/pkg/metrics"
)

// Loader reads and prepares the frame stored at path.
type Loader func(path string) (*frame.Frame, error)

// Entry describes one cached frame.
type Entry struct {
	Path     string    `json:"path"`
	ModTime  time.Time `json:"mod_time"`
	Size     int64     `json:"size"`
	Rows     int       `json:"rows"`
	LoadedAt time.Time `json:"loaded_at"`
}

type entry struct {
	Entry
	frame *frame.Frame
}

// Frames is a bounded LRU of loaded frames. An entry is reused only while
// the file's modification time and size are unchanged; otherwise the file is
// loaded again. Frames are shared between callers and must be treated as
// read-only.
type Frames struct {
	mu   sync.Mutex
	max  int
	lst  *list.List
	dict map[string]*list.Element
}

// NewFrames returns a cache holding at most capacity frames (at least one).
func NewFrames(capacity int) *Frames {
	if capacity < 1 {
		capacity = 1
	}
	return &Frames{max: capacity, lst: list.New(), dict: make(map[string]*list.Element)}
}

// Get returns the frame for path, loading it with load when it is not cached
// or the file changed since it was cached. The file must exist.
func (c *Frames) Get(path string, load Loader) (*frame.Frame, error) {
	key := filepath.Clean(path)
	fi, err := os.Stat(key)
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("%s is a directory", key)
	}

	c.mu.Lock()
	if e, ok := c.dict[key]; ok {
		it := e.Value.(*entry)
		if it.ModTime.Equal(fi.ModTime()) && it.Size == fi.Size() {
			c.lst.MoveToFront(e)
			c.mu.Unlock()
			metrics.CacheHitsTotal.WithLabelValues("frames").Inc()
			return it.frame, nil
		}
		c.lst.Remove(e)
		delete(c.dict, key)
	}
	c.mu.Unlock()
	metrics.CacheMissesTotal.WithLabelValues("frames").Inc()

	start := time.Now()
	f, err := load(key)
	if err != nil {
		return nil, err
	}
	metrics.FrameLoadDurationMs.Observe(float64(time.Since(start).Milliseconds()))
	slog.Debug("frame loaded", "path", key, "rows", f.Len(), "duration", time.Since(start))

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.dict[key]; ok {
		c.lst.Remove(e)
	}
	c.dict[key] = c.lst.PushFront(&entry{
		Entry: Entry{Path: key, ModTime: fi.ModTime(), Size: fi.Size(), Rows: f.Len(), LoadedAt: time.Now()},
		frame: f,
	})
	for c.lst.Len() > c.max {
		back := c.lst.Back()
		delete(c.dict, back.Value.(*entry).Path)
		c.lst.Remove(back)
		metrics.CacheEvictionsTotal.Inc()
	}
	return f, nil
}

// Invalidate drops the entry for path and reports whether there was one.
func (c *Frames) Invalidate(path string) bool {
	key := filepath.Clean(path)
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.dict[key]
	if !ok {
		return false
	}
	c.lst.Remove(e)
	delete(c.dict, key)
	return true
}

// Purge drops every entry and returns how many there were.
func (c *Frames) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.lst.Len()
	c.lst.Init()
	c.dict = make(map[string]*list.Element)
	return n
}

// Len returns the number of cached frames.
func (c *Frames) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lst.Len()
}

// Entries lists the cached frames sorted by path.
func (c *Frames) Entries() []Entry {
	c.mu.Lock()
	out := make([]Entry, 0, c.lst.Len())
	for e := c.lst.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(*entry).Entry)
	}
	c.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Version identifies the current content of path by modification time and
// size, for use in result cache keys.
func Version(path string) (string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d-%d", fi.ModTime().UnixNano(), fi.Size()), nil
}
