package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/peak-enrich/internal/model"
)

// File is a Store backed by a single JSON object on disk. The file is read
// once by OpenFile and fully rewritten by Flush.
type File struct {
	*Memory
	path  string
	dirty bool
}

// OpenFile loads the JSON cache at path. A missing or unreadable file yields
// an empty cache.
func OpenFile(path string) (*File, error) {
	if path == "" {
		return nil, eris.New("cache: file path is required")
	}
	f := &File{Memory: NewMemory(), path: path}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		zap.L().Warn("cache: unreadable file, starting empty", zap.String("path", path), zap.Error(err))
		return f, nil
	}

	var entries map[string]model.Location
	if err := json.Unmarshal(data, &entries); err != nil {
		zap.L().Warn("cache: corrupt file, starting empty", zap.String("path", path), zap.Error(err))
		return f, nil
	}
	for k, v := range entries {
		f.entries[k] = v
	}
	zap.L().Debug("cache: loaded", zap.String("path", path), zap.Int("entries", len(entries)))
	return f, nil
}

// Put implements Store.
func (f *File) Put(ctx context.Context, key string, loc model.Location) error {
	f.dirty = true
	return f.Memory.Put(ctx, key, loc)
}

// Flush rewrites the whole file, creating its directory when needed. A cache
// with no new entries leaves the file untouched.
func (f *File) Flush(_ context.Context) error {
	if !f.dirty {
		return nil
	}
	f.mu.RLock()
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	err := enc.Encode(f.entries)
	f.mu.RUnlock()
	if err != nil {
		return eris.Wrap(err, "cache: encode")
	}

	if dir := filepath.Dir(f.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "cache: create dir %s", dir)
		}
	}
	if err := os.WriteFile(f.path, buf.Bytes(), 0o644); err != nil {
		return eris.Wrapf(err, "cache: write %s", f.path)
	}
	f.dirty = false
	return nil
}

// Dirty reports whether entries were added since the last flush.
func (f *File) Dirty() bool { return f.dirty }

// Path returns the backing file path.
func (f *File) Path() string { return f.path }
