package kvstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Filesystem implements Store with one JSON file per key under a root
// directory. Writes go through a temp file and rename so readers never see a
// torn value. Keys are sanitized into file names; collisions between keys
// that differ only in sanitized characters are accepted (keys here are
// internal, not user input).
type Filesystem struct {
	root      string
	writeLock sync.Mutex
}

// NewFilesystem creates a filesystem-backed store rooted at dir.
func NewFilesystem(dir string) *Filesystem {
	return &Filesystem{root: dir}
}

// Path returns the file path for key.
func (f *Filesystem) Path(key string) string {
	return filepath.Join(f.root, sanitizeKey(key)+".json")
}

func sanitizeKey(key string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_")
	return r.Replace(key)
}

// Get implements Store.Get. A missing or corrupt file reads as absent;
// corrupt files are removed so the next write starts clean.
func (f *Filesystem) Get(ctx context.Context, key string, dest any) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	path := f.Path(key)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		os.Remove(path)
		return false, nil
	}
	return true, nil
}

// Set implements Store.Set with an atomic temp-file-and-rename write.
func (f *Filesystem) Set(ctx context.Context, key string, value any) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}

	f.writeLock.Lock()
	defer f.writeLock.Unlock()

	if err := os.MkdirAll(f.root, 0o755); err != nil {
		return err
	}
	path := f.Path(key)
	tmp, err := os.CreateTemp(f.root, ".kv-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Delete implements Store.Delete.
func (f *Filesystem) Delete(ctx context.Context, key string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	err := os.Remove(f.Path(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
