package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("not found")

// jsonFile is a map of records persisted as one indented JSON object.
// All access goes through mu; writes land in a temp file that is renamed over
// the existing file so readers never see a partial document.
type jsonFile[T any] struct {
	mu   sync.Mutex
	path string
}

func newJSONFile[T any](path string) (*jsonFile[T], error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	f := &jsonFile[T]{path: path}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := f.write(map[string]T{}); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (f *jsonFile[T]) read() (map[string]T, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]T{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(f.path), err)
	}
	records := map[string]T{}
	if len(data) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(f.path), err)
	}
	return records, nil
}

func (f *jsonFile[T]) write(records map[string]T) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(f.path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(f.path), err)
	}
	return nil
}

// view runs fn on a snapshot of the records under the lock.
func (f *jsonFile[T]) view(fn func(map[string]T) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	records, err := f.read()
	if err != nil {
		return err
	}
	return fn(records)
}

// update runs fn and persists the map if fn succeeds.
func (f *jsonFile[T]) update(fn func(map[string]T) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	records, err := f.read()
	if err != nil {
		return err
	}
	if err := fn(records); err != nil {
		return err
	}
	return f.write(records)
}

func (f *jsonFile[T]) size() int64 {
	info, err := os.Stat(f.path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// backup copies the current file into dir under a name made unique by a
// nanosecond timestamp and a random suffix. Callers must hold f.mu.
func (f *jsonFile[T]) backup(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	src, err := os.Open(f.path)
	if err != nil {
		return "", err
	}
	defer src.Close()

	base := filepath.Base(f.path)
	name := fmt.Sprintf("%s_backup_%s_%s.json",
		base[:len(base)-len(filepath.Ext(base))],
		time.Now().Format("20060102_150405.000000000"),
		uuid.NewString()[:8])
	dst, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", err
	}
	return dst.Name(), dst.Close()
}
