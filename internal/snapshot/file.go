package snapshot

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/randalmurphal/archflow/internal/pipeline"
)

// FileStore keeps one JSON file per snapshot, named <safe_name>_<unix>.json.
type FileStore struct {
	dir  string
	opts options

	mu     sync.Mutex
	closed bool
}

// NewFileStore creates a store in dir. The directory is created on the
// first Save.
func NewFileStore(dir string, opts ...Option) *FileStore {
	return &FileStore{dir: dir, opts: buildOptions(opts)}
}

// Dir returns the snapshot directory.
func (f *FileStore) Dir() string { return f.dir }

// Save implements Store. A name taken within the same second moves to the
// next free second.
func (f *FileStore) Save(ctx context.Context, project string, s pipeline.State) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return "", ErrClosed
	}

	rec := newRecord(project, s, f.opts.now())
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	for unix := rec.Timestamp; ; unix++ {
		name := baseName(project, unix) + ".json"
		file, err := os.OpenFile(filepath.Join(f.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create snapshot: %w", err)
		}
		_, werr := file.Write(data)
		cerr := file.Close()
		if err := errors.Join(werr, cerr); err != nil {
			return "", fmt.Errorf("write snapshot: %w", err)
		}
		return name, nil
	}
}

// Load implements Store.
func (f *FileStore) Load(ctx context.Context, name string) (pipeline.State, error) {
	rec, err := f.read(ctx, name)
	if err != nil {
		return pipeline.State{}, err
	}
	return rec.State, nil
}

// Metrics returns the metrics recorded with a snapshot.
func (f *FileStore) Metrics(ctx context.Context, name string) (Metrics, error) {
	rec, err := f.read(ctx, name)
	if err != nil {
		return Metrics{}, err
	}
	return rec.Metrics, nil
}

func (f *FileStore) read(ctx context.Context, name string) (record, error) {
	if err := ctx.Err(); err != nil {
		return record{}, err
	}
	path, err := f.path(name)
	if err != nil {
		return record{}, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return record{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return record{}, fmt.Errorf("read snapshot: %w", err)
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return record{}, fmt.Errorf("decode snapshot %s: %w", name, err)
	}
	return rec, nil
}

// List implements Store. Snapshots are ordered by the timestamp in their
// name; files without one fall back to their modification time.
func (f *FileStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(f.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}

	type item struct {
		name string
		unix int64
	}
	var items []item
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		unix, ok := nameTimestamp(e.Name())
		if !ok {
			info, err := e.Info()
			if err != nil {
				continue
			}
			unix = info.ModTime().Unix()
		}
		items = append(items, item{name: e.Name(), unix: unix})
	}
	slices.SortFunc(items, func(a, b item) int {
		if c := cmp.Compare(b.unix, a.unix); c != 0 {
			return c
		}
		return cmp.Compare(b.name, a.name)
	})

	names := make([]string, len(items))
	for i, it := range items {
		names[i] = it.name
	}
	return names, nil
}

// nameTimestamp parses the _<unix> suffix written by Save.
func nameTimestamp(name string) (int64, bool) {
	base := strings.TrimSuffix(name, ".json")
	i := strings.LastIndexByte(base, '_')
	if i < 0 {
		return 0, false
	}
	unix, err := strconv.ParseInt(base[i+1:], 10, 64)
	if err != nil {
		return 0, false
	}
	return unix, true
}

// Delete implements Store.
func (f *FileStore) Delete(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	path, err := f.path(name)
	if err != nil {
		return false, err
	}
	err = os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete snapshot: %w", err)
	}
	return true, nil
}

// Close implements Store.
func (f *FileStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *FileStore) path(name string) (string, error) {
	if name == "" || filepath.Base(name) != name || !strings.HasSuffix(name, ".json") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(f.dir, name), nil
}
