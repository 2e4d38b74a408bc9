package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/JonMunkholm/sheetimport/internal/core"
	"github.com/gofrs/flock"
)

const (
	lockTimeout   = 3 * time.Second
	lockRetry     = 100 * time.Millisecond
	fileFormatVer = "1"
)

var storeIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// JSONFile keeps each store in <dir>/<store id>.json. Writers take an
// exclusive flock on <file>.lock, so several processes can share a directory.
type JSONFile struct {
	dir string
	mu  sync.Mutex
}

// jsonData is the on-disk layout of one store file.
type jsonData struct {
	Records  []core.StoredRecord `json:"records"`
	Metadata jsonMetadata        `json:"metadata"`
}

type jsonMetadata struct {
	Version   string    `json:"version"`
	StoreID   string    `json:"store_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewJSONFile creates the directory if needed.
func NewJSONFile(dir string) (*JSONFile, error) {
	if dir == "" {
		return nil, errors.New("json store: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("json store: %w", err)
	}
	return &JSONFile{dir: dir}, nil
}

// Dir returns the data directory.
func (s *JSONFile) Dir() string { return s.dir }

func (s *JSONFile) path(storeID string) (string, error) {
	if !storeIDPattern.MatchString(storeID) {
		return "", fmt.Errorf("json store: invalid store id %q", storeID)
	}
	return filepath.Join(s.dir, storeID+".json"), nil
}

// withLock runs fn while holding both the in-process mutex and the file lock.
func (s *JSONFile) withLock(ctx context.Context, storeID string, fn func(path string) error) error {
	path, err := s.path(storeID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLockContext(lockCtx, lockRetry)
	if err != nil {
		return fmt.Errorf("json store: failed to acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("json store: could not acquire file lock for %s", storeID)
	}
	defer func() { _ = lock.Unlock() }()

	return fn(path)
}

func load(path string) (*jsonData, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &jsonData{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("json store: failed to read file: %w", err)
	}
	if len(data) == 0 {
		return &jsonData{}, nil
	}

	var d jsonData
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("json store: failed to parse %s: %w", filepath.Base(path), err)
	}
	return &d, nil
}

// save writes through a temp file and rename so readers never see a partial file.
func save(path, storeID string, d *jsonData) error {
	now := time.Now().UTC()
	if d.Metadata.CreatedAt.IsZero() {
		d.Metadata.CreatedAt = now
	}
	d.Metadata.Version = fileFormatVer
	d.Metadata.StoreID = storeID
	d.Metadata.UpdatedAt = now

	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("json store: failed to encode: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("json store: failed to write file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("json store: failed to replace file: %w", err)
	}
	return nil
}

// FindOne implements core.Store.
func (s *JSONFile) FindOne(ctx context.Context, storeID, key string) (core.StoredRecord, bool, error) {
	var (
		found core.StoredRecord
		ok    bool
	)
	err := s.withLock(ctx, storeID, func(path string) error {
		d, err := load(path)
		if err != nil {
			return err
		}
		for _, rec := range d.Records {
			if rec.Key == key {
				found, ok = rec, true
				break
			}
		}
		return nil
	})
	return found, ok, err
}

// Insert implements core.Store.
func (s *JSONFile) Insert(ctx context.Context, storeID string, rec core.StoredRecord) (string, error) {
	rec = prepare(rec)
	err := s.withLock(ctx, storeID, func(path string) error {
		d, err := load(path)
		if err != nil {
			return err
		}
		for _, existing := range d.Records {
			if existing.Key == rec.Key {
				return fmt.Errorf("%s %q: %w", storeID, rec.Key, core.ErrDuplicate)
			}
		}
		d.Records = append(d.Records, rec)
		return save(path, storeID, d)
	})
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

// DeleteByRun implements core.Store.
func (s *JSONFile) DeleteByRun(ctx context.Context, storeID, runID string) (int64, error) {
	var n int64
	err := s.withLock(ctx, storeID, func(path string) error {
		d, err := load(path)
		if err != nil {
			return err
		}
		kept := d.Records[:0]
		for _, rec := range d.Records {
			if rec.RunID == runID {
				n++
				continue
			}
			kept = append(kept, rec)
		}
		if n == 0 {
			return nil
		}
		d.Records = kept
		return save(path, storeID, d)
	})
	return n, err
}

// List returns the records of one store ordered by creation time.
func (s *JSONFile) List(ctx context.Context, storeID string) ([]core.StoredRecord, error) {
	var out []core.StoredRecord
	err := s.withLock(ctx, storeID, func(path string) error {
		d, err := load(path)
		if err != nil {
			return err
		}
		out = d.Records
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortRecords(out)
	return out, nil
}

// Close is a no-op; locks are released after every call.
func (s *JSONFile) Close() error { return nil }
