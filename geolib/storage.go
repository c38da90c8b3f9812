package geolib

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/qri-io/jsonschema"
	"github.com/spf13/afero"
)

const (
	// StorageKeyRetention is a key of the retention store snapshot.
	StorageKeyRetention = "retention"

	// StorageKeyMarkers is a key of the marker collection snapshot.
	StorageKeyMarkers = "markers"

	// FsTempFilePrefix is a prefix of temporary files. Snapshot is
	// written into a temporary file first and then renamed into a
	// target one, so readers never see half-written data. Files with
	// this prefix are ok to be removed at any given moment in time.
	FsTempFilePrefix = "tmp_"

	fsFileSuffix = ".json"
)

var (
	storageKeyRegexp = regexp.MustCompile(`^[a-z0-9_-]+$`)

	snapshotJSONSchema = func() *jsonschema.Schema {
		data := `{
            "type": "array",
            "items": {
                "type": "object",
                "required": [
                    "identity",
                    "timestamp",
                    "metadata"
                ],
                "properties": {
                    "identity": {
                        "type": "string",
                        "minLength": 1
                    },
                    "timestamp": {
                        "type": "string",
                        "minLength": 1
                    },
                    "metadata": {
                        "type": "object"
                    }
                }
            }
        }`

		rv := &jsonschema.Schema{}
		if err := json.Unmarshal([]byte(data), rv); err != nil {
			panic(err)
		}

		return rv
	}()
)

type fsStorage struct {
	fs    afero.Fs
	dir   string
	mutex sync.Mutex
}

func (f *fsStorage) Load(key string) ([]byte, error) {
	path, err := f.path(key)
	if err != nil {
		return nil, err
	}

	data, err := afero.ReadFile(f.fs, path)

	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil, ErrStorageNoData
	case err != nil:
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	return data, nil
}

func (f *fsStorage) Save(key string, data []byte) error {
	path, err := f.path(key)
	if err != nil {
		return err
	}

	f.mutex.Lock()
	defer f.mutex.Unlock()

	fp, err := afero.TempFile(f.fs, f.dir, FsTempFilePrefix)
	if err != nil {
		return fmt.Errorf("cannot create a temporary file: %w", err)
	}

	tmpName := fp.Name()

	if _, err := fp.Write(data); err != nil {
		fp.Close()
		f.fs.Remove(tmpName) // nolint: errcheck

		return fmt.Errorf("cannot write a temporary file: %w", err)
	}

	if err := fp.Close(); err != nil {
		f.fs.Remove(tmpName) // nolint: errcheck

		return fmt.Errorf("cannot close a temporary file: %w", err)
	}

	if err := f.fs.Rename(tmpName, path); err != nil {
		f.fs.Remove(tmpName) // nolint: errcheck

		return fmt.Errorf("cannot rename %s to %s: %w", tmpName, path, err)
	}

	return nil
}

func (f *fsStorage) Delete(key string) error {
	path, err := f.path(key)
	if err != nil {
		return err
	}

	if err := f.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("cannot remove %s: %w", path, err)
	}

	return nil
}

func (f *fsStorage) path(key string) (string, error) {
	if !storageKeyRegexp.MatchString(key) {
		return "", fmt.Errorf("incorrect storage key %q", key)
	}

	return filepath.Join(f.dir, key+fsFileSuffix), nil
}

func (f *fsStorage) cleanup() error {
	matches, err := afero.Glob(f.fs, filepath.Join(f.dir, FsTempFilePrefix+"*"))
	if err != nil {
		return fmt.Errorf("cannot list temporary files: %w", err)
	}

	for _, v := range matches {
		if err := f.fs.RemoveAll(v); err != nil {
			return fmt.Errorf("cannot remove %s: %w", v, err)
		}
	}

	return nil
}

// NewFsStorage returns a storage which keeps each blob in its own file
// within a given directory. Directory is created if required, leftovers
// of interrupted writes are removed.
//
// Use afero.NewOsFs() for a real filesystem and afero.NewMemMapFs()
// for tests.
func NewFsStorage(fs afero.Fs, dir string) (Storage, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create a directory %s: %w", dir, err)
	}

	rv := &fsStorage{
		fs:  fs,
		dir: dir,
	}

	if err := rv.cleanup(); err != nil {
		return nil, fmt.Errorf("cannot cleanup a directory %s: %w", dir, err)
	}

	return rv, nil
}

type memoryStorage struct {
	mutex sync.Mutex
	data  map[string][]byte
}

func (m *memoryStorage) Load(key string) ([]byte, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	data, ok := m.data[key]
	if !ok {
		return nil, ErrStorageNoData
	}

	return append([]byte(nil), data...), nil
}

func (m *memoryStorage) Save(key string, data []byte) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.data[key] = append([]byte(nil), data...)

	return nil
}

func (m *memoryStorage) Delete(key string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	delete(m.data, key)

	return nil
}

// NewMemoryStorage returns a storage which lives as long as a process.
func NewMemoryStorage() Storage {
	return &memoryStorage{
		data: map[string][]byte{},
	}
}

func encodeSnapshot(entries []snapshotEntry) ([]byte, error) {
	if entries == nil {
		entries = []snapshotEntry{}
	}

	return json.Marshal(entries)
}

// decodeSnapshot validates and parses a stored snapshot. Any
// deviation from a snapshot format is an error: callers treat it as an
// empty snapshot.
func decodeSnapshot(data []byte) ([]snapshotEntry, error) {
	errs, err := snapshotJSONSchema.ValidateBytes(context.Background(), data)
	if err != nil {
		return nil, fmt.Errorf("cannot validate snapshot: %w", err)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid snapshot: %w", errs[0])
	}

	rv := []snapshotEntry{}
	if err := json.Unmarshal(data, &rv); err != nil {
		return nil, fmt.Errorf("cannot parse snapshot: %w", err)
	}

	return rv, nil
}

func loadSnapshot(storage Storage, key string) ([]snapshotEntry, error) {
	data, err := storage.Load(key)
	if err != nil {
		return nil, err
	}

	return decodeSnapshot(data)
}
