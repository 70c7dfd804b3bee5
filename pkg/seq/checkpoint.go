package seq

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fivetwenty-io/seq/internal/constants"
	"gopkg.in/yaml.v3"
)

// CheckpointStore persists page cursors so a long listing can resume where
// it stopped. Load returns ErrCheckpointNotFound for an unknown name.
type CheckpointStore interface {
	Load(ctx context.Context, name string) (string, error)
	Save(ctx context.Context, name, cursor string) error
	Delete(ctx context.Context, name string) error
}

// CheckpointType represents the type of checkpoint backend.
type CheckpointType string

const (
	CheckpointTypeMemory CheckpointType = constants.CheckpointTypeMemory
	CheckpointTypeFile   CheckpointType = constants.CheckpointTypeFile
	CheckpointTypeNATS   CheckpointType = constants.CheckpointTypeNATS
	CheckpointTypeNone   CheckpointType = constants.CheckpointTypeNone
)

// CheckpointConfig configures a checkpoint backend.
type CheckpointConfig struct {
	Type CheckpointType

	// File is the path of the YAML file used by the file backend.
	File string

	// NATS configures the JetStream KV backend.
	NATS *NATSCheckpointConfig
}

// NewCheckpointStore creates a checkpoint backend from configuration. A nil
// config selects the memory backend.
func NewCheckpointStore(ctx context.Context, config *CheckpointConfig) (CheckpointStore, error) {
	if config == nil {
		return NewMemoryCheckpointStore(), nil
	}

	switch config.Type {
	case CheckpointTypeMemory:
		return NewMemoryCheckpointStore(), nil

	case CheckpointTypeFile:
		if config.File == "" {
			return nil, ErrFileConfigRequired
		}

		return NewFileCheckpointStore(config.File), nil

	case CheckpointTypeNATS:
		if config.NATS == nil {
			return nil, ErrNATSConfigRequired
		}

		return NewNATSCheckpointStore(ctx, config.NATS)

	case CheckpointTypeNone:
		return NoopCheckpointStore{}, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCheckpoint, config.Type)
	}
}

// MemoryCheckpointStore keeps cursors in process memory.
type MemoryCheckpointStore struct {
	mu      sync.RWMutex
	cursors map[string]string
}

// NewMemoryCheckpointStore returns an empty in-memory store.
func NewMemoryCheckpointStore() *MemoryCheckpointStore {
	return &MemoryCheckpointStore{cursors: make(map[string]string)}
}

// Load returns the cursor saved under name, or ErrCheckpointNotFound.
func (s *MemoryCheckpointStore) Load(ctx context.Context, name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cursor, ok := s.cursors[name]
	if !ok {
		return "", ErrCheckpointNotFound
	}

	return cursor, nil
}

// Save replaces the cursor saved under name.
func (s *MemoryCheckpointStore) Save(ctx context.Context, name, cursor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cursors[name] = cursor

	return nil
}

// Delete forgets name. Deleting an unknown name is not an error.
func (s *MemoryCheckpointStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.cursors, name)

	return nil
}

// NoopCheckpointStore never remembers anything.
type NoopCheckpointStore struct{}

// Load always returns ErrCheckpointNotFound.
func (NoopCheckpointStore) Load(ctx context.Context, name string) (string, error) {
	return "", ErrCheckpointNotFound
}

// Save discards cursor.
func (NoopCheckpointStore) Save(ctx context.Context, name, cursor string) error { return nil }

// Delete does nothing.
func (NoopCheckpointStore) Delete(ctx context.Context, name string) error { return nil }

type checkpointRecord struct {
	Cursor    string    `yaml:"cursor"`
	UpdatedAt time.Time `yaml:"updated_at"`
}

// FileCheckpointStore keeps cursors in a YAML file. The whole file is
// rewritten on every change.
type FileCheckpointStore struct {
	path string
	mu   sync.Mutex
}

// NewFileCheckpointStore returns a store backed by path. The file and its
// directory are created on the first Save.
func NewFileCheckpointStore(path string) *FileCheckpointStore {
	return &FileCheckpointStore{path: path}
}

func (s *FileCheckpointStore) read() (map[string]checkpointRecord, error) {
	records := make(map[string]checkpointRecord)

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return records, nil
	}

	if err != nil {
		return nil, fmt.Errorf("reading checkpoint file: %w", err)
	}

	err = yaml.Unmarshal(data, &records)
	if err != nil {
		return nil, fmt.Errorf("parsing checkpoint file %s: %w", s.path, err)
	}

	if records == nil {
		records = make(map[string]checkpointRecord)
	}

	return records, nil
}

func (s *FileCheckpointStore) write(records map[string]checkpointRecord) error {
	data, err := yaml.Marshal(records)
	if err != nil {
		return fmt.Errorf("encoding checkpoints: %w", err)
	}

	dir := filepath.Dir(s.path)

	err = os.MkdirAll(dir, constants.ConfigDirPerm)
	if err != nil {
		return fmt.Errorf("creating checkpoint directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".checkpoints-*")
	if err != nil {
		return fmt.Errorf("creating temp checkpoint file: %w", err)
	}

	_, err = tmp.Write(data)
	closeErr := tmp.Close()

	if err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("writing checkpoint file: %w", err)
	}

	err = os.Rename(tmp.Name(), s.path)
	if err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("replacing checkpoint file: %w", err)
	}

	return nil
}

// Load returns the cursor saved under name, or ErrCheckpointNotFound. A
// missing file holds no checkpoints.
func (s *FileCheckpointStore) Load(ctx context.Context, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return "", err
	}

	record, ok := records[name]
	if !ok {
		return "", ErrCheckpointNotFound
	}

	return record.Cursor, nil
}

// Save records cursor under name and rewrites the file atomically.
func (s *FileCheckpointStore) Save(ctx context.Context, name, cursor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return err
	}

	records[name] = checkpointRecord{Cursor: cursor, UpdatedAt: time.Now().UTC()}

	return s.write(records)
}

// Delete removes name from the file.
func (s *FileCheckpointStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return err
	}

	if _, ok := records[name]; !ok {
		return nil
	}

	delete(records, name)

	return s.write(records)
}

// WalkPages lists builder's resource page by page, calling fn for each page.
//
// When store holds a cursor under name the walk resumes from it, otherwise it
// starts from builder's query. The page cursor is saved only after fn returns
// nil, so a failed page is fetched again on the next walk. The checkpoint is
// deleted once the last page has been handled.
func WalkPages[T any](ctx context.Context, client Client, builder *ListBuilder[T], store CheckpointStore,
	name string, fn func(*Page[T]) error,
) error {
	cursor, err := store.Load(ctx, name)
	if err != nil && !errors.Is(err, ErrCheckpointNotFound) {
		return fmt.Errorf("loading checkpoint %q: %w", name, err)
	}

	var page *Page[T]
	if cursor != "" {
		page, err = builder.GetPageAt(ctx, client, cursor)
	} else {
		page, err = builder.GetPage(ctx, client)
	}

	for {
		if err != nil {
			return err
		}

		err = fn(page)
		if err != nil {
			return err
		}

		if page.LastPage {
			err = store.Delete(ctx, name)
			if err != nil {
				return fmt.Errorf("clearing checkpoint %q: %w", name, err)
			}

			return nil
		}

		if page.Cursor == "" {
			return fmt.Errorf("walking %s: %w", builder.Operation(), ErrMissingCursor)
		}

		err = store.Save(ctx, name, page.Cursor)
		if err != nil {
			return fmt.Errorf("saving checkpoint %q: %w", name, err)
		}

		page, err = builder.GetPageAt(ctx, client, page.Cursor)
	}
}
