// Package file stores checkpoint records as files under a cache directory,
// one file per {model, dataset, epoch}.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/gclflow/gclflow/internal/core/checkpoint"
	"github.com/gclflow/gclflow/pkg/serialization"
)

var fileNamePattern = regexp.MustCompile(`^([^_]+)_([^_]+)_epoch(\d+)` + regexp.QuoteMeta(checkpoint.FileExt) + `$`)

// CheckpointSaver implements checkpoint.Saver on the local filesystem.
// Writes go to a temporary file that is renamed into place, so a reader
// never observes a partial record.
// PRINCIPLES:
// - KISS: the path is the key
// - DIP: implements checkpoint.Saver
type CheckpointSaver struct {
	dir        string
	serializer *serialization.Serializer
}

// NewCheckpointSaver creates a saver rooted at dir. The directory is
// created on first save.
func NewCheckpointSaver(dir string, serializer *serialization.Serializer) *CheckpointSaver {
	if serializer == nil {
		serializer = serialization.DefaultSerializer()
	}
	return &CheckpointSaver{dir: dir, serializer: serializer}
}

// Dir returns the cache directory.
func (s *CheckpointSaver) Dir() string {
	return s.dir
}

// Path returns {dir}/{model}_{dataset}_epoch{N}.tar.
func (s *CheckpointSaver) Path(key checkpoint.Key) string {
	return filepath.Join(s.dir, key.FileName())
}

// Save writes the record and returns its path
func (s *CheckpointSaver) Save(ctx context.Context, key checkpoint.Key, record *checkpoint.Record) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := key.Validate(); err != nil {
		return "", err
	}
	if record == nil {
		return "", checkpoint.ErrEmptyRecord
	}
	if err := record.Validate(); err != nil {
		return "", err
	}

	data, err := s.serializer.Serialize(record)
	if err != nil {
		return "", fmt.Errorf("failed to serialize checkpoint record: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create cache dir: %v", checkpoint.ErrSaveFailed, err)
	}

	path := s.Path(key)
	if err := writeAtomic(s.dir, path, data); err != nil {
		return "", fmt.Errorf("%w: %v", checkpoint.ErrSaveFailed, err)
	}
	return path, nil
}

// Load reads the record for key
func (s *CheckpointSaver) Load(ctx context.Context, key checkpoint.Key) (*checkpoint.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := key.Validate(); err != nil {
		return nil, err
	}

	path := s.Path(key)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", checkpoint.ErrCheckpointNotFound, path)
		}
		return nil, fmt.Errorf("%w: %v", checkpoint.ErrLoadFailed, err)
	}

	var record checkpoint.Record
	if err := s.serializer.Deserialize(data, &record); err != nil {
		return nil, fmt.Errorf("failed to deserialize checkpoint %s: %w", path, err)
	}
	return &record, nil
}

// List scans the cache directory. A missing directory lists nothing.
// When the filter names both model and dataset, file names are matched
// exactly; otherwise the model is taken to end at the first underscore.
func (s *CheckpointSaver) List(ctx context.Context, filter checkpoint.Filter) ([]checkpoint.Key, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}

	var keys []checkpoint.Key
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		key, ok := parseFileName(e.Name(), filter)
		if ok && filter.Matches(key) {
			keys = append(keys, key)
		}
	}
	return checkpoint.SortKeys(keys, filter.Limit), nil
}

// Delete removes the record file for key
func (s *CheckpointSaver) Delete(ctx context.Context, key checkpoint.Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := key.Validate(); err != nil {
		return err
	}

	path := s.Path(key)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", checkpoint.ErrCheckpointNotFound, path)
		}
		return fmt.Errorf("%w: %v", checkpoint.ErrDeleteFailed, err)
	}
	return nil
}

// Close is a no-op.
func (s *CheckpointSaver) Close() error {
	return nil
}

func parseFileName(name string, filter checkpoint.Filter) (checkpoint.Key, bool) {
	if filter.Model != "" && filter.Dataset != "" {
		prefix := filter.Model + "_" + filter.Dataset + "_epoch"
		rest, ok := strings.CutPrefix(name, prefix)
		if !ok {
			return checkpoint.Key{}, false
		}
		digits, ok := strings.CutSuffix(rest, checkpoint.FileExt)
		if !ok {
			return checkpoint.Key{}, false
		}
		epoch, err := strconv.Atoi(digits)
		if err != nil || epoch < 0 {
			return checkpoint.Key{}, false
		}
		return checkpoint.Key{Model: filter.Model, Dataset: filter.Dataset, Epoch: epoch}, true
	}

	m := fileNamePattern.FindStringSubmatch(name)
	if m == nil {
		return checkpoint.Key{}, false
	}
	epoch, err := strconv.Atoi(m[3])
	if err != nil {
		return checkpoint.Key{}, false
	}
	return checkpoint.Key{Model: m[1], Dataset: m[2], Epoch: epoch}, true
}

func writeAtomic(dir, path string, data []byte) error {
	tmp, err := os.CreateTemp(dir, ".checkpoint-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		// no-op after a successful rename
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
