package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const stateFileName = "status.json"

// FileRepository implements Repository with a JSON file in a directory.
type FileRepository struct {
	dir string
}

// NewFileRepository creates a new FileRepository for the given directory.
func NewFileRepository(dir string) *FileRepository {
	return &FileRepository{dir: dir}
}

// Load reads the status file.
// Returns an empty status and nil error if no file exists.
func (r *FileRepository) Load(ctx context.Context) (Status, error) {
	path := filepath.Join(r.dir, stateFileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Status{}, nil
		}
		return Status{}, fmt.Errorf("read status file: %w", err)
	}

	var s Status
	if err := json.Unmarshal(data, &s); err != nil {
		return Status{}, fmt.Errorf("decode status file %s: %w", path, err)
	}

	return s, nil
}

// Save writes the status to a temp file and renames it into place.
func (r *FileRepository) Save(ctx context.Context, s Status) error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create status dir: %w", err)
	}

	path := filepath.Join(r.dir, stateFileName)
	tmp := path + ".tmp"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write status file: %w", err)
	}
	return os.Rename(tmp, path)
}

// Path returns the full path to the status file.
func (r *FileRepository) Path() string {
	return filepath.Join(r.dir, stateFileName)
}
