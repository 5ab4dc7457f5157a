package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LoadNodeID fills cfg.NodeID when it is not set.
//
// With a NodeIDFile the id is read from that file, or generated and written
// there on first run so it survives restarts. Without one a fresh random id
// is used.
func LoadNodeID(cfg *Config) error {
	if cfg.NodeID != "" {
		return nil
	}
	if cfg.NodeIDFile == "" {
		cfg.NodeID = uuid.NewString()
		return nil
	}

	id, err := readNodeID(cfg.NodeIDFile)
	if err == nil {
		cfg.NodeID = id
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("read node id: %w", err)
	}

	id = uuid.NewString()
	if err := writeNodeID(cfg.NodeIDFile, id); err != nil {
		return fmt.Errorf("write node id: %w", err)
	}
	cfg.NodeID = id
	return nil
}

func readNodeID(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	id := strings.TrimSpace(string(b))
	if _, err := uuid.Parse(id); err != nil {
		return "", fmt.Errorf("%s: invalid node id %q: %w", path, id, err)
	}
	return id, nil
}

func writeNodeID(path, id string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(id+"\n"), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
