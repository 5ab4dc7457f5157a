package cliconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestLoadNodeID_Explicit(t *testing.T) {
	cfg := Config{NodeID: "validator-1", NodeIDFile: "/should/not/be/read"}
	if err := LoadNodeID(&cfg); err != nil {
		t.Fatalf("LoadNodeID() error = %v", err)
	}
	if cfg.NodeID != "validator-1" {
		t.Errorf("NodeID = %v, want validator-1", cfg.NodeID)
	}
}

func TestLoadNodeID_Random(t *testing.T) {
	cfg := Config{}
	if err := LoadNodeID(&cfg); err != nil {
		t.Fatalf("LoadNodeID() error = %v", err)
	}
	if _, err := uuid.Parse(cfg.NodeID); err != nil {
		t.Errorf("NodeID %q is not a uuid: %v", cfg.NodeID, err)
	}
}

func TestLoadNodeID_PersistsAcrossRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "node_id")

	first := Config{NodeIDFile: path}
	if err := LoadNodeID(&first); err != nil {
		t.Fatalf("first LoadNodeID() error = %v", err)
	}
	if !FileExists(path) {
		t.Fatal("node id file was not written")
	}

	second := Config{NodeIDFile: path}
	if err := LoadNodeID(&second); err != nil {
		t.Fatalf("second LoadNodeID() error = %v", err)
	}
	if first.NodeID != second.NodeID {
		t.Errorf("NodeID changed across runs: %v -> %v", first.NodeID, second.NodeID)
	}
}

func TestLoadNodeID_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node_id")
	if err := os.WriteFile(path, []byte("not-a-uuid\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := Config{NodeIDFile: path}
	err := LoadNodeID(&cfg)
	if err == nil || !strings.Contains(err.Error(), "invalid node id") {
		t.Errorf("LoadNodeID() error = %v, want invalid node id", err)
	}
}
