package state

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/nodecycle/pkg/health"
	"github.com/bft-labs/nodecycle/pkg/lifecycle"
)

func TestFileRepository_LoadMissing(t *testing.T) {
	repo := NewFileRepository(t.TempDir())
	s, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, s.IsEmpty())
}

func TestFileRepository_SaveAndLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	repo := NewFileRepository(dir)

	st := health.StatusDegraded
	ready := true
	want := Status{
		NodeID:    "node-1",
		Stage:     lifecycle.StageDegraded,
		Reason:    "health degraded: cache",
		Since:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Health:    &st,
		Ready:     &ready,
		UpdatedAt: time.Date(2024, 5, 1, 12, 0, 5, 0, time.UTC),
	}
	require.NoError(t, repo.Save(context.Background(), want))

	data, err := os.ReadFile(repo.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"stage": "Degraded"`)
	assert.Contains(t, string(data), `"health": "degraded"`)

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = os.Stat(repo.Path() + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must be renamed away")
}

func TestFileRepository_LoadCorrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "status.json"), []byte("{"), 0o644))

	_, err := NewFileRepository(dir).Load(context.Background())
	require.Error(t, err)
}

type memRepo struct {
	saved []Status
	err   error
}

func (m *memRepo) Load(context.Context) (Status, error) {
	if len(m.saved) == 0 {
		return Status{}, nil
	}
	return m.saved[len(m.saved)-1], nil
}

func (m *memRepo) Save(_ context.Context, s Status) error {
	m.saved = append(m.saved, s)
	return m.err
}

func TestRecorder_TracksEvents(t *testing.T) {
	repo := &memRepo{}
	rec := NewRecorder(repo, "node-1", nil)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rec.now = func() time.Time { return now }

	assert.Equal(t, lifecycle.StageInitializing, rec.Status().Stage)
	assert.Nil(t, rec.Status().Health)

	rec.OnStageChange(lifecycle.StageChange{
		Previous: lifecycle.StageStarting,
		Current:  lifecycle.StageReady,
		Reason:   "startup complete",
		At:       now.Add(-time.Second),
	})
	rec.OnHealthCheck(health.HealthReport{Status: health.StatusHealthy})
	rec.OnReadinessCheck(health.ReadinessReport{Ready: false})
	rec.OnHookComplete(lifecycle.HookEvent{})
	rec.OnSubsystemComplete(lifecycle.SubsystemEvent{})

	require.Len(t, repo.saved, 3)
	got := rec.Status()
	assert.Equal(t, "node-1", got.NodeID)
	assert.Equal(t, lifecycle.StageReady, got.Stage)
	assert.Equal(t, "startup complete", got.Reason)
	assert.Equal(t, now.Add(-time.Second), got.Since)
	require.NotNil(t, got.Health)
	assert.Equal(t, health.StatusHealthy, *got.Health)
	require.NotNil(t, got.Ready)
	assert.False(t, *got.Ready)
	assert.Equal(t, now, got.UpdatedAt)
	assert.Equal(t, got, repo.saved[2])
}

func TestRecorder_SaveErrorsAreIgnored(t *testing.T) {
	repo := &memRepo{err: errors.New("disk full")}
	rec := NewRecorder(repo, "node-1", nil)

	rec.OnStageChange(lifecycle.StageChange{Current: lifecycle.StageStarting})
	assert.Equal(t, lifecycle.StageStarting, rec.Status().Stage)
	assert.False(t, rec.Status().Since.IsZero())
}
