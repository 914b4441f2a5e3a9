package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-tally/internal/domain"
	"github.com/ahrav/go-tally/internal/ports"
)

func ptr(v float64) *float64 { return &v }

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	fs, err := NewFileStore(filepath.Join(t.TempDir(), "data", "store.json"), nil)
	require.NoError(t, err)
	return fs
}

func TestFileStore_LoadMissingIsEmpty(t *testing.T) {
	fs := newTestStore(t)

	snap, version, err := fs.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, version.IsZero())
	assert.Equal(t, domain.NewSnapshot(), snap)

	changed, err := fs.Changed(context.Background(), version)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestFileStore_SaveLoadPreservesState(t *testing.T) {
	ctx := context.Background()
	fs := newTestStore(t)
	created := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

	snap := domain.NewSnapshot()
	snap.Problems = []domain.ProblemRecord{{
		ID: 7, Type: 1, Title: "Two Sum",
		CntThinking: 2, AvgThinking: ptr(1900), SdThinking: ptr(100), MedThinking: ptr(1900),
	}}
	title := "Two Sum II"
	snap.ProblemOverrides["7"] = domain.ProblemPatch{Title: &title}
	snap.Users = []domain.User{{ID: 1, Username: "alice", LuoguID: "42", CreatedAt: created}}
	snap.Votes = []domain.Vote{{
		ID: 3, UserID: 1, ProblemID: 7, Thinking: 1800, Implementation: 2000,
		Overall: domain.ComputeOverall(1800, 2000), Quality: ptr(4), CreatedAt: created, UpdatedAt: created,
	}}
	snap.Reports = []domain.Report{{ID: 1, VoteID: 3, ReporterID: 1, VoteOwnerID: 1, CreatedAt: created}}
	snap.NextVoteID, snap.NextReportID, snap.NextUserID, snap.NextProblemID = 4, 2, 2, 8

	saved, err := fs.Save(ctx, snap)
	require.NoError(t, err)
	assert.False(t, saved.IsZero())

	got, loaded, err := fs.Load(ctx)
	require.NoError(t, err)
	assert.True(t, saved.Equal(loaded))
	assert.Equal(t, snap, got)

	changed, err := fs.Changed(ctx, saved)
	require.NoError(t, err)
	assert.False(t, changed)
}

// TestFileStore_ChangedDetectsSameTimestampWrite rewrites the file with an
// equal size and the previous modification time, as a second write inside
// one filesystem clock tick would.
func TestFileStore_ChangedDetectsSameTimestampWrite(t *testing.T) {
	ctx := context.Background()
	fs := newTestStore(t)

	first := domain.NewSnapshot()
	first.NextVoteID = 5
	v1, err := fs.Save(ctx, first)
	require.NoError(t, err)

	second := domain.NewSnapshot()
	second.NextVoteID = 6
	v2, err := fs.Save(ctx, second)
	require.NoError(t, err)
	require.Equal(t, v1.Size, v2.Size)
	require.NoError(t, os.Chtimes(fs.Path(), v1.ModTime, v1.ModTime))

	changed, err := fs.Changed(ctx, v1)
	require.NoError(t, err)
	assert.True(t, changed, "same mtime and size but different content")

	_, reloaded, err := fs.Load(ctx)
	require.NoError(t, err)
	changed, err = fs.Changed(ctx, reloaded)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestFileStore_ChangedDetectsAnyStatDifference(t *testing.T) {
	ctx := context.Background()
	fs := newTestStore(t)
	v, err := fs.Save(ctx, domain.NewSnapshot())
	require.NoError(t, err)

	tests := []struct {
		name  string
		since ports.Version
		want  bool
	}{
		{"same version", v, false},
		{"older timestamp", ports.Version{ModTime: v.ModTime.Add(-time.Minute), Size: v.Size, Digest: v.Digest, Observed: v.Observed}, true},
		{"newer timestamp", ports.Version{ModTime: v.ModTime.Add(time.Minute), Size: v.Size, Digest: v.Digest, Observed: v.Observed}, true},
		{"other size", ports.Version{ModTime: v.ModTime, Size: v.Size + 1, Digest: v.Digest, Observed: v.Observed}, true},
		{"other digest inside racy window", ports.Version{ModTime: v.ModTime, Size: v.Size, Digest: v.Digest + 1, Observed: v.ModTime}, true},
		{"other digest long after write", ports.Version{ModTime: v.ModTime, Size: v.Size, Digest: v.Digest + 1, Observed: v.ModTime.Add(time.Hour)}, false},
		{"never loaded", ports.Version{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fs.Changed(ctx, tt.since)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestFileStore_SaveLeavesNoTempFiles checks the rename-over commit.
func TestFileStore_SaveLeavesNoTempFiles(t *testing.T) {
	ctx := context.Background()
	fs := newTestStore(t)
	for i := 0; i < 3; i++ {
		_, err := fs.Save(ctx, domain.NewSnapshot())
		require.NoError(t, err)
	}
	entries, err := os.ReadDir(filepath.Dir(fs.Path()))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "store.json", entries[0].Name())
}

func TestFileStore_CorruptSnapshot(t *testing.T) {
	fs := newTestStore(t)
	require.NoError(t, os.WriteFile(fs.Path(), []byte(`{"votes": [`), 0o644))

	_, _, err := fs.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrCorruptSnapshot)
	var se *ports.StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "load", se.Operation)
}

func TestFileStore_NormalizesSparseFiles(t *testing.T) {
	fs := newTestStore(t)
	require.NoError(t, os.WriteFile(fs.Path(), []byte(`{"users": [], "next_vote_id": 0}`), 0o644))

	snap, version, err := fs.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, version.IsZero())
	assert.NotNil(t, snap.ProblemOverrides)
	assert.Equal(t, 1, snap.NextVoteID)
	assert.Equal(t, 1, snap.NextProblemID)

	require.NoError(t, os.WriteFile(fs.Path(), []byte("  \n"), 0o644))
	snap, _, err = fs.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.NewSnapshot(), snap)
}

func TestFileStore_SaveFailsOnUnwritableDir(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
	fs := newTestStore(t)
	dir := filepath.Dir(fs.Path())
	require.NoError(t, os.Chmod(dir, 0o500))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })

	_, err := fs.Save(context.Background(), domain.NewSnapshot())
	var se *ports.StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "save", se.Operation)
}

func TestFileStore_CanceledContext(t *testing.T) {
	fs := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := fs.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = fs.Save(ctx, domain.NewSnapshot())
	assert.ErrorIs(t, err, context.Canceled)
	_, err = fs.Changed(ctx, ports.Version{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewFileStore_RequiresPath(t *testing.T) {
	_, err := NewFileStore("", nil)
	assert.Error(t, err)
}
