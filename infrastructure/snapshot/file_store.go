// Package snapshot provides the JSON file backing for the rating ledger
// and a change watcher for proactive reloads.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/ahrav/go-tally/internal/domain"
	"github.com/ahrav/go-tally/internal/ports"
)

var _ ports.SnapshotStore = (*FileStore)(nil)

// racyWindow bounds filesystem timestamp granularity. A version observed
// less than this long after its modification time may share that
// timestamp with a later write, so Changed falls back to hashing.
const racyWindow = 2 * time.Second

// FileStore keeps the snapshot in a single JSON file. Save writes a
// temporary file in the same directory and renames it over the target, so
// readers see either the old or the new snapshot, never a mix.
type FileStore struct {
	path   string
	perm   os.FileMode
	logger *slog.Logger
}

// NewFileStore returns a store for path, creating its directory if needed.
func NewFileStore(path string, logger *slog.Logger) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("snapshot path cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	clean := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(clean), 0o755); err != nil {
		return nil, ports.NewStoreError(clean, "init", err)
	}
	return &FileStore{path: clean, perm: 0o644, logger: logger}, nil
}

// Path implements ports.SnapshotStore.
func (fs *FileStore) Path() string { return fs.path }

// Load implements ports.SnapshotStore. The version is taken from the same
// open file that is decoded.
func (fs *FileStore) Load(ctx context.Context) (*domain.Snapshot, ports.Version, error) {
	if err := ctx.Err(); err != nil {
		return nil, ports.Version{}, err
	}
	f, err := os.Open(fs.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fs.logger.Debug("snapshot missing, starting empty", slog.String("path", fs.path))
			return domain.NewSnapshot(), ports.Version{}, nil
		}
		return nil, ports.Version{}, ports.NewStoreError(fs.path, "load", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, ports.Version{}, ports.NewStoreError(fs.path, "stat", err)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, ports.Version{}, ports.NewStoreError(fs.path, "load", err)
	}

	snap := domain.NewSnapshot()
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, snap); err != nil {
			return nil, ports.Version{}, ports.NewStoreError(fs.path, "load",
				fmt.Errorf("%w: %v", ports.ErrCorruptSnapshot, err))
		}
	}
	normalize(snap)
	return snap, versionOf(info, data), nil
}

// Save implements ports.SnapshotStore. The snapshot is fully encoded in
// memory before anything touches disk.
func (fs *FileStore) Save(ctx context.Context, snap *domain.Snapshot) (ports.Version, error) {
	if err := ctx.Err(); err != nil {
		return ports.Version{}, err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return ports.Version{}, ports.NewStoreError(fs.path, "encode", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fs.path), ".snapshot-*.tmp")
	if err != nil {
		return ports.Version{}, ports.NewStoreError(fs.path, "save", err)
	}
	tmpPath := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return ports.Version{}, ports.NewStoreError(fs.path, "save", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return ports.Version{}, ports.NewStoreError(fs.path, "save", err)
	}
	// Rename keeps the inode's mtime, so the temp file's stat is the
	// committed file's stat even if another writer renames right after us.
	info, err := tmp.Stat()
	if err != nil {
		tmp.Close()
		return ports.Version{}, ports.NewStoreError(fs.path, "stat", err)
	}
	if err := tmp.Close(); err != nil {
		return ports.Version{}, ports.NewStoreError(fs.path, "save", err)
	}
	if err := os.Chmod(tmpPath, fs.perm); err != nil {
		return ports.Version{}, ports.NewStoreError(fs.path, "save", err)
	}
	if err := os.Rename(tmpPath, fs.path); err != nil {
		return ports.Version{}, ports.NewStoreError(fs.path, "save", err)
	}
	cleanup = false
	return versionOf(info, data), nil
}

// Changed implements ports.SnapshotStore. A differing modification time or
// size is a change in either direction. When both match and the recorded
// version was taken within racyWindow of its timestamp, the file is hashed
// so a same-tick write by another process is still detected.
func (fs *FileStore) Changed(ctx context.Context, since ports.Version) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	info, err := os.Stat(fs.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, ports.NewStoreError(fs.path, "stat", err)
	}
	if !info.ModTime().Equal(since.ModTime) || info.Size() != since.Size {
		return true, nil
	}
	if since.Observed.Sub(since.ModTime) >= racyWindow {
		return false, nil
	}

	data, err := os.ReadFile(fs.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, ports.NewStoreError(fs.path, "load", err)
	}
	return xxhash.Sum64(data) != since.Digest, nil
}

func versionOf(info os.FileInfo, data []byte) ports.Version {
	return ports.Version{
		ModTime:  info.ModTime(),
		Size:     info.Size(),
		Digest:   xxhash.Sum64(data),
		Observed: time.Now(),
	}
}

// normalize fills collections and counters that older files may omit.
func normalize(snap *domain.Snapshot) {
	if snap.ProblemOverrides == nil {
		snap.ProblemOverrides = make(map[string]domain.ProblemPatch)
	}
	for _, c := range []*int{&snap.NextVoteID, &snap.NextReportID, &snap.NextUserID, &snap.NextProblemID} {
		if *c < 1 {
			*c = 1
		}
	}
}
