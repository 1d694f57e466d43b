package snapshot

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Store defines snapshot persistence.
//
// Implementations must be safe for concurrent use. Error conventions:
//   - nil on success
//   - a *NotFoundError (matched by errors.Is(err, ErrNotFound)) when the
//     requested snapshot does not exist
//   - wrapped errors for I/O and serialization failures
type Store interface {
	Save(snap *Snapshot) error
	Load(id string) (*Snapshot, error)
	List() ([]Info, error)
	Delete(id string) error
}

// Info is the listing metadata for one stored snapshot.
type Info struct {
	ID          string    `json:"id"`
	CapturedAt  time.Time `json:"capturedAt"`
	DeviceCount int       `json:"deviceCount"`
	DeviceNames []string  `json:"deviceNames"`
}

// ToInfo reduces a snapshot to its listing metadata.
func (s *Snapshot) ToInfo() Info {
	info := Info{
		ID:          s.ID,
		CapturedAt:  s.CapturedAt,
		DeviceCount: len(s.Devices),
	}
	for _, dev := range s.Devices {
		info.DeviceNames = append(info.DeviceNames, dev.Properties.DeviceName)
	}
	return info
}

// ErrNotFound is returned when a requested snapshot does not exist.
// Use errors.Is(err, ErrNotFound) to check for it.
var ErrNotFound = &NotFoundError{}

// NotFoundError reports a missing snapshot.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return "snapshot not found: " + e.ID
	}
	return "snapshot not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}

// FSStore persists snapshots under <baseDir>/snapshots/<id>/snapshot.json.
// Writes go through a temp file and rename, so readers never observe a
// torn snapshot.
type FSStore struct {
	baseDir string
}

// NewFSStore creates a filesystem store rooted at baseDir, creating the
// directory if needed.
func NewFSStore(baseDir string) (*FSStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &FSStore{baseDir: baseDir}, nil
}

func (fs *FSStore) snapshotDir(id string) string {
	return filepath.Join(fs.baseDir, "snapshots", id)
}

func (fs *FSStore) snapshotPath(id string) string {
	return filepath.Join(fs.snapshotDir(id), "snapshot.json")
}

// Save writes the snapshot to disk, replacing any previous snapshot with
// the same ID.
func (fs *FSStore) Save(snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("snapshot is nil")
	}
	if snap.ID == "" {
		return fmt.Errorf("snapshot ID is empty")
	}

	dir := fs.snapshotDir(snap.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	path := fs.snapshotPath(snap.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to finalize snapshot file: %w", err)
	}

	slog.Debug("saved snapshot", "id", snap.ID, "devices", len(snap.Devices))
	return nil
}

// Load reads one snapshot by ID.
func (fs *FSStore) Load(id string) (*Snapshot, error) {
	path := fs.snapshotPath(id)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, &NotFoundError{ID: id}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// List returns the metadata of every stored snapshot, newest first.
// Unreadable entries are skipped with a warning rather than failing the
// whole listing.
func (fs *FSStore) List() ([]Info, error) {
	root := filepath.Join(fs.baseDir, "snapshots")
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshots directory: %w", err)
	}

	var infos []Info
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		snap, err := fs.Load(entry.Name())
		if err != nil {
			slog.Warn("skipping unreadable snapshot", "id", entry.Name(), "error", err)
			continue
		}
		infos = append(infos, snap.ToInfo())
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CapturedAt.After(infos[j].CapturedAt)
	})
	return infos, nil
}

// Delete removes one stored snapshot by ID.
func (fs *FSStore) Delete(id string) error {
	dir := fs.snapshotDir(id)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return &NotFoundError{ID: id}
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	slog.Debug("deleted snapshot", "id", id)
	return nil
}
