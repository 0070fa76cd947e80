// Package snapshot persists the full store to a compressed snapshot file
// and reloads it at startup. Every save rotates the previous snapshot into
// a backup directory named after that file's creation time, so no prior
// state is ever overwritten.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"github.com/ccash-market/marketd/internal/app/storage"
	"github.com/ccash-market/marketd/pkg/logger"
)

const (
	// FileName is the live snapshot file under the data directory.
	FileName = "snapshot.json.gz"
	// BackupDirName holds rotated snapshots under the data directory.
	BackupDirName = "backups"

	backupTimeLayout = "2006-01-02T15-04-05Z"
)

// Manager saves and loads store snapshots under a data directory.
type Manager struct {
	store storage.Exporter
	dir   string
	log   *logger.Logger
}

// NewManager creates a snapshot manager rooted at dir.
func NewManager(store storage.Exporter, dir string, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.NewDefault("snapshot")
	}
	return &Manager{store: store, dir: dir, log: log}
}

// Path returns the live snapshot path.
func (m *Manager) Path() string {
	return filepath.Join(m.dir, FileName)
}

// Save serializes the store, rotates any existing snapshot into the backup
// directory and writes the new file atomically. Errors are surfaced to the
// caller; the store itself is never left in an inconsistent state.
func (m *Manager) Save(ctx context.Context) error {
	snap := m.store.Export(ctx)

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if err := m.rotate(); err != nil {
		return fmt.Errorf("rotate snapshot: %w", err)
	}
	if err := m.write(snap); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	m.log.WithField("path", m.Path()).
		Debugf("saved %d users, %d commodities, %d offers",
			len(snap.Users), len(snap.Commodities), len(snap.Offers))
	return nil
}

// rotate moves the current snapshot, when present, into the backup
// directory under a name embedding the file's creation timestamp.
func (m *Manager) rotate() error {
	path := m.Path()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat old snapshot: %w", err)
	}

	backupDir := filepath.Join(m.dir, BackupDirName)
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}

	// The snapshot is written with an atomic rename, so its mtime is its
	// creation time.
	ts := info.ModTime().UTC().Format(backupTimeLayout)
	backupPath := filepath.Join(backupDir, fmt.Sprintf("snapshot-%s.json.gz", ts))
	if err := os.Rename(path, backupPath); err != nil {
		return fmt.Errorf("move old snapshot: %w", err)
	}
	return nil
}

// write encodes and compresses the snapshot to a temp file, then renames it
// into place so a crash mid-write never corrupts the live file.
func (m *Manager) write(snap storage.Snapshot) error {
	path := m.Path()
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	gz := gzip.NewWriter(f)
	if err := json.NewEncoder(gz).Encode(snap); err != nil {
		gz.Close()
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := gz.Close(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	return os.Rename(tmp, path)
}

// Load reads the live snapshot into the store. Every failure mode — file
// absent, empty, corrupt, decompression or schema error — degrades to an
// empty store with a warning. Prior data loss is preferred over refusing
// to start.
func (m *Manager) Load(ctx context.Context) {
	snap, err := m.read()
	if err != nil {
		m.log.WithError(err).WithField("path", m.Path()).
			Warn("no usable snapshot; starting with an empty store")
		m.store.Restore(ctx, storage.EmptySnapshot())
		return
	}

	m.store.Restore(ctx, snap)
	m.log.Infof("loaded %d users, %d commodities, %d offers",
		len(snap.Users), len(snap.Commodities), len(snap.Offers))
}

func (m *Manager) read() (storage.Snapshot, error) {
	f, err := os.Open(m.Path())
	if err != nil {
		return storage.Snapshot{}, err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return storage.Snapshot{}, fmt.Errorf("decompress: %w", err)
	}
	defer gz.Close()

	snap := storage.EmptySnapshot()
	if err := json.NewDecoder(gz).Decode(&snap); err != nil {
		return storage.Snapshot{}, fmt.Errorf("decode: %w", err)
	}
	return snap, nil
}
