package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ccash-market/marketd/internal/app/storage"
)

func seedStore(t *testing.T) *storage.Memory {
	t.Helper()
	ctx := context.Background()

	store := storage.NewMemory()
	userID := store.GetOrAddUser(ctx, "alice")
	commodityID := store.GetOrAddCommodity(ctx, "Iron", 10, userID)
	offerID := store.AddAsk(ctx, commodityID, userID, 4, 25)
	store.AttachOfferToUser(ctx, userID, offerID)
	store.AttachOwnerToCommodity(ctx, commodityID, userID)
	return store
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	store := seedStore(t)

	m := NewManager(store, dir, nil)
	if err := m.Save(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}

	restored := storage.NewMemory()
	NewManager(restored, dir, nil).Load(ctx)

	user, err := restored.GetUserByName(ctx, "alice")
	if err != nil {
		t.Fatalf("restored user: %v", err)
	}
	if len(user.OfferIDs) != 1 {
		t.Fatalf("restored offer ids = %v", user.OfferIDs)
	}
	if got := len(restored.Offers(ctx)); got != 1 {
		t.Fatalf("restored offers = %d, want 1", got)
	}
	if got := len(restored.Commodities(ctx)); got != 1 {
		t.Fatalf("restored commodities = %d, want 1", got)
	}
}

func TestLoadMissingFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store := storage.NewMemory()
	NewManager(store, dir, nil).Load(ctx)

	if got := len(store.Users(ctx)); got != 0 {
		t.Fatalf("users = %d, want empty store", got)
	}
}

func TestLoadCorruptFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte("not gzip at all"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	store := storage.NewMemory()
	NewManager(store, dir, nil).Load(ctx)

	if got := len(store.Users(ctx)); got != 0 {
		t.Fatalf("users = %d, want empty store after corrupt load", got)
	}
}

func TestLoadEmptyFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	if err := os.WriteFile(filepath.Join(dir, FileName), nil, 0o644); err != nil {
		t.Fatalf("write empty file: %v", err)
	}

	store := storage.NewMemory()
	NewManager(store, dir, nil).Load(ctx)

	if got := len(store.Offers(ctx)); got != 0 {
		t.Fatalf("offers = %d, want empty store after empty load", got)
	}
}

func TestBackupRotation(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	store := seedStore(t)

	m := NewManager(store, dir, nil)
	if err := m.Save(ctx); err != nil {
		t.Fatalf("first save: %v", err)
	}

	firstInfo, err := os.Stat(m.Path())
	if err != nil {
		t.Fatalf("stat first snapshot: %v", err)
	}

	if err := m.Save(ctx); err != nil {
		t.Fatalf("second save: %v", err)
	}

	if _, err := os.Stat(m.Path()); err != nil {
		t.Fatalf("live snapshot missing after rotation: %v", err)
	}

	backups, err := os.ReadDir(filepath.Join(dir, BackupDirName))
	if err != nil {
		t.Fatalf("read backup dir: %v", err)
	}
	if len(backups) != 1 {
		t.Fatalf("backups = %d, want exactly 1", len(backups))
	}

	wantTS := firstInfo.ModTime().UTC().Format(backupTimeLayout)
	wantName := "snapshot-" + wantTS + ".json.gz"
	if backups[0].Name() != wantName {
		t.Fatalf("backup name = %q, want %q", backups[0].Name(), wantName)
	}
}

func TestSaveFailsOnUnwritableDir(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("directory permissions are not enforced for root")
	}

	dir := t.TempDir()
	if err := os.Chmod(dir, 0o555); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })

	m := NewManager(seedStore(t), filepath.Join(dir, "nested"), nil)
	if err := m.Save(context.Background()); err == nil {
		t.Fatal("save into unwritable dir must fail")
	}
}

func TestSaverPersistsPeriodically(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	store := seedStore(t)

	m := NewManager(store, dir, nil)
	saver := NewSaver(m, 10*time.Millisecond, 25*time.Millisecond, nil)

	if err := saver.Start(ctx); err != nil {
		t.Fatalf("start saver: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(m.Path()); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("saver never produced a snapshot")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := saver.Stop(ctx); err != nil {
		t.Fatalf("stop saver: %v", err)
	}

	// Stop performs a final save; the live snapshot must still load.
	restored := storage.NewMemory()
	NewManager(restored, dir, nil).Load(ctx)
	if _, err := restored.GetUserByName(ctx, "alice"); err != nil {
		t.Fatalf("snapshot after shutdown unusable: %v", err)
	}
}

func TestSaverStopWithoutStart(t *testing.T) {
	m := NewManager(storage.NewMemory(), t.TempDir(), nil)
	saver := NewSaver(m, time.Second, time.Second, nil)
	if err := saver.Stop(context.Background()); err != nil {
		t.Fatalf("stop without start: %v", err)
	}
}
