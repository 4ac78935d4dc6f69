package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/celerix-dev/celerix-checkin/pkg/sdk"
)

func TestMemStore_GetSetRemove(t *testing.T) {
	ms := NewMemStore(nil, nil)

	// Test Set
	if err := ms.Set("users", `[{"id":"u1"}]`); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// Test Get
	got, err := ms.Get("users")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != `[{"id":"u1"}]` {
		t.Errorf("Expected stored value, got %v", got)
	}

	// Test Get non-existent
	_, err = ms.Get("non-existent")
	if err != sdk.ErrKeyNotFound {
		t.Errorf("Expected ErrKeyNotFound, got %v", err)
	}

	// Test Remove
	if err := ms.Remove("users"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	_, err = ms.Get("users")
	if err != sdk.ErrKeyNotFound {
		t.Errorf("Expected ErrKeyNotFound after remove, got %v", err)
	}

	// Removing twice is fine
	if err := ms.Remove("users"); err != nil {
		t.Errorf("Second remove failed: %v", err)
	}
}

func TestPersistence(t *testing.T) {
	tmpDir := t.TempDir()

	p, err := NewPersistence(tmpDir, nil, nil)
	if err != nil {
		t.Fatalf("NewPersistence failed: %v", err)
	}

	data := map[string]string{"users": "[]", "attendance": "{}"}
	if err := p.Save(1, data); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Verify file exists
	if _, err := os.Stat(filepath.Join(tmpDir, snapshotFile)); os.IsNotExist(err) {
		t.Fatal("Snapshot file was not created")
	}

	loaded, err := p.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != 2 || loaded["attendance"] != "{}" {
		t.Errorf("Loaded data mismatch: %v", loaded)
	}
}

func TestPersistence_StaleVersionIgnored(t *testing.T) {
	p, _ := NewPersistence(t.TempDir(), nil, nil)

	p.Save(2, map[string]string{"k": "new"})
	p.Save(1, map[string]string{"k": "old"})

	loaded, _ := p.Load()
	if loaded["k"] != "new" {
		t.Errorf("Expected newest snapshot to win, got %v", loaded["k"])
	}
}

func TestPersistence_MissingAndCorrupt(t *testing.T) {
	tmpDir := t.TempDir()
	p, _ := NewPersistence(tmpDir, nil, nil)

	loaded, err := p.Load()
	if err != nil || len(loaded) != 0 {
		t.Fatalf("Expected empty data for missing file, got %v, %v", loaded, err)
	}

	os.WriteFile(filepath.Join(tmpDir, snapshotFile), []byte("{not json"), 0o600)
	loaded, err = p.Load()
	if err != nil || len(loaded) != 0 {
		t.Errorf("Expected empty data for corrupt file, got %v, %v", loaded, err)
	}
}

func TestPersistence_Encrypted(t *testing.T) {
	tmpDir := t.TempDir()
	key := []byte("thisis32byteslongsecretkey123456")

	p, _ := NewPersistence(tmpDir, key, nil)
	if err := p.Save(1, map[string]string{"auth": `{"token":"secret-token"}`}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	raw, _ := os.ReadFile(filepath.Join(tmpDir, snapshotFile))
	if strings.Contains(string(raw), "secret-token") {
		t.Error("Snapshot should be encrypted on disk")
	}

	loaded, _ := p.Load()
	if loaded["auth"] != `{"token":"secret-token"}` {
		t.Errorf("Decrypted snapshot mismatch: %v", loaded)
	}

	// A different key cannot read the snapshot and starts empty.
	other, _ := NewPersistence(tmpDir, []byte("another32byteslongsecretkey65432"), nil)
	loaded, err := other.Load()
	if err != nil || len(loaded) != 0 {
		t.Errorf("Expected empty data with wrong key, got %v, %v", loaded, err)
	}
}

func TestMemStore_Persistence(t *testing.T) {
	tmpDir := t.TempDir()

	p, _ := NewPersistence(tmpDir, nil, nil)
	ms := NewMemStore(nil, p)

	for _, step := range []func() error{
		func() error { return ms.Set("k1", "v1") },
		func() error { return ms.Set("k2", "v2") },
		func() error { return ms.Remove("k2") },
	} {
		if err := step(); err != nil {
			t.Fatalf("mutation failed: %v", err)
		}
	}

	// Create new MemStore and load data
	initial, _ := p.Load()
	ms2 := NewMemStore(initial, p)

	val, err := ms2.Get("k1")
	if err != nil {
		t.Fatalf("Get on new store failed: %v", err)
	}
	if val != "v1" {
		t.Errorf("Expected v1, got %v", val)
	}
	if _, err := ms2.Get("k2"); err != sdk.ErrKeyNotFound {
		t.Errorf("Expected k2 to stay removed, got %v", err)
	}
}

func TestMemStore_Concurrent(t *testing.T) {
	ms := NewMemStore(nil, nil)
	const (
		numGoroutines = 10
		numOps        = 100
	)
	var wg sync.WaitGroup
	errs := make(chan error, numGoroutines*numOps)

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < numOps; j++ {
				key := fmt.Sprintf("key-%d-%d", id, j)
				want := fmt.Sprint(j)
				ms.Set(key, want)
				val, err := ms.Get(key)
				if err != nil || val != want {
					errs <- fmt.Errorf("expected %s, got %v, err %v", want, val, err)
				}
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	if n := len(ms.Keys()); n != numGoroutines*numOps {
		t.Errorf("Expected %d keys, got %d", numGoroutines*numOps, n)
	}
}

func TestMigrate(t *testing.T) {
	src := NewMemStore(nil, nil)
	dst := NewMemStore(nil, nil)

	src.Set(sdk.KeyUsers, "[]")
	src.Set(sdk.KeyAttendance, "{}")
	src.Set("unrelated", "x")

	n, err := Migrate(src, dst, sdk.KeyUsers, sdk.KeyAttendance, sdk.KeyAuth)
	if err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 keys copied, got %d", n)
	}
	if v, _ := dst.Get(sdk.KeyAttendance); v != "{}" {
		t.Errorf("Expected attendance copied, got %q", v)
	}
	if _, err := dst.Get("unrelated"); err != sdk.ErrKeyNotFound {
		t.Error("Only the requested keys should be copied")
	}
}

func TestOpen(t *testing.T) {
	s, err := Open(Options{Driver: DriverMemory}, nil)
	if err != nil {
		t.Fatalf("Open memory failed: %v", err)
	}
	if _, ok := s.(*MemStore); !ok {
		t.Errorf("Expected *MemStore, got %T", s)
	}

	dir := t.TempDir()
	s, err = Open(Options{Driver: DriverFile, DSN: dir}, nil)
	if err != nil {
		t.Fatalf("Open file failed: %v", err)
	}
	s.Set("k", "v")
	if err := Close(s); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, snapshotFile)); err != nil {
		t.Errorf("Expected snapshot in %s: %v", dir, err)
	}

	if _, err := Open(Options{Driver: "floppy"}, nil); err == nil {
		t.Error("Expected error for unknown driver")
	}
}

func TestMemStore_FailedSnapshotWrite(t *testing.T) {
	tmpDir := t.TempDir()
	p, _ := NewPersistence(tmpDir, nil, nil)
	ms := NewMemStore(nil, p)

	if err := ms.Set("users", `[{"id":"u1"}]`); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// A directory in place of the temp file makes every write fail.
	if err := os.Mkdir(filepath.Join(tmpDir, snapshotFile+".tmp"), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := ms.Set("attendance", `{"u1":{}}`); err == nil {
		t.Fatal("Expected Set to report the failed write")
	}
	if _, err := ms.Get("attendance"); err != sdk.ErrKeyNotFound {
		t.Errorf("Expected failed Set to leave no value, got %v", err)
	}

	if err := ms.Set("users", "[]"); err == nil {
		t.Fatal("Expected overwrite to report the failed write")
	}
	if got, _ := ms.Get("users"); got != `[{"id":"u1"}]` {
		t.Errorf("Expected previous value after failed overwrite, got %q", got)
	}

	if err := ms.Remove("users"); err == nil {
		t.Fatal("Expected Remove to report the failed write")
	}
	if _, err := ms.Get("users"); err != nil {
		t.Errorf("Expected users to survive failed Remove, got %v", err)
	}

	loaded, err := p.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 1 || loaded["users"] != `[{"id":"u1"}]` {
		t.Errorf("Expected disk to hold the last good snapshot, got %v", loaded)
	}
}
