package engine

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/celerix-dev/celerix-checkin/internal/vault"
)

const snapshotFile = "checkin.json"

// Persistence handles the disk I/O for the MemStore.
type Persistence struct {
	DataDir string

	key       []byte
	log       *zap.Logger
	mu        sync.Mutex // Protects concurrent writes to the filesystem
	lastSaved uint64
}

// NewPersistence initializes a persistence handler. A non-nil key (32 bytes) encrypts
// the snapshot at rest.
func NewPersistence(dir string, key []byte, log *zap.Logger) (*Persistence, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Persistence{DataDir: dir, key: key, log: log}, nil
}

func (p *Persistence) path() string {
	return filepath.Join(p.DataDir, snapshotFile)
}

// Save writes a snapshot atomically. Snapshots older than the last saved version are
// dropped so the file never rolls back.
func (p *Persistence) Save(version uint64, data map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if version != 0 && version <= p.lastSaved {
		return nil
	}

	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		p.log.Error("snapshot marshal failed", zap.Error(err))
		return err
	}
	if p.key != nil {
		sealed, err := vault.Encrypt(string(bytes), p.key)
		if err != nil {
			p.log.Error("snapshot encrypt failed", zap.Error(err))
			return err
		}
		bytes = []byte(sealed)
	}

	filePath := p.path()
	tempPath := filePath + ".tmp"
	if err := os.WriteFile(tempPath, bytes, 0o600); err != nil {
		p.log.Error("snapshot write failed", zap.String("path", tempPath), zap.Error(err))
		return err
	}
	// Rename replaces the file in one step: a crash leaves either the old or the new snapshot.
	if err := os.Rename(tempPath, filePath); err != nil {
		p.log.Error("snapshot rename failed", zap.String("path", filePath), zap.Error(err))
		return err
	}
	p.lastSaved = version
	return nil
}

// Load returns the persisted snapshot. A missing file yields an empty map; an unreadable
// or corrupt one is logged and also yields an empty map.
func (p *Persistence) Load() (map[string]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	data := make(map[string]string)

	content, err := os.ReadFile(p.path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return data, nil
		}
		return nil, err
	}

	if p.key != nil {
		plain, err := vault.Decrypt(string(content), p.key)
		if err != nil {
			p.log.Warn("could not decrypt snapshot, starting empty", zap.Error(err))
			return data, nil
		}
		content = []byte(plain)
	}

	if err := json.Unmarshal(content, &data); err != nil {
		p.log.Warn("could not unmarshal snapshot, starting empty", zap.Error(err))
		return make(map[string]string), nil
	}
	return data, nil
}
