package store

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// snapshotEntry is the on-disk form of one cached value.
type snapshotEntry struct {
	Namespace string    `json:"namespace"`
	Key       string    `json:"key"`
	Value     []byte    `json:"value"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SaveSnapshot writes all unexpired entries of a memory store to path so a
// restart can warm-start from the previous session. The write goes through
// a temp file and rename to stay atomic.
func SaveSnapshot(fs afero.Fs, path string, s *MemoryStore) error {
	s.mu.RLock()
	now := time.Now()
	entries := make([]snapshotEntry, 0, len(s.entries))
	for composite, entry := range s.entries {
		ns, key, ok := splitCompositeKey(composite)
		if !ok || now.After(entry.expiresAt) {
			continue
		}
		entries = append(entries, snapshotEntry{
			Namespace: ns,
			Key:       key,
			Value:     entry.value,
			ExpiresAt: entry.expiresAt,
		})
	}
	s.mu.RUnlock()

	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	tmp := path + ".tmp"
	if err := afero.WriteFile(fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := fs.Rename(tmp, path); err != nil {
		_ = fs.Remove(tmp)
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot restores previously saved entries into a memory store,
// skipping anything that expired while the process was down. A missing
// snapshot file is not an error.
func LoadSnapshot(fs afero.Fs, path string, s *MemoryStore) (int, error) {
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return 0, fmt.Errorf("stat snapshot: %w", err)
	}
	if !exists {
		return 0, nil
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return 0, fmt.Errorf("read snapshot: %w", err)
	}
	if len(data) == 0 {
		return 0, nil
	}

	var entries []snapshotEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return 0, fmt.Errorf("decode snapshot: %w", err)
	}

	now := time.Now()
	restored := 0

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range entries {
		if entry.Namespace == "" || entry.Key == "" || now.After(entry.ExpiresAt) {
			continue
		}
		s.entries[compositeKey(entry.Namespace, entry.Key)] = memoryEntry{
			value:     entry.Value,
			expiresAt: entry.ExpiresAt,
		}
		restored++
	}
	return restored, nil
}

func splitCompositeKey(composite string) (namespace, key string, ok bool) {
	for i := 0; i < len(composite); i++ {
		if composite[i] == '\x00' {
			return composite[:i], composite[i+1:], true
		}
	}
	return "", "", false
}
