package storage

import (
	"context"
	"fmt"
	"path"
	"sync"
	"time"
)

// MemoryFileStore keeps attachments in memory with the same naming and
// reference contract as DiskFileStore.
type MemoryFileStore struct {
	mu    sync.RWMutex
	files map[string][]byte
	now   func() time.Time
}

func NewMemoryFileStore() *MemoryFileStore {
	return &MemoryFileStore{
		files: make(map[string][]byte),
		now:   time.Now,
	}
}

func (store *MemoryFileStore) Store(ctx context.Context, name string, content []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	for attempt := 0; attempt < createAttempts; attempt++ {
		storedName := StoredName(store.now(), name)
		if _, exists := store.files[storedName]; exists {
			continue
		}
		copied := make([]byte, len(content))
		copy(copied, content)
		store.files[storedName] = copied
		return path.Join(PublicPrefix, storedName), nil
	}
	return "", fmt.Errorf("allocate attachment name for %q", name)
}

func (store *MemoryFileStore) Delete(_ context.Context, storedPath string) error {
	storedName, err := storedNameFromPath(storedPath)
	if err != nil {
		return err
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	delete(store.files, storedName)
	return nil
}

func (store *MemoryFileStore) Get(storedPath string) ([]byte, bool) {
	storedName, err := storedNameFromPath(storedPath)
	if err != nil {
		return nil, false
	}

	store.mu.RLock()
	defer store.mu.RUnlock()
	content, ok := store.files[storedName]
	if !ok {
		return nil, false
	}
	copied := make([]byte, len(content))
	copy(copied, content)
	return copied, true
}

func (store *MemoryFileStore) Len() int {
	store.mu.RLock()
	defer store.mu.RUnlock()
	return len(store.files)
}
