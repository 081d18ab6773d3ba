package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/google/uuid"
)

// PublicPrefix is the URL path segment under which stored attachments are served.
const PublicPrefix = "uploads"

const (
	fallbackFileName  = "attachment"
	maxStoredNameSize = 180
	maxExtensionSize  = 16
	createAttempts    = 3
)

var ErrInvalidStoredPath = errors.New("invalid stored attachment path")

// DiskFileStore writes attachments into a single directory and hands back
// "uploads/<stored name>" references.
type DiskFileStore struct {
	dir string
	now func() time.Time
}

func NewDiskFileStore(dir string) (*DiskFileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("upload directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &DiskFileStore{dir: dir, now: time.Now}, nil
}

func (store *DiskFileStore) Dir() string {
	return store.dir
}

func (store *DiskFileStore) Store(ctx context.Context, name string, content []byte) (string, error) {
	var lastErr error
	for attempt := 0; attempt < createAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		storedName := StoredName(store.now(), name)
		err := writeExclusive(filepath.Join(store.dir, storedName), content)
		if err == nil {
			return path.Join(PublicPrefix, storedName), nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("write attachment %s: %w", storedName, err)
		}
		lastErr = err
	}
	return "", fmt.Errorf("allocate attachment name: %w", lastErr)
}

func (store *DiskFileStore) Delete(_ context.Context, storedPath string) error {
	storedName, err := storedNameFromPath(storedPath)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(store.dir, storedName)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove attachment %s: %w", storedName, err)
	}
	return nil
}

// List returns the stored references currently in the upload directory.
func (store *DiskFileStore) List() ([]string, error) {
	entries, err := os.ReadDir(store.dir)
	if err != nil {
		return nil, fmt.Errorf("read upload directory: %w", err)
	}
	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			paths = append(paths, path.Join(PublicPrefix, entry.Name()))
		}
	}
	return paths, nil
}

func writeExclusive(target string, content []byte) error {
	file, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}

	if _, err := file.Write(content); err != nil {
		_ = file.Close()
		_ = os.Remove(target)
		return err
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		_ = os.Remove(target)
		return err
	}
	return file.Close()
}

// StoredName builds "<unix millis>-<8 hex>-<sanitized original name>".
// The random segment keeps names unique when two uploads with the same
// original name land in the same millisecond.
func StoredName(now time.Time, originalName string) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%d-%s-%s", now.UnixMilli(), random, SafeName(originalName))
}

// SafeName reduces an uploaded filename to a lowercase ASCII name. The
// extension is sanitized on its own so it survives a stem that sanitizes
// to nothing.
func SafeName(originalName string) string {
	base := filepath.Base(strings.ReplaceAll(strings.TrimSpace(originalName), `\`, "/"))

	stem := base
	extension := safeExtension(filepath.Ext(base))
	if extension != "" {
		stem = strings.TrimSuffix(base, filepath.Ext(base))
	}
	stem = strings.Trim(govalidator.SafeFileName(stem), ".-")
	if stem == "" {
		stem = fallbackFileName
	}
	if len(stem)+len(extension) > maxStoredNameSize {
		stem = strings.TrimRight(stem[:maxStoredNameSize-len(extension)], ".-")
	}
	return stem + extension
}

func safeExtension(rawExtension string) string {
	extension := govalidator.SafeFileName(rawExtension)
	if len(extension) < 2 || len(extension) > maxExtensionSize || extension[0] != '.' {
		return ""
	}
	if strings.Trim(extension[1:], ".-") == "" {
		return ""
	}
	return extension
}

func storedNameFromPath(storedPath string) (string, error) {
	cleaned := path.Clean("/" + strings.TrimSpace(storedPath))
	prefix := "/" + PublicPrefix + "/"
	if !strings.HasPrefix(cleaned, prefix) {
		return "", fmt.Errorf("%w: %q", ErrInvalidStoredPath, storedPath)
	}
	storedName := strings.TrimPrefix(cleaned, prefix)
	if storedName == "" || strings.Contains(storedName, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidStoredPath, storedPath)
	}
	return storedName, nil
}
