package source

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
)

// ArchiveStore keeps an immutable copy of every export it sees, named by the
// SHA-256 of its content.
type ArchiveStore struct {
	dir string
}

func NewArchiveStore(dir string) *ArchiveStore {
	return &ArchiveStore{dir: dir}
}

// Store writes the raw copy unless one with the same hash already exists and
// returns the hash and archived path.
func (s *ArchiveStore) Store(file RawFile) (string, string, error) {
	sum := sha256.Sum256(file.Raw)
	hash := hex.EncodeToString(sum[:])

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", "", err
	}

	ext := strings.ToLower(filepath.Ext(file.Name))
	rawPath := filepath.Join(s.dir, hash+ext)
	if _, err := os.Stat(rawPath); os.IsNotExist(err) {
		if err := os.WriteFile(rawPath, file.Raw, 0o644); err != nil {
			return "", "", err
		}
	}
	return hash, rawPath, nil
}
