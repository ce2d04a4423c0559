package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Tier identifies a stage in the signing chain of custody.
type Tier string

const (
	TierUnsigned    Tier = "unsigned"
	TierPartySigned Tier = "signed"
	TierHOD         Tier = "hod"
	TierDean        Tier = "dean"
)

// ArtifactStore persists review documents on disk, addressed by
// (thesis, role, tier). Handles returned by Key are opaque relative paths
// suitable for storing on the thesis record.
type ArtifactStore struct {
	baseDir string
}

// NewArtifactStore ensures the base directory exists and returns a handle.
func NewArtifactStore(baseDir string) (*ArtifactStore, error) {
	if baseDir == "" {
		baseDir = "./artifacts"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifacts directory: %w", err)
	}
	return &ArtifactStore{baseDir: baseDir}, nil
}

// Key derives the storage handle for a thesis/role/tier combination.
func (s *ArtifactStore) Key(thesisID, role string, tier Tier) string {
	return filepath.Join(string(tier), fmt.Sprintf("%s_%s.pdf", thesisID, role))
}

// Save writes the given bytes under the provided handle.
func (s *ArtifactStore) Save(key string, data []byte) error {
	path := s.resolve(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("prepare artifact directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	return nil
}

// SaveStream copies from reader into the target handle.
func (s *ArtifactStore) SaveStream(key string, r io.Reader) error {
	path := s.resolve(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("prepare artifact directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create artifact: %w", err)
	}
	defer file.Close() //nolint:errcheck
	if _, err := io.Copy(file, r); err != nil {
		return fmt.Errorf("write artifact stream: %w", err)
	}
	return nil
}

// Copy duplicates an artifact into another handle.
func (s *ArtifactStore) Copy(srcKey, dstKey string) error {
	src, err := os.Open(s.resolve(srcKey))
	if err != nil {
		return fmt.Errorf("open source artifact: %w", err)
	}
	defer src.Close() //nolint:errcheck
	return s.SaveStream(dstKey, src)
}

// Open returns a read-only handle for the stored artifact.
func (s *ArtifactStore) Open(key string) (*os.File, error) {
	file, err := os.Open(s.resolve(key))
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	return file, nil
}

// Exists reports whether the artifact is present on disk.
func (s *ArtifactStore) Exists(key string) bool {
	if key == "" {
		return false
	}
	info, err := os.Stat(s.resolve(key))
	return err == nil && !info.IsDir()
}

// Delete removes a stored artifact if present.
func (s *ArtifactStore) Delete(key string) error {
	if key == "" {
		return nil
	}
	if err := os.Remove(s.resolve(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete artifact: %w", err)
	}
	return nil
}

// Path exposes the underlying absolute path.
func (s *ArtifactStore) Path(key string) string {
	return s.resolve(key)
}

func (s *ArtifactStore) resolve(key string) string {
	if filepath.IsAbs(key) {
		return key
	}
	return filepath.Join(s.baseDir, key)
}
