// Package archive is a content-addressed store for sealed receipt segments.
// A segment is the JSONL encoding of a receipt batch and is addressed by its
// dual hash, so an anchor receipt's segment_hash names exactly one object.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/northstaraokeystone/trumpproof/pkg/crypto"
	"github.com/northstaraokeystone/trumpproof/pkg/receipts"
)

// ErrNotFound is returned when no segment exists for a hash.
var ErrNotFound = errors.New("archive: segment not found")

// Store persists segments by content hash.
type Store interface {
	// Put persists data and returns its dual hash.
	Put(ctx context.Context, data []byte) (string, error)
	// Get retrieves a segment by its dual hash.
	Get(ctx context.Context, hash string) ([]byte, error)
	// Exists checks whether a segment is stored.
	Exists(ctx context.Context, hash string) (bool, error)
	// Delete removes a segment. Deleting a missing segment is not an error.
	Delete(ctx context.Context, hash string) error
}

// EncodeSegment renders receipts as JSONL, one receipt per line.
func EncodeSegment(batch []*receipts.Receipt) ([]byte, error) {
	var buf bytes.Buffer
	for i, r := range batch {
		line, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("archive: encode receipt %d: %w", i, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// objectName maps a dual hash to the object name used by every backend.
func objectName(hash string) (string, error) {
	primary, secondary, err := crypto.Split(hash)
	if err != nil {
		return "", fmt.Errorf("archive: %w", err)
	}
	return primary + "-" + secondary + ".jsonl", nil
}

// FileStore is a filesystem-backed Store.
type FileStore struct {
	baseDir string
	hasher  *crypto.DualHasher
	mu      sync.RWMutex
}

// NewFileStore creates a segment store rooted at baseDir.
func NewFileStore(baseDir string, h *crypto.DualHasher) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to ensure archive dir: %w", err)
	}
	return &FileStore{baseDir: baseDir, hasher: h}, nil
}

func (s *FileStore) Put(_ context.Context, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash := s.hasher.Sum(data)
	name, err := objectName(hash)
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.baseDir, name)

	if _, err := os.Stat(path); err == nil {
		return hash, nil
	}

	// Write to temp, then rename.
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write segment: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return "", fmt.Errorf("failed to commit segment: %w", err)
	}
	return hash, nil
}

func (s *FileStore) Get(_ context.Context, hash string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	name, err := objectName(hash)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.baseDir, name)) //nolint:gosec // name is derived from validated hex
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, hash)
		}
		return nil, err
	}
	return data, nil
}

func (s *FileStore) Exists(_ context.Context, hash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	name, err := objectName(hash)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(filepath.Join(s.baseDir, name))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (s *FileStore) Delete(_ context.Context, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name, err := objectName(hash)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.baseDir, name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete segment: %w", err)
	}
	return nil
}
