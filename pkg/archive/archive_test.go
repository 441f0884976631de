package archive

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northstaraokeystone/trumpproof/pkg/config"
	"github.com/northstaraokeystone/trumpproof/pkg/crypto"
	"github.com/northstaraokeystone/trumpproof/pkg/receipts"
)

func newFileStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "segments"), crypto.NewDualHasher(crypto.SecondaryBLAKE3))
	require.NoError(t, err)
	return s
}

func TestOpen_DefaultIsFileStore(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(context.Background(), config.ArchiveConfig{Dir: dir}, crypto.NewDualHasher(""))
	require.NoError(t, err)

	fs, ok := s.(*FileStore)
	require.True(t, ok, "expected *FileStore, got %T", s)
	assert.Equal(t, dir, fs.baseDir)
}

func TestOpen_S3MissingBucket(t *testing.T) {
	_, err := Open(context.Background(), config.ArchiveConfig{Kind: "s3"}, crypto.NewDualHasher(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ARCHIVE_S3_BUCKET is required")
}

func TestOpen_GCSMissingBucket(t *testing.T) {
	_, err := Open(context.Background(), config.ArchiveConfig{Kind: "gcs"}, crypto.NewDualHasher(""))
	require.Error(t, err)
	// Builds without the gcp tag report the backend as disabled instead.
	if strings.Contains(err.Error(), "GCS storage is not enabled") {
		return
	}
	assert.Contains(t, err.Error(), "ARCHIVE_GCS_BUCKET is required")
}

func TestOpen_UnsupportedType(t *testing.T) {
	_, err := Open(context.Background(), config.ArchiveConfig{Kind: "azure"}, crypto.NewDualHasher(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported archive storage type")
}

func TestFileStore_RoundTrip(t *testing.T) {
	s := newFileStore(t)
	ctx := context.Background()
	data := []byte(`{"receipt_type":"tariff_ingest"}` + "\n")

	hash, err := s.Put(ctx, data)
	require.NoError(t, err)
	assert.True(t, crypto.Valid(hash))
	assert.Equal(t, s.hasher.Sum(data), hash)

	got, err := s.Get(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	ok, err := s.Exists(ctx, hash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFileStore_Idempotent(t *testing.T) {
	s := newFileStore(t)
	ctx := context.Background()

	h1, err := s.Put(ctx, []byte("segment"))
	require.NoError(t, err)
	h2, err := s.Put(ctx, []byte("segment"))
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	entries, err := os.ReadDir(s.baseDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileStore_GetNotFound(t *testing.T) {
	s := newFileStore(t)
	missing := s.hasher.SumString("never stored")

	_, err := s.Get(context.Background(), missing)
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := s.Exists(context.Background(), missing)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileStore_InvalidHash(t *testing.T) {
	s := newFileStore(t)

	_, err := s.Get(context.Background(), "sha256:abc")
	assert.ErrorIs(t, err, crypto.ErrMalformedHash)

	err = s.Delete(context.Background(), "../../etc/passwd")
	assert.ErrorIs(t, err, crypto.ErrMalformedHash)
}

func TestFileStore_Delete(t *testing.T) {
	s := newFileStore(t)
	ctx := context.Background()

	hash, err := s.Put(ctx, []byte("to delete"))
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, hash))
	require.NoError(t, s.Delete(ctx, hash))

	_, err = s.Get(ctx, hash)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEncodeSegment(t *testing.T) {
	batch := []*receipts.Receipt{
		{Type: "a", TS: "2025-01-01T00:00:00.000000Z", TenantID: "t", PayloadHash: "h1", Fields: map[string]any{"x": 1.0}},
		{Type: "b", TS: "2025-01-01T00:00:01.000000Z", TenantID: "t", PayloadHash: "h2", Fields: map[string]any{}},
	}

	data, err := EncodeSegment(batch)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], `{"receipt_type":"a"`))
	assert.True(t, strings.HasPrefix(lines[1], `{"receipt_type":"b"`))

	empty, err := EncodeSegment(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
