package archive

import (
	"context"
	"fmt"
	"strings"

	"github.com/northstaraokeystone/trumpproof/pkg/config"
	"github.com/northstaraokeystone/trumpproof/pkg/crypto"
)

// StoreType names an archive backend.
type StoreType string

const (
	StoreTypeFS  StoreType = "fs"
	StoreTypeS3  StoreType = "s3"
	StoreTypeGCS StoreType = "gcs"
)

// Open builds the archive selected by cfg. Segment addresses are computed
// with h, which should be the hasher of the emitter that sealed them.
func Open(ctx context.Context, cfg config.ArchiveConfig, h *crypto.DualHasher) (Store, error) {
	kind := StoreType(strings.ToLower(strings.TrimSpace(cfg.Kind)))
	if kind == "" {
		kind = StoreTypeFS
	}

	switch kind {
	case StoreTypeFS:
		dir := cfg.Dir
		if dir == "" {
			dir = "data/segments"
		}
		return NewFileStore(dir, h)
	case StoreTypeS3:
		return newS3Store(ctx, cfg, h)
	case StoreTypeGCS:
		return newGCSStore(ctx, cfg, h)
	default:
		return nil, fmt.Errorf("unsupported archive storage type: %s", kind)
	}
}

func newS3Store(ctx context.Context, cfg config.ArchiveConfig, h *crypto.DualHasher) (Store, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("ARCHIVE_S3_BUCKET is required for S3 storage")
	}
	region := cfg.S3Region
	if region == "" {
		region = "us-east-1"
	}
	return NewS3Store(ctx, S3StoreConfig{
		Bucket:   cfg.S3Bucket,
		Region:   region,
		Endpoint: cfg.S3Endpoint,
		Prefix:   cfg.S3Prefix,
	}, h)
}
