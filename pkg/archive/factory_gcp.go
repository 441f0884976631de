//go:build gcp

package archive

import (
	"context"
	"fmt"

	"github.com/northstaraokeystone/trumpproof/pkg/config"
	"github.com/northstaraokeystone/trumpproof/pkg/crypto"
)

func newGCSStore(ctx context.Context, cfg config.ArchiveConfig, h *crypto.DualHasher) (Store, error) {
	if cfg.GCSBucket == "" {
		return nil, fmt.Errorf("ARCHIVE_GCS_BUCKET is required for GCS storage")
	}
	return NewGCSStore(ctx, GCSStoreConfig{
		Bucket: cfg.GCSBucket,
		Prefix: cfg.GCSPrefix,
	}, h)
}
