//go:build !gcp

package archive

import (
	"context"
	"fmt"

	"github.com/northstaraokeystone/trumpproof/pkg/config"
	"github.com/northstaraokeystone/trumpproof/pkg/crypto"
)

func newGCSStore(_ context.Context, _ config.ArchiveConfig, _ *crypto.DualHasher) (Store, error) {
	return nil, fmt.Errorf("GCS storage is not enabled in this build (use -tags gcp)")
}
