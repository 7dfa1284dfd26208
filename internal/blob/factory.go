package blob

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/bulkindex/internal/config"
)

// Open selects a Store from the archive settings. It returns nil, nil when
// archiving is disabled.
func Open(ctx context.Context, cfg config.ArchiveConfig) (Store, error) {
	switch Driver(strings.ToLower(cfg.Driver)) {
	case DriverNone, "":
		return nil, nil
	case DriverFilesystem:
		return NewFilesystem(cfg.FSRoot)
	case DriverS3:
		return NewS3(ctx, S3Config{
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
		})
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown archive driver %s", cfg.Driver)
	}
}
