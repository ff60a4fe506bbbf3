package mirror

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/stanwood/contentful-proxy/pkg/logging"
)

// Cleaner removes mirrored assets past their retention.
type Cleaner struct {
	objects   ObjectStore
	records   RecordStore
	redirects RedirectCache
	now       func() time.Time
	logger    zerolog.Logger
}

// NewCleaner creates a cleaner over the same stores the mirror serves from.
func NewCleaner(objects ObjectStore, records RecordStore, redirects RedirectCache) *Cleaner {
	return &Cleaner{
		objects:   objects,
		records:   records,
		redirects: redirects,
		now:       time.Now,
		logger:    logging.NewLogger("mirror-cleaner"),
	}
}

// RemoveOlderThan deletes every mirrored asset created more than retention
// ago, removing the record, the stored object and the cached redirect.
// A failing asset is logged and skipped so one bad entry cannot stall the
// whole sweep. Returns the number of assets fully removed.
func (c *Cleaner) RemoveOlderThan(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := c.now().UTC().Add(-retention)

	c.logger.Info().Time("cutoff", cutoff).Msg("Removing expired mirrored files")

	records, err := c.records.ListOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, record := range records {
		logger := c.logger.With().Str("file_url", record.RemoteURL).Logger()

		if err := c.records.Delete(ctx, record.RemoteURL); err != nil {
			logger.Error().Err(err).Msg("Record delete failed")
			continue
		}
		if err := c.objects.Delete(ctx, record.ObjectName); err != nil {
			logger.Error().Err(err).Msg("Object delete failed")
			continue
		}
		if record.RedirectKey != "" {
			if err := c.redirects.Delete(ctx, record.RedirectKey); err != nil {
				logger.Warn().Err(err).Msg("Redirect delete failed")
			}
		}

		logger.Debug().Msg("Mirrored file removed")
		removed++
	}

	return removed, nil
}
