package service

import (
	"context"
	"time"

	"androidmirror/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxParallel bounds concurrent per-device package listings
const DefaultMaxParallel = 4

// InventorySource is the adb surface the builder needs
type InventorySource interface {
	ListDevices(ctx context.Context) ([]models.Device, error)
	ListPackages(ctx context.Context, deviceID string) ([]models.Application, error)
}

// CatalogBuilder produces a complete snapshot from one device listing plus
// one package listing per device.
type CatalogBuilder struct {
	source      InventorySource
	maxParallel int
	logger      zerolog.Logger
	now         func() time.Time
}

func NewCatalogBuilder(source InventorySource, maxParallel int, logger zerolog.Logger) *CatalogBuilder {
	if maxParallel < 1 {
		maxParallel = DefaultMaxParallel
	}
	return &CatalogBuilder{
		source:      source,
		maxParallel: maxParallel,
		logger:      logger,
		now:         time.Now,
	}
}

// Build runs a full refresh. It fails only when the device enumeration fails
// or ctx is canceled; a device whose packages cannot be listed is kept with an
// empty application list and a warning.
func (b *CatalogBuilder) Build(ctx context.Context) (*models.Snapshot, error) {
	devices, err := b.source.ListDevices(ctx)
	if err != nil {
		return nil, &RefreshError{Cause: err}
	}
	devices = b.dedupeDevices(devices)

	var g errgroup.Group
	g.SetLimit(b.maxParallel)

	for i := range devices {
		device := &devices[i] // each worker owns exactly one slot
		g.Go(func() error {
			apps, err := b.source.ListPackages(ctx, device.ID)
			if err != nil {
				b.logger.Warn().
					Err(err).
					Str("device", device.ID).
					Msg("Failed to list applications, keeping device with empty list")
				device.Applications = []models.Application{}
				device.Warning = err.Error()
				return nil
			}
			device.Applications = dedupeApplications(apps)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, &RefreshError{Cause: err}
	}

	snapshot := &models.Snapshot{
		ID:          uuid.NewString(),
		RefreshedAt: b.now(),
		Devices:     devices,
	}
	b.logger.Info().
		Str("snapshot", snapshot.ID).
		Int("devices", len(devices)).
		Msg("Catalog built")
	return snapshot, nil
}

// dedupeDevices keeps the first record for every id
func (b *CatalogBuilder) dedupeDevices(devices []models.Device) []models.Device {
	seen := make(map[string]bool, len(devices))
	out := make([]models.Device, 0, len(devices))
	for _, d := range devices {
		if seen[d.ID] {
			b.logger.Debug().Str("device", d.ID).Msg("Dropping duplicate device entry")
			continue
		}
		seen[d.ID] = true
		out = append(out, d)
	}
	return out
}

func dedupeApplications(apps []models.Application) []models.Application {
	seen := make(map[string]bool, len(apps))
	out := make([]models.Application, 0, len(apps))
	for _, app := range apps {
		if seen[app.PackageID] {
			continue
		}
		seen[app.PackageID] = true
		out = append(out, app)
	}
	return out
}
