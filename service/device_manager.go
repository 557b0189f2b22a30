package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"androidmirror/models"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// SnapshotBuilder produces a fresh catalog snapshot
type SnapshotBuilder interface {
	Build(ctx context.Context) (*models.Snapshot, error)
}

const refreshKey = "refresh"

// errFlightAbandoned is returned by a build canceled because every caller
// waiting on it gave up.
var errFlightAbandoned = errors.New("refresh abandoned by all callers")

// DeviceManager owns the refresh lifecycle of the device catalog: at most one
// refresh runs at a time, success replaces the store, failure leaves it alone.
type DeviceManager struct {
	builder SnapshotBuilder
	store   *CatalogStore
	group   singleflight.Group
	logger  zerolog.Logger

	mu     sync.Mutex
	flight *refreshFlight
}

// refreshFlight is the build shared by concurrent callers. Its context is
// detached from any single caller and canceled once the last waiter leaves.
type refreshFlight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

func NewDeviceManager(builder SnapshotBuilder, store *CatalogStore, logger zerolog.Logger) *DeviceManager {
	return &DeviceManager{
		builder: builder,
		store:   store,
		logger:  logger,
	}
}

// RefreshCatalog rebuilds the catalog. Callers arriving while a refresh is in
// flight share its result instead of starting another one. A caller giving up
// only cancels the shared build when nobody else is waiting on it.
func (m *DeviceManager) RefreshCatalog(ctx context.Context) (*models.Snapshot, error) {
	for {
		snapshot, err := m.refreshOnce(ctx)
		if !errors.Is(err, errFlightAbandoned) {
			return snapshot, err
		}
		// joined a build that its other callers abandoned
		if ctx.Err() != nil {
			return nil, &RefreshError{Cause: ctx.Err()}
		}
	}
}

func (m *DeviceManager) refreshOnce(ctx context.Context) (*models.Snapshot, error) {
	m.mu.Lock()
	f := m.flight
	if f == nil {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &refreshFlight{ctx: fctx, cancel: cancel}
		m.flight = f
	}
	f.waiters++
	ch := m.group.DoChan(refreshKey, func() (interface{}, error) {
		return m.build(f)
	})
	m.mu.Unlock()

	select {
	case res := <-ch:
		m.leave(f)
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.Snapshot), nil
	case <-ctx.Done():
		m.leave(f)
		return nil, &RefreshError{Cause: ctx.Err()}
	}
}

func (m *DeviceManager) build(f *refreshFlight) (*models.Snapshot, error) {
	snapshot, err := m.builder.Build(f.ctx)

	m.mu.Lock()
	if m.flight == f {
		m.flight = nil
	}
	m.mu.Unlock()

	if err != nil {
		if f.ctx.Err() != nil {
			m.logger.Debug().Err(err).Msg("Catalog refresh abandoned")
			return nil, errFlightAbandoned
		}
		m.logger.Warn().Err(err).Msg("Catalog refresh failed, keeping previous snapshot")
		return nil, err
	}
	m.store.Replace(snapshot)
	return snapshot, nil
}

// leave drops one waiter; the last one out cancels the build
func (m *DeviceManager) leave(f *refreshFlight) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if m.flight == f {
		m.flight = nil
	}
}

// CurrentCatalog returns the latest completed snapshot without blocking
func (m *DeviceManager) CurrentCatalog() *models.Snapshot {
	return m.store.Get()
}

// GetDevice returns a single device from the current catalog
func (m *DeviceManager) GetDevice(id string) (models.Device, error) {
	device, ok := m.store.Get().Device(id)
	if !ok {
		return models.Device{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	return device, nil
}

// GetApplication returns a package installed on a device in the current catalog
func (m *DeviceManager) GetApplication(deviceID, packageID string) (models.Application, error) {
	device, err := m.GetDevice(deviceID)
	if err != nil {
		return models.Application{}, err
	}
	app, ok := device.Application(packageID)
	if !ok {
		return models.Application{}, fmt.Errorf("%w: %s on %s", ErrApplicationNotFound, packageID, deviceID)
	}
	return app, nil
}

// Subscribe forwards to the store
func (m *DeviceManager) Subscribe(fn func(*models.Snapshot)) func() {
	return m.store.Subscribe(fn)
}

// StartAutoRefresh refreshes on every tick until ctx is done. A zero
// interval disables it.
func (m *DeviceManager) StartAutoRefresh(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := m.RefreshCatalog(ctx); err != nil && ctx.Err() == nil {
					m.logger.Warn().Err(err).Msg("Scheduled refresh failed")
				}
			}
		}
	}()
}
