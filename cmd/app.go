package cmd

import (
	"context"
	"database/sql"
	"fmt"

	"androidmirror/adb"
	"androidmirror/config"
	"androidmirror/logger"
	"androidmirror/models"
	"androidmirror/service"
)

// app holds the wired components shared by the commands
type app struct {
	cfg      *config.Config
	runner   *adb.ExecRunner
	client   *adb.ADBClient
	manager  *service.DeviceManager
	db       *sql.DB
	settings *service.SettingsStore
	launcher *service.MirrorLauncher
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	runner := adb.NewExecRunner(cfg.ADB.SearchPath,
		adb.WithDefaultTimeout(cfg.ADB.CommandTimeout),
		adb.WithLogger(logger.WithComponent("runner")),
	)

	client := adb.NewADBClient(runner, cfg.ADB.Executable, logger.WithComponent("adb"))
	for k, v := range cfg.ADB.Env {
		client.Env[k] = v
	}

	builder := service.NewCatalogBuilder(client, cfg.Catalog.MaxParallel, logger.WithComponent("catalog"))
	manager := service.NewDeviceManager(builder, service.NewCatalogStore(), logger.WithComponent("devices"))

	db, err := config.OpenDatabase(ctx, cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	settings := service.NewSettingsStore(db, models.DefaultMirrorSettings())

	launcher := service.NewMirrorLauncher(runner, cfg.Scrcpy.Executable, manager, settings, logger.WithComponent("mirror"))
	for k, v := range cfg.ADB.Env {
		launcher.Env[k] = v
	}
	if adbPath, err := runner.Resolve(cfg.ADB.Executable); err == nil {
		launcher.Env["ADB"] = adbPath
	}

	return &app{
		cfg:      cfg,
		runner:   runner,
		client:   client,
		manager:  manager,
		db:       db,
		settings: settings,
		launcher: launcher,
	}, nil
}

// refresh builds the catalog once and returns it
func (a *app) refresh(ctx context.Context) (*models.Snapshot, error) {
	snapshot, err := a.manager.RefreshCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh devices: %w", err)
	}
	return snapshot, nil
}

func (a *app) Close() {
	a.launcher.StopAll()
	if err := a.db.Close(); err != nil {
		logger.Warn().Err(err).Msg("Failed to close database")
	}
	_ = logger.Close()
}
