package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"androidmirror/api"
	"androidmirror/logger"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the `serve` command
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().String("addr", "", "Listen address (overrides http.addr)")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.HTTP.Addr = addr
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		hub := api.NewWebSocketHub(logger.WithComponent("ws"))
		go hub.Run(ctx)
		unsubscribe := a.manager.Subscribe(hub.PublishCatalog)
		defer unsubscribe()

		if !GetOptions(cmd).Verbose {
			gin.SetMode(gin.ReleaseMode)
		}
		router := gin.New()
		router.Use(gin.Recovery(), api.RequestLogger(logger.WithComponent("http")))
		api.SetupRoutes(router, api.Services{
			Devices:     a.manager,
			Launcher:    a.launcher,
			Settings:    a.settings,
			Hub:         hub,
			ScanLimiter: rate.NewLimiter(rate.Limit(cfg.HTTP.ScanRatePerSec), cfg.HTTP.ScanBurst),
		})

		srv := &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// first catalog in the background so the server is reachable at once
		go func() {
			if _, err := a.refresh(ctx); err != nil && ctx.Err() == nil {
				logger.Warn().Err(err).Msg("Initial device scan failed")
			}
		}()
		a.manager.StartAutoRefresh(ctx, cfg.Catalog.AutoRefresh)

		errCh := make(chan error, 1)
		go func() {
			logger.Info().Str("addr", cfg.HTTP.Addr).Msg("Server starting")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err, ok := <-errCh:
			if ok {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		logger.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}

	return cmd
}
