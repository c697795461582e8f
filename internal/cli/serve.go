package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/stancedb/internal/server"
)

var serveAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve the stance lookup API:
  GET  /api/search?q=      substring search over approved records
  POST /api/search-ai      resolve one name, researching it when unknown
  GET  /api/featured       featured records
  GET  /api/top            top-ranked pro records
  GET  /healthz            store health
  GET  /metrics            Prometheus metrics

Example:
  stancedb serve
  stancedb serve --addr :9090
  STANCEDB_STORE_DRIVER=mongo STANCEDB_STORE_MONGO_URI=mongodb://localhost:27017 stancedb serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("close store failed", "error", err)
		}
	}()

	if verbose {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	handlers := server.NewHandlers(a.coordinator, a.lookup, a.store)
	router := server.NewRouter(handlers, a.metrics, logger)

	logger.Info("starting stancedb",
		"version", Version,
		"addr", cfg.Server.Addr,
		"store", cfg.Store.Driver,
		"provider", cfg.LLM.Provider)

	if err := server.New(cfg.Server, router, logger).Run(ctx); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	logger.Info("stancedb stopped")
	return nil
}
