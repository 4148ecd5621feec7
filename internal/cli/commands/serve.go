package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/metabridge/internal/api"
	"github.com/conduit-lang/metabridge/internal/config"
	"github.com/conduit-lang/metabridge/internal/events"
	"github.com/conduit-lang/metabridge/internal/logging"
)

var (
	servePort            int
	serveShutdownTimeout time.Duration
)

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the metadata collection over HTTP",
		Long: `Open the native store and type registry named in the config and serve the
metadata collection's REST API. Refreshed reference copies are pushed to
websocket subscribers on /events.`,
		RunE: runServe,
	}

	cmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (overrides server.port)")
	cmd.Flags().DurationVar(&serveShutdownTimeout, "shutdown-timeout", 10*time.Second, "Time allowed for in-flight requests on shutdown")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := events.NewHub(ctx, logger)
	hub.Start()
	defer hub.Shutdown()

	mc, release, err := openCollection(ctx, cfg, hub, logger)
	if err != nil {
		return err
	}
	defer release()

	limiter, closeLimiter, err := openLimiter(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLimiter() //nolint:errcheck

	server := api.New(mc, api.Options{
		JWTSecret: cfg.Auth.JWTSecret,
		Users:     cfg.Auth.Users,
		Hub:       hub,
		Limiter:   limiter,
	}, logger)

	successColor := color.New(color.FgGreen, color.Bold)
	infoColor := color.New(color.FgCyan)
	successColor.Fprintf(cmd.OutOrStdout(), "Serving %s\n", mc.MetadataCollectionName())
	infoColor.Fprintf(cmd.OutOrStdout(), "  collection id: %s\n", mc.CollectionID())
	infoColor.Fprintf(cmd.OutOrStdout(), "  listening on:  http://%s\n", cfg.Addr())

	logger.Info("starting server",
		zap.String("addr", cfg.Addr()),
		zap.String("store", cfg.Store.Driver),
		zap.Bool("shared_registry", cfg.Registry.RedisAddr != ""),
		zap.Bool("jwt", cfg.Auth.JWTSecret != ""),
		zap.Int("basic_auth_users", len(cfg.Auth.Users)),
		zap.Int("rate_limit", cfg.Server.RateLimit),
	)
	if err := server.ListenAndServe(ctx, cfg.Addr(), serveShutdownTimeout); err != nil && err != context.Canceled {
		return err
	}
	logger.Info("server stopped")
	return nil
}
