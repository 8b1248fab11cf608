package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/acgallery/service/internal/config"
	"github.com/acgallery/service/internal/db"
	"github.com/acgallery/service/internal/logger"
)

const shutdownTimeout = 30 * time.Second

func newRootCmd() *cobra.Command {
	cfg := new(config.Config)

	root := &cobra.Command{
		Use:           "api",
		Short:         "Gymnastics competition photo gallery",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			*cfg = *config.Load()
			logger.Init(logger.Options{Env: cfg.AppEnv, Level: cfg.LogLevel, File: cfg.LogFile})
		},
	}
	root.AddCommand(newServeCmd(cfg), newMigrateCmd(cfg), newSweepCmd(cfg))
	return root
}

func newServeCmd(cfg *config.Config) *cobra.Command {
	var skipMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			if !skipMigrate {
				if err := db.Migrate(cfg.DatabaseURL); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			sched, err := startSweepSchedule(cfg, a)
			if err != nil {
				return err
			}
			if sched != nil {
				defer func() { <-sched.Stop().Done() }()
			}

			srv := &http.Server{
				Addr:         ":" + cfg.Port,
				Handler:      newRouter(a.routes()),
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 5 * time.Minute, // confirm and archive stream for a while
				IdleTimeout:  60 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info().Str("port", cfg.Port).Str("env", cfg.AppEnv).Msg("server listening")
				log.Info().Msgf("swagger UI at http://localhost:%s/swagger/", cfg.Port)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			log.Info().Msg("shutting down gracefully...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return err
			}
			log.Info().Msg("server stopped")
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "do not apply migrations on start")
	return cmd
}

func newMigrateCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(*cobra.Command, []string) error {
			return db.Migrate(cfg.DatabaseURL)
		},
	}
}

func newSweepCmd(cfg *config.Config) *cobra.Command {
	var maxAge time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete stored objects that no photo refers to",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			if cmd.Flags().Changed("max-age") {
				cfg.OrphanMaxAge = maxAge
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			rep, err := a.sweeper.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Printf("scanned %d objects, deleted %d (%s)\n",
				rep.Scanned, rep.Deleted, humanize.Bytes(uint64(rep.Bytes)))
			return nil
		},
	}
	cmd.Flags().DurationVar(&maxAge, "max-age", 24*time.Hour, "only delete objects older than this (default ORPHAN_MAX_AGE)")
	return cmd
}

// startSweepSchedule runs the orphan sweep on ORPHAN_SWEEP_SCHEDULE. It
// returns nil when no schedule is configured.
func startSweepSchedule(cfg *config.Config, a *app) (*cron.Cron, error) {
	if cfg.OrphanSweepSchedule == "" {
		return nil, nil
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err := c.AddFunc(cfg.OrphanSweepSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
		defer cancel()
		if _, err := a.sweeper.Sweep(ctx); err != nil {
			log.Error().Err(err).Msg("scheduled orphan sweep failed")
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	log.Info().Str("schedule", cfg.OrphanSweepSchedule).Msg("orphan sweep scheduled")
	return c, nil
}
