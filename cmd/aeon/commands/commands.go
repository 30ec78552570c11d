package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/aeonplan/core/internal/adapters/broadcast"
	httpHandlers "github.com/aeonplan/core/internal/adapters/http"
	"github.com/aeonplan/core/internal/adapters/repository"
	"github.com/aeonplan/core/internal/application/coordinator"
	"github.com/aeonplan/core/internal/application/workspace"
	"github.com/aeonplan/core/internal/domain/entities"
	"github.com/aeonplan/core/internal/domain/timeline"
	"github.com/aeonplan/core/internal/infrastructure/config"
	"github.com/aeonplan/core/internal/infrastructure/database"
	"github.com/aeonplan/core/internal/infrastructure/logger"
	"github.com/aeonplan/core/internal/infrastructure/server"
	"github.com/aeonplan/core/internal/ports"
)

// Set at build time with -ldflags "-X github.com/aeonplan/core/cmd/aeon/commands.version=..."
var (
	version   = "dev"
	gitCommit = "none"
	buildDate = "unknown"
)

const shutdownTimeout = 30 * time.Second

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long:  "Start the HTTP server that holds project workspaces in memory and syncs them to Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

// NewMigrateCommand creates the migrate command with subcommands
func NewMigrateCommand() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
		Long:  "Manage database migrations (up, down, version)",
	}

	for _, direction := range []string{"up", "down"} {
		direction := direction
		migrateCmd.AddCommand(&cobra.Command{
			Use:   direction,
			Short: fmt.Sprintf("Run all %s migrations", direction),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runMigration(cmd, direction)
			},
		})
	}

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print current migration version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showMigrationVersion(cmd)
		},
	})

	return migrateCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Aeon %s\n", version)
			fmt.Fprintf(out, "Build Date: %s\n", buildDate)
			fmt.Fprintf(out, "Git Commit: %s\n", gitCommit)
		},
	}
}

// projectionFromConfig builds the date/pixel projection from the timeline section
func projectionFromConfig(cfg config.TimelineConfig) (*timeline.Projection, error) {
	weekStart, err := cfg.Weekday()
	if err != nil {
		return nil, err
	}
	return timeline.New(timeline.Config{
		DayWidth:    cfg.DayWidth,
		WeekWidth:   cfg.WeekWidth,
		MonthWidth:  cfg.MonthWidth,
		RowHeight:   cfg.RowHeight,
		MinBarWidth: cfg.MinBarWidth,
		Gutter:      cfg.Gutter,
		WeekStart:   weekStart,
		MaxColumns:  cfg.MaxColumns,
	})
}

func runServer(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer appLogger.Sync()

	db, err := database.New(cfg.Database)
	if err != nil {
		appLogger.Errorw("Failed to connect to database", "error", err)
		return err
	}
	defer db.Close()

	projection, err := projectionFromConfig(cfg.Timeline)
	if err != nil {
		return fmt.Errorf("timeline configuration: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	coord := coordinator.New(coordinator.Config{CallTimeout: cfg.Sync.CallTimeout}, appLogger, coordinator.NewMetrics(reg))

	checks := map[string]server.HealthChecker{"database": db}

	var (
		publisher ports.SnapshotPublisher
		snapshots httpHandlers.SnapshotReader
		bus       *broadcast.Publisher
	)
	if cfg.Redis.Enabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.GetAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		bus = broadcast.NewPublisher(rdb, broadcast.Config{
			ChannelPrefix: cfg.Redis.ChannelPrefix,
			TTL:           cfg.Redis.SnapshotTTL,
			QueueSize:     cfg.Redis.QueueSize,
		}, appLogger, reg)
		publisher = bus
		snapshots = httpHandlers.SnapshotReaderFunc(func(ctx context.Context, projectID uuid.UUID, kind ports.SnapshotKind) (any, error) {
			return bus.Latest(ctx, projectID, kind)
		})
		checks["redis"] = server.HealthCheckFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
		appLogger.Infow("Snapshot fan-out enabled", "addr", cfg.Redis.GetAddr(), "prefix", cfg.Redis.ChannelPrefix)
	}

	registry := workspace.NewRegistry(repository.New(db), projection, coord, appLogger, workspace.Config{
		LoadTimeout:  cfg.Workspace.LoadTimeout,
		DefaultScale: entities.TimeScale(cfg.Workspace.DefaultScale),
	}, publisher)

	srv, err := server.New(cfg, server.Deps{
		Workspaces: registry,
		Snapshots:  snapshots,
		Registry:   reg,
		Checks:     checks,
		Stats:      map[string]server.StatsProvider{"database": db},
	}, appLogger)
	if err != nil {
		return fmt.Errorf("initialize server: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	appLogger.Infow("Starting Aeon server",
		"port", cfg.Server.Port,
		"environment", cfg.App.Environment,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port))
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Errorw("Server failed", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Errorw("HTTP shutdown failed", "error", err)
	}
	// waits for in-flight persistence calls
	if err := registry.Close(shutdownCtx); err != nil {
		appLogger.Errorw("Sync coordinator did not drain", "error", err)
	}
	if bus != nil {
		if err := bus.Close(shutdownCtx); err != nil {
			appLogger.Errorw("Snapshot publisher did not drain", "error", err)
		}
	}
	appLogger.Info("Server stopped")
	return nil
}

func openDatabase() (*database.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	db, err := database.New(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, nil
}

func runMigration(cmd *cobra.Command, direction string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	changed, err := db.Migrate(direction)
	if err != nil {
		return err
	}
	if !changed {
		fmt.Fprintln(cmd.OutOrStdout(), "No migrations to run")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Migration %s completed successfully\n", direction)
	return nil
}

func showMigrationVersion(cmd *cobra.Command) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	m, err := db.Migrator()
	if err != nil {
		return err
	}
	v, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("get migration version: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Current migration version: %d\n", v)
	fmt.Fprintf(cmd.OutOrStdout(), "Dirty: %t\n", dirty)
	return nil
}
