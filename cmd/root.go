// Package cmd defines and implements the CLI commands for the
// guidance harvester executable.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sanatan-artixio/regulatory-guidelines-wfs/internal/config"
	"github.com/sanatan-artixio/regulatory-guidelines-wfs/internal/logging"
	"github.com/sanatan-artixio/regulatory-guidelines-wfs/internal/session"
	"github.com/sanatan-artixio/regulatory-guidelines-wfs/internal/storage/postgres"
)

var cfgFile string

// appKeyType is the key for storing the application in the context.
type appKeyType string

const appKey appKeyType = "app"

// application bundles the services every command needs: configuration,
// logging, the database pool, and the stores built on it.
type application struct {
	cfg      config.Config
	logger   *zap.Logger
	pool     *pgxpool.Pool
	sessions *session.Manager
	docs     *postgres.DocumentStore
	features *postgres.FeatureStore
}

func (a *application) close() {
	if a.pool != nil {
		a.pool.Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// newApplication is the service factory. It is a variable so tests can
// replace it with a fake factory.
var newApplication = func(ctx context.Context, cfgPath string) (*application, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)

	pool, err := postgres.Connect(ctx, postgres.PoolConfig{
		DSN:      cfg.DB.DSN,
		MaxConns: int32(cfg.DB.MaxOpenConns),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	sessionStore, err := postgres.NewSessionStore(pool)
	if err != nil {
		return nil, err
	}
	docs, err := postgres.NewDocumentStore(pool)
	if err != nil {
		return nil, err
	}
	features, err := postgres.NewFeatureStore(pool)
	if err != nil {
		return nil, err
	}

	return &application{
		cfg:      cfg,
		logger:   logger,
		pool:     pool,
		sessions: session.NewManager(sessionStore, logger.Named("session")),
		docs:     docs,
		features: features,
	}, nil
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "guidance",
		Short: "Harvests FDA guidance documents and extracts regulatory features.",
		Long: `guidance crawls the FDA guidance document catalog, persists document
metadata and PDF attachments to Postgres, and runs LLM-based structured
feature extraction over the downloaded documents. Interrupted runs can
be resumed without re-downloading completed documents.`,

		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApplication(cmd.Context(), cfgFile)
			if err != nil {
				return fmt.Errorf("initialize services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, app))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if app, ok := cmd.Context().Value(appKey).(*application); ok && app != nil {
				app.close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newResumeCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newExtractCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

func resolveApp(ctx context.Context) (*application, error) {
	app, ok := ctx.Value(appKey).(*application)
	if !ok || app == nil {
		return nil, fmt.Errorf("application services not initialized")
	}
	return app, nil
}

// Execute is the main entry point. Commands run under a context that
// cancels on SIGINT/SIGTERM so interrupted runs finish in-flight work
// and persist their session state.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
