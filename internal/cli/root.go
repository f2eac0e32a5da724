// Package cli implements librisctl, the administrative command line for a
// Libris data directory.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/librisapp/libris-server/internal/cache"
	"github.com/librisapp/libris-server/internal/config"
	"github.com/librisapp/libris-server/internal/logger"
	"github.com/librisapp/libris-server/internal/recommend"
	"github.com/librisapp/libris-server/internal/store/sqlite"
)

// app carries state shared by every subcommand. Commands that touch the
// database call open; the root command closes whatever was opened.
type app struct {
	cfg   *config.Config
	log   *logger.Logger
	store *sqlite.Store
	cache cache.RecommendationCache

	dataPath string
	dbPath   string
	envFile  string
	noColor  bool
	verbose  bool
}

// NewRootCmd builds the librisctl command tree.
func NewRootCmd(version string) *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "librisctl",
		Short: "Administer a Libris catalog",
		Long: `librisctl works directly on a Libris data directory: it loads similarity
edges, reports catalog statistics and rebuilds the search index.

Settings come from flags, then the same environment variables and .env file
the server reads.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if a.noColor {
				color.NoColor = true
			}
			return a.loadConfig(cmd.ErrOrStderr())
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.close()
		},
	}

	root.PersistentFlags().StringVar(&a.dataPath, "data-path", "", "Base data directory (default: ~/Libris)")
	root.PersistentFlags().StringVar(&a.dbPath, "db-path", "", "SQLite database file (default: {data-path}/libris.db)")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "Path to .env file")
	root.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "Disable colored output")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Log at debug level")

	root.AddCommand(
		newImportCmd(a),
		newStatsCmd(a),
		newImportsCmd(a),
		newReindexCmd(a),
		newRecommendCmd(a),
	)
	return root
}

// Execute runs librisctl and exits non-zero on failure.
func Execute(version string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd(version).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		stop()
		os.Exit(1)
	}
}

func (a *app) loadConfig(logOut io.Writer) error {
	args := []string{"-env-file", a.envFile}
	if a.dataPath != "" {
		args = append(args, "-data-path", a.dataPath)
	}
	if a.dbPath != "" {
		args = append(args, "-db-path", a.dbPath)
	}
	cfg, err := config.Load(args)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a.cfg = cfg

	level := "warn"
	if a.verbose {
		level = "debug"
	}
	a.log = logger.New(logger.Config{
		Writer:      logOut,
		Level:       logger.ParseLevel(level),
		Environment: cfg.App.Environment,
	})
	return nil
}

// open connects to the database and, when enabled, the recommendation cache.
func (a *app) open() error {
	if a.store != nil {
		return nil
	}
	st, err := sqlite.Open(a.cfg.Data.DatabasePath, a.log.WithComponent("store").Logger)
	if err != nil {
		return fmt.Errorf("opening database %s: %w", a.cfg.Data.DatabasePath, err)
	}
	a.store = st

	a.cache = cache.Noop{}
	if a.cfg.Redis.Enabled {
		a.cache = cache.NewRedis(cache.RedisOptions{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
			TTL:      a.cfg.Redis.TTL,
		}, a.log.WithComponent("cache").Logger)
	}
	return nil
}

// engine returns a recommendation engine sharing the server's cache, so
// invalidations issued here reach running servers.
func (a *app) engine() *recommend.Engine {
	return recommend.NewEngine(a.store, a.cache, recommend.Options{
		TopK:     a.cfg.Recommend.TopK,
		Strategy: recommend.Strategy(a.cfg.Recommend.Strategy),
	}, a.log.WithComponent("recommend").Logger)
}

func (a *app) close() error {
	var errs []error
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
		a.cache = nil
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
		a.store = nil
	}
	return errors.Join(errs...)
}
