// Package cli implements the calepin command tree. Commands open the local
// store on demand, wire the sync driver against the configured server, and
// print plain text for humans; diagnostics go to the zerolog logger.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/calepin/calepin/internal/client/config"
	"github.com/calepin/calepin/internal/client/store"
	"github.com/calepin/calepin/internal/client/syncer"
	"github.com/calepin/calepin/internal/client/transport"
	"github.com/calepin/calepin/internal/model"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	version = "0.1.0"
	cfg     *config.Config
)

// SetVersion sets the version string baked in at build time.
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

var rootCmd = &cobra.Command{
	Use:   "calepin",
	Short: "Workspace-scoped notes with server sync",
	Long: `calepin keeps notes, folders, tags and snapshots in a local SQLite
database and syncs them with a central server. Edits are tracked offline and
pushed in one batch; conflicting edits fork into suffixed copies instead of
silently losing either side.`,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		setupLogging(cfg)
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Console output stays human readable; the rotating file keeps JSON
	// for later digging.
	var w io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	if cfg.LogFile != "" {
		w = zerolog.MultiLevelWriter(w, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		})
	}
	log.Logger = zerolog.New(w).With().Timestamp().Str("service", "calepin").Logger()
}

// openStore opens the local database, creating it on first run.
func openStore() (*store.Store, error) {
	st, err := store.Open(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open local store at %s: %w", cfg.DBPath(), err)
	}
	return st, nil
}

// newTransport builds the HTTP client for the configured server. Token
// refresh goes through the server's refresh grant and rotations persist
// locally.
func newTransport(st *store.Store) *transport.Client {
	tokens := &syncer.StoreTokens{
		Store: st,
		Exchange: func(ctx context.Context, refreshToken string) (string, string, error) {
			return transport.RefreshGrant(ctx, cfg.ServerURL, refreshToken)
		},
	}
	return transport.New(cfg.ServerURL, tokens, userAgent())
}

// newDriver wires a sync driver for the configured server.
func newDriver(st *store.Store) *syncer.Driver {
	client := newTransport(st)

	strategy := model.ConflictStrategy(cfg.ConflictStrategy)
	if !strategy.Valid() {
		log.Warn().Str("strategy", cfg.ConflictStrategy).
			Msg("unknown conflict strategy in config, using keepBoth")
		strategy = ""
	}
	return syncer.New(st, client, syncer.Options{Strategy: strategy})
}

func userAgent() string {
	return fmt.Sprintf("calepin/%s (%s)", version, runtime.GOOS)
}

// requireWorkspace returns the current workspace or a friendly hint.
func requireWorkspace(st *store.Store) (*model.Workspace, error) {
	ws, err := st.CurrentWorkspace()
	if err != nil {
		return nil, fmt.Errorf("no workspace selected; run 'calepin workspace init' or sync first")
	}
	return ws, nil
}
