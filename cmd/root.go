package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/abhisek/examiz/internal/config"
	"github.com/abhisek/examiz/internal/localcache"
	"github.com/abhisek/examiz/internal/remote"
	"github.com/abhisek/examiz/internal/session"
	"github.com/abhisek/examiz/internal/store"
)

// cfg is loaded before every command runs.
var cfg config.Config

var rootCmd = &cobra.Command{
	Use:           "examiz",
	Short:         "Exam practice quizzes that follow you across devices",
	Long:          "examiz runs multiple-choice practice sessions backed by a question bank server, with spaced review of missed questions.",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command
// context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "Path to config file (default $XDG_CONFIG_HOME/examiz/config.toml)")
	pf.String("db", "", "Path to the server SQLite database (overrides EXAMIZ_DB)")
	pf.String("cache", "", "Path to the device cache database (overrides EXAMIZ_CACHE)")
	pf.String("server", "", "Backend URL (overrides EXAMIZ_SERVER_URL)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig resolves the config file, then applies flag overrides, then
// installs the default logger.
func loadConfig(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = config.DefaultConfigPath()
	}
	c, err := config.Load(path)
	if err != nil {
		return err
	}
	for flag, field := range map[string]*string{
		"db":     &c.Paths.DB,
		"cache":  &c.Paths.Cache,
		"server": &c.Client.ServerURL,
	} {
		if v, _ := cmd.Flags().GetString(flag); v != "" {
			*field = v
		}
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level, _ := c.LogLevel()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	cfg = c
	return nil
}

func openStore() (*store.Store, error) {
	dbPath, err := cfg.DBPath()
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return st, nil
}

// client bundles the backend client with the device cache and the
// reconciler built over both.
type client struct {
	api   *remote.Client
	cache *localcache.Cache
	rec   *session.Reconciler
}

func openClient() (*client, error) {
	cachePath, err := cfg.CachePath()
	if err != nil {
		return nil, fmt.Errorf("resolve cache path: %w", err)
	}
	cache, err := localcache.Open(cachePath)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	api := remote.New(cfg.Client.ServerURL)
	rec := session.NewReconciler(cache.Sessions(), api,
		session.WithSessionKey(cfg.Client.SessionKey),
		session.WithLogger(slog.Default()))
	return &client{api: api, cache: cache, rec: rec}, nil
}

// Close waits briefly for queued remote writes before shutting down.
func (c *client) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), session.DefaultSyncTimeout)
	defer cancel()
	if err := c.rec.Flush(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Warning: session changes may not have reached the server:", err)
	}
	c.rec.Close()
	c.cache.Close()
}
