package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vyuha/vyuha-scene/internal/config"
	"github.com/vyuha/vyuha-scene/internal/storage"
)

// initLogger configures the global slog default with JSON output.
func initLogger(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}
	h := slog.NewJSONHandler(os.Stdout, opts)
	slog.SetDefault(slog.New(h))
}

var rootCmd = &cobra.Command{
	Use:           "vyuha-scene <command>",
	Short:         "3D dependency-graph scene server",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "server", Title: "Server:"},
		&cobra.Group{ID: "catalog", Title: "Snapshot catalogue:"},
	)
}

// loadConfig resolves configuration for cmd and starts logging. Every
// subcommand binds the shared flag set through config.BindFlags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	loaded, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	initLogger(loaded.LogLevel)
	if loaded.File != "" {
		slog.Debug("config file loaded", "path", loaded.File)
	}
	return loaded.Config, nil
}

// openStore opens the snapshot catalogue named by cfg.
func openStore(cfg *config.Config) (*storage.Storage, error) {
	store, err := storage.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise storage: %w", err)
	}
	return store, nil
}

// withConfigFlags binds the shared configuration flags onto cmd.
func withConfigFlags(cmd *cobra.Command) *cobra.Command {
	config.BindFlags(cmd.Flags())
	return cmd
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
