package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/immxrtalbeast/meshconf/internal/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var flagConfig string

var rootCmd = &cobra.Command{
	Use:   "meshpeer",
	Short: "Headless participant of a mesh conference room",
	Long: `meshpeer joins a conference room through the relay and keeps one WebRTC connection to every
other participant. It reads chat lines and slash commands from stdin.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "path to config file (default $CONFIG_PATH or config/local.yaml)")
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	_ = godotenv.Load(".env")

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	path := flagConfig
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "config/local.yaml"
	}

	cfg, err := config.LoadPath(path)
	if err != nil {
		return nil, nil, err
	}
	return cfg, setupLogger(cfg.Env), nil
}
