// Package commands implements the atci CLI surface: serve, scan, queue
// management, and version.
package commands

import (
	"fmt"
	"os"

	"github.com/gookit/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tassa-yoniso-manasi-karoto/atci/internal/config"
	"github.com/tassa-yoniso-manasi-karoto/atci/internal/logging"
)

var RootCmd = &cobra.Command{
	Use:   "atci <command>",
	Short: "Local transcript-and-clipping service for a video library",
	Long: `atci watches one or more directories, produces a plain-text
transcript beside every video it finds, and exposes an HTTP API for
queue control and range-capable serving of that media.

Example:
  atci serve`,
}

var configPath string

func init() {
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the config file (default ~/.atciconfig)")
	RootCmd.AddCommand(serveCmd)
	RootCmd.AddCommand(scanCmd)
	RootCmd.AddCommand(queueCmd)
	RootCmd.AddCommand(versionCmd)
}

func loadConfig() *config.Provider {
	cfg, err := config.NewProvider(configPath)
	if err != nil {
		exitWithError(err)
	}
	return cfg
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if os.Getenv("ATCI_DEBUG") != "" {
		level = zerolog.DebugLevel
	}
	return logging.New(level, nil)
}

func exitWithError(err error) {
	color.Redf("Error: %v\n", err)
	os.Exit(1)
}

func printf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, format, args...)
}
