// Ssdp-scan discovers UPnP devices and services on the local network.
//
// It sends SSDP M-SEARCH requests to the multicast group (or the broadcast
// address) and lists every device that answers within the timeout. Devices
// seen on earlier scans can be recorded and given nicknames, and a scan
// server can stream discoveries to remote clients over a websocket.
//
// Usage:
//
//	ssdp-scan [command] [flags]
//
// Running without arguments launches the interactive scan in a terminal.
// See 'ssdp-scan --help' for available commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/muurk/ssdp-scan/internal/config"
	"github.com/muurk/ssdp-scan/internal/logging"
	"github.com/muurk/ssdp-scan/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	logging.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags
var (
	configFile string
	logLevel   string
)

// Loaded once per invocation by the root pre-run
var (
	registry     *config.Registry
	registryPath string
)

var rootCmd = &cobra.Command{
	Use:   "ssdp-scan",
	Short: "SSDP Device Discovery Utility",
	Long: `Discover UPnP devices and services on the local network using SSDP.

ssdp-scan sends an M-SEARCH request to the SSDP multicast group and lists
every device that answers: its address, service type, USN, description
location and server string.

If no command is specified, the interactive scan launches automatically.`,
	Version:           version.Version,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default behavior: interactive scan when no subcommand is given
		interactive = true
		return runScan(cmd, args)
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default is the user config directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); silent when unset")

	rootCmd.AddCommand(versionCmd)
}

// setup loads the configuration registry and initializes logging.
// The log level comes from --log-level, then the config file, then
// SSDPSCAN_LOG_LEVEL.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	if configFile != "" {
		registryPath = configFile
		registry, err = config.LoadRegistryFrom(configFile)
	} else {
		registryPath, err = config.GetConfigPath()
		if err == nil {
			registry, err = config.LoadRegistry()
		}
	}
	if err != nil {
		// config init must be able to replace an unreadable file
		if cmd.Parent() != configCmd || registryPath == "" {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		registry = config.NewRegistry()
	}

	level := logLevel
	if level == "" {
		level = registry.Preferences.LogLevel
	}
	if err := logging.Initialize(level); err != nil {
		return err
	}
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ssdp-scan %s\n", version.Full())
	},
}
