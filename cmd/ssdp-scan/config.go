package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/ssdp-scan/internal/config"
	"github.com/muurk/ssdp-scan/internal/ui"
)

var forceInit bool

func init() {
	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing config file without asking")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
	Long: `Manage the ssdp-scan configuration file.

The file holds scan defaults (search target, timeout, output format, ...)
and the devices remembered by 'ssdp-scan scan --record'.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the default settings",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	force := forceInit
	if !force {
		if _, err := os.Stat(registryPath); err == nil {
			if !ui.Confirm(os.Stdin, os.Stdout, "Overwrite configuration",
				"A config file already exists at "+registryPath,
				"Recorded devices and nicknames will be lost",
			) {
				return errors.New("config file left unchanged")
			}
			force = true
		}
	}

	if err := config.CreateDefaultConfig(registryPath, force); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	ui.NewPrinter(os.Stdout).PrintSuccess("Config file written", ui.Param{Key: "Path", Value: registryPath})
	return nil
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(registryPath)
	},
}
