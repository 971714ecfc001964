package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fentz26/scenebridge/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "scenebridge",
	Short: "Scenebridge - file mailbox bridge for scene-graph hosts",
	Long: `Scenebridge drives a scene-graph host through a file mailbox: an external
controller drops JSON commands into a request file and reads results from a
response file. Long operations survive host restarts through a durable
task store.`,
	// No RunE - defaults to showing help when no subcommand is provided
}

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default ~/.scenebridge/config.yaml)")

	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(commandsCmd)
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.Load(configPath)
	}
	return config.LoadFromHome()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
