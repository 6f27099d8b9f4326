package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"ailife-hq/fortune-proxy/pkg/cli"
)

// defaultConfigFile is read when present; without it the proxy is
// configured from defaults and FORTUNE_* environment variables.
const defaultConfigFile = "config.yaml"

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "fortuneproxy",
	Short: "Fortune workflow proxy",
	Long: `Fortuneproxy fronts a hosted fortune-telling workflow for browser clients.

It validates birth data, forwards it to the workflow API with the server-side
credential, retries transient gateway and timeout failures, and normalizes
whatever shape the workflow returns into one response envelope.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", defaultConfigFile, "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// configPath returns the file to load. A missing default file means
// environment-only configuration; an explicitly named file must exist.
func configPath(cmd *cobra.Command) (string, error) {
	if _, err := os.Stat(cfgFile); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
			return "", nil
		}
		return "", cli.NewConfigError("", fmt.Sprintf("cannot read config file: %v", err))
	}
	return cfgFile, nil
}
