package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"ailife-hq/fortune-proxy/pkg/cli"
	"ailife-hq/fortune-proxy/pkg/telemetry/health"
)

var (
	// Version is the semantic version (set by build flags)
	Version = "0.1.0"
	// GitCommit is the git commit hash (set by build flags)
	GitCommit = "unknown"
	// BuildDate is the build timestamp (set by build flags)
	BuildDate = "unknown"
)

var versionFlags struct {
	output string
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print detailed version information including Git commit and build date.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := cli.ParseFormat(versionFlags.output)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if format == cli.FormatJSON {
			formatter, err := cli.NewFormatter(format)
			if err != nil {
				return err
			}
			return formatter.FormatTo(out, health.VersionInfo{
				Version:   Version,
				Commit:    GitCommit,
				BuildTime: BuildDate,
				GoVersion: runtime.Version(),
			})
		}

		fmt.Fprintf(out, "fortuneproxy %s\n", Version)
		fmt.Fprintf(out, "Git Commit: %s\n", GitCommit)
		fmt.Fprintf(out, "Build Date: %s\n", BuildDate)
		fmt.Fprintf(out, "Go Version: %s\n", runtime.Version())
		fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().StringVarP(&versionFlags.output, "output", "o", "text", "output format: text, json")
}
