// Package cmd implements the lensemu command line interface.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/boykhocnhe/microfourthirds/logger"
	"github.com/boykhocnhe/microfourthirds/profile"
)

var (
	profilePath string
	logLevel    string
)

var rootCmd = &cobra.Command{
	Use:   "lensemu",
	Short: "Micro Four Thirds lens emulator",
	Long: `lensemu emulates the lens side of the Micro Four Thirds body/lens
handshake: power-on synchronization, the five-handshake negotiation, and
the capability and identity exchanges.

The emulated lens can run against a simulated body for protocol
exploration, or attach to host GPIO pins and answer a real camera body.

Payloads and timing come from a TOML profile (--profile); without one the
canonical device defaults are used.`,
	Version: "1.0.0",
	PersistentPreRun: func(*cobra.Command, []string) {
		logger.SetLevel(parseLogLevel(logLevel))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&profilePath, "profile", "f", "", "Lens profile TOML file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}

func parseLogLevel(s string) logger.Level {
	switch s {
	case "debug":
		return logger.DebugLevel
	case "warn":
		return logger.WarnLevel
	case "error":
		return logger.ErrorLevel
	default:
		return logger.InfoLevel
	}
}

// loadProfile resolves the active lens profile: the --profile file when
// given, the canonical defaults otherwise.
func loadProfile() (profile.Profile, error) {
	if profilePath == "" {
		return profile.Default(), nil
	}

	return profile.Load(profilePath)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
