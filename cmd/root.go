package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "xcm-transfer",
	Short: "A CLI for moving tokens across chains with XCM",
	Long: `xcm-transfer moves a token between the relay chain, the asset hub and a
destination parachain using cross-consensus messages, tracking each
transfer through submission, block inclusion and finality.

Examples:
  xcm-transfer transfer 1.5 --from Polkadot --to AssetHub --beneficiary <address>
  xcm-transfer balances <address>
  xcm-transfer balances <address> --watch
  xcm-transfer history <address>
  xcm-transfer chains`,
	Version: "0.1.0",
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

// newLogger builds the CLI logger; verbose mode lowers the level to debug
func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", message)
}
