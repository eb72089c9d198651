// Package cmd implements the allowancesim CLI commands.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	// Version is set at build time
	Version = "0.1.0"

	// Global flags
	outputFormat string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "allowancesim",
	Short: "Simulate delegated payments against a spending allowance",
	Long: `allowancesim opens an allowance account with a spending cap, a per-payment
limit and a resetting quota, then has the delegate pay an escrow the way a
point-of-sale terminal would. Every attempt is reported, followed by the
final ledger state.`,
	Version:      Version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table, json, yaml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log engine events to stderr")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func newLogger() *slog.Logger {
	if !verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// formatOutput handles output formatting based on the --output flag.
func formatOutput(w io.Writer, data any) error {
	switch outputFormat {
	case "json":
		return outputJSON(w, data)
	case "yaml":
		return outputYAML(w, data)
	case "table", "":
		// Table format is handled by each command
		return nil
	default:
		return fmt.Errorf("unknown output format %q", outputFormat)
	}
}

func outputJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func outputYAML(w io.Writer, data any) error {
	out, err := yaml.Marshal(data)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}
