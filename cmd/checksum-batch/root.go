package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aws-samples/sample-s3-batch-checksum-validation/pkg/provider"
)

var (
	configPath string
	cfg        *provider.Config
	obs        *provider.ObservabilityManager
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "checksum-batch",
	Short: "S3 batch checksum validation workflow",
	Long: `checksum-batch runs the three stages of the batch checksum
validation workflow: initiating per-algorithm batch jobs over a
manifest of objects, reconciling job completion reports into the
tracking table, and tagging objects with their verified checksums.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

		var err error
		cfg, err = provider.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		obs = provider.NewObservabilityManager(cfg.Observability)
		if err := obs.Initialize(cmd.Context()); err != nil {
			return fmt.Errorf("initialize observability: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if obs != nil {
			return obs.Shutdown(context.Background())
		}
		return nil
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = "0.1.0"
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the workflow config file")
}

// readRequest decodes a JSON request from the given file, or stdin when
// the path is "-" or empty.
func readRequest(path string, v any) error {
	var r io.Reader = os.Stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open request file: %w", err)
		}
		defer f.Close()
		r = f
	}

	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

// printResponse writes the result as indented JSON on stdout.
func printResponse(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
