package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/reconcile-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "reconcile-cli",
	Short: "Deal record reconciliation engine",
	Long:  "Merges document-extraction and knowledge-base field maps into one canonical versioned deal record with per-field provenance, divergence warnings, and immutable published snapshots.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
