package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var publishForce bool

var publishCmd = &cobra.Command{
	Use:   "publish <entity-id>",
	Short: "Publish a production snapshot of the staging record",
	Long:  "Runs the backward divergence check, prints any warnings, then writes an immutable production snapshot. Use --force to skip the check.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entityID := args[0]

		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		if !publishForce {
			warnings, err := e.Reconciler.CheckDivergence(cmd.Context(), entityID)
			if err != nil {
				return eris.Wrap(err, "pre-publish divergence check")
			}
			for _, w := range warnings {
				fmt.Printf("warning: %s: %s\n", w.FieldID, w.Message)
			}
		}

		snap, err := e.Reconciler.Publish(cmd.Context(), entityID)
		if err != nil {
			return eris.Wrap(err, "publish")
		}

		fmt.Printf("published snapshot %s (version %d, completeness %d%%)\n",
			snap.ID, snap.VersionNumber, snap.CompletenessPercent)
		return nil
	},
}

func init() {
	publishCmd.Flags().BoolVar(&publishForce, "force", false, "skip the pre-publish divergence check")
	rootCmd.AddCommand(publishCmd)
}
