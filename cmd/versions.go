package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	versionsLimit int
	versionsJSON  bool
)

var versionsCmd = &cobra.Command{
	Use:   "versions <entity-id>",
	Short: "List production snapshots for an entity, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entityID := args[0]

		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		snaps, err := e.Store.ListSnapshots(cmd.Context(), entityID, versionsLimit)
		if err != nil {
			return eris.Wrap(err, "list snapshots")
		}

		if versionsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(snaps)
		}

		if len(snaps) == 0 {
			fmt.Printf("no snapshots for %s\n", entityID)
			return nil
		}
		for _, s := range snaps {
			fmt.Printf("v%d  %s  completeness=%d%%  created_by=%s  %s\n",
				s.VersionNumber, s.ID, s.CompletenessPercent, s.CreatedBy,
				s.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

func init() {
	versionsCmd.Flags().IntVar(&versionsLimit, "limit", 20, "maximum snapshots to list")
	versionsCmd.Flags().BoolVar(&versionsJSON, "json", false, "emit JSON")
	rootCmd.AddCommand(versionsCmd)
}
