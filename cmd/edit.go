package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	editSets     []string
	editEditedBy string
)

var editCmd = &cobra.Command{
	Use:   "edit <entity-id>",
	Short: "Apply manual field edits to the staging record",
	Long:  "Applies user edits on top of the staging record. Edited fields win over any source value and are marked with a user_input provenance. Values are parsed as JSON where possible, otherwise taken as strings.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entityID := args[0]
		if len(editSets) == 0 {
			return eris.New("at least one --set field=value is required")
		}

		edits := make(map[string]any, len(editSets))
		for _, kv := range editSets {
			field, raw, ok := strings.Cut(kv, "=")
			if !ok || field == "" {
				return eris.Errorf("invalid --set %q, expected field=value", kv)
			}
			var v any
			if err := json.Unmarshal([]byte(raw), &v); err != nil {
				v = raw
			}
			edits[field] = v
		}

		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		for field := range edits {
			if !e.Schema.Has(field) {
				return eris.Errorf("unknown field %q", field)
			}
		}

		rec, err := e.Reconciler.ApplyEdits(cmd.Context(), entityID, editEditedBy, edits)
		if err != nil {
			return eris.Wrap(err, "apply edits")
		}

		fmt.Printf("updated %s (version %d, %d fields edited)\n", rec.EntityID, rec.VersionNumber, len(edits))
		return nil
	},
}

func init() {
	editCmd.Flags().StringArrayVar(&editSets, "set", nil, "field=value edit, repeatable")
	editCmd.Flags().StringVar(&editEditedBy, "edited-by", "", "identifier recorded for the edit")
	rootCmd.AddCommand(editCmd)
}
