package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var checkJSON bool

var checkCmd = &cobra.Command{
	Use:   "check <entity-id>",
	Short: "Check the staging record for divergence from its sources",
	Long:  "Fetches fresh source data and compares it against the current staging values, locked fields included. Reports warnings only; never mutates the record.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entityID := args[0]

		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		warnings, err := e.Reconciler.CheckDivergence(cmd.Context(), entityID)
		if err != nil {
			return eris.Wrap(err, "check divergence")
		}

		if checkJSON {
			return json.NewEncoder(os.Stdout).Encode(warnings)
		}
		if len(warnings) == 0 {
			fmt.Println("no divergence found")
			return nil
		}
		for _, w := range warnings {
			fmt.Printf("%s: %s\n", w.FieldID, w.Message)
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "print warnings as JSON")
	rootCmd.AddCommand(checkCmd)
}
