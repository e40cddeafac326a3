package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/reconcile-cli/internal/model"
	"github.com/sells-group/reconcile-cli/internal/pipeline"
)

var (
	runPublish   bool
	runCreatedBy string
	runJSON      bool
)

var runCmd = &cobra.Command{
	Use:   "run <entity-id>",
	Short: "Run reconciliation for an entity",
	Long:  "Fetches the document and knowledge-base field maps, waterfall-merges them into the staging record, flags divergence, fills derived fields, and writes the result.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entityID := args[0]

		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		result, err := e.Reconciler.Run(cmd.Context(), entityID, pipeline.RunOptions{
			CreatedBy: runCreatedBy,
			Publish:   runPublish,
		})
		if err != nil {
			if result != nil {
				printRunResult(result)
			}
			return eris.Wrap(err, "run reconciliation")
		}

		printRunResult(result)
		return nil
	},
}

func printRunResult(result *model.RunResult) {
	if runJSON {
		_ = json.NewEncoder(os.Stdout).Encode(result)
		return
	}
	fmt.Printf("entity:       %s\n", result.EntityID)
	fmt.Printf("status:       %s\n", result.Status)
	fmt.Printf("version:      %d\n", result.VersionNumber)
	fmt.Printf("completeness: %d%%\n", result.CompletenessPercent)
	if len(result.SourcesMissing) > 0 {
		fmt.Printf("missing:      %v\n", result.SourcesMissing)
	}
	for _, w := range result.Warnings {
		fmt.Printf("warning:      %s: %s\n", w.FieldID, w.Message)
	}
}

func init() {
	runCmd.Flags().BoolVar(&runPublish, "publish", false, "publish a production snapshot after the staging write")
	runCmd.Flags().StringVar(&runCreatedBy, "created-by", "", "user recorded on first staging write")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the result as JSON")
	rootCmd.AddCommand(runCmd)
}
