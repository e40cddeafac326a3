package main

import (
	"fmt"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var lockRelease bool

var lockCmd = &cobra.Command{
	Use:   "lock <entity-id> <field-id>",
	Short: "Pin a field against merge overwrite",
	Long:  "Locks a field so pipeline runs never overwrite it, whatever the sources say. Locking an empty field keeps it empty until unlocked. Use --release to unlock.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		entityID, fieldID := args[0], args[1]

		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		if e.Schema.ByID(fieldID) == nil {
			return eris.Errorf("unknown field %q", fieldID)
		}

		if err := e.Locks.SetLock(cmd.Context(), entityID, fieldID, !lockRelease); err != nil {
			return eris.Wrap(err, "set lock")
		}

		if lockRelease {
			fmt.Printf("unlocked %s on %s\n", fieldID, entityID)
		} else {
			fmt.Printf("locked %s on %s\n", fieldID, entityID)
		}
		return nil
	},
}

var locksCmd = &cobra.Command{
	Use:   "locks <entity-id>",
	Short: "List locked fields for an entity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entityID := args[0]

		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		locked, err := e.Locks.Locks(cmd.Context(), entityID)
		if err != nil {
			return eris.Wrap(err, "get locks")
		}

		if len(locked) == 0 {
			fmt.Println("no locked fields")
			return nil
		}
		fields := make([]string, 0, len(locked))
		for f := range locked {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		for _, f := range fields {
			fmt.Println(f)
		}
		return nil
	},
}

func init() {
	lockCmd.Flags().BoolVar(&lockRelease, "release", false, "unlock the field instead")
	rootCmd.AddCommand(lockCmd)
	rootCmd.AddCommand(locksCmd)
}
