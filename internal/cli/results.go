package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Inspect the task output journal",
}

var resultsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List task outputs in execution order",
	RunE:  runResultsList,
}

var resultsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every task output record",
	RunE:  runResultsClear,
}

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect crew state snapshots",
}

var stateListCmd = &cobra.Command{
	Use:   "list [task-id]",
	Short: "List snapshots, optionally for one task",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStateList,
}

var stateClearCmd = &cobra.Command{
	Use:   "clear [task-id]",
	Short: "Delete snapshots for one task, or all",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStateClear,
}

func init() {
	resultsCmd.AddCommand(resultsListCmd)
	resultsCmd.AddCommand(resultsClearCmd)
	stateCmd.AddCommand(stateListCmd)
	stateCmd.AddCommand(stateClearCmd)
}

func runResultsList(cmd *cobra.Command, args []string) error {
	store, _, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.Journal.Load(context.Background())
	if err != nil {
		return err
	}
	return printJSON(records)
}

func runResultsClear(cmd *cobra.Command, args []string) error {
	store, _, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Journal.DeleteAll(context.Background()); err != nil {
		return err
	}
	fmt.Println("task output journal cleared")
	return nil
}

func runStateList(cmd *cobra.Command, args []string) error {
	store, _, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	taskID := ""
	if len(args) == 1 {
		taskID = args[0]
	}
	snaps, err := store.Snapshots.Load(context.Background(), taskID)
	if err != nil {
		return err
	}
	return printJSON(snaps)
}

func runStateClear(cmd *cobra.Command, args []string) error {
	store, _, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	taskID := ""
	if len(args) == 1 {
		taskID = args[0]
	}
	if err := store.Snapshots.Delete(context.Background(), taskID); err != nil {
		return err
	}
	fmt.Println("snapshots cleared")
	return nil
}
