package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect and modify agent memory",
}

var memoryGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Load the value stored under a key",
	Args:  cobra.ExactArgs(1),
	RunE:  runMemoryGet,
}

var memoryPutCmd = &cobra.Command{
	Use:   "put <key> <json-value>",
	Short: "Save a value under a key",
	Args:  cobra.ExactArgs(2),
	RunE:  runMemoryPut,
}

var memoryRmCmd = &cobra.Command{
	Use:   "rm <key>",
	Short: "Delete a key",
	Args:  cobra.ExactArgs(1),
	RunE:  runMemoryRm,
}

var memoryKeysCmd = &cobra.Command{
	Use:   "keys [prefix]",
	Short: "List stored keys, optionally by prefix",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runMemoryKeys,
}

var memoryClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every memory record",
	RunE:  runMemoryClear,
}

var memoryMetadata string

func init() {
	memoryPutCmd.Flags().StringVar(&memoryMetadata, "metadata", "", "metadata as a JSON object")

	memoryCmd.AddCommand(memoryGetCmd)
	memoryCmd.AddCommand(memoryPutCmd)
	memoryCmd.AddCommand(memoryRmCmd)
	memoryCmd.AddCommand(memoryKeysCmd)
	memoryCmd.AddCommand(memoryClearCmd)
}

func runMemoryGet(cmd *cobra.Command, args []string) error {
	store, _, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	value, found, err := store.Memory.Load(context.Background(), args[0])
	if err != nil {
		return err
	}
	if !found {
		fmt.Fprintf(os.Stderr, "key not found: %s\n", args[0])
		os.Exit(1)
	}
	return printJSON(value)
}

func runMemoryPut(cmd *cobra.Command, args []string) error {
	store, _, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	// The value argument is JSON when it parses, an opaque string otherwise.
	var value any
	if err := json.Unmarshal([]byte(args[1]), &value); err != nil {
		value = args[1]
	}

	var metadata map[string]any
	if memoryMetadata != "" {
		if err := json.Unmarshal([]byte(memoryMetadata), &metadata); err != nil {
			return fmt.Errorf("invalid metadata JSON: %w", err)
		}
	}

	if err := store.Memory.Save(context.Background(), args[0], value, metadata); err != nil {
		return err
	}
	fmt.Printf("saved %s\n", args[0])
	return nil
}

func runMemoryRm(cmd *cobra.Command, args []string) error {
	store, _, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	deleted, err := store.Memory.Delete(context.Background(), args[0])
	if err != nil {
		return err
	}
	if deleted {
		fmt.Printf("deleted %s\n", args[0])
	} else {
		fmt.Printf("no such key %s\n", args[0])
	}
	return nil
}

func runMemoryKeys(cmd *cobra.Command, args []string) error {
	store, _, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	prefix := ""
	if len(args) == 1 {
		prefix = args[0]
	}
	keys, err := store.Memory.ListKeys(context.Background(), prefix)
	if err != nil {
		return err
	}
	for _, key := range keys {
		fmt.Println(key)
	}
	return nil
}

func runMemoryClear(cmd *cobra.Command, args []string) error {
	store, _, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Memory.Clear(context.Background()); err != nil {
		return err
	}
	fmt.Println("memory cleared")
	return nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
