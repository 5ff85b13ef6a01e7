package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Verify store connectivity and schema",
	Long: `Connect to the configured backing store and probe every required
table. Fails with a schema error if any table is missing or inaccessible.`,
	RunE: runProbe,
}

func runProbe(cmd *cobra.Command, args []string) error {
	store, cfg, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	// Open already probed every table; reaching here means the store is usable.
	fmt.Printf("driver:   %s\n", cfg.Driver)
	if cfg.Driver == "rest" {
		fmt.Printf("endpoint: %s\n", cfg.Endpoint)
	} else {
		fmt.Printf("path:     %s\n", cfg.Path)
	}
	fmt.Println("tables:   memory, results, crew_state, logs all reachable")
	return nil
}
