package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/crewstore/crewstore/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter crewstore.yaml in the current directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "crewstore.yaml"
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}

		cfg := config.Config{
			Driver:   "rest",
			Endpoint: "https://your-project.supabase.co",
			Path:     "./crewstore.db",
		}
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, out, 0o644); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
		fmt.Fprintln(cmd.OutOrStdout(), "set CREWSTORE_CREDENTIAL in the environment, or add credential: to the file")
		return nil
	},
}
