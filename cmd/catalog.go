package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/satriahrh/mirror-of-truth/internal/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Print the emotion catalog and its tips",
	RunE:  runCatalog,
}

func init() {
	rootCmd.AddCommand(catalogCmd)

	catalogCmd.Flags().Bool("json", false, "Print the catalog as JSON")
}

func runCatalog(cmd *cobra.Command, args []string) error {
	c, err := catalog.Default()
	if err != nil {
		return fmt.Errorf("failed to load tip catalog: %w", err)
	}

	out := cmd.OutOrStdout()
	if mustGetBool(cmd, "json") {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(c.Entries())
	}

	for _, entry := range c.Entries() {
		fmt.Fprintf(out, "%s %s (%s)\n", entry.Emoji, entry.Label, entry.Color)
		fmt.Fprintf(out, "   %s\n", entry.Description)
		for _, tip := range entry.Tips {
			fmt.Fprintf(out, "   - %s\n", tip)
		}
		fmt.Fprintln(out)
	}
	return nil
}
