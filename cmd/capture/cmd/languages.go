package cmd

import (
	"fmt"

	"github.com/dkeye/Babel/internal/langdir"
	"github.com/spf13/cobra"
)

var languagesCmd = &cobra.Command{
	Use:     "languages",
	Aliases: []string{"langs"},
	Short:   "List supported language codes",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, l := range langdir.Default().All() {
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%-6s %s\n", l.Code, l.Name); err != nil {
				return err
			}
		}
		return nil
	},
}
