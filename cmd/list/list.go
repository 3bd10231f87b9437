// Package list implements the "list" subcommand tree.
package list

import (
	"github.com/spf13/cobra"
)

// ListCmd is the base "list" command; it requires a subcommand.
var ListCmd = &cobra.Command{
	Use:   "list",
	Short: "List resources",
	Long: `List available resources such as network interfaces.

Subcommands:
  interfaces  - List network interfaces available for capture`,
}

func init() {
	ListCmd.AddCommand(interfacesCmd)
}
