package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"conductor/internal/registry"
)

// newCatalogCommand lists the built-in capability catalog. It reads the
// static registry directly, so it works without configuration or network.
func newCatalogCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List registered tools and modules",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			reg := registry.Default()

			fmt.Println(bold("TOOLS"))
			for _, t := range reg.Tools() {
				fmt.Printf("  %-18s %-16s %s\n", cyan(t.ID), gray(t.Category), t.Description)
			}

			fmt.Println()
			fmt.Println(bold("MODULES"))
			for _, m := range reg.Modules() {
				marker := " "
				if m.Core {
					marker = green("*")
				}
				fmt.Printf("%s %-22s %s\n", marker, cyan(m.ID), m.Title)
			}
			fmt.Printf("\n%s core modules are always part of a plan\n", green("*"))
		},
	}
}
