package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/signalnine/benchtrack/internal/model"
)

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List accepted model identifiers and aliases",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("Aliases:")
			aliases := model.Aliases()
			names := make([]string, 0, len(aliases))
			for name := range aliases {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Printf("  %-10s -> %s\n", name, aliases[name])
			}
			fmt.Println("\nAccepted identifiers:")
			for _, id := range model.Available() {
				fmt.Printf("  %s\n", id)
			}
			return nil
		},
	}
}
