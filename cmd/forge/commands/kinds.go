package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imageforge/imageforge/pkg/recipe"
)

func newKindsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List supported step kinds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, kind := range recipe.Kinds {
				if kind.MetadataOnly() {
					fmt.Printf("%-20s (metadata)\n", kind)
					continue
				}
				fmt.Println(kind)
			}
			return nil
		},
	}
}
