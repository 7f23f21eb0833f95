package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imageforge/imageforge/pkg/recipe"
	"github.com/imageforge/imageforge/pkg/telemetry"
)

func newStepsCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "steps <recipe.cue>",
		Short:   "Print the resolved step list of a recipe",
		Example: "  forge steps examples/notebook.cue",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := telemetry.NewLogger(telemetry.DefaultConfig().Logging)
			if err != nil {
				return err
			}

			loader, err := recipe.NewLoader(logger)
			if err != nil {
				return err
			}

			rec, err := loader.Load(args[0])
			if err != nil {
				return err
			}

			fmt.Printf("%s (%d steps)\n", rec.Name, len(rec.Steps))
			for i, step := range rec.Steps {
				name := step.Name
				if name == "" {
					name = "-"
				}
				fmt.Printf("%3d  %-20s %s\n", i, step.Kind, name)
			}
			return nil
		},
	}
}
