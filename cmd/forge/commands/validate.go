package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/imageforge/imageforge/pkg/recipe"
	"github.com/imageforge/imageforge/pkg/telemetry"
)

func newValidateCommand() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "validate <recipe.cue>",
		Short: "Validate a recipe without executing it",
		Long: `Validate a recipe against the embedded CUE schema and the per-kind
argument rules, without touching any target environment.

With --watch, the recipe file is re-validated every time it changes,
which is useful while authoring.`,
		Example: `  # One-shot validation
  forge validate examples/notebook.cue

  # Re-validate on every save
  forge validate --watch examples/notebook.cue`,
		Args: cobra.ExactArgs(1),
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
			fmt.Printf("%s: valid (%d steps)\n", rec.Name, len(rec.Steps))

			if !watch {
				return nil
			}

			err = loader.Watch(cmd.Context(), args[0], func(rec *recipe.Recipe, err error) {
				if err != nil {
					log.Error().Err(err).Msg("Recipe invalid")
					return
				}
				log.Info().Str("recipe", rec.Name).Int("steps", len(rec.Steps)).Msg("Recipe valid")
			})
			if err != nil {
				return err
			}

			<-cmd.Context().Done()
			return nil
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "re-validate whenever the file changes")

	return cmd
}
