package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/imageforge/imageforge/pkg/stores"
)

func newHistoryCommand() *cobra.Command {
	var (
		dbPath string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show past runs",
		Long: `Show past runs from the history database.

Without arguments, lists recent runs newest first. With a run ID, shows
the run's per-step outcomes including the error class of the failing
step.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := stores.NewSQLiteStore(stores.Config{Path: dbPath})
			if err != nil {
				return err
			}
			if err := store.Init(ctx); err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			if err := store.Migrate(ctx); err != nil {
				return err
			}

			if len(args) == 0 {
				runs, err := store.ListRuns(ctx, limit, 0)
				if err != nil {
					return err
				}
				if len(runs) == 0 {
					fmt.Println("No runs recorded")
					return nil
				}
				for _, run := range runs {
					fmt.Printf("%s  %-22s %-10s %s\n",
						run.StartedAt.Format(time.RFC3339), run.Recipe, run.Status,
						run.ID)
				}
				return nil
			}

			run, err := store.GetRun(ctx, args[0])
			if err != nil {
				return err
			}
			steps, err := store.GetStepResults(ctx, run.ID)
			if err != nil {
				return err
			}

			fmt.Printf("Run %s: %s %s (%dms)\n", run.ID, run.Recipe, run.Status, run.DurationMS)
			if run.Error != nil {
				fmt.Printf("  cause: %s\n", *run.Error)
			}
			for _, step := range steps {
				name := step.Name
				if name == "" {
					name = step.Kind
				}
				if step.ErrorClass != nil {
					fmt.Printf("  [%d] %-40s %s (%s)\n", step.StepIndex, name, step.Status, *step.ErrorClass)
					continue
				}
				fmt.Printf("  [%d] %-40s %s\n", step.StepIndex, name, step.Status)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "forge.db", "run history database path")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")

	return cmd
}
