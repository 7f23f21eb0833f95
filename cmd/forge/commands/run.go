package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/imageforge/imageforge/pkg/handlers"
	"github.com/imageforge/imageforge/pkg/recipe"
	"github.com/imageforge/imageforge/pkg/sequencer"
	"github.com/imageforge/imageforge/pkg/stores"
	"github.com/imageforge/imageforge/pkg/telemetry"
	sshtransport "github.com/imageforge/imageforge/pkg/transports/ssh"
)

func newRunCommand() *cobra.Command {
	var (
		root        string
		dbPath      string
		noStore     bool
		imageConfig string

		sshHost     string
		sshPort     int
		sshUser     string
		sshKey      string
		sshPassword string
		sshInsecure bool
	)

	cmd := &cobra.Command{
		Use:   "run <recipe.cue>",
		Short: "Execute a provisioning recipe",
		Long: `Execute a provisioning recipe against a target environment.

Steps run strictly in declaration order. The first failure stops the
run: the failing step is recorded with its error class, and every later
step is reported as not run. On success the accumulated image runtime
metadata (exposed ports, volumes, entrypoint, environment, workdir) can
be written as an OCI image config.`,
		Example: `  # Provision a local staging directory
  forge run --root /tmp/stage examples/notebook.cue

  # Provision a remote host over SSH and emit the image config
  forge run --ssh-host build-01 --ssh-user root --image-config config.json examples/notebook.cue`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg := telemetry.DefaultConfig()
			if telemetryConfigPath != "" {
				var err error
				cfg, err = telemetry.LoadConfig(telemetryConfigPath)
				if err != nil {
					return fmt.Errorf("failed to load telemetry config: %w", err)
				}
			}
			if verbose {
				cfg.Logging.Level = "debug"
			}

			logger, err := telemetry.NewLogger(cfg.Logging)
			if err != nil {
				return fmt.Errorf("failed to configure logging: %w", err)
			}

			metrics, err := telemetry.NewMetrics(cfg.Metrics)
			if err != nil {
				return fmt.Errorf("failed to configure metrics: %w", err)
			}
			defer func() { _ = metrics.Shutdown(ctx) }()
			if cfg.Metrics.Enabled {
				go func() {
					if err := metrics.Serve(); err != nil {
						logger.Error().Err(err).Msg("Metrics endpoint failed")
					}
				}()
			}

			tracer, err := telemetry.NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
			if err != nil {
				return fmt.Errorf("failed to configure tracing: %w", err)
			}
			defer func() { _ = tracer.Shutdown(ctx) }()

			loader, err := recipe.NewLoader(logger)
			if err != nil {
				return err
			}
			rec, err := loader.Load(args[0])
			if err != nil {
				return fmt.Errorf("failed to load recipe: %w", err)
			}

			var (
				runner handlers.CommandRunner
				files  handlers.FileWriter
			)
			if sshHost != "" {
				sshCfg := sshtransport.DefaultConfig(sshHost, sshUser)
				sshCfg.Port = sshPort
				if sshPassword != "" {
					sshCfg.AuthMethod = sshtransport.AuthMethodPassword
					sshCfg.Password = sshPassword
				}
				if sshKey != "" {
					sshCfg.PrivateKeyPath = sshKey
				}
				if sshInsecure {
					sshCfg.StrictHostKeyChecking = false
				}

				remote, err := sshtransport.Connect(sshCfg)
				if err != nil {
					return err
				}
				defer func() { _ = remote.Close() }()
				runner, files = remote, remote
			} else {
				runner, files = handlers.LocalRunner{}, handlers.LocalFS{}
			}

			registry, err := handlers.DefaultRegistry(runner, files, nil)
			if err != nil {
				return err
			}

			opts := []sequencer.Option{
				sequencer.WithLogger(logger),
				sequencer.WithMetrics(metrics),
				sequencer.WithTracer(tracer),
			}
			if !noStore {
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
				opts = append(opts, sequencer.WithRecorder(stores.NewRunRecorder(store)))
			}

			env := sequencer.NewEnvironment(root)
			seq := sequencer.New(registry, opts...)

			// Run always returns a populated result; the error mirrors a
			// failed or cancelled status, so the summary prints either way.
			result, runErr := seq.Run(ctx, rec, env)
			printSummary(result)

			if runErr != nil {
				if result.Cause != nil {
					return fmt.Errorf("run %s %s at step %d: %w",
						result.RunID, result.Status, result.FailedStepIndex, result.Cause)
				}
				return fmt.Errorf("run %s %s: %w", result.RunID, result.Status, runErr)
			}

			if imageConfig != "" {
				if err := writeImageConfig(env, imageConfig); err != nil {
					return err
				}
				log.Info().Str("path", imageConfig).Msg("Wrote image config")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "staging directory mapped to the environment's filesystem root")
	cmd.Flags().StringVar(&dbPath, "db", "forge.db", "run history database path")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "skip persisting run history")
	cmd.Flags().StringVar(&imageConfig, "image-config", "", "write the OCI image config to this path on success")
	cmd.Flags().StringVar(&sshHost, "ssh-host", "", "provision a remote host over SSH instead of the local machine")
	cmd.Flags().IntVar(&sshPort, "ssh-port", 22, "SSH port")
	cmd.Flags().StringVar(&sshUser, "ssh-user", "root", "SSH user")
	cmd.Flags().StringVar(&sshKey, "ssh-key", "", "SSH private key path")
	cmd.Flags().StringVar(&sshPassword, "ssh-password", "", "SSH password")
	cmd.Flags().BoolVar(&sshInsecure, "ssh-insecure", false, "skip host key verification")

	return cmd
}

func printSummary(result *sequencer.ExecutionResult) {
	fmt.Printf("Run %s: %s (%s)\n", result.RunID, result.Status, result.Duration.Round(time.Millisecond))
	for _, step := range result.Steps {
		name := step.Name
		if name == "" {
			name = string(step.Kind)
		}
		switch {
		case step.Error != nil:
			fmt.Printf("  [%d] %-40s %s (%s)\n", step.Index, name, step.Status, step.Error.Class)
		default:
			fmt.Printf("  [%d] %-40s %s\n", step.Index, name, step.Status)
		}
	}
}

func writeImageConfig(env *sequencer.Environment, path string) error {
	config := env.Image.ConfigFile(env.Environ(), env.WorkDir, time.Now().UTC())

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal image config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write image config: %w", err)
	}
	return nil
}
