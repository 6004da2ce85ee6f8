package cli

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/emenda-labs/tsexports/core/config"
	"github.com/emenda-labs/tsexports/core/logging"
)

// Env is what every subcommand handler receives from the root command: the
// merged configuration, a logger and the output stream.
type Env struct {
	Config *config.Config
	Log    *slog.Logger
	Out    io.Writer
}

type envKey struct{}

// EnvFromContext returns the Env installed by the root command.
func EnvFromContext(ctx context.Context) (*Env, bool) {
	env, ok := ctx.Value(envKey{}).(*Env)
	return env, ok
}

// NewRootCmd creates the top-level tsexports command. Its persistent
// pre-run loads configuration and installs an Env in the command context.
func NewRootCmd(version string) *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "tsexports",
		Short: "TypeScript module export extractor",
		Long:  "Tsexports lists what TypeScript and JavaScript modules export and reports how exports change between package versions.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, used, err := config.Load(cmd.Context(), config.LoadOptions{
				ConfigFilePath: configFile,
				Flags:          cmd.Flags(),
			})
			if err != nil {
				return err
			}
			log, err := logging.New(cmd.ErrOrStderr(), cfg.LogLevel)
			if err != nil {
				return err
			}
			if used != "" {
				log.Debug("config loaded", "file", used)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), envKey{}, &Env{
				Config: cfg,
				Log:    log,
				Out:    cmd.OutOrStdout(),
			}))
			return nil
		},
	}

	cmd.Version = version

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default is ./.tsexports.yaml)")
	cmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")

	return cmd
}
