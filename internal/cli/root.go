// Package cli implements the latencytracker command.
package cli

import (
	"io"

	"github.com/joeycumines/go-latencytracker"
	"github.com/joeycumines/go-latencytracker/internal/logging"
	"github.com/joeycumines/logiface"
	"github.com/spf13/cobra"
)

// RootCmd is the root Cobra command that gets called from the main func.
// All other sub-commands should be registered here.
func RootCmd() *cobra.Command {
	var (
		v       = newViper()
		cfgFile string
	)

	cmd := &cobra.Command{
		Use:   "latencytracker",
		Short: "latencytracker exercises an in-memory event latency tracker.",
		Long: `latencytracker exercises an in-memory event latency tracker.

Configuration may be provided via flags, environment variables prefixed with
LATENCYTRACKER_ (e.g. LATENCYTRACKER_LOG_LEVEL=debug), or a config file, e.g.

log:
  format: text
  level: debug
tracker:
  capacity: 1024
  gc-period: 1s
  gc-threshold: 5s
`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			root := cmd.Root().PersistentFlags()
			for key, name := range map[string]string{
				`log.format`:           `log-format`,
				`log.level`:            `log-level`,
				`tracker.capacity`:     `capacity`,
				`tracker.gc-period`:    `gc-period`,
				`tracker.gc-threshold`: `gc-threshold`,
			} {
				if err := v.BindPFlag(key, root.Lookup(name)); err != nil {
					return err
				}
			}
			return nil
		},
	}

	f := cmd.PersistentFlags()
	f.StringVar(&cfgFile, `config`, ``, `config file (yaml, json, or toml)`)
	f.String(`log-format`, logging.FormatJSON, `log format, json or text`)
	f.String(`log-level`, `info`, `log level, e.g. debug, info, warning`)
	f.Int(`capacity`, latencytracker.DefaultCapacity, `number of event slots`)
	f.Duration(`gc-period`, 0, `interval between garbage collection sweeps, 0 to disable`)
	f.Duration(`gc-threshold`, 0, `age at which open events are garbage collected, 0 to disable`)

	config := func() (*Config, error) { return loadConfig(v, cfgFile) }

	cmd.AddCommand(
		demoCmd(config),
		loadCmd(config, func(cmd *cobra.Command) error { return bindFlags(v, `load`, cmd.LocalNonPersistentFlags()) }),
	)

	return cmd
}

func newLogger(cfg *Config, w io.Writer) (*logiface.Logger[logiface.Event], error) {
	return logging.New(cfg.Log, w)
}
