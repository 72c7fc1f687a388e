package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/joeycumines/go-latencytracker"
	"github.com/spf13/cobra"
)

func demoCmd(cfg func() (*Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run a minimal self-test, against a tracker with three slots",
		Long: `Begins two events, with thresholds of 6ns and 400ns, ends them both, then
attempts to end the first again (which must not match), before destroying the
tracker. Callbacks are printed as they occur.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := cfg()
			if err != nil {
				return err
			}
			logger, err := newLogger(c, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return runDemo(cmd.OutOrStdout(), latencytracker.WithLogger(logger))
		},
	}
}

func runDemo(out io.Writer, opts ...latencytracker.Option) error {
	const (
		k1 = `blablabla1`
		k2 = `bliblibli1`
	)

	tracker, err := latencytracker.New(append([]latencytracker.Option{latencytracker.WithCapacity(3)}, opts...)...)
	if err != nil {
		return err
	}
	defer tracker.Destroy()

	callback := func(event *latencytracker.Event) {
		_, _ = fmt.Fprintf(out, "callback for key %s: reason=%s latency=%s\n", event.Key(), event.Reason, event.Latency())
	}

	step := func(msg string, err error) error {
		switch {
		case err == nil:
			_, _ = fmt.Fprintln(out, msg)
		case errors.Is(err, latencytracker.ErrNotFound) || errors.Is(err, latencytracker.ErrFull):
			_, _ = fmt.Fprintf(out, "%s: %s\n", msg, err)
		default:
			return fmt.Errorf(`%s: %w`, msg, err)
		}
		return nil
	}

	for _, fn := range [...]func() error{
		func() error { return step(`insert k1`, tracker.EventIn([]byte(k1), 6, callback, 0, false, nil)) },
		func() error { return step(`insert k2`, tracker.EventIn([]byte(k2), 400, callback, 0, false, nil)) },
		func() error { return step(`lookup k1`, tracker.EventOut([]byte(k1), 0)) },
		func() error { return step(`lookup k2`, tracker.EventOut([]byte(k2), 0)) },
		func() error { return step(`lookup k1`, tracker.EventOut([]byte(k1), 0)) },
	} {
		if err := fn(); err != nil {
			return err
		}
	}

	_, _ = fmt.Fprintf(out, "done, %d events pending\n", tracker.Destroy())

	return nil
}
