package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"time"

	"github.com/joeycumines/go-latencytracker"
	"github.com/joeycumines/go-latencytracker/latencyprom"
	"github.com/joeycumines/logiface"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func loadCmd(v func() (*Config, error), bind func(cmd *cobra.Command) error) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Drive a concurrent workload through a tracker, reporting slow events",
		Long: `Each worker repeatedly begins an event, performs a random amount of simulated
work, then ends the event (unless it is abandoned, in which case it is left to
time out, or be garbage collected). Events taking at least the threshold are
logged at debug level. A summary of the tracker's counters is printed on
completion, and the same counters may be served as Prometheus metrics.`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return bind(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := v()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			opts := append(cfg.Tracker.options(), latencytracker.WithLogger(logger))
			stats, err := runLoad(cmd.Context(), &cfg.Load, logger, opts...)
			if err != nil {
				return err
			}
			return printStats(cmd.OutOrStdout(), stats)
		},
	}

	f := cmd.Flags()
	f.Int(`workers`, 4, `number of concurrent workers`)
	f.Int(`events`, 1000, `number of events per worker`)
	f.Int(`keys`, 8, `number of distinct keys per worker`)
	f.Duration(`threshold`, time.Millisecond, `latency at which events are reported`)
	f.Duration(`timeout`, time.Millisecond*50, `per-event timeout, 0 to disable`)
	f.Duration(`work`, time.Millisecond*2, `upper bound of the simulated work per event`)
	f.Float64(`abandon`, 0.01, `fraction of events that are never ended`)
	f.Bool(`unique`, false, `supersede open events with the same key`)
	f.String(`metrics-addr`, ``, `address to serve Prometheus metrics on, e.g. :9090`)
	f.Duration(`linger`, 0, `time to keep serving metrics, after the workload completes`)

	return cmd
}

// runLoad runs the workload described by cfg, returning the final counters
// of the tracker, after it has been destroyed.
func runLoad(ctx context.Context, cfg *LoadConfig, logger *logiface.Logger[logiface.Event], opts ...latencytracker.Option) (latencytracker.Stats, error) {
	if cfg.Workers <= 0 || cfg.Events < 0 || cfg.Keys <= 0 {
		return latencytracker.Stats{}, fmt.Errorf(`invalid load config: workers=%d events=%d keys=%d`, cfg.Workers, cfg.Events, cfg.Keys)
	}

	tracker, err := latencytracker.New(opts...)
	if err != nil {
		return latencytracker.Stats{}, err
	}
	defer tracker.Destroy()

	if ctx == nil {
		ctx = context.Background()
	}
	g, ctx := errgroup.WithContext(ctx)

	var srv *http.Server
	if cfg.MetricsAddr != `` {
		registry := prometheus.NewRegistry()
		if err := registry.Register(latencyprom.NewCollector(tracker, nil)); err != nil {
			return latencytracker.Stats{}, err
		}
		mux := http.NewServeMux()
		mux.Handle(`/metrics`, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

		ln, err := net.Listen(`tcp`, cfg.MetricsAddr)
		if err != nil {
			return latencytracker.Stats{}, err
		}
		srv = &http.Server{Handler: mux, ReadHeaderTimeout: time.Second * 10}

		logger.Info().
			Str(`addr`, ln.Addr().String()).
			Log(`serving metrics`)

		g.Go(func() error {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	callback := func(event *latencytracker.Event) {
		logger.Debug().
			Str(`key`, string(event.Key())).
			Str(`reason`, event.Reason.String()).
			Dur(`latency`, event.Latency()).
			Log(`slow event`)
	}

	g.Go(func() error {
		if srv != nil {
			defer func() { _ = srv.Shutdown(context.Background()) }()
		}

		workers, workersCtx := errgroup.WithContext(ctx)
		for w := 0; w < cfg.Workers; w++ {
			rng := rand.New(rand.NewSource(int64(w)))
			workers.Go(func() error {
				return loadWorker(workersCtx, cfg, tracker, callback, w, rng)
			})
		}
		if err := workers.Wait(); err != nil {
			return err
		}

		logger.Info().
			Int(`workers`, cfg.Workers).
			Int(`events`, cfg.Events).
			Log(`workload complete`)

		if srv != nil && cfg.Linger > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(cfg.Linger):
			}
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		return latencytracker.Stats{}, err
	}

	tracker.Destroy()

	return tracker.Stats(), nil
}

func loadWorker(ctx context.Context, cfg *LoadConfig, tracker *latencytracker.Tracker, callback latencytracker.Callback, worker int, rng *rand.Rand) error {
	for i := 0; i < cfg.Events; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		key := []byte(fmt.Sprintf(`worker-%d/key-%d`, worker, i%cfg.Keys))

		if err := tracker.EventIn(key, cfg.Threshold, callback, cfg.Timeout, cfg.Unique, nil); err != nil {
			if errors.Is(err, latencytracker.ErrFull) {
				continue
			}
			return err
		}

		if cfg.Work > 0 {
			if err := sleep(ctx, time.Duration(rng.Int63n(int64(cfg.Work)))); err != nil {
				return err
			}
		}

		if rng.Float64() < cfg.Abandon {
			continue
		}

		if err := tracker.EventOut(key, uint64(i)); err != nil && !errors.Is(err, latencytracker.ErrNotFound) {
			return err
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func printStats(w io.Writer, stats latencytracker.Stats) error {
	_, err := fmt.Fprintf(w, `begun:             %d
normal:            %d
below threshold:   %d
timeout:           %d
garbage collected: %d
unique:            %d
discarded:         %d
full:              %d
not found:         %d
capacity:          %d
`,
		stats.Begun,
		stats.Normal,
		stats.BelowThreshold,
		stats.Timeout,
		stats.GarbageCollected,
		stats.Unique,
		stats.Discarded,
		stats.Full,
		stats.NotFound,
		stats.Capacity,
	)
	return err
}
