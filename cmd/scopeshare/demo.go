package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/vango-dev/scopeshare/pkg/inspect"
	"github.com/vango-dev/scopeshare/pkg/scopeshare"
)

// counterKey is the demo's shared slot.
type counterKey struct{}

func (counterKey) Default() int { return 0 }

// counterChanged is the demo message a counter change arrives as.
type counterChanged scopeshare.Change[int]

// wake is the input that activates a reader's observation.
type wake struct{}

// readerState is a demo consumer: it logs every change it processes.
type readerState struct {
	name    string
	counter *scopeshare.Reader[int]
	logger  *slog.Logger
}

func readerStep(ctx scopeshare.Ctx[any], s *readerState, m any) {
	if c, ok := m.(counterChanged); ok {
		s.logger.Info("value will change",
			"reader", s.name,
			"old", s.counter.Get(),
			"new", c.Value)
	}
}

func demoCmd() *cobra.Command {
	var (
		writes     int
		interval   time.Duration
		runInspect bool
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a small owner/reader tree and watch changes propagate",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

			store := scopeshare.NewStore(
				scopeshare.WithMetrics(prometheus.DefaultRegisterer),
				scopeshare.WithLogger(logger),
			)

			if runInspect {
				cfg, err := inspect.ConfigFromEnv()
				if err != nil {
					return err
				}
				srv := inspect.NewServer(store, cfg, logger)
				if err := srv.Start(); err != nil {
					return err
				}
				defer srv.Shutdown(context.Background())
			}

			scope := scopeshare.NamedScope("demo-counter")
			owner := scopeshare.NewShared(store, counterKey{}, scopeshare.WithScopeID[int](scope))
			logger.Info("owner established", "scope", scope.String(), "value", owner.Get())

			bridged := scopeshare.Observe(readerStep,
				func(s *readerState) scopeshare.Handle[int] { return s.counter },
				func(c scopeshare.Change[int]) any { return counterChanged(c) },
				func(m any) (scopeshare.Change[int], bool) {
					c, ok := m.(counterChanged)
					return scopeshare.Change[int](c), ok
				},
			)

			var loops []*scopeshare.Loop[readerState, any]
			for _, name := range []string{"left", "right"} {
				state := &readerState{
					name:    name,
					counter: scopeshare.NewReaderAt(store, counterKey{}, scope),
					logger:  logger,
				}
				loop := scopeshare.NewLoop(state, bridged).
					WithScope(scope).
					WithLogger(logger)
				loop.Start()
				loop.Send(wake{})
				loops = append(loops, loop)
			}
			defer func() {
				for _, loop := range loops {
					loop.Stop()
				}
			}()

			for i := 1; i <= writes; i++ {
				time.Sleep(interval)
				owner.Set(i)
				logger.Info("owner wrote", "value", i)
			}

			// Let the last notifications land before teardown
			time.Sleep(interval)
			return nil
		},
	}

	cmd.Flags().IntVar(&writes, "writes", 5, "number of owner writes")
	cmd.Flags().DurationVar(&interval, "interval", 500*time.Millisecond, "delay between writes")
	cmd.Flags().BoolVar(&runInspect, "inspect", false, "serve the store inspector (see SCOPESHARE_INSPECT_ADDR)")

	return cmd
}
