package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/upb/trailguard/app"
	"github.com/upb/trailguard/internal/eventgen"
	"github.com/upb/trailguard/models"
	"github.com/upb/trailguard/services/classifier"
	"go.uber.org/zap"
)

// Seed sinks
const (
	sinkQueue = "queue"
	sinkStore = "store"
)

const seedBatchSize = 100

type seedOptions struct {
	count          int
	sink           string
	sensitiveRatio float64
	actors         int
	seed           uint64
	window         time.Duration
}

func newSeedCmd(c *cli) *cobra.Command {
	opts := seedOptions{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Generate fake CloudTrail events into the queue or the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSeed(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().IntVar(&opts.count, "count", 100, "number of events to generate")
	cmd.Flags().StringVar(&opts.sink, "sink", sinkQueue, "where events go: queue|store")
	cmd.Flags().Float64Var(&opts.sensitiveRatio, "sensitive-ratio", 0.3, "share of sensitive events, 0 to 1")
	cmd.Flags().IntVar(&opts.actors, "actors", 5, "number of distinct IAM users")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "random seed for reproducible runs (0 is random)")
	cmd.Flags().DurationVar(&opts.window, "window", 24*time.Hour, "spread event times over this window ending now")
	return cmd
}

func (c *cli) runSeed(ctx context.Context, out io.Writer, opts seedOptions) error {
	if opts.count <= 0 {
		return fmt.Errorf("--count must be positive")
	}
	if opts.sink != sinkQueue && opts.sink != sinkStore {
		return fmt.Errorf("unknown sink %q: use queue or store", opts.sink)
	}

	deps, err := app.NewDependencies(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer deps.Close(context.Background())

	table, err := classifier.LoadTable(c.cfg.Classification.TablePath)
	if err != nil {
		return err
	}
	gen := eventgen.New(table, eventgen.Options{
		Seed:           opts.seed,
		Actors:         opts.actors,
		SensitiveRatio: opts.sensitiveRatio,
		Window:         opts.window,
	})

	if opts.sink == sinkStore {
		return seedStore(ctx, out, deps, gen, opts.count)
	}
	return seedQueue(ctx, out, deps, gen, opts.count)
}

func seedStore(ctx context.Context, out io.Writer, deps *app.Dependencies, gen *eventgen.Generator, count int) error {
	var recorded, skipped int
	for i := 0; i < count; i++ {
		data, err := gen.NextJSON()
		if err != nil {
			return err
		}
		event, err := models.ParseAuditEvent(data, time.Now())
		if err != nil {
			return err
		}
		outcome, err := deps.Writer.RecordIncident(ctx, event)
		if err != nil {
			return err
		}
		if outcome.Recorded() {
			recorded++
		} else {
			skipped++
		}
	}

	deps.Logger.Info("seeded store", zap.Int("recorded", recorded), zap.Int("skipped", skipped))
	fmt.Fprintf(out, "generated %d events: %d incidents recorded, %d skipped\n", count, recorded, skipped)
	return nil
}

func seedQueue(ctx context.Context, out io.Writer, deps *app.Dependencies, gen *eventgen.Generator, count int) error {
	consumer, err := deps.NewConsumer()
	if err != nil {
		return err
	}

	batch := make([][]byte, 0, seedBatchSize)
	for i := 0; i < count; i++ {
		data, err := gen.NextJSON()
		if err != nil {
			return err
		}
		batch = append(batch, data)
		if len(batch) == seedBatchSize || i == count-1 {
			if err := consumer.Push(ctx, batch...); err != nil {
				return fmt.Errorf("push events: %w", err)
			}
			batch = batch[:0]
		}
	}

	fmt.Fprintf(out, "pushed %d events to %s\n", count, deps.Config.Queue.Key)
	return nil
}
