package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/upb/trailguard/app"
	"github.com/upb/trailguard/internal/queue"
	"github.com/upb/trailguard/services/ingest"
	"go.uber.org/zap"
)

func newConsumeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "consume",
		Short: "Consume audit events from the Redis queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runConsume(cmd.Context())
		},
	}
}

func (c *cli) runConsume(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.NewDependencies(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer deps.Close(context.Background())

	svc, consumer, err := c.startIngest(deps)
	if err != nil {
		return err
	}

	runErr := consumer.Run(ctx, svc)

	if err := svc.Stop(c.cfg.Server.ShutdownTimeout); err != nil {
		c.logger.Warn("ingest service stop", zap.Error(err))
	}
	stats := svc.Stats()
	c.logger.Info("consumer stopped",
		zap.Int64("processed", stats.Processed),
		zap.Int64("recorded", stats.Recorded),
		zap.Int64("skipped", stats.Skipped),
		zap.Int64("failed", stats.Failed))
	return runErr
}

// startIngest starts the worker pool and builds a consumer feeding it
func (c *cli) startIngest(deps *app.Dependencies) (*ingest.Service, *queue.Consumer, error) {
	consumer, err := deps.NewConsumer()
	if err != nil {
		return nil, nil, err
	}
	svc := deps.NewIngestService()
	if err := svc.Start(); err != nil {
		return nil, nil, err
	}
	return svc, consumer, nil
}
