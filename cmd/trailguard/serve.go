package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/upb/trailguard/app"
	"github.com/upb/trailguard/routes"
	"go.uber.org/zap"
)

func newServeCmd(c *cli) *cobra.Command {
	var withConsumer bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), withConsumer)
		},
	}
	cmd.Flags().BoolVar(&withConsumer, "consume", false, "also consume the Redis queue in this process")
	return cmd
}

func (c *cli) runServe(ctx context.Context, withConsumer bool) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.NewDependencies(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer deps.Close(context.Background())

	srv := &http.Server{
		Addr:         c.cfg.Server.Address(),
		Handler:      routes.SetupRoutes(deps),
		ReadTimeout:  c.cfg.Server.ReadTimeout,
		WriteTimeout: c.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 2)
	go func() {
		c.logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var consumerDone chan struct{}
	if withConsumer {
		svc, consumer, err := c.startIngest(deps)
		if err != nil {
			return err
		}
		consumerDone = make(chan struct{})
		go func() {
			defer close(consumerDone)
			if err := consumer.Run(ctx, svc); err != nil {
				errCh <- err
			}
			if err := svc.Stop(c.cfg.Server.ShutdownTimeout); err != nil {
				c.logger.Warn("ingest service stop", zap.Error(err))
			}
		}()
	}

	select {
	case <-ctx.Done():
		c.logger.Info("shutdown signal received")
	case err = <-errCh:
		c.logger.Error("server stopped", zap.Error(err))
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), c.cfg.Server.ShutdownTimeout)
	defer cancel()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		c.logger.Error("http server shutdown", zap.Error(shutdownErr))
	}
	if consumerDone != nil {
		<-consumerDone
	}
	return err
}
