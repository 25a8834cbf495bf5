// Package server runs the catalog: HTTP and gRPC listeners plus the
// background loops, until a signal or context cancellation starts a
// graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/shashiranjanraj/catalog/config"
	"github.com/shashiranjanraj/catalog/pkg/grpc"
	"github.com/shashiranjanraj/catalog/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

// Start boots the App and serves until SIGINT/SIGTERM or ctx is done.
func Start(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := Boot(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.Serve(ctx)
}

// Serve starts every listener and loop, then blocks until ctx is done and
// they have all stopped.
func (a *App) Serve(ctx context.Context) error {
	background, cancelBackground := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelBackground()

	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		a.Hub.Run(background)
	}()
	a.Queue.StartWorkers(background, config.QueueWorkers())
	if a.Schedule.Len() > 0 {
		a.Schedule.Start(background)
	}

	grpcSrv, _, err := grpc.Start(config.GRPCPort(), a.Products)
	if err != nil {
		cancelBackground()
		a.Queue.Wait()
		a.Schedule.Wait()
		<-hubDone
		return err
	}

	srv := &http.Server{
		Addr:              ":" + config.AppPort(),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("catalog listening", "addr", srv.Addr, "env", config.AppEnv())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		runErr = fmt.Errorf("http: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Event streams never finish on their own; end them before Shutdown
	// waits for in-flight requests.
	a.Events.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http: shutdown", "error", err)
	}
	grpc.Stop(grpcSrv)

	// Stopping the hub closes websocket clients that Shutdown does not track.
	cancelBackground()
	<-hubDone
	a.Queue.Wait()
	a.Schedule.Wait()

	logger.Info("catalog stopped")
	return runErr
}
