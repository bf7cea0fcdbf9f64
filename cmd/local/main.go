// Package main runs the whole pipeline in one long-lived process for
// development. Discovery sweeps fire on the MAINTENANCE_SCHEDULE and
// HEALTH_SCHEDULE cron expressions and can be triggered over HTTP:
//
//	curl -X POST localhost:8080/sweeps/maintenance
//
// Queues and blobs are in memory and external clients are stubs unless
// Azure credentials are configured.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"servicehealth/internal/api"
	"servicehealth/internal/app"
	"servicehealth/internal/inventory"
	"servicehealth/internal/scheduler"
	"servicehealth/internal/types"
)

const (
	serviceName     = "local"
	shutdownTimeout = 30 * time.Second
)

func main() {
	if err := run(); err != nil {
		app.Fatal(os.Stderr, serviceName, err)
	}
}

func run() error {
	ctx := context.Background()
	rt, err := app.Bootstrap(ctx, serviceName)
	if err != nil {
		return err
	}
	cfg := rt.Config

	graph, err := rt.Clients.RequireGraph()
	if err != nil {
		return err
	}

	p, err := newPipeline(pipelineDeps{
		Config:   cfg,
		Source:   inventory.NewClient(graph, rt.Log.With("component", "inventory")),
		Mail:     rt.MailDeps(),
		Webhooks: rt.Clients.Webhooks,
		Metrics:  rt.Metrics,
		Clock:    rt.Clock,
		IDs:      rt.IDs,
		Logger:   rt.Log,
	})
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	sched, err := scheduler.NewLocalScheduler(p.run, cfg.Local.Timezone, rt.Log.With("component", "scheduler"))
	if err != nil {
		return err
	}
	if err := sched.Add(
		scheduler.Schedule{Sweep: types.SweepMaintenance, Cron: cfg.Local.MaintenanceSchedule},
		scheduler.Schedule{Sweep: types.SweepHealth, Cron: cfg.Local.HealthSchedule},
	); err != nil {
		return err
	}

	srv, err := api.NewServer(p, rt.Logger)
	if err != nil {
		return err
	}
	srv.Scheduler = sched
	srv.HealthProbes = []api.HealthProbe{
		api.ProbeFunc{ProbeName: "mail_settings", Fn: func(ctx context.Context) error {
			_, err := rt.MailDeps().Settings.Resolve(ctx)
			return err
		}},
	}
	srv.MountRoutes()

	httpServer := &http.Server{
		Addr:              ":" + cfg.Local.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		rt.Logger.Info("local runner listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()
	sched.Start(ctx)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		rt.Logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	sched.Stop(shutdownCtx)
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		rt.Logger.Error("HTTP server shutdown error", "error", err.Error())
	}
	rt.Logger.Info("local runner stopped",
		"archived_notifications", len(p.store.Keys(types.PrefixNotificationHistory)),
		"dead_lettered", len(p.bus.Messages(types.QueueFailedEmail)),
	)
	return nil
}
