package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tmarchal/taskdeck/internal/statusd"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the local status daemon",
	Long:  "Keeps the stores synchronized with the backend on an interval and serves health, Prometheus metrics, and JSON state snapshots on a loopback address.",
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	a, err := newApp()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if err := a.requireAuth(ctx); err != nil {
		return err
	}
	slog.Info("session restored", "user", a.authStore.CurrentUser().Email)

	// Teams load eagerly once the user is available; tasks and the directory
	// follow on the first sync tick.
	a.teamStore.Fetch(ctx, false)

	syncer := statusd.NewSyncer(a.authStore, a.taskStore, a.teamStore, a.cfg.Watch.Interval)
	go syncer.Start(ctx)

	router := statusd.NewRouter(statusd.RouterDeps{
		AuthStore: a.authStore,
		TaskStore: a.taskStore,
		TeamStore: a.teamStore,
		Metrics:   a.metrics,
	})

	srv := &http.Server{
		Addr:         a.cfg.Watch.ListenAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("status server starting", "addr", a.cfg.Watch.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("status server error", "error", err)
			os.Exit(1)
		}
	}()

	<-sigCh
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	syncer.Stop()

	return srv.Shutdown(shutdownCtx)
}
