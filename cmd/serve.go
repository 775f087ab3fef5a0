package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/camden-git/facesys/handlers"
	"github.com/camden-git/facesys/realtime"
	"github.com/camden-git/facesys/workers"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API for people, face search and background processing.
Progress of background runs is pushed to websocket clients on /api/events
and pipeline metrics are exposed on /metrics.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Int("port", 0, "Port to listen on (defaults to PORT)")
	serveCmd.Flags().Bool("process-on-start", false, "Queue a processing run at startup")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if _, _, err := a.service.LoadGallery(ctx); err != nil {
		return fmt.Errorf("failed to load gallery: %w", err)
	}

	hub := realtime.NewHub(a.log)
	go hub.Run(ctx)

	runner := workers.NewProcessRunner(a.service, func(evt workers.Event) {
		hub.Broadcast(evt)
	}, a.log)
	defer runner.Stop()

	if mustGetBool(cmd, "process-on-start") {
		runner.Enqueue("startup")
	}

	router := handlers.NewRouter(handlers.RouterDeps{
		Service:        a.service,
		Albums:         a.store,
		Runner:         runner,
		Events:         hub.ServeWS,
		Metrics:        a.metrics.Handler(),
		AllowedOrigins: a.cfg.CORSAllowedOrigins,
		Log:            a.log,
	})

	port := a.cfg.Port
	if p := mustGetInt(cmd, "port"); p > 0 {
		port = fmt.Sprint(p)
	}
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     a.log.StdLog(),
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("http: server listening", "addr", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.log.Info("http: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
