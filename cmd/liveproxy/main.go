// Live proxy - bridges browser clients to a Gemini live session that can
// drive a Chrome agent and call out to cloud functions.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dazdaz/gemini/internal/agent"
	"github.com/dazdaz/gemini/internal/browser"
	"github.com/dazdaz/gemini/internal/config"
	"github.com/dazdaz/gemini/internal/gemini"
	"github.com/dazdaz/gemini/internal/live"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	if err := cfg.ValidateLive(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client, err := gemini.NewClient(ctx, cfg.Google)
	if err != nil {
		slog.Error("failed to create gemini client", "error", err)
		os.Exit(1)
	}

	chrome := browser.NewChrome(cfg.Agent)
	defer chrome.Close()

	runner := browser.NewRunner(chrome, client.Models, cfg.Agent.Model, cfg.Agent.MaxSteps)
	guard := agent.NewGuard(ctx, runner)
	dispatcher := agent.NewDispatcher(guard, cfg.Live.CloudFunctions, nil)
	proxy := live.NewProxy(live.NewConnector(client, cfg.Live), dispatcher)

	httpServer := &http.Server{
		Addr:              cfg.Live.HTTPAddr,
		Handler:           proxy.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("live proxy starting", "http", cfg.Live.HTTPAddr, "model", cfg.Live.Model,
			"cloud_functions", len(cfg.Live.CloudFunctions))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}
	guard.Wait()
	slog.Info("shutdown complete")
}
