// Transcribe web server - JSON API for transcribing YouTube videos and local
// files with Gemini.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dazdaz/gemini/internal/config"
	"github.com/dazdaz/gemini/internal/gemini"
	"github.com/dazdaz/gemini/internal/media"
	"github.com/dazdaz/gemini/internal/transcribe"
	"github.com/dazdaz/gemini/internal/webapp"
)

// warnUploadTimeout flags a zero upload timeout, which makes every file over
// the inline limit fail immediately.
func warnUploadTimeout(log *slog.Logger, cfg config.TranscribeConfig) {
	if cfg.UploadTimeout > 0 {
		return
	}
	log.Warn("TRANSCRIBE_UPLOAD_TIMEOUT is not set; files over the inline limit will be rejected",
		"inline_limit_mb", cfg.WebInlineLimitMB)
}

func printModels(w io.Writer) {
	fmt.Fprintln(w, "Available models:")
	for _, m := range transcribe.Models {
		fmt.Fprintf(w, "  - %s: %s (%s)\n", m.ID, m.Name, m.PriceSummary())
	}
}

func main() {
	cfg := config.Load()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	warnUploadTimeout(slog.Default(), cfg.Transcribe)
	tools := media.NewTools(cfg.Transcribe.DownloadDir)

	// Without a key the app still serves /health and /models and rejects
	// transcription requests with guidance.
	var tr webapp.Transcriber
	if client, err := gemini.NewClient(ctx, cfg.Google); err != nil {
		slog.Warn("gemini client unavailable, transcription disabled", "error", err)
	} else {
		tr = transcribe.New(client.Models, client.Files, tools, transcribe.Options{
			PollInterval:  cfg.Transcribe.PollInterval,
			UploadTimeout: cfg.Transcribe.UploadTimeout,
		})
	}

	app := webapp.New(tools, tr, webapp.Options{InlineLimitMB: cfg.Transcribe.WebInlineLimitMB})
	e := app.Echo()

	printModels(os.Stdout)

	go func() {
		slog.Info("transcribe web server starting", "http", cfg.Transcribe.HTTPAddr)
		if err := e.Start(cfg.Transcribe.HTTPAddr); err != nil && err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}
}
