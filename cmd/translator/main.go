// Translator server - streams microphone audio to Chirp, translates final
// segments with Gemini and serves TTS and session downloads.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	speechapi "cloud.google.com/go/speech/apiv2"
	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"golang.org/x/oauth2/google"

	"github.com/dazdaz/gemini/internal/config"
	"github.com/dazdaz/gemini/internal/gemini"
	"github.com/dazdaz/gemini/internal/grpcclient"
	"github.com/dazdaz/gemini/internal/orchestrator"
	"github.com/dazdaz/gemini/internal/server"
	"github.com/dazdaz/gemini/internal/speech"
	"github.com/dazdaz/gemini/internal/translate"
	"github.com/dazdaz/gemini/internal/tts"
)

func main() {
	cfg := config.Load()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	project := cfg.Google.Project
	if project == "" {
		if creds, err := google.FindDefaultCredentials(ctx, "https://www.googleapis.com/auth/cloud-platform"); err == nil {
			project = creds.ProjectID
		}
	}
	if project == "" {
		slog.Error("GOOGLE_CLOUD_PROJECT is not set and no default project was found")
		os.Exit(1)
	}
	location := cfg.Google.Location

	speechClient, err := speechapi.NewClient(ctx, grpcclient.Options(grpcclient.RegionalEndpoint(location, "speech"))...)
	if err != nil {
		slog.Error("failed to create speech client", "error", err)
		os.Exit(1)
	}
	defer func() { _ = speechClient.Close() }()

	ttsClient, err := texttospeech.NewClient(ctx, grpcclient.Options("")...)
	if err != nil {
		slog.Error("failed to create text-to-speech client", "error", err)
		os.Exit(1)
	}
	defer func() { _ = ttsClient.Close() }()

	genaiCfg := cfg.Google
	genaiCfg.Project = project
	genaiClient, err := gemini.NewClient(ctx, genaiCfg)
	if err != nil {
		slog.Error("failed to create gemini client", "error", err)
		os.Exit(1)
	}

	status := server.Status{SpeechClient: true, TTSClient: true, Translator: true, Recognizer: true}
	if _, err := speech.EnsureRecognizer(ctx, speechClient, speech.RecognizerSpec{
		Project:  project,
		Location: location,
		ID:       cfg.Translator.RecognizerID,
		Model:    cfg.Translator.SpeechModel,
		Language: orchestrator.DefaultSourceLanguage,
	}); err != nil {
		slog.Error("failed to create recognizer", "error", err)
		os.Exit(1)
	}

	recognizer := speech.NewRecognizer(speechClient,
		speech.RecognizerName(project, location, cfg.Translator.RecognizerID), cfg.Translator.SpeechModel)

	sessions := orchestrator.NewManager(orchestrator.Deps{
		Recognizer:  recognizer,
		Translator:  translate.New(genaiClient.Models, cfg.Translator.TranslationModel),
		Synthesizer: tts.New(ttsClient),
		Config:      cfg.Translator,
	})
	srv := server.New(sessions, status)

	httpServer := &http.Server{
		Addr:        cfg.Translator.HTTPAddr,
		Handler:     srv.Handler(),
		ReadTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("translator server starting", "http", cfg.Translator.HTTPAddr, "project", project, "location", location)
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
	slog.Info("shutdown complete")
}
