// Package webapp serves the YouTube transcription front-end over HTTP.
package webapp

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	apperrors "github.com/dazdaz/gemini/internal/errors"
	"github.com/dazdaz/gemini/internal/media"
	"github.com/dazdaz/gemini/internal/trace"
	"github.com/dazdaz/gemini/internal/transcribe"
)

const (
	missingKeyMessage  = "GEMINI_API_KEY environment variable not set. Create a .env file with GEMINI_API_KEY=your_key"
	apiDisabledMessage = "Gemini API is not enabled. Please check your API key and project settings."

	// DefaultInlineLimitMB keeps request bodies to the model small.
	DefaultInlineLimitMB = 20
)

// Downloader fetches YouTube audio as MP3.
type Downloader interface {
	DownloadYouTubeAudio(ctx context.Context, url, target string) (string, error)
}

// Transcriber runs transcription jobs.
type Transcriber interface {
	CheckAPI(ctx context.Context, model string) error
	Transcribe(ctx context.Context, req transcribe.Request) (*transcribe.Result, error)
}

// Options tune the web app.
type Options struct {
	InlineLimitMB float64
	// TempDir is the parent of per-request work directories; empty means
	// the system default.
	TempDir string
}

// App holds the handlers. A nil transcriber means no API key is configured.
type App struct {
	downloader  Downloader
	transcriber Transcriber
	opts        Options
}

// New creates the app.
func New(d Downloader, tr Transcriber, opts Options) *App {
	if opts.InlineLimitMB <= 0 {
		opts.InlineLimitMB = DefaultInlineLimitMB
	}
	return &App{downloader: d, transcriber: tr, opts: opts}
}

type transcribeRequest struct {
	YouTubeURL      string `json:"youtube_url"`
	FilePath        string `json:"file_path"`
	GenerateSummary bool   `json:"generate_summary"`
	SaveAudio       bool   `json:"save_audio"`
	Model           string `json:"model"`
}

type transcribeResponse struct {
	Success              bool    `json:"success"`
	Transcription        string  `json:"transcription"`
	VideoTitle           string  `json:"video_title"`
	AudioDurationSeconds float64 `json:"audio_duration_seconds"`
	EstimatedCost        float64 `json:"estimated_cost"`
	ModelUsed            string  `json:"model_used"`
	Summary              string  `json:"summary,omitempty"`
	AudioBase64          string  `json:"audio_base64,omitempty"`
}

type downloadResponse struct {
	Success     bool   `json:"success"`
	VideoTitle  string `json:"video_title"`
	AudioBase64 string `json:"audio_base64"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type modelsResponse struct {
	Default string             `json:"default"`
	Models  []transcribe.Model `json:"models"`
}

// Echo builds the configured server.
func (a *App) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(echo.WrapMiddleware(trace.Middleware))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			trace.Logger(c.Request().Context()).Log(c.Request().Context(), level, "request",
				"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))
	a.Register(e)
	return e
}

// Register mounts the routes on e.
func (a *App) Register(e *echo.Echo) {
	e.GET("/health", a.health)
	e.GET("/models", a.models)
	e.POST("/transcribe", a.transcribe)
	e.POST("/download-audio", a.downloadAudio)
}

func (a *App) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

func (a *App) models(c echo.Context) error {
	return c.JSON(http.StatusOK, modelsResponse{Default: transcribe.DefaultModel, Models: transcribe.Models})
}

func (a *App) transcribe(c echo.Context) error {
	ctx := c.Request().Context()
	log := trace.Logger(ctx)

	if a.transcriber == nil {
		log.Error("GEMINI_API_KEY not set")
		return fail(c, http.StatusInternalServerError, missingKeyMessage)
	}

	var req transcribeRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request body")
	}
	model, _ := transcribe.ResolveModel(req.Model)
	log.Info("transcription request", "url", req.YouTubeURL, "file", req.FilePath,
		"model", model.ID, "summary", req.GenerateSummary, "save_audio", req.SaveAudio)

	var path string
	if req.FilePath != "" && strings.TrimSpace(req.YouTubeURL) == "" {
		if _, err := media.ValidateFile(req.FilePath); err != nil {
			return fail(c, apperrors.HTTPStatus(err), message(err))
		}
		path = req.FilePath
	} else {
		url := strings.TrimSpace(req.YouTubeURL)
		if err := media.ValidateYouTubeURL(url); err != nil {
			return fail(c, http.StatusBadRequest, message(err))
		}
		dir, cleanup, err := a.workDir("yt_transcribe")
		if err != nil {
			return fail(c, http.StatusInternalServerError, message(err))
		}
		defer cleanup()
		if path, err = a.downloader.DownloadYouTubeAudio(ctx, url, dir); err != nil {
			log.Error("download failed", "error", err)
			return fail(c, http.StatusInternalServerError, message(err))
		}
	}

	var audio string
	if req.SaveAudio {
		data, err := os.ReadFile(path)
		if err != nil {
			return fail(c, http.StatusInternalServerError, err.Error())
		}
		audio = base64.StdEncoding.EncodeToString(data)
	}

	if err := a.transcriber.CheckAPI(ctx, model.ID); err != nil {
		log.Error("api check failed", "error", err)
		return fail(c, http.StatusInternalServerError, apiDisabledMessage)
	}

	res, err := a.transcriber.Transcribe(ctx, transcribe.Request{
		Path:        path,
		Model:       model.ID,
		Summarize:   req.GenerateSummary,
		InlineLimit: int64(a.opts.InlineLimitMB * transcribe.MB),
	})
	if err != nil {
		log.Error("transcription failed", "error", err)
		return fail(c, http.StatusInternalServerError, message(err))
	}
	log.Info("request complete", "model", model.ID, "cost", fmt.Sprintf("$%.4f", res.TotalCost))

	return c.JSON(http.StatusOK, transcribeResponse{
		Success:              true,
		Transcription:        res.Transcription,
		VideoTitle:           stem(path),
		AudioDurationSeconds: res.AudioSeconds,
		EstimatedCost:        round4(res.TotalCost),
		ModelUsed:            model.ID,
		Summary:              res.Summary,
		AudioBase64:          audio,
	})
}

func (a *App) downloadAudio(c echo.Context) error {
	ctx := c.Request().Context()

	var req transcribeRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request body")
	}
	url := strings.TrimSpace(req.YouTubeURL)
	if err := media.ValidateYouTubeURL(url); err != nil {
		return fail(c, http.StatusBadRequest, message(err))
	}

	dir, cleanup, err := a.workDir("yt_audio")
	if err != nil {
		return fail(c, http.StatusInternalServerError, message(err))
	}
	defer cleanup()

	path, err := a.downloader.DownloadYouTubeAudio(ctx, url, dir)
	if err != nil {
		trace.Logger(ctx).Error("download failed", "error", err)
		return fail(c, http.StatusInternalServerError, message(err))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fail(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, downloadResponse{
		Success:     true,
		VideoTitle:  stem(path),
		AudioBase64: base64.StdEncoding.EncodeToString(data),
	})
}

// workDir creates a per-request directory removed by the returned func.
func (a *App) workDir(kind string) (string, func(), error) {
	dir, err := os.MkdirTemp(a.opts.TempDir, fmt.Sprintf("%s_%s_", kind, uuid.NewString()[:8]))
	if err != nil {
		return "", nil, apperrors.Wrap(err, apperrors.CodeInternal, "create work dir")
	}
	return dir, func() { _ = os.RemoveAll(dir) }, nil
}

func fail(c echo.Context, status int, msg string) error {
	return c.JSON(status, errorResponse{Success: false, Error: msg})
}

// message prefers the bare AppError message over its decorated Error().
// Server-side failures keep their cause so the client sees what went wrong.
func message(err error) string {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		if st := apperrors.FromGRPCError(err); st.Message != "" {
			return st.Message
		}
		return err.Error()
	}
	msg := appErr.Message
	if msg == "" {
		msg = appErr.Code.String()
	}
	if appErr.Cause != nil && apperrors.HTTPStatus(appErr) >= http.StatusInternalServerError {
		return msg + ": " + message(appErr.Cause)
	}
	return msg
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
