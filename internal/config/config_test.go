package config

import (
	"log/slog"
	"testing"
	"time"

	apperrors "github.com/dazdaz/gemini/internal/errors"
)

func TestLoad(t *testing.T) {
	for _, k := range []string{
		"TRANSLATOR_ADDR", "SAMPLE_RATE", "RECOGNIZER_ID", "TRANSCRIBE_MODEL",
		"TRANSCRIBE_UPLOAD_TIMEOUT", "GOOGLE_GENAI_USE_VERTEXAI", "MODEL_DEV_API",
		"VOICE_DEV_API", "PORT", "AGENT_MAX_STEPS",
	} {
		t.Setenv(k, "")
	}

	cfg := Load()

	if cfg.Translator.HTTPAddr != ":5000" {
		t.Errorf("Translator.HTTPAddr = %q, want %q", cfg.Translator.HTTPAddr, ":5000")
	}
	if cfg.Translator.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want %d", cfg.Translator.SampleRate, 16000)
	}
	if cfg.Translator.RecognizerID != "chirp-recognizer-v2" {
		t.Errorf("RecognizerID = %q, want chirp-recognizer-v2", cfg.Translator.RecognizerID)
	}
	if cfg.Translator.StopGrace != time.Second {
		t.Errorf("StopGrace = %v, want 1s", cfg.Translator.StopGrace)
	}
	if cfg.Transcribe.HTTPAddr != ":8080" {
		t.Errorf("Transcribe.HTTPAddr = %q, want :8080", cfg.Transcribe.HTTPAddr)
	}
	if cfg.Transcribe.Model != "gemini-2.5-flash" {
		t.Errorf("Transcribe.Model = %q, want gemini-2.5-flash", cfg.Transcribe.Model)
	}
	if cfg.Transcribe.UploadTimeout != 0 {
		t.Errorf("UploadTimeout = %v, want unset", cfg.Transcribe.UploadTimeout)
	}
	if cfg.Live.Model != "models/gemini-2.0-flash-exp" || cfg.Live.Voice != "Puck" {
		t.Errorf("Live = %q/%q, want models/gemini-2.0-flash-exp/Puck", cfg.Live.Model, cfg.Live.Voice)
	}
	if cfg.Agent.ScreenWidth != 1440 || cfg.Agent.ScreenHeight != 900 {
		t.Errorf("Agent screen = %dx%d, want 1440x900", cfg.Agent.ScreenWidth, cfg.Agent.ScreenHeight)
	}
	if len(cfg.Live.CloudFunctions) != 4 {
		t.Errorf("CloudFunctions has %d entries, want 4", len(cfg.Live.CloudFunctions))
	}
}

func TestLoadWithEnv(t *testing.T) {
	t.Setenv("GOOGLE_GENAI_USE_VERTEXAI", "TRUE")
	t.Setenv("MODEL_GOOGLE_GENAI_USE_VERTEXAI", "")
	t.Setenv("VOICE_GOOGLE_GENAI_USE_VERTEXAI", "")
	t.Setenv("TRANSCRIBE_UPLOAD_TIMEOUT", "90")
	t.Setenv("STOP_GRACE", "250ms")
	t.Setenv("AGENT_HEADLESS", "1")
	t.Setenv("WEATHER_FUNCTION_URL", "https://example.com/weather")

	cfg := Load()

	if !cfg.Google.UseVertexAI {
		t.Error("UseVertexAI should be true")
	}
	if cfg.Live.Model != "gemini-2.0-flash-exp" || cfg.Live.Voice != "Aoede" {
		t.Errorf("Live = %q/%q, want gemini-2.0-flash-exp/Aoede", cfg.Live.Model, cfg.Live.Voice)
	}
	if cfg.Transcribe.UploadTimeout != 90*time.Second {
		t.Errorf("UploadTimeout = %v, want 90s", cfg.Transcribe.UploadTimeout)
	}
	if cfg.Translator.StopGrace != 250*time.Millisecond {
		t.Errorf("StopGrace = %v, want 250ms", cfg.Translator.StopGrace)
	}
	if !cfg.Agent.Headless {
		t.Error("Headless should be true")
	}
	if got := cfg.Live.CloudFunctions["get_weather"]; got != "https://example.com/weather" {
		t.Errorf("get_weather = %q", got)
	}
}

func TestValidateAPIKey(t *testing.T) {
	err := GoogleConfig{}.ValidateAPIKey()
	if !apperrors.IsCode(err, apperrors.CodeConfigMissing) {
		t.Errorf("ValidateAPIKey() = %v, want CONFIG_MISSING", err)
	}
	if err := (GoogleConfig{APIKey: "k"}).ValidateAPIKey(); err != nil {
		t.Errorf("ValidateAPIKey() = %v, want nil", err)
	}
}

func TestValidateLive(t *testing.T) {
	cfg := &Config{Google: GoogleConfig{UseVertexAI: true}}
	if err := cfg.ValidateLive(); !apperrors.IsCode(err, apperrors.CodeConfigMissing) {
		t.Errorf("ValidateLive() = %v, want CONFIG_MISSING", err)
	}
	cfg.Google.Project = "p"
	cfg.Live.CloudFunctions = map[string]string{"get_weather": "http://insecure"}
	if err := cfg.ValidateLive(); err != nil {
		t.Errorf("ValidateLive() = %v, want nil", err)
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := (&Config{LogLevel: tt.in}).SlogLevel(); got != tt.want {
			t.Errorf("SlogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("X_DUR", "bogus")
	if got := getEnvDuration("X_DUR", time.Minute); got != time.Minute {
		t.Errorf("getEnvDuration(bogus) = %v, want default", got)
	}
	t.Setenv("X_DUR", "1.5")
	if got := getEnvDuration("X_DUR", 0); got != 1500*time.Millisecond {
		t.Errorf("getEnvDuration(1.5) = %v, want 1.5s", got)
	}
}
