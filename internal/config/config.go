// Package config loads configuration for every app in the module from the
// environment, with an optional .env file in the working directory.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	apperrors "github.com/dazdaz/gemini/internal/errors"
)

type Config struct {
	LogLevel   string
	Google     GoogleConfig
	Translator TranslatorConfig
	Transcribe TranscribeConfig
	Live       LiveConfig
	Agent      AgentConfig
}

// GoogleConfig holds credentials shared by the Google clients.
type GoogleConfig struct {
	APIKey      string
	Project     string
	Location    string
	UseVertexAI bool
}

// TranslatorConfig configures the live transcription and translation server.
type TranslatorConfig struct {
	HTTPAddr         string
	SampleRate       int
	RecognizerID     string
	SpeechModel      string
	TranslationModel string
	QueueSize        int
	ReadyTimeout     time.Duration
	StopGrace        time.Duration
	DisconnectWait   time.Duration
}

// TranscribeConfig configures the CLI and web transcription front-ends.
type TranscribeConfig struct {
	HTTPAddr         string
	Model            string
	WebInlineLimitMB float64
	CLIInlineLimitMB float64
	// UploadTimeout bounds polling for an uploaded file to become ACTIVE.
	// Zero means unset; the upload path refuses to run without it.
	UploadTimeout time.Duration
	PollInterval  time.Duration
	DownloadDir   string
}

// LiveConfig configures the multimodal live proxy.
type LiveConfig struct {
	HTTPAddr               string
	Model                  string
	Voice                  string
	SystemInstructionsPath string
	CloudFunctions         map[string]string
}

// AgentConfig configures the browser automation agent.
type AgentConfig struct {
	Model        string
	MaxSteps     int
	ScreenWidth  int
	ScreenHeight int
	InitialURL   string
	UserDataDir  string
	Headless     bool
}

// Load reads .env (when present) and the environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env", "error", err)
	}

	vertex := strings.EqualFold(getEnv("GOOGLE_GENAI_USE_VERTEXAI", "false"), "true")
	liveModel := getEnv("MODEL_DEV_API", "models/gemini-2.0-flash-exp")
	liveVoice := getEnv("VOICE_DEV_API", "Puck")
	if vertex {
		liveModel = getEnv("MODEL_GOOGLE_GENAI_USE_VERTEXAI", "gemini-2.0-flash-exp")
		liveVoice = getEnv("VOICE_GOOGLE_GENAI_USE_VERTEXAI", "Aoede")
	}

	return &Config{
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Google: GoogleConfig{
			APIKey:      firstEnv("GEMINI_API_KEY", "GOOGLE_API_KEY"),
			Project:     firstEnv("GOOGLE_CLOUD_PROJECT", "GCLOUD_PROJECT"),
			Location:    getEnv("GOOGLE_CLOUD_LOCATION", "us-central1"),
			UseVertexAI: vertex,
		},
		Translator: TranslatorConfig{
			HTTPAddr:         getEnv("TRANSLATOR_ADDR", ":5000"),
			SampleRate:       getEnvInt("SAMPLE_RATE", 16000),
			RecognizerID:     getEnv("RECOGNIZER_ID", "chirp-recognizer-v2"),
			SpeechModel:      getEnv("SPEECH_MODEL", "chirp_2"),
			TranslationModel: getEnv("TRANSLATION_MODEL", "gemini-2.0-flash-exp"),
			QueueSize:        getEnvInt("AUDIO_QUEUE_SIZE", 512),
			ReadyTimeout:     getEnvDuration("STREAM_READY_TIMEOUT", 10*time.Second),
			StopGrace:        getEnvDuration("STOP_GRACE", time.Second),
			DisconnectWait:   getEnvDuration("DISCONNECT_WAIT", 2*time.Second),
		},
		Transcribe: TranscribeConfig{
			HTTPAddr:         ":" + getEnv("PORT", "8080"),
			Model:            getEnv("TRANSCRIBE_MODEL", "gemini-2.5-flash"),
			WebInlineLimitMB: getEnvFloat("WEB_INLINE_LIMIT_MB", 20),
			CLIInlineLimitMB: getEnvFloat("CLI_INLINE_LIMIT_MB", 100),
			UploadTimeout:    getEnvDuration("TRANSCRIBE_UPLOAD_TIMEOUT", 0),
			PollInterval:     getEnvDuration("TRANSCRIBE_POLL_INTERVAL", 2*time.Second),
			DownloadDir:      getEnv("DOWNLOAD_DIR", "downloads"),
		},
		Live: LiveConfig{
			HTTPAddr:               getEnv("LIVE_ADDR", ":8081"),
			Model:                  liveModel,
			Voice:                  liveVoice,
			SystemInstructionsPath: getEnv("SYSTEM_INSTRUCTIONS_PATH", "system-instructions.txt"),
			CloudFunctions: map[string]string{
				"get_weather":           os.Getenv("WEATHER_FUNCTION_URL"),
				"get_weather_forecast":  os.Getenv("FORECAST_FUNCTION_URL"),
				"get_next_appointment":  os.Getenv("CALENDAR_FUNCTION_URL"),
				"get_past_appointments": os.Getenv("PAST_APPOINTMENTS_FUNCTION_URL"),
			},
		},
		Agent: AgentConfig{
			Model:        getEnv("AGENT_MODEL", "gemini-2.5-flash"),
			MaxSteps:     getEnvInt("AGENT_MAX_STEPS", 25),
			ScreenWidth:  getEnvInt("AGENT_SCREEN_WIDTH", 1440),
			ScreenHeight: getEnvInt("AGENT_SCREEN_HEIGHT", 900),
			InitialURL:   getEnv("AGENT_INITIAL_URL", "https://www.google.com"),
			UserDataDir:  getEnv("AGENT_USER_DATA_DIR", "browser_user_data"),
			Headless:     getEnvBool("AGENT_HEADLESS", false),
		},
	}
}

// ValidateAPIKey fails when no Gemini API key is configured.
func (g GoogleConfig) ValidateAPIKey() error {
	if g.APIKey == "" {
		return apperrors.New(apperrors.CodeConfigMissing,
			"GEMINI_API_KEY environment variable not set. Create a .env file with GEMINI_API_KEY=your_key")
	}
	return nil
}

// ValidateLive checks the live proxy prerequisites and warns about unusable
// cloud function URLs.
func (c *Config) ValidateLive() error {
	if !c.Google.UseVertexAI {
		if err := c.Google.ValidateAPIKey(); err != nil {
			return err
		}
	} else if c.Google.Project == "" {
		return apperrors.New(apperrors.CodeConfigMissing, "GOOGLE_CLOUD_PROJECT is required with GOOGLE_GENAI_USE_VERTEXAI=true")
	}
	for name, url := range c.Live.CloudFunctions {
		switch {
		case url == "":
			slog.Warn("missing URL for cloud function", "name", name)
		case !strings.HasPrefix(url, "https://"):
			slog.Warn("invalid URL format for cloud function", "name", name, "url", url)
		}
	}
	return nil
}

// SlogLevel converts LogLevel to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

// getEnvDuration accepts Go durations ("90s") or bare seconds ("90").
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if s, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(s * float64(time.Second))
	}
	return def
}
