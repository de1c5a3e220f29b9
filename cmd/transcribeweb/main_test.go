package main

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/dazdaz/gemini/internal/config"
)

func TestWarnUploadTimeout(t *testing.T) {
	tests := []struct {
		name    string
		timeout time.Duration
		warn    bool
	}{
		{"unset", 0, true},
		{"set", 10 * time.Minute, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := slog.New(slog.NewTextHandler(&buf, nil))
			warnUploadTimeout(log, config.TranscribeConfig{UploadTimeout: tt.timeout, WebInlineLimitMB: 20})

			out := buf.String()
			if got := strings.Contains(out, "TRANSCRIBE_UPLOAD_TIMEOUT"); got != tt.warn {
				t.Errorf("warned = %v, want %v (log %q)", got, tt.warn, out)
			}
			if tt.warn && !strings.Contains(out, "level=WARN") {
				t.Errorf("log = %q, want WARN level", out)
			}
		})
	}
}

func TestPrintModels(t *testing.T) {
	var buf bytes.Buffer
	printModels(&buf)
	want := "  - gemini-2.5-flash: Gemini 2.5 Flash (Audio: ~$0.05/hour, Input: $0.0750/1M tokens, Output: $0.3000/1M tokens)\n"
	if !strings.Contains(buf.String(), want) {
		t.Errorf("output = %q, want line %q", buf.String(), want)
	}
}
