package main

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/dazdaz/gemini/internal/config"
	"github.com/dazdaz/gemini/internal/transcribe"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Google.APIKey = "env-key"
	cfg.Transcribe.Model = transcribe.DefaultModel
	return cfg
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		input  string
		output string
		model  string
		key    string
	}{
		{"positional", []string{"in.mp3", "out.txt"}, "in.mp3", "out.txt", transcribe.DefaultModel, "env-key"},
		{"flags after positional", []string{"in.mp3", "out.txt", "--model", "gemini-2.5-pro"}, "in.mp3", "out.txt", "gemini-2.5-pro", "env-key"},
		{"flags between", []string{"in.mp3", "--api-key", "k", "out.txt"}, "in.mp3", "out.txt", transcribe.DefaultModel, "k"},
		{"youtube output only", []string{"--youtube-url", "https://youtu.be/x", "out.txt"}, "", "out.txt", transcribe.DefaultModel, "env-key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := parseArgs(tt.args, testConfig(), io.Discard)
			if err != nil {
				t.Fatalf("parseArgs: %v", err)
			}
			if o.Input != tt.input || o.Output != tt.output {
				t.Errorf("input, output = %q, %q, want %q, %q", o.Input, o.Output, tt.input, tt.output)
			}
			if o.Model != tt.model {
				t.Errorf("model = %q, want %q", o.Model, tt.model)
			}
			if o.APIKey != tt.key {
				t.Errorf("api key = %q, want %q", o.APIKey, tt.key)
			}
		})
	}
}

func TestParseArgsErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing output", []string{}, "Output file path is required"},
		{"unknown model", []string{"in.mp3", "out.txt", "--model", "gpt"}, "invalid model"},
		{"too many", []string{"a", "b", "c"}, "too many arguments"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseArgs(tt.args, testConfig(), io.Discard)
			if !errors.Is(err, errUsage) || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestParseArgsListModelsNeedsNoOutput(t *testing.T) {
	o, err := parseArgs([]string{"--list-models"}, testConfig(), io.Discard)
	if err != nil || !o.ListModels {
		t.Fatalf("o = %+v, err = %v", o, err)
	}
}

func TestListModels(t *testing.T) {
	var buf bytes.Buffer
	listModels(&buf)
	out := buf.String()
	for _, want := range []string{
		"Available Models:",
		"  gemini-2.5-flash (default)",
		"    Name: Gemini 2.5 Flash",
		"    Audio: ~$0.05/hour",
		"    Input: $0.0750/1M tokens",
		"    Output: $0.3000/1M tokens",
		"  gemini-2.5-pro\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
