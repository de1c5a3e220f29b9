// Transcribe CLI - converts a local audio file or a YouTube video to text with
// a Gemini model.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dazdaz/gemini/internal/config"
	"github.com/dazdaz/gemini/internal/gemini"
	"github.com/dazdaz/gemini/internal/media"
	"github.com/dazdaz/gemini/internal/transcribe"
)

const usageExamples = `
Examples:
  transcribe input.mp3 output.txt
  transcribe input.mp3 output.txt --model gemini-2.5-pro
  transcribe input.mp3 output.txt --summary summary.txt
  transcribe input.mp3 output.txt --start 01:30 --end 05:45
  transcribe --youtube-url https://youtu.be/VIDEO_ID output.txt
  transcribe --list-models

Supported formats: MP3, WAV, AAC, FLAC, M4A, OGG, AIFF
`

var errUsage = errors.New("usage")

type options struct {
	Input             string
	Output            string
	APIKey            string
	Model             string
	ListModels        bool
	YouTubeURL        string
	YouTubeOutput     string
	Summary           string
	Start             string
	End               string
	SystemInstruction string
	Inline            bool
	Upload            bool
	KeepUploaded      bool
	UseTimestamps     bool
	UploadTimeout     time.Duration
}

// parseArgs accepts flags before, between and after the positional
// input/output arguments.
func parseArgs(args []string, cfg *config.Config, stderr io.Writer) (*options, error) {
	o := &options{}
	fs := flag.NewFlagSet("transcribe", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.APIKey, "api-key", "", "Gemini API key (or set GEMINI_API_KEY env variable)")
	fs.StringVar(&o.Model, "model", cfg.Transcribe.Model, "Model to use for transcription")
	fs.BoolVar(&o.ListModels, "list-models", false, "List available models and their pricing")
	fs.StringVar(&o.YouTubeURL, "youtube-url", "", "Download audio from a YouTube URL and use it as the input source")
	fs.StringVar(&o.YouTubeOutput, "youtube-output", "", "Optional path or directory for the downloaded MP3 (defaults to ./downloads/<title>.mp3)")
	fs.StringVar(&o.Summary, "summary", "", "Generate summary and save to specified `FILE`")
	fs.StringVar(&o.Start, "start", "", "Start time for audio trimming (`MM:SS`)")
	fs.StringVar(&o.End, "end", "", "End time for audio trimming (`MM:SS`)")
	fs.StringVar(&o.SystemInstruction, "system-instruction", "", "System instruction for the model")
	fs.BoolVar(&o.Inline, "inline", false, "Force inline processing (default for files under the inline limit)")
	fs.BoolVar(&o.Upload, "upload", false, "Force file upload via Files API")
	fs.BoolVar(&o.KeepUploaded, "keep-uploaded", false, "Keep uploaded file in Gemini (don't delete after processing)")
	fs.BoolVar(&o.UseTimestamps, "use-timestamps", false, "Use timestamp-based transcription (requires --start and --end)")
	fs.DurationVar(&o.UploadTimeout, "upload-timeout", cfg.Transcribe.UploadTimeout, "How long to wait for an uploaded file to become active")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: transcribe [flags] [input] output")
		fs.PrintDefaults()
		fmt.Fprint(fs.Output(), usageExamples)
	}

	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			break
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
	if len(positional) > 2 {
		return nil, fmt.Errorf("%w: too many arguments", errUsage)
	}

	// With a single positional argument it is the output file.
	switch len(positional) {
	case 1:
		o.Output = positional[0]
	case 2:
		o.Input, o.Output = positional[0], positional[1]
	}
	if o.ListModels {
		return o, nil
	}
	if _, ok := transcribe.LookupModel(o.Model); !ok {
		return nil, fmt.Errorf("%w: invalid model %q", errUsage, o.Model)
	}
	if o.Output == "" {
		return nil, fmt.Errorf("%w: Output file path is required", errUsage)
	}
	if o.APIKey == "" {
		o.APIKey = cfg.Google.APIKey
	}
	return o, nil
}

func listModels(w io.Writer) {
	fmt.Fprintln(w, "\nAvailable Models:")
	fmt.Fprintln(w, strings.Repeat("-", 70))
	for _, m := range transcribe.Models {
		marker := ""
		if m.ID == transcribe.DefaultModel {
			marker = " (default)"
		}
		fmt.Fprintf(w, "\n  %s%s\n", m.ID, marker)
		fmt.Fprintf(w, "    Name: %s\n", m.Name)
		fmt.Fprintf(w, "    Audio: ~$%.2f/hour\n", m.PriceAudioPerSecond*3600)
		fmt.Fprintf(w, "    Input: $%.4f/1M tokens\n", m.PriceInputPer1K*1000)
		fmt.Fprintf(w, "    Output: $%.4f/1M tokens\n", m.PriceOutputPer1K*1000)
	}
	fmt.Fprintln(w, strings.Repeat("-", 70))
}

func writeText(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(text), 0o644)
}

func run(ctx context.Context, o *options, cfg *config.Config, stdout io.Writer) error {
	tools := media.NewTools(cfg.Transcribe.DownloadDir)

	input := o.Input
	if o.YouTubeURL != "" {
		if err := media.ValidateYouTubeURL(o.YouTubeURL); err != nil {
			return err
		}
		target := o.YouTubeOutput
		if target == "" {
			target = o.Input
		}
		mp3, err := tools.DownloadYouTubeAudio(ctx, strings.TrimSpace(o.YouTubeURL), target)
		if err != nil {
			return err
		}
		input = mp3
		fmt.Fprintf(stdout, "Using downloaded MP3 as input: %s\n", input)
	}
	if input == "" {
		return errors.New("input audio file path required. Provide a local file or use --youtube-url.")
	}

	client, err := gemini.NewClient(ctx, config.GoogleConfig{APIKey: o.APIKey})
	if err != nil {
		return err
	}
	tr := transcribe.New(client.Models, client.Files, tools, transcribe.Options{
		PollInterval:  cfg.Transcribe.PollInterval,
		UploadTimeout: o.UploadTimeout,
	})
	if err := tr.CheckAPI(ctx, o.Model); err != nil {
		return err
	}

	res, err := tr.Transcribe(ctx, transcribe.Request{
		Path:              input,
		Model:             o.Model,
		SystemInstruction: o.SystemInstruction,
		UseTimestamps:     o.UseTimestamps,
		Start:             o.Start,
		End:               o.End,
		Force:             transcribe.ParseForce(o.Inline, o.Upload),
		KeepUploaded:      o.KeepUploaded,
		InlineLimit:       int64(cfg.Transcribe.CLIInlineLimitMB * transcribe.MB),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Processing: %s (%.2f MB)\n", input, float64(res.SizeBytes)/transcribe.MB)
	fmt.Fprintf(stdout, "Audio duration: %.1f seconds (%.1f minutes)\n", res.AudioSeconds, res.AudioSeconds/60)

	fmt.Fprintf(stdout, "Saving transcription to: %s\n", o.Output)
	if err := writeText(o.Output, res.Transcription); err != nil {
		return err
	}
	fmt.Fprintln(stdout, "Transcription saved successfully!")
	fmt.Fprintf(stdout, "Output length: %d characters\n", len(res.Transcription))

	total := res.TotalCost
	if o.Summary != "" {
		summary, usage, err := tr.Summarize(ctx, res.Model.ID, res.Transcription)
		if err != nil {
			return err
		}
		total = res.Usage.Add(usage).TotalCost
		fmt.Fprintf(stdout, "Saving summary to: %s\n", o.Summary)
		if err := writeText(o.Summary, summary); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "Summary saved successfully!")
		fmt.Fprintf(stdout, "Summary length: %d characters\n", len(summary))
	}
	if res.UploadedFile != "" {
		fmt.Fprintf(stdout, "Uploaded file kept: %s\n", res.UploadedFile)
	}

	rule := strings.Repeat("=", 50)
	fmt.Fprintf(stdout, "\n%s\nProcess completed successfully!\nModel: %s\nTotal estimated cost: $%.4f\n%s\n",
		rule, res.Model.Name, total, rule)
	return nil
}

func main() {
	cfg := config.Load()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	o, err := parseArgs(os.Args[1:], cfg, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	if o.ListModels {
		listModels(os.Stdout)
		return
	}
	if o.APIKey == "" {
		fmt.Println("Error: Gemini API key required. Use --api-key or set GEMINI_API_KEY environment variable.")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, o, cfg, os.Stdout); err != nil {
		if ctx.Err() != nil {
			fmt.Println("\nProcess interrupted by user")
		} else {
			fmt.Printf("Error: %v\n", err)
		}
		os.Exit(1)
	}
}
