package transcribe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"google.golang.org/genai"

	apperrors "github.com/dazdaz/gemini/internal/errors"
	"github.com/dazdaz/gemini/internal/gemini"
	"github.com/dazdaz/gemini/internal/media"
	"github.com/dazdaz/gemini/internal/trace"
)

const (
	transcribePrompt = `Generate a complete and full transcript of the speech.
Important instructions:
- Include ALL spoken content from the ENTIRE audio file
- Do not truncate, summarize, or stop early
- Transcribe every word from beginning to end
- If the audio is long, continue transcribing until the very end`

	rangePrompt = "Provide a complete and full transcript of the speech from %s to %s. Do not truncate or summarize - include every word spoken."

	summaryPrompt = `Please provide a concise summary of the following text.
        Include the main points and key information.
        Text to summarize:
        %s
        `

	transcribeTemperature = 0.1
	summaryTemperature    = 0.3
	summaryMaxTokens      = 8192

	defaultPollInterval = 2 * time.Second
)

// EnableAPIGuidance is shown when the Generative Language API is disabled.
const EnableAPIGuidance = `The Generative Language API is not enabled for your Google Cloud project.
Please enable it using one of the following methods:
1. Google Cloud Console:
   - Go to https://console.cloud.google.com/apis/library/generativelanguage.googleapis.com
   - Select your project and click 'Enable'
2. gcloud CLI:
   - Run: gcloud services enable generativelanguage.googleapis.com
Ensure your API key has the necessary permissions and is associated with the correct project.`

// AudioTools measures and trims local audio.
type AudioTools interface {
	Duration(ctx context.Context, path string) float64
	Trim(ctx context.Context, path, start, end string) (string, error)
}

// Request describes one transcription job.
type Request struct {
	Path              string
	Model             string
	SystemInstruction string
	// UseTimestamps asks the model for the Start..End range instead of
	// trimming the audio locally.
	UseTimestamps bool
	Start, End    string
	Summarize     bool
	Force         Force
	KeepUploaded  bool
	// InlineLimit is the largest file, in bytes, sent inline.
	InlineLimit int64
}

// Result is the outcome of Transcribe.
type Result struct {
	Transcription string
	Summary       string
	Model         Model
	Transfer      Transfer
	SizeBytes     int64
	AudioSeconds  float64
	Usage         Usage
	SummaryUsage  *Usage
	// TotalCost sums the transcription and summary estimates.
	TotalCost float64
	// UploadedFile names the Files API object when it was kept.
	UploadedFile string
}

// Options configure the Files API upload path.
type Options struct {
	PollInterval time.Duration
	// UploadTimeout bounds waiting for an upload to become ACTIVE. It must be
	// set for the upload path to be used.
	UploadTimeout time.Duration
}

// Transcriber runs transcription jobs.
type Transcriber struct {
	models gemini.Models
	files  gemini.Files
	tools  AudioTools
	opts   Options
}

// New creates a transcriber.
func New(models gemini.Models, files gemini.Files, tools AudioTools, opts Options) *Transcriber {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	return &Transcriber{models: models, files: files, tools: tools, opts: opts}
}

// CheckAPI checks the API is reachable with a minimal token count.
func (t *Transcriber) CheckAPI(ctx context.Context, model string) error {
	_, err := t.models.CountTokens(ctx, model, gemini.UserText("Test"), nil)
	if err == nil {
		return nil
	}
	if gemini.IsPermissionDenied(err) && strings.Contains(err.Error(), "API has not been enabled") {
		return apperrors.Wrap(err, apperrors.CodeConfigInvalid, EnableAPIGuidance)
	}
	return apperrors.Wrap(err, apperrors.CodeLLMAPIError, "check API status")
}

// Transcribe validates, optionally trims, transfers and transcribes one file.
func (t *Transcriber) Transcribe(ctx context.Context, req Request) (*Result, error) {
	ctx, span := trace.StartSpan(ctx, "transcribe")
	defer span.End()
	log := trace.Logger(ctx)

	model, known := ResolveModel(req.Model)
	if !known && req.Model != "" {
		log.Warn("unknown model, using default", "model", req.Model, "default", DefaultModel)
	}
	span.SetAttr("model", model.ID)

	path := req.Path
	size, err := media.ValidateFile(path)
	if err != nil {
		return nil, err
	}
	duration := t.tools.Duration(ctx, path)
	log.Info("processing", "path", path, "mb", float64(size)/MB, "seconds", duration)

	if (req.Start != "" || req.End != "") && !req.UseTimestamps {
		trimmed, err := t.tools.Trim(ctx, path, req.Start, req.End)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := os.Remove(trimmed); err != nil {
				log.Warn("could not delete trimmed file", "path", trimmed, "error", err)
			}
		}()
		path = trimmed
		if info, err := os.Stat(path); err == nil {
			size = info.Size()
		}
		duration = t.tools.Duration(ctx, path)
	}

	res := &Result{Model: model, SizeBytes: size, AudioSeconds: duration}
	res.Transfer = ChooseTransfer(size, req.InlineLimit, req.Force)
	span.SetAttr("transfer", res.Transfer.String())

	var audio *genai.Part
	switch res.Transfer {
	case TransferInline:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInternal, "read audio")
		}
		log.Info("processing audio inline", "mb", float64(size)/MB)
		audio = genai.NewPartFromBytes(data, media.MIMEType(path))
	case TransferUpload:
		file, err := t.upload(ctx, path)
		if err != nil {
			return nil, err
		}
		if req.KeepUploaded {
			res.UploadedFile = file.Name
		} else {
			defer t.cleanup(ctx, file.Name)
		}
		audio = genai.NewPartFromURI(file.URI, file.MIMEType)
	}

	prompt := transcribePrompt
	if req.UseTimestamps && req.Start != "" && req.End != "" {
		prompt = fmt.Sprintf(rangePrompt, req.Start, req.End)
	}
	contents := []*genai.Content{genai.NewContentFromParts([]*genai.Part{genai.NewPartFromText(prompt), audio}, genai.RoleUser)}

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](transcribeTemperature),
		MaxOutputTokens: model.MaxOutputTokens,
	}
	if req.SystemInstruction != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
	}

	text, usage, err := t.generate(ctx, model.ID, contents, cfg, duration)
	if err != nil {
		span.SetAttr("error", err.Error())
		return nil, apperrors.Wrap(err, apperrors.CodeTranscriptionFailed, "transcription failed")
	}
	res.Transcription = text
	res.Usage = usage
	res.TotalCost = usage.TotalCost
	log.Info("transcription complete", "chars", len(text), "cost", fmt.Sprintf("$%.4f", usage.TotalCost))

	if req.Summarize {
		summary, su, err := t.Summarize(ctx, model.ID, text)
		if err != nil {
			return nil, err
		}
		res.Summary = summary
		res.SummaryUsage = &su
		res.TotalCost = usage.Add(su).TotalCost
	}
	return res, nil
}

// Summarize condenses text with one generation call. No audio is priced.
func (t *Transcriber) Summarize(ctx context.Context, model, text string) (string, Usage, error) {
	ctx, span := trace.StartSpan(ctx, "summarize")
	defer span.End()

	contents := gemini.UserText(fmt.Sprintf(summaryPrompt, text))
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](summaryTemperature),
		MaxOutputTokens: summaryMaxTokens,
	}
	summary, usage, err := t.generate(ctx, model, contents, cfg, 0)
	if err != nil {
		span.SetAttr("error", err.Error())
		return "", Usage{}, apperrors.Wrap(err, apperrors.CodeLLMAPIError, "summary failed")
	}
	return summary, usage, nil
}

func (t *Transcriber) generate(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig, audioSeconds float64) (string, Usage, error) {
	input := t.countTokens(ctx, model, contents)

	resp, err := t.models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return "", Usage{}, err
	}
	text := resp.Text()
	return text, EstimateCost(model, input, outputTokens(resp, text), audioSeconds), nil
}

func (t *Transcriber) countTokens(ctx context.Context, model string, contents []*genai.Content) int {
	resp, err := t.models.CountTokens(ctx, model, contents, nil)
	if err != nil {
		trace.Logger(ctx).Warn("could not count tokens", "error", err)
		return 0
	}
	return int(resp.TotalTokens)
}

// outputTokens prefers usage metadata and falls back to ~4 chars per token.
func outputTokens(resp *genai.GenerateContentResponse, text string) int {
	if resp.UsageMetadata != nil {
		return int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return len(text) / 4
}

func (t *Transcriber) upload(ctx context.Context, path string) (*genai.File, error) {
	if t.opts.UploadTimeout <= 0 {
		return nil, apperrors.New(apperrors.CodeConfigMissing,
			"upload timeout is not configured; set TRANSCRIBE_UPLOAD_TIMEOUT or --upload-timeout")
	}
	log := trace.Logger(ctx)

	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "open audio")
	}
	defer f.Close()

	log.Info("uploading file", "name", filepath.Base(path))
	file, err := t.files.Upload(ctx, f, &genai.UploadFileConfig{
		MIMEType:    media.MIMEType(path),
		DisplayName: filepath.Base(path),
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeUploadFailed, "upload audio").WithMetadata("file", filepath.Base(path))
	}

	waitCtx, cancel := context.WithTimeout(ctx, t.opts.UploadTimeout)
	defer cancel()
	ticker := time.NewTicker(t.opts.PollInterval)
	defer ticker.Stop()

	for file.State == genai.FileStateProcessing || file.State == genai.FileStateUnspecified {
		select {
		case <-waitCtx.Done():
			t.cleanup(ctx, file.Name)
			if ctx.Err() != nil {
				return nil, apperrors.Wrap(ctx.Err(), apperrors.CodeCancelled, "upload cancelled")
			}
			return nil, apperrors.Newf(apperrors.CodeTimeout, "file %s not ready after %s", file.Name, t.opts.UploadTimeout)
		case <-ticker.C:
		}
		next, err := t.files.Get(waitCtx, file.Name, nil)
		if err != nil {
			t.cleanup(ctx, file.Name)
			return nil, apperrors.Wrap(err, apperrors.CodeUploadFailed, "poll upload state").WithMetadata("file", file.Name)
		}
		file = next
	}
	if file.State != genai.FileStateActive {
		t.cleanup(ctx, file.Name)
		return nil, apperrors.Newf(apperrors.CodeUploadFailed, "File upload failed with state: %s", file.State)
	}
	log.Info("file uploaded", "uri", file.URI)
	return file, nil
}

// cleanup deletes an uploaded file; failures are logged only.
func (t *Transcriber) cleanup(ctx context.Context, name string) {
	log := trace.Logger(ctx)
	if _, err := t.files.Delete(context.WithoutCancel(ctx), name, nil); err != nil {
		log.Warn("could not delete uploaded file", "name", name, "error", err)
		return
	}
	log.Info("cleaned up uploaded file", "name", name)
}
