// Package orchestrator runs live transcription sessions: it buffers client
// audio, feeds a streaming recognizer, translates finalized segments and
// reports results through a per-connection sink.
package orchestrator

import (
	"context"
	"time"

	"github.com/dazdaz/gemini/internal/config"
	"github.com/dazdaz/gemini/internal/speech"
	"github.com/dazdaz/gemini/internal/translate"
)

// Recognizer opens streaming recognition sessions.
type Recognizer interface {
	Stream(ctx context.Context, cfg speech.StreamConfig) (speech.Stream, error)
}

// Translator translates one finalized segment.
type Translator interface {
	Translate(ctx context.Context, text, targetLanguage string) translate.Result
}

// Synthesizer turns text into MP3 audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, language, gender string) ([]byte, error)
}

// Sink delivers outbound messages to one client connection.
type Sink interface {
	Send(ctx context.Context, msg any) error
}

// Deps are the services shared by every session.
type Deps struct {
	Recognizer  Recognizer
	Translator  Translator
	Synthesizer Synthesizer
	Config      config.TranslatorConfig
	// Now defaults to time.Now.
	Now func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// Options are fixed for the lifetime of one started session.
type Options struct {
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
	ShowTimestamps bool   `json:"show_timestamps"`
	VoiceGender    string `json:"voice_gender"`
}

// WithDefaults fills unset fields.
func (o Options) WithDefaults() Options {
	if o.SourceLanguage == "" {
		o.SourceLanguage = DefaultSourceLanguage
	}
	if o.TargetLanguage == "" {
		o.TargetLanguage = DefaultTargetLanguage
	}
	if o.VoiceGender == "" {
		o.VoiceGender = DefaultVoiceGender
	}
	return o
}
