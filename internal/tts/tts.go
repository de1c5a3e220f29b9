// Package tts synthesizes translated text to MP3 speech with Cloud Text-to-Speech.
package tts

import (
	"context"
	"strings"

	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/googleapis/gax-go/v2"

	apperrors "github.com/dazdaz/gemini/internal/errors"
	"github.com/dazdaz/gemini/internal/trace"
)

// DefaultLocale is used for language names missing from the table.
const DefaultLocale = "en-US"

var locales = map[string]string{
	"Spanish":    "es-ES",
	"English":    "en-US",
	"French":     "fr-FR",
	"German":     "de-DE",
	"Italian":    "it-IT",
	"Portuguese": "pt-BR",
	"Japanese":   "ja-JP",
	"Korean":     "ko-KR",
	"Chinese":    "zh-CN",
	"Arabic":     "ar-XA",
	"Danish":     "da-DK",
	"Greek":      "el-GR",
	"Indonesian": "id-ID",
	"Polish":     "pl-PL",
	"Thai":       "th-TH",
	"Turkish":    "tr-TR",
	"Filipino":   "fil-PH",
	"Cebuano":    "ceb-PH",
}

// Gender is the voice gender preference.
type Gender string

const (
	Male    Gender = "MALE"
	Female  Gender = "FEMALE"
	Neutral Gender = "NEUTRAL"
)

// LocaleFor maps a display language name to a synthesis locale.
func LocaleFor(language string) string {
	if l, ok := locales[language]; ok {
		return l
	}
	return DefaultLocale
}

// ParseGender accepts MALE, FEMALE or NEUTRAL in any case. Anything else is NEUTRAL.
func ParseGender(s string) Gender {
	switch g := Gender(strings.ToUpper(strings.TrimSpace(s))); g {
	case Male, Female, Neutral:
		return g
	default:
		return Neutral
	}
}

func (g Gender) proto() texttospeechpb.SsmlVoiceGender {
	switch g {
	case Male:
		return texttospeechpb.SsmlVoiceGender_MALE
	case Female:
		return texttospeechpb.SsmlVoiceGender_FEMALE
	default:
		return texttospeechpb.SsmlVoiceGender_NEUTRAL
	}
}

// API is the slice of the texttospeech client used here.
type API interface {
	SynthesizeSpeech(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest, opts ...gax.CallOption) (*texttospeechpb.SynthesizeSpeechResponse, error)
}

// Synthesizer produces MP3 audio.
type Synthesizer struct {
	api API
}

// New creates a Synthesizer over a texttospeech client.
func New(api API) *Synthesizer {
	return &Synthesizer{api: api}
}

// Request builds the synthesis request for text in the named language.
func Request(text, language string, gender Gender) *texttospeechpb.SynthesizeSpeechRequest {
	return &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: LocaleFor(language),
			SsmlGender:   gender.proto(),
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: texttospeechpb.AudioEncoding_MP3,
			SpeakingRate:  1.0,
			Pitch:         0,
		},
	}
}

// Synthesize returns MP3 bytes for text spoken in language with the preferred gender.
func (s *Synthesizer) Synthesize(ctx context.Context, text, language, gender string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "no text to synthesize")
	}
	ctx, span := trace.StartSpan(ctx, "tts.synthesize")
	defer span.End()
	span.SetAttr("locale", LocaleFor(language))

	resp, err := s.api.SynthesizeSpeech(ctx, Request(text, language, ParseGender(gender)))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.FromGRPCError(err), apperrors.CodeSynthesisFailed, "speech synthesis failed")
	}
	trace.Logger(ctx).Debug("synthesized speech", "bytes", len(resp.GetAudioContent()))
	return resp.GetAudioContent(), nil
}
