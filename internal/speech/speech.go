// Package speech streams LINEAR16 audio to Cloud Speech-to-Text v2 (Chirp) and
// yields interim and final recognition results in order.
package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	speechapi "cloud.google.com/go/speech/apiv2"
	"cloud.google.com/go/speech/apiv2/speechpb"
	"github.com/googleapis/gax-go/v2"

	apperrors "github.com/dazdaz/gemini/internal/errors"
	"github.com/dazdaz/gemini/internal/trace"
)

// Result is one recognition hypothesis from the stream.
type Result struct {
	Transcript string
	Confidence float32
	IsFinal    bool
	EndOffset  time.Duration
	HasOffset  bool
}

// StreamConfig describes the audio and language of one streaming session.
type StreamConfig struct {
	Language   string
	SampleRate int
	Channels   int
}

// Stream is one open recognition stream. Send and Recv may run on different
// goroutines; CloseSend ends the request side.
type Stream interface {
	Send(chunk []byte) error
	Recv() ([]Result, error)
	CloseSend() error
}

// API is the slice of the speech v2 client used here.
type API interface {
	StreamingRecognize(ctx context.Context, opts ...gax.CallOption) (speechpb.Speech_StreamingRecognizeClient, error)
	GetRecognizer(ctx context.Context, req *speechpb.GetRecognizerRequest, opts ...gax.CallOption) (*speechpb.Recognizer, error)
	CreateRecognizer(ctx context.Context, req *speechpb.CreateRecognizerRequest, opts ...gax.CallOption) (*speechapi.CreateRecognizerOperation, error)
}

// Recognizer opens streams against one recognizer resource.
type Recognizer struct {
	api   API
	name  string
	model string
}

// NewRecognizer binds to the recognizer resource name
// projects/{project}/locations/{location}/recognizers/{id}.
func NewRecognizer(api API, name, model string) *Recognizer {
	return &Recognizer{api: api, name: name, model: model}
}

// Name returns the recognizer resource name.
func (r *Recognizer) Name() string { return r.name }

// RecognizerName formats a recognizer resource name.
func RecognizerName(project, location, id string) string {
	return fmt.Sprintf("projects/%s/locations/%s/recognizers/%s", project, location, id)
}

// Stream opens a bidirectional stream and sends its single configuration message.
func (r *Recognizer) Stream(ctx context.Context, cfg StreamConfig) (Stream, error) {
	client, err := r.api.StreamingRecognize(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.FromGRPCError(err), apperrors.CodeUnavailable, "open recognition stream")
	}
	if err := client.Send(r.configRequest(cfg)); err != nil {
		return nil, apperrors.Wrap(apperrors.FromGRPCError(err), apperrors.CodeTranscriptionFailed, "send stream config")
	}
	trace.Logger(ctx).Debug("recognition stream opened", "recognizer", r.name, "language", cfg.Language)
	return &stream{client: client, recognizer: r.name}, nil
}

func (r *Recognizer) configRequest(cfg StreamConfig) *speechpb.StreamingRecognizeRequest {
	return &speechpb.StreamingRecognizeRequest{
		Recognizer: r.name,
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					DecodingConfig: &speechpb.RecognitionConfig_ExplicitDecodingConfig{
						ExplicitDecodingConfig: &speechpb.ExplicitDecodingConfig{
							Encoding:          speechpb.ExplicitDecodingConfig_LINEAR16,
							SampleRateHertz:   int32(cfg.SampleRate),
							AudioChannelCount: int32(cfg.Channels),
						},
					},
					Model:         r.model,
					LanguageCodes: []string{cfg.Language},
					Features: &speechpb.RecognitionFeatures{
						EnableAutomaticPunctuation: true,
					},
				},
				StreamingFeatures: &speechpb.StreamingRecognitionFeatures{
					InterimResults: true,
				},
			},
		},
	}
}

type stream struct {
	client     speechpb.Speech_StreamingRecognizeClient
	recognizer string
}

func (s *stream) Send(chunk []byte) error {
	return s.client.Send(&speechpb.StreamingRecognizeRequest{
		Recognizer:       s.recognizer,
		StreamingRequest: &speechpb.StreamingRecognizeRequest_Audio{Audio: chunk},
	})
}

// Recv returns the next batch of results; io.EOF when the server closed the stream.
func (s *stream) Recv() ([]Result, error) {
	resp, err := s.client.Recv()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, apperrors.FromGRPCError(err)
	}
	return convert(resp), nil
}

func (s *stream) CloseSend() error { return s.client.CloseSend() }

func convert(resp *speechpb.StreamingRecognizeResponse) []Result {
	out := make([]Result, 0, len(resp.GetResults()))
	for _, res := range resp.GetResults() {
		alts := res.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		r := Result{
			Transcript: alts[0].GetTranscript(),
			Confidence: alts[0].GetConfidence(),
			IsFinal:    res.GetIsFinal(),
		}
		if off := res.GetResultEndOffset(); off != nil {
			r.EndOffset = off.AsDuration()
			r.HasOffset = true
		}
		out = append(out, r)
	}
	return out
}
