package speech

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	speechapi "cloud.google.com/go/speech/apiv2"
	"cloud.google.com/go/speech/apiv2/speechpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	apperrors "github.com/dazdaz/gemini/internal/errors"
)

type fakeStreamClient struct {
	grpc.ClientStream
	sent      []*speechpb.StreamingRecognizeRequest
	responses []*speechpb.StreamingRecognizeResponse
	closed    bool
}

func (f *fakeStreamClient) Send(req *speechpb.StreamingRecognizeRequest) error {
	f.sent = append(f.sent, req)
	return nil
}

func (f *fakeStreamClient) Recv() (*speechpb.StreamingRecognizeResponse, error) {
	if len(f.responses) == 0 {
		return nil, io.EOF
	}
	r := f.responses[0]
	f.responses = f.responses[1:]
	return r, nil
}

func (f *fakeStreamClient) CloseSend() error {
	f.closed = true
	return nil
}

type fakeAPI struct {
	stream    *fakeStreamClient
	getErr    error
	createErr error
	created   *speechpb.CreateRecognizerRequest
}

func (f *fakeAPI) StreamingRecognize(context.Context, ...gax.CallOption) (speechpb.Speech_StreamingRecognizeClient, error) {
	return f.stream, nil
}

func (f *fakeAPI) GetRecognizer(_ context.Context, req *speechpb.GetRecognizerRequest, _ ...gax.CallOption) (*speechpb.Recognizer, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &speechpb.Recognizer{Name: req.GetName()}, nil
}

func (f *fakeAPI) CreateRecognizer(_ context.Context, req *speechpb.CreateRecognizerRequest, _ ...gax.CallOption) (*speechapi.CreateRecognizerOperation, error) {
	f.created = req
	return nil, f.createErr
}

func TestStreamSendsConfigThenAudio(t *testing.T) {
	fs := &fakeStreamClient{}
	r := NewRecognizer(&fakeAPI{stream: fs}, RecognizerName("p", "us-central1", "chirp-recognizer-v2"), "chirp_2")

	s, err := r.Stream(context.Background(), StreamConfig{Language: "en-US", SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if err := s.Send([]byte{1, 2}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	_ = s.CloseSend()

	if len(fs.sent) != 2 {
		t.Fatalf("sent %d requests, want 2", len(fs.sent))
	}
	cfg := fs.sent[0].GetStreamingConfig()
	if cfg == nil {
		t.Fatal("first request must be the streaming config")
	}
	dec := cfg.GetConfig().GetExplicitDecodingConfig()
	if dec.GetEncoding() != speechpb.ExplicitDecodingConfig_LINEAR16 || dec.GetSampleRateHertz() != 16000 || dec.GetAudioChannelCount() != 1 {
		t.Errorf("decoding config = %v", dec)
	}
	if cfg.GetConfig().GetModel() != "chirp_2" {
		t.Errorf("model = %q, want chirp_2", cfg.GetConfig().GetModel())
	}
	if !cfg.GetStreamingFeatures().GetInterimResults() {
		t.Error("interim results should be enabled")
	}
	if got := fs.sent[0].GetRecognizer(); got != "projects/p/locations/us-central1/recognizers/chirp-recognizer-v2" {
		t.Errorf("recognizer = %q", got)
	}
	if string(fs.sent[1].GetAudio()) != string([]byte{1, 2}) {
		t.Error("second request should carry the audio chunk")
	}
	if !fs.closed {
		t.Error("CloseSend should close the request side")
	}
}

func TestRecvConvertsResults(t *testing.T) {
	fs := &fakeStreamClient{responses: []*speechpb.StreamingRecognizeResponse{{
		Results: []*speechpb.StreamingRecognitionResult{
			{Alternatives: nil},
			{
				Alternatives:    []*speechpb.SpeechRecognitionAlternative{{Transcript: "hello", Confidence: 0.9}},
				IsFinal:         true,
				ResultEndOffset: durationpb.New(1500 * time.Millisecond),
			},
			{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "wor"}}},
		},
	}}}
	s := &stream{client: fs}

	results, err := s.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2 (empty alternatives skipped)", len(results))
	}
	if r := results[0]; r.Transcript != "hello" || !r.IsFinal || r.Confidence != 0.9 || !r.HasOffset || r.EndOffset != 1500*time.Millisecond {
		t.Errorf("results[0] = %+v", r)
	}
	if r := results[1]; r.IsFinal || r.HasOffset {
		t.Errorf("results[1] = %+v, want interim without offset", r)
	}
	if _, err := s.Recv(); !errors.Is(err, io.EOF) {
		t.Errorf("Recv at end = %v, want io.EOF", err)
	}
}

func TestEnsureRecognizer(t *testing.T) {
	spec := RecognizerSpec{Project: "p", Location: "us-central1", ID: "r", Model: "chirp_2", Language: "en-US"}

	rec, err := EnsureRecognizer(context.Background(), &fakeAPI{}, spec)
	if err != nil || rec.GetName() != "projects/p/locations/us-central1/recognizers/r" {
		t.Errorf("existing recognizer = %v, %v", rec, err)
	}

	api := &fakeAPI{getErr: status.Error(codes.NotFound, "missing"), createErr: status.Error(codes.PermissionDenied, "denied")}
	if _, err := EnsureRecognizer(context.Background(), api, spec); !apperrors.IsCode(err, apperrors.CodeUnavailable) {
		t.Errorf("create failure err = %v, want UNAVAILABLE", err)
	}
	if api.created == nil || api.created.GetRecognizerId() != "r" || api.created.GetParent() != "projects/p/locations/us-central1" {
		t.Errorf("create request = %v", api.created)
	}
	if got := api.created.GetRecognizer().GetDefaultRecognitionConfig().GetModel(); got != "chirp_2" {
		t.Errorf("created model = %q, want chirp_2", got)
	}

	api = &fakeAPI{getErr: status.Error(codes.Unavailable, "down")}
	if _, err := EnsureRecognizer(context.Background(), api, spec); err == nil || api.created != nil {
		t.Error("non-NotFound errors must not trigger creation")
	}
}
