package webapp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	apperrors "github.com/dazdaz/gemini/internal/errors"
	"github.com/dazdaz/gemini/internal/transcribe"
)

type fakeDownloader struct {
	targets []string
	err     error
}

func (f *fakeDownloader) DownloadYouTubeAudio(_ context.Context, _, target string) (string, error) {
	f.targets = append(f.targets, target)
	if f.err != nil {
		return "", f.err
	}
	p := filepath.Join(target, "My Talk.mp3")
	return p, os.WriteFile(p, []byte("mp3"), 0o644)
}

type fakeTranscriber struct {
	checkErr error
	err      error
	reqs     []transcribe.Request
}

func (f *fakeTranscriber) CheckAPI(context.Context, string) error { return f.checkErr }

func (f *fakeTranscriber) Transcribe(_ context.Context, req transcribe.Request) (*transcribe.Result, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	res := &transcribe.Result{Transcription: "hello", AudioSeconds: 12.5, TotalCost: 0.123456}
	if req.Summarize {
		res.Summary = "hi"
	}
	return res, nil
}

func do(t *testing.T, a *App, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.Echo().ServeHTTP(rec, req)

	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return rec, out
}

func TestHealthAndModels(t *testing.T) {
	a := New(&fakeDownloader{}, &fakeTranscriber{}, Options{})

	rec, out := do(t, a, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK || out["status"] != "healthy" {
		t.Errorf("health = %d %v", rec.Code, out)
	}

	_, out = do(t, a, http.MethodGet, "/models", "")
	if out["default"] != transcribe.DefaultModel {
		t.Errorf("default = %v", out["default"])
	}
	if models, _ := out["models"].([]any); len(models) != len(transcribe.Models) {
		t.Errorf("models = %v", out["models"])
	}
}

func TestTranscribeValidation(t *testing.T) {
	tests := []struct {
		name string
		tr   Transcriber
		body string
		code int
		msg  string
	}{
		{"missing key", nil, `{"youtube_url":"https://youtu.be/x"}`, http.StatusInternalServerError, missingKeyMessage},
		{"empty url", &fakeTranscriber{}, `{}`, http.StatusBadRequest, "Please provide a YouTube URL"},
		{"bad url", &fakeTranscriber{}, `{"youtube_url":"https://vimeo.com/1"}`, http.StatusBadRequest, "Invalid YouTube URL. Please provide a valid YouTube video URL."},
		{"api disabled", &fakeTranscriber{checkErr: errors.New("403")}, `{"youtube_url":"https://youtu.be/x"}`, http.StatusInternalServerError, apiDisabledMessage},
		{"transcription error", &fakeTranscriber{err: apperrors.New(apperrors.CodeTranscriptionFailed, "boom")}, `{"youtube_url":"https://youtu.be/x"}`, http.StatusInternalServerError, "boom"},
		{"wrapped transcription error", &fakeTranscriber{err: apperrors.Wrap(errors.New("quota exceeded"), apperrors.CodeTranscriptionFailed, "transcription failed")}, `{"youtube_url":"https://youtu.be/x"}`, http.StatusInternalServerError, "transcription failed: quota exceeded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(&fakeDownloader{}, tt.tr, Options{TempDir: t.TempDir()})
			rec, out := do(t, a, http.MethodPost, "/transcribe", tt.body)
			if rec.Code != tt.code {
				t.Errorf("status = %d, want %d", rec.Code, tt.code)
			}
			if out["success"] != false || out["error"] != tt.msg {
				t.Errorf("body = %v, want error %q", out, tt.msg)
			}
		})
	}
}

func TestTranscribeYouTube(t *testing.T) {
	dl := &fakeDownloader{}
	tr := &fakeTranscriber{}
	tmp := t.TempDir()
	a := New(dl, tr, Options{TempDir: tmp})

	rec, out := do(t, a, http.MethodPost, "/transcribe",
		`{"youtube_url":" https://www.youtube.com/watch?v=abc ","generate_summary":true,"save_audio":true,"model":"not-a-model"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	if out["success"] != true || out["transcription"] != "hello" || out["summary"] != "hi" {
		t.Errorf("body = %v", out)
	}
	if out["video_title"] != "My Talk" || out["model_used"] != transcribe.DefaultModel {
		t.Errorf("title/model = %v / %v", out["video_title"], out["model_used"])
	}
	if out["estimated_cost"] != 0.1235 || out["audio_duration_seconds"] != 12.5 {
		t.Errorf("cost/duration = %v / %v", out["estimated_cost"], out["audio_duration_seconds"])
	}
	if out["audio_base64"] != base64.StdEncoding.EncodeToString([]byte("mp3")) {
		t.Errorf("audio_base64 = %v", out["audio_base64"])
	}

	req := tr.reqs[0]
	if req.InlineLimit != 20*transcribe.MB || !req.Summarize || req.KeepUploaded {
		t.Errorf("request = %+v", req)
	}
	if !strings.HasPrefix(filepath.Base(dl.targets[0]), "yt_transcribe_") {
		t.Errorf("work dir = %s", dl.targets[0])
	}
	if _, err := os.Stat(dl.targets[0]); !os.IsNotExist(err) {
		t.Error("work dir should be removed after the request")
	}
}

func TestTranscribeOptionalFieldsOmitted(t *testing.T) {
	a := New(&fakeDownloader{}, &fakeTranscriber{}, Options{TempDir: t.TempDir()})
	_, out := do(t, a, http.MethodPost, "/transcribe", `{"youtube_url":"https://youtu.be/x"}`)
	if _, ok := out["summary"]; ok {
		t.Error("summary should be omitted")
	}
	if _, ok := out["audio_base64"]; ok {
		t.Error("audio_base64 should be omitted")
	}
}

func TestTranscribeLocalFile(t *testing.T) {
	dl := &fakeDownloader{}
	tr := &fakeTranscriber{}
	a := New(dl, tr, Options{})

	p := filepath.Join(t.TempDir(), "lecture.wav")
	if err := os.WriteFile(p, []byte("RIFF"), 0o644); err != nil {
		t.Fatal(err)
	}
	body, _ := json.Marshal(map[string]any{"file_path": p, "model": "gemini-2.5-pro"})
	rec, out := do(t, a, http.MethodPost, "/transcribe", string(body))
	if rec.Code != http.StatusOK || out["video_title"] != "lecture" || out["model_used"] != "gemini-2.5-pro" {
		t.Errorf("status = %d, body = %v", rec.Code, out)
	}
	if len(dl.targets) != 0 || tr.reqs[0].Path != p {
		t.Error("local file should be transcribed without downloading")
	}

	body, _ = json.Marshal(map[string]any{"file_path": filepath.Join(t.TempDir(), "missing.mp3")})
	rec, _ = do(t, a, http.MethodPost, "/transcribe", string(body))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing file status = %d, want 404", rec.Code)
	}
}

func TestDownloadAudio(t *testing.T) {
	dl := &fakeDownloader{}
	a := New(dl, nil, Options{TempDir: t.TempDir()})

	rec, out := do(t, a, http.MethodPost, "/download-audio", `{"youtube_url":"https://youtu.be/x"}`)
	if rec.Code != http.StatusOK || out["success"] != true || out["video_title"] != "My Talk" {
		t.Fatalf("status = %d, body = %v", rec.Code, out)
	}
	if out["audio_base64"] != base64.StdEncoding.EncodeToString([]byte("mp3")) {
		t.Errorf("audio_base64 = %v", out["audio_base64"])
	}
	if !strings.HasPrefix(filepath.Base(dl.targets[0]), "yt_audio_") {
		t.Errorf("work dir = %s", dl.targets[0])
	}

	dl.err = apperrors.New(apperrors.CodeDownloadFailed, "Failed to download YouTube audio")
	rec, out = do(t, a, http.MethodPost, "/download-audio", `{"youtube_url":"https://youtu.be/x"}`)
	if rec.Code != http.StatusInternalServerError || out["error"] != "Failed to download YouTube audio" {
		t.Errorf("status = %d, body = %v", rec.Code, out)
	}

	rec, _ = do(t, a, http.MethodPost, "/download-audio", `{"youtube_url":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty url status = %d, want 400", rec.Code)
	}
}
