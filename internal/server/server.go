// Package server exposes live transcription sessions over WebSocket and the
// session artifacts over HTTP.
package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/dazdaz/gemini/internal/orchestrator"
	"github.com/dazdaz/gemini/internal/trace"
)

// inbound is the union of client messages.
type inbound struct {
	Type           string `json:"type"`
	SourceLanguage string `json:"source_language,omitempty"`
	TargetLanguage string `json:"target_language,omitempty"`
	ShowTimestamps bool   `json:"show_timestamps,omitempty"`
	VoiceGender    string `json:"voice_gender,omitempty"`
	Audio          string `json:"audio,omitempty"`
	Text           string `json:"text,omitempty"`
}

// Status reports which upstream clients were initialized at startup.
type Status struct {
	SpeechClient bool
	TTSClient    bool
	Translator   bool
	Recognizer   bool
}

// Health is the /health response body.
type Health struct {
	Status         string `json:"status"`
	SpeechClient   bool   `json:"speech_client"`
	TTSClient      bool   `json:"tts_client"`
	Translator     bool   `json:"translator"`
	Recognizer     bool   `json:"recognizer"`
	ActiveSessions int    `json:"active_sessions"`
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	sessions *orchestrator.Manager
	status   Status
}

// New creates a new server.
func New(sessions *orchestrator.Manager, status Status) *Server {
	return &Server{sessions: sessions, status: status}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /api/download/{id}/audio", s.handleDownloadAudio)
	mux.HandleFunc("GET /api/download/{id}/text", s.handleDownloadText)
	mux.HandleFunc("GET /api/download/{id}/translation", s.handleDownloadTranslation)
	mux.HandleFunc("GET /api/download/{id}/tts", s.handleDownloadTTS)

	// Apply middleware: trace -> CORS
	return corsMiddleware(trace.Middleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// wsSink writes session messages to one connection.
type wsSink struct {
	conn *websocket.Conn
}

func (k *wsSink) Send(ctx context.Context, msg any) error {
	ctx, cancel := context.WithTimeout(ctx, WriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, k.conn, msg)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()
	conn.SetReadLimit(ReadLimit)

	baseCtx := r.Context()
	sink := &wsSink{conn: conn}
	sess := s.sessions.Open(baseCtx, sink)
	defer s.sessions.Close(sess.ID())

	baseCtx = trace.WithSession(baseCtx, sess.ID())
	log := trace.Logger(baseCtx)
	log.Info("websocket connected", "remote", r.RemoteAddr)

	for {
		typ, data, err := conn.Read(baseCtx)
		if err != nil {
			log.Debug("websocket read error", "error", err)
			return
		}
		if typ == websocket.MessageBinary {
			sess.PushAudio(data)
			continue
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Debug("malformed message", "error", err)
			continue
		}

		ctx := baseCtx
		if tc, ok := trace.ExtractFromJSON(data); ok {
			ctx = trace.WithContext(ctx, tc)
		} else {
			ctx, _ = trace.EnsureContext(ctx)
		}
		s.dispatch(ctx, sess, sink, msg)
	}
}

func (s *Server) dispatch(ctx context.Context, sess *orchestrator.Session, sink *wsSink, msg inbound) {
	log := trace.Logger(ctx)

	switch msg.Type {
	case typeStartSession:
		sess.Start(orchestrator.Options{
			SourceLanguage: msg.SourceLanguage,
			TargetLanguage: msg.TargetLanguage,
			ShowTimestamps: msg.ShowTimestamps,
			VoiceGender:    msg.VoiceGender,
		})
	case typeAudioData:
		chunk, err := base64.StdEncoding.DecodeString(msg.Audio)
		if err != nil {
			log.Warn("invalid audio payload", "error", err)
			_ = sink.Send(ctx, orchestrator.NewError(fmt.Sprintf("Invalid audio data: %v", err)))
			return
		}
		sess.PushAudio(chunk)
	case typeStopSession:
		sess.Stop()
	case typeRequestTTS:
		go sess.Synthesize(ctx, msg.Text, msg.TargetLanguage, msg.VoiceGender)
	default:
		log.Debug("unknown message type", "type", msg.Type)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, Health{
		Status:         "healthy",
		SpeechClient:   s.status.SpeechClient,
		TTSClient:      s.status.TTSClient,
		Translator:     s.status.Translator,
		Recognizer:     s.status.Recognizer,
		ActiveSessions: s.sessions.ActiveCount(),
	})
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*orchestrator.Session, bool) {
	sess, ok := s.sessions.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Session not found")
	}
	return sess, ok
}

func (s *Server) handleDownloadAudio(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	wav, ok := sess.Recording()
	if !ok {
		writeError(w, http.StatusNotFound, "No audio recorded")
		return
	}
	attach(w, "audio/wav", "recording_"+sess.ID()+".wav", wav)
}

func (s *Server) handleDownloadText(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	attach(w, "text/plain; charset=utf-8", "transcription_"+sess.ID()+".txt", []byte(sess.TranscriptText()))
}

func (s *Server) handleDownloadTranslation(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	text := sess.TranslatedText()
	if text == "" {
		writeError(w, http.StatusNotFound, "No translation available")
		return
	}
	attach(w, "text/plain; charset=utf-8", "translation_"+sess.ID()+".txt", []byte(text))
}

func (s *Server) handleDownloadTTS(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	audio := sess.LastSynthesized()
	if len(audio) == 0 {
		writeError(w, http.StatusNotFound, "No TTS audio available")
		return
	}
	attach(w, "audio/mpeg", "translation_audio_"+sess.ID()+".mp3", audio)
}

func attach(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
