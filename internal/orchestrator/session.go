package orchestrator

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dazdaz/gemini/internal/audio/wav"
	"github.com/dazdaz/gemini/internal/orchestrator/transcript"
	"github.com/dazdaz/gemini/internal/syncx"
	"github.com/dazdaz/gemini/internal/trace"
)

const defaultQueueSize = 512

// Session is the state of one client connection. Handlers and the session's
// worker both touch it; mutable fields shared between them sit behind mu or
// are atomics.
type Session struct {
	id   string
	deps *Deps
	sink Sink
	ctx  context.Context

	active       atomic.Bool
	streamActive atomic.Bool

	mu       sync.Mutex
	opts     Options
	queue    chan []byte
	pending  [][]byte
	flushed  bool
	recorded [][]byte
	store    *transcript.Store
	worker   *worker

	tts *syncx.RWGuard[[]byte]
}

func newSession(ctx context.Context, id string, deps *Deps, sink Sink) *Session {
	return &Session{
		id:    id,
		deps:  deps,
		sink:  sink,
		ctx:   trace.WithSession(ctx, id),
		store: transcript.NewStore(),
		tts:   syncx.NewGuard[[]byte](nil),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Active reports whether a session is started and not yet stopped.
func (s *Session) Active() bool { return s.active.Load() }

// Options returns the options of the current or last started session.
func (s *Session) Options() Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts
}

// Start resets the session state and spawns its worker. Any previous worker
// is stopped first. session_started is emitted once the recognition stream is
// open and buffered audio has been flushed into it.
func (s *Session) Start(opts Options) {
	opts = opts.WithDefaults()
	s.halt(s.deps.Config.StopGrace)

	size := s.deps.Config.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	ctx, cancel := context.WithCancel(s.ctx)
	w := newWorker(s, opts, make(chan []byte, size), transcript.NewStore(), cancel)

	s.mu.Lock()
	s.opts = opts
	s.queue = w.queue
	s.pending = nil
	s.flushed = false
	s.recorded = nil
	s.store = w.store
	s.worker = w
	s.mu.Unlock()
	s.tts.Set(nil)

	s.active.Store(true)
	s.streamActive.Store(true)

	trace.Logger(s.ctx).Info("session starting",
		"source_language", opts.SourceLanguage,
		"target_language", opts.TargetLanguage,
		"show_timestamps", opts.ShowTimestamps)

	go w.run(ctx)
	go s.awaitReady(w)
}

func (s *Session) awaitReady(w *worker) {
	timeout := s.deps.Config.ReadyTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-w.ready:
		if !s.flush(w) {
			return
		}
		s.emit(SessionStarted{
			Type:           TypeSessionStarted,
			SourceLanguage: w.opts.SourceLanguage,
			TargetLanguage: w.opts.TargetLanguage,
			ShowTimestamps: w.opts.ShowTimestamps,
			VoiceGender:    w.opts.VoiceGender,
		})
	case <-w.done:
	case <-timer.C:
		trace.Logger(s.ctx).Warn("recognition stream not ready", "timeout", timeout)
		w.cancel()
		s.emit(NewError("Speech recognition did not start in time"))
	}
}

// flush moves buffered audio into w's queue, once. It reports false if w is
// no longer the session's worker or the session was halted first.
func (s *Session) flush(w *worker) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.worker != w || s.flushed {
		return false
	}
	for _, chunk := range s.pending {
		s.enqueueLocked(chunk)
	}
	s.pending = nil
	s.flushed = true
	return true
}

// PushAudio records a client chunk and routes it to the live queue or to the
// pending buffer.
func (s *Session) PushAudio(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recorded = append(s.recorded, chunk)
	if s.flushed && s.streamActive.Load() {
		s.enqueueLocked(chunk)
		return
	}
	s.pending = append(s.pending, chunk)
}

func (s *Session) enqueueLocked(chunk []byte) {
	select {
	case s.queue <- chunk:
	default:
		trace.Logger(s.ctx).Warn("audio queue full, dropping chunk", "bytes", len(chunk))
	}
}

// Stop requests a cooperative stop, waits for the worker within the grace
// period and acknowledges.
func (s *Session) Stop() {
	s.halt(s.deps.Config.StopGrace)
	s.active.Store(false)
	trace.Logger(s.ctx).Info("session stopped", "segments", s.currentStore().Len())
	s.emit(SessionStopped{Type: TypeSessionStopped, Message: stoppedMessage})
}

// halt clears the stream flag and joins the current worker, cancelling it if
// it outlives grace.
func (s *Session) halt(grace time.Duration) {
	s.streamActive.Store(false)
	s.mu.Lock()
	w := s.worker
	// A worker that becomes ready after this point must not flush or
	// announce itself.
	s.flushed = true
	s.pending = nil
	s.mu.Unlock()
	if w == nil {
		return
	}
	if !w.join(grace) {
		trace.Logger(s.ctx).Warn("worker did not exit in time")
	}
}

// Synthesize speaks text in the target language and emits tts_audio.
// Blank text is ignored.
func (s *Session) Synthesize(ctx context.Context, text, language, gender string) {
	log := trace.Logger(s.ctx)
	if strings.TrimSpace(text) == "" {
		log.Warn("empty text for tts")
		return
	}
	if language == "" {
		language = DefaultTargetLanguage
	}
	if gender == "" {
		gender = DefaultVoiceGender
	}

	ctx, span := trace.StartSpan(trace.WithSession(ctx, s.id), "synthesize")
	defer span.End()
	span.SetAttr("language", language)

	data, err := s.deps.Synthesizer.Synthesize(ctx, text, language, gender)
	if err != nil {
		span.SetAttr("error", err.Error())
		log.Error("tts error", "error", err)
		s.emit(NewError(fmt.Sprintf("Text-to-speech error: %v", err)))
		return
	}
	s.tts.Set(data)
	s.emit(TTSAudio{
		Type:        TypeTTSAudio,
		Audio:       base64.StdEncoding.EncodeToString(data),
		Format:      "mp3",
		VoiceGender: gender,
	})
}

// Recording returns the recorded audio as a WAV file, or false if none.
func (s *Session) Recording() ([]byte, bool) {
	s.mu.Lock()
	chunks := make([][]byte, len(s.recorded))
	copy(chunks, s.recorded)
	s.mu.Unlock()
	if len(chunks) == 0 {
		return nil, false
	}
	rate := s.deps.Config.SampleRate
	if rate <= 0 {
		rate = 16000
	}
	return wav.Encode(chunks, rate, channels), true
}

func (s *Session) currentStore() *transcript.Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store
}

// TranslatedText returns the accumulated translation.
func (s *Session) TranslatedText() string { return s.currentStore().Translation() }

// TranscriptText renders the plain-text transcript download.
func (s *Session) TranscriptText() string {
	opts := s.Options()
	store := s.currentStore()

	var b strings.Builder
	b.WriteString("Live Transcription Session\n")
	b.WriteString("Generated: " + s.deps.now().Format("2006-01-02 15:04:05") + "\n")
	b.WriteString("Source Language: " + orUnknown(opts.SourceLanguage) + "\n")
	b.WriteString("Target Language: " + orUnknown(opts.TargetLanguage) + "\n\n")
	b.WriteString("ORIGINAL TEXT:\n")
	b.WriteString(store.Original() + "\n\n")
	b.WriteString("TRANSLATION:\n")
	b.WriteString(store.Translation() + "\n")
	return b.String()
}

// LastSynthesized returns the most recent TTS audio, or nil.
func (s *Session) LastSynthesized() []byte { return s.tts.Get() }

func orUnknown(v string) string {
	if v == "" {
		return "Unknown"
	}
	return v
}

func (s *Session) emit(msg any) {
	if err := s.sink.Send(s.ctx, msg); err != nil {
		trace.Logger(s.ctx).Debug("send failed", "error", err)
	}
}
