package orchestrator

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/dazdaz/gemini/internal/orchestrator/transcript"
	"github.com/dazdaz/gemini/internal/speech"
	"github.com/dazdaz/gemini/internal/trace"
)

// worker owns one recognition stream for one started session.
type worker struct {
	s      *Session
	opts   Options
	queue  chan []byte
	store  *transcript.Store
	cancel context.CancelFunc
	ready  chan struct{}
	done   chan struct{}
}

func newWorker(s *Session, opts Options, queue chan []byte, store *transcript.Store, cancel context.CancelFunc) *worker {
	return &worker{
		s:      s,
		opts:   opts,
		queue:  queue,
		store:  store,
		cancel: cancel,
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (w *worker) run(ctx context.Context) {
	defer close(w.done)
	defer w.cancel()

	ctx, span := trace.StartSpan(ctx, "recognition_stream")
	defer span.End()
	span.SetAttr("language", w.opts.SourceLanguage)
	log := trace.Logger(ctx)

	rate := w.s.deps.Config.SampleRate
	if rate <= 0 {
		rate = 16000
	}
	stream, err := w.s.deps.Recognizer.Stream(ctx, speech.StreamConfig{
		Language:   w.opts.SourceLanguage,
		SampleRate: rate,
		Channels:   channels,
	})
	if err != nil {
		span.SetAttr("error", err.Error())
		log.Error("open recognition stream", "error", err)
		if ctx.Err() == nil {
			w.s.emit(NewError(err.Error()))
		}
		return
	}
	close(w.ready)

	sendDone := make(chan struct{})
	go func() {
		defer close(sendDone)
		w.send(ctx, stream)
	}()

	w.receive(ctx, stream)
	// Unblock the sender if the response side ended first.
	w.cancel()
	<-sendDone
	log.Debug("recognition stream closed")
}

// send forwards queued chunks until the stream flag clears or ctx ends.
func (w *worker) send(ctx context.Context, stream speech.Stream) {
	defer func() { _ = stream.CloseSend() }()

	timer := time.NewTimer(senderPollInterval)
	defer timer.Stop()
	for w.s.streamActive.Load() {
		select {
		case <-ctx.Done():
			return
		case chunk := <-w.queue:
			if err := stream.Send(chunk); err != nil {
				if ctx.Err() == nil {
					trace.Logger(ctx).Warn("send audio", "error", err)
				}
				return
			}
		case <-timer.C:
			timer.Reset(senderPollInterval)
		}
	}
}

func (w *worker) receive(ctx context.Context, stream speech.Stream) {
	for {
		results, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			if ctx.Err() == nil && w.s.streamActive.Load() {
				trace.Logger(ctx).Error("recognition error", "error", err)
				w.s.emit(NewError(err.Error()))
			}
			return
		}
		if !w.s.streamActive.Load() || ctx.Err() != nil {
			return
		}
		for _, r := range results {
			w.handle(ctx, r)
		}
	}
}

func (w *worker) handle(ctx context.Context, r speech.Result) {
	msg := Transcription{
		Type:      TypeTranscription,
		Original:  r.Transcript,
		IsFinal:   r.IsFinal,
		Timestamp: w.s.deps.now().Format(time.RFC3339Nano),
	}
	if w.opts.ShowTimestamps && r.HasOffset {
		offset := r.EndOffset.Seconds()
		msg.ChirpTimestamp = &offset
	}
	if !r.IsFinal {
		w.s.emit(msg)
		return
	}

	confidence := r.Confidence
	msg.Confidence = &confidence
	entry := transcript.Entry{Original: r.Transcript, Confidence: confidence}

	res := w.s.deps.Translator.Translate(ctx, r.Transcript, w.opts.TargetLanguage)
	if ctx.Err() != nil {
		return
	}
	if res.OK() {
		text := res.Text
		msg.Translation = &text
		entry.Translation = text
		entry.Translated = true
	} else {
		trace.Logger(ctx).Warn("translation failed", "error", res.Err)
		msg.TranslationError = res.Err.Error()
	}

	w.store.Add(entry)
	w.s.emit(msg)
}

// join waits for the worker to exit, cancelling it after grace. It reports
// whether the worker exited.
func (w *worker) join(grace time.Duration) bool {
	if grace <= 0 {
		grace = time.Second
	}
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-w.done:
		return true
	case <-timer.C:
	}

	w.cancel()
	timer.Reset(grace)
	select {
	case <-w.done:
		return true
	case <-timer.C:
		return false
	}
}
