// Mic client - streams the local microphone to a translator server and prints
// the transcriptions it sends back.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/dazdaz/gemini/internal/audio"
	"github.com/dazdaz/gemini/internal/orchestrator"
)

const (
	sampleRate  = 16000
	chunkBuffer = 64
)

type startSession struct {
	Type           string `json:"type"`
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
	ShowTimestamps bool   `json:"show_timestamps"`
	VoiceGender    string `json:"voice_gender"`
}

type control struct {
	Type string `json:"type"`
}

// event is the union of the server messages the client prints.
type event struct {
	Type             string  `json:"type"`
	SessionID        string  `json:"session_id"`
	Original         string  `json:"original"`
	Translation      *string `json:"translation"`
	TranslationError string  `json:"translation_error"`
	IsFinal          bool    `json:"is_final"`
	Timestamp        string  `json:"timestamp"`
	Message          string  `json:"message"`
}

func main() {
	server := flag.String("server", "ws://localhost:5000/ws", "Translator WebSocket URL")
	source := flag.String("source", orchestrator.DefaultSourceLanguage, "Source language code")
	target := flag.String("target", orchestrator.DefaultTargetLanguage, "Target language code")
	timestamps := flag.Bool("timestamps", false, "Ask the server for Chirp timestamps")
	interim := flag.Bool("interim", false, "Print interim results")
	exclude := flag.String("exclude", "", "Comma-separated input device names to skip")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var excluded []string
	if *exclude != "" {
		excluded = strings.Split(*exclude, ",")
	}
	mic, err := audio.NewMicrophone(sampleRate, chunkBuffer, excluded)
	if err != nil {
		slog.Error("failed to initialize audio", "error", err)
		os.Exit(1)
	}

	dialCtx, dialCancel := context.WithTimeout(ctx, 10*time.Second)
	conn, _, err := websocket.Dial(dialCtx, *server, nil)
	dialCancel()
	if err != nil {
		slog.Error("failed to connect", "server", *server, "error", err)
		os.Exit(1)
	}
	defer func() { _ = conn.CloseNow() }()

	// The session outlives ctx so stop_session can still be sent on Ctrl-C.
	sessCtx, sessCancel := context.WithCancel(context.Background())
	defer sessCancel()

	if err := wsjson.Write(sessCtx, conn, startSession{
		Type:           "start_session",
		SourceLanguage: *source,
		TargetLanguage: *target,
		ShowTimestamps: *timestamps,
		VoiceGender:    orchestrator.DefaultVoiceGender,
	}); err != nil {
		slog.Error("failed to start session", "error", err)
		os.Exit(1)
	}

	device, err := mic.Start(ctx)
	if err != nil {
		slog.Error("failed to start microphone", "error", err)
		os.Exit(1)
	}
	defer mic.Stop()
	slog.Info("listening", "device", device, "source", *source, "target", *target)

	go read(sessCtx, conn, *interim)

	for {
		select {
		case <-ctx.Done():
			mic.Stop()
			stopCtx, stopCancel := context.WithTimeout(sessCtx, 3*time.Second)
			_ = wsjson.Write(stopCtx, conn, control{Type: "stop_session"})
			stopCancel()
			// Let the final segments and the acknowledgement arrive.
			time.Sleep(time.Second)
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return
		case chunk, ok := <-mic.Output():
			if !ok {
				return
			}
			if err := conn.Write(sessCtx, websocket.MessageBinary, chunk); err != nil {
				slog.Error("failed to send audio", "error", err)
				return
			}
		}
	}
}

func read(ctx context.Context, conn *websocket.Conn, interim bool) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var ev event
		if err := json.Unmarshal(data, &ev); err != nil {
			continue
		}
		switch ev.Type {
		case orchestrator.TypeConnected:
			slog.Info("connected", "session", ev.SessionID)
		case orchestrator.TypeTranscription:
			if !ev.IsFinal {
				if interim {
					fmt.Printf("  ... %s\r", ev.Original)
				}
				continue
			}
			fmt.Printf("[%s] %s\n", ev.Timestamp, ev.Original)
			switch {
			case ev.Translation != nil:
				fmt.Printf("       -> %s\n", *ev.Translation)
			case ev.TranslationError != "":
				fmt.Printf("       !! %s\n", ev.TranslationError)
			}
		case orchestrator.TypeSessionStopped:
			slog.Info(ev.Message)
		case orchestrator.TypeError:
			slog.Error("server error", "message", ev.Message)
		}
	}
}
