package live

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/dazdaz/gemini/internal/trace"
)

const (
	readLimit    = 4 << 20
	writeTimeout = 10 * time.Second

	// inputMIMEType is the client microphone format.
	inputMIMEType = "audio/pcm;rate=16000"
)

// Event types exchanged with the browser client.
const (
	TypeAudio        = "audio"
	TypeText         = "text"
	TypeTurnComplete = "turn_complete"
	TypeInterrupted  = "interrupted"
	TypeToolCall     = "tool_call"
	TypeError        = "error"
)

// Event is a client-bound or client-sent message.
type Event struct {
	Type    string `json:"type"`
	Data    string `json:"data,omitempty"`
	Text    string `json:"text,omitempty"`
	Name    string `json:"name,omitempty"`
	Message string `json:"message,omitempty"`
}

// Proxy serves one model session per WebSocket client.
type Proxy struct {
	connect Connector
	tools   ToolDispatcher
}

// NewProxy creates a proxy.
func NewProxy(connect Connector, tools ToolDispatcher) *Proxy {
	return &Proxy{connect: connect, tools: tools}
}

// Handler returns the HTTP handler.
func (p *Proxy) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", p.handleWebSocket)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})
	return trace.Middleware(mux)
}

// conversation is the model session shared by the client loop, the receive
// loop and the background task. genai sessions allow a single writer.
type conversation struct {
	mu    sync.Mutex
	model ModelSession
}

// SendTurn posts text as a complete user turn.
func (c *conversation) SendTurn(_ context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model.SendClientContent(genai.LiveClientContentInput{
		Turns: []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
	})
}

func (c *conversation) sendAudio(pcm []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model.SendRealtimeInput(genai.LiveRealtimeInput{
		Media: &genai.Blob{MIMEType: inputMIMEType, Data: pcm},
	})
}

func (c *conversation) sendToolResponses(responses []*genai.FunctionResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model.SendToolResponse(genai.LiveToolResponseInput{FunctionResponses: responses})
}

type client struct {
	conn *websocket.Conn
}

func (c *client) send(ctx context.Context, ev Event) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, c.conn, ev)
}

func (p *Proxy) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()
	conn.SetReadLimit(readLimit)

	ctx, cancel := context.WithCancel(trace.WithSession(r.Context(), uuid.NewString()))
	defer cancel()
	log := trace.Logger(ctx)
	cl := &client{conn: conn}

	model, err := p.connect(ctx)
	if err != nil {
		log.Error("could not open model session", "error", err)
		_ = cl.send(ctx, Event{Type: TypeError, Message: fmt.Sprintf("Failed to connect to model: %v", err)})
		return
	}
	conv := &conversation{model: model}
	log.Info("live session opened", "remote", r.RemoteAddr)

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer cancel()
		p.receive(ctx, cl, conv)
	}()

	p.forward(ctx, cl, conv)
	// Closing the model session unblocks Receive.
	cancel()
	_ = model.Close()
	<-done
	log.Info("live session closed")
}

// forward relays client audio and text to the model until the client leaves.
func (p *Proxy) forward(ctx context.Context, cl *client, conv *conversation) {
	log := trace.Logger(ctx)
	for {
		typ, data, err := cl.conn.Read(ctx)
		if err != nil {
			log.Debug("websocket read error", "error", err)
			return
		}
		if typ == websocket.MessageBinary {
			if err := conv.sendAudio(data); err != nil {
				log.Warn("could not forward audio", "error", err)
				return
			}
			continue
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			log.Debug("malformed message", "error", err)
			continue
		}
		switch ev.Type {
		case TypeAudio:
			pcm, err := base64.StdEncoding.DecodeString(ev.Data)
			if err != nil {
				_ = cl.send(ctx, Event{Type: TypeError, Message: fmt.Sprintf("Invalid audio data: %v", err)})
				continue
			}
			err = conv.sendAudio(pcm)
			if err != nil {
				log.Warn("could not forward audio", "error", err)
				return
			}
		case TypeText:
			if err := conv.SendTurn(ctx, ev.Text); err != nil {
				log.Warn("could not forward text", "error", err)
				return
			}
		default:
			log.Debug("unknown message type", "type", ev.Type)
		}
	}
}

// receive relays model output to the client and answers tool calls.
func (p *Proxy) receive(ctx context.Context, cl *client, conv *conversation) {
	log := trace.Logger(ctx)
	for {
		msg, err := conv.model.Receive()
		if err != nil {
			if ctx.Err() == nil {
				log.Warn("model session ended", "error", err)
				_ = cl.send(ctx, Event{Type: TypeError, Message: err.Error()})
			}
			return
		}

		if sc := msg.ServerContent; sc != nil {
			if sc.ModelTurn != nil {
				for _, part := range sc.ModelTurn.Parts {
					if part.InlineData != nil && len(part.InlineData.Data) > 0 {
						_ = cl.send(ctx, Event{Type: TypeAudio, Data: base64.StdEncoding.EncodeToString(part.InlineData.Data)})
					}
					if part.Text != "" {
						_ = cl.send(ctx, Event{Type: TypeText, Text: part.Text})
					}
				}
			}
			if sc.Interrupted {
				_ = cl.send(ctx, Event{Type: TypeInterrupted})
			}
			if sc.TurnComplete {
				_ = cl.send(ctx, Event{Type: TypeTurnComplete})
			}
		}

		if tc := msg.ToolCall; tc != nil && len(tc.FunctionCalls) > 0 {
			for _, call := range tc.FunctionCalls {
				_ = cl.send(ctx, Event{Type: TypeToolCall, Name: call.Name})
			}
			go p.answer(ctx, conv, tc.FunctionCalls)
		}
	}
}

// answer executes calls and returns every response in one message.
func (p *Proxy) answer(ctx context.Context, conv *conversation, calls []*genai.FunctionCall) {
	log := trace.Logger(ctx)
	responses := make([]*genai.FunctionResponse, 0, len(calls))
	for _, call := range calls {
		log.Info("tool call", "name", call.Name, "args", call.Args)
		out := p.tools.Execute(ctx, call.Name, call.Args, conv)
		responses = append(responses, &genai.FunctionResponse{ID: call.ID, Name: call.Name, Response: out})
	}
	if err := conv.sendToolResponses(responses); err != nil && ctx.Err() == nil {
		log.Warn("could not send tool responses", "error", err)
	}
}
