// Package live proxies browser clients to a multimodal live model session and
// lets the model drive the browser agent through tool calls.
package live

import (
	"context"
	"log/slog"
	"os"

	"google.golang.org/genai"

	"github.com/dazdaz/gemini/internal/agent"
	"github.com/dazdaz/gemini/internal/config"
)

// ModelSession is the slice of *genai.Session the proxy uses.
type ModelSession interface {
	SendClientContent(input genai.LiveClientContentInput) error
	SendRealtimeInput(input genai.LiveRealtimeInput) error
	SendToolResponse(input genai.LiveToolResponseInput) error
	Receive() (*genai.LiveServerMessage, error)
	Close() error
}

// Connector opens one model session per client.
type Connector func(ctx context.Context) (ModelSession, error)

// ToolDispatcher executes the model's tool calls.
type ToolDispatcher interface {
	Execute(ctx context.Context, name string, params map[string]any, conv agent.Conversation) map[string]any
}

// Tools declares the browser agent functions to the model.
func Tools() []*genai.Tool {
	return []*genai.Tool{{
		FunctionDeclarations: []*genai.FunctionDeclaration{
			{
				Name:        agent.ToolExecute,
				Description: "Executes a browser automation task based on a natural language query. Use this for tasks involving web browsing, searching, clicking, typing, or navigating websites.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"query": {
							Type:        genai.TypeString,
							Description: "The detailed, natural language instruction for the web task. For example: 'Go to Google and search for flights from London to Munich'.",
						},
					},
					Required: []string{"query"},
				},
			},
			{
				Name:        agent.ToolStop,
				Description: "Immediately stops and cancels the currently running browser automation task.",
				Parameters: &genai.Schema{
					Type:       genai.TypeObject,
					Properties: map[string]*genai.Schema{},
				},
			},
		},
	}}
}

// ConnectConfig builds the session setup: audio replies in the configured
// voice, the system instructions and the agent tools.
func ConnectConfig(voice, instructions string) *genai.LiveConnectConfig {
	cfg := &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
		},
		Tools: Tools(),
	}
	if instructions != "" {
		cfg.SystemInstruction = genai.NewContentFromText(instructions, genai.RoleUser)
	}
	return cfg
}

// LoadInstructions reads the system instructions file. A missing or
// unreadable file yields empty instructions.
func LoadInstructions(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		slog.Error("failed to load system instructions", "path", path, "error", err)
		return ""
	}
	return string(b)
}

// NewConnector dials the live API with cfg for every client.
func NewConnector(client *genai.Client, cfg config.LiveConfig) Connector {
	setup := ConnectConfig(cfg.Voice, LoadInstructions(cfg.SystemInstructionsPath))
	return func(ctx context.Context) (ModelSession, error) {
		sess, err := client.Live.Connect(ctx, cfg.Model, setup)
		if err != nil {
			return nil, err
		}
		return sess, nil
	}
}
