// Package gemini wires the generative language client shared by the
// translation, transcription, live proxy and browser agent components.
package gemini

import (
	"context"
	"io"

	"google.golang.org/genai"

	"github.com/dazdaz/gemini/internal/config"
	apperrors "github.com/dazdaz/gemini/internal/errors"
)

// Generator is the slice of genai.Models used for one-shot generation.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// TokenCounter is the slice of genai.Models used for input token counting.
type TokenCounter interface {
	CountTokens(ctx context.Context, model string, contents []*genai.Content, config *genai.CountTokensConfig) (*genai.CountTokensResponse, error)
}

// Files is the slice of genai.Files used for large audio payloads.
type Files interface {
	Upload(ctx context.Context, r io.Reader, config *genai.UploadFileConfig) (*genai.File, error)
	Get(ctx context.Context, name string, config *genai.GetFileConfig) (*genai.File, error)
	Delete(ctx context.Context, name string, config *genai.DeleteFileConfig) (*genai.DeleteFileResponse, error)
}

// NewClient creates a genai client for the Gemini Developer API, or Vertex AI
// when configured.
func NewClient(ctx context.Context, g config.GoogleConfig) (*genai.Client, error) {
	cc := &genai.ClientConfig{APIKey: g.APIKey, Backend: genai.BackendGeminiAPI}
	if g.UseVertexAI {
		cc = &genai.ClientConfig{Backend: genai.BackendVertexAI, Project: g.Project, Location: g.Location}
	} else if err := g.ValidateAPIKey(); err != nil {
		return nil, err
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeConfigInvalid, "create genai client")
	}
	return client, nil
}

// UserText wraps text as a single user turn.
func UserText(text string) []*genai.Content {
	return []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
}

// Models combines generation and token counting, as genai.Models provides.
type Models interface {
	Generator
	TokenCounter
}
