// Package translate turns finalized source-language text into the target
// language with a Gemini text model.
package translate

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	apperrors "github.com/dazdaz/gemini/internal/errors"
	"github.com/dazdaz/gemini/internal/gemini"
	"github.com/dazdaz/gemini/internal/resilience"
	"github.com/dazdaz/gemini/internal/trace"
)

const promptTemplate = "Translate the following text to %s. Only return the translation, nothing else:\n\n%s"

// Result is either a translation or the reason translation failed.
// An OK result may carry empty Text when the input was blank.
type Result struct {
	Text string
	Err  error
}

// OK reports whether the translation succeeded.
func (r Result) OK() bool { return r.Err == nil }

// Translator wraps a Gemini model behind a circuit breaker.
type Translator struct {
	gen     gemini.Generator
	model   string
	breaker *resilience.Breaker
}

// New creates a Translator for model.
func New(gen gemini.Generator, model string) *Translator {
	return &Translator{
		gen:     gen,
		model:   model,
		breaker: resilience.New(resilience.FastConfig("translate")),
	}
}

// Translate translates text into the named target language. Blank input yields
// an empty OK result without calling the model.
func (t *Translator) Translate(ctx context.Context, text, targetLanguage string) Result {
	if strings.TrimSpace(text) == "" {
		return Result{}
	}

	ctx, span := trace.StartSpan(ctx, "translate")
	defer func() {
		span.End()
		trace.Logger(ctx).Debug("translation", "span", span)
	}()
	span.SetAttr("target_language", targetLanguage)

	out, err := resilience.ExecuteWithResult(ctx, t.breaker, func(ctx context.Context) (string, error) {
		resp, err := t.gen.GenerateContent(ctx, t.model, gemini.UserText(fmt.Sprintf(promptTemplate, targetLanguage, text)), &genai.GenerateContentConfig{})
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(resp.Text()), nil
	})
	if err != nil {
		trace.Logger(ctx).Warn("translation failed", "error", err)
		return Result{Err: apperrors.Wrap(err, apperrors.CodeTranslationFailed, "translation failed")}
	}
	return Result{Text: out}
}
