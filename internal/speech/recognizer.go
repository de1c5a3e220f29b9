package speech

import (
	"context"
	"log/slog"

	"cloud.google.com/go/speech/apiv2/speechpb"

	apperrors "github.com/dazdaz/gemini/internal/errors"
)

// RecognizerSpec describes the recognizer resource to reuse or create.
type RecognizerSpec struct {
	Project  string
	Location string
	ID       string
	Model    string
	Language string
}

// EnsureRecognizer fetches the recognizer, creating it when it does not exist.
func EnsureRecognizer(ctx context.Context, api API, spec RecognizerSpec) (*speechpb.Recognizer, error) {
	name := RecognizerName(spec.Project, spec.Location, spec.ID)

	rec, err := api.GetRecognizer(ctx, &speechpb.GetRecognizerRequest{Name: name})
	if err == nil {
		slog.Info("using existing recognizer", "name", name)
		return rec, nil
	}
	if !apperrors.IsNotFound(err) {
		return nil, apperrors.Wrap(apperrors.FromGRPCError(err), apperrors.CodeUnavailable, "get recognizer")
	}

	slog.Info("creating recognizer", "name", name, "model", spec.Model)
	op, err := api.CreateRecognizer(ctx, &speechpb.CreateRecognizerRequest{
		Parent:       "projects/" + spec.Project + "/locations/" + spec.Location,
		RecognizerId: spec.ID,
		Recognizer: &speechpb.Recognizer{
			DefaultRecognitionConfig: &speechpb.RecognitionConfig{
				Model:         spec.Model,
				LanguageCodes: []string{spec.Language},
				Features: &speechpb.RecognitionFeatures{
					EnableAutomaticPunctuation: true,
				},
			},
		},
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.FromGRPCError(err), apperrors.CodeUnavailable, "create recognizer")
	}
	rec, err = op.Wait(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.FromGRPCError(err), apperrors.CodeUnavailable, "wait for recognizer")
	}
	slog.Info("recognizer created", "name", rec.GetName())
	return rec, nil
}
