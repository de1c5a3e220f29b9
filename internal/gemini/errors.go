package gemini

import (
	"errors"
	"net/http"

	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// APIStatus extracts the HTTP code and status string of a genai API error.
func APIStatus(err error) (int, string, bool) {
	var v genai.APIError
	if errors.As(err, &v) {
		return v.Code, v.Status, true
	}
	var p *genai.APIError
	if errors.As(err, &p) && p != nil {
		return p.Code, p.Status, true
	}
	return 0, "", false
}

// IsPermissionDenied reports a 403 from the Gemini API or a gRPC
// PermissionDenied from Vertex.
func IsPermissionDenied(err error) bool {
	if code, st, ok := APIStatus(err); ok {
		return code == http.StatusForbidden || st == "PERMISSION_DENIED"
	}
	return status.Code(err) == codes.PermissionDenied
}
