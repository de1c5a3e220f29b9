package trace

import (
	"context"
	"encoding/json"
	"net/http"
)

// Middleware extracts or creates trace context for HTTP requests and echoes the
// trace id back on the response.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tc := FromHeader(r.Header)
		w.Header().Set(TraceIDKey, tc.TraceID)
		next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), tc)))
	})
}

// FromHeader builds a trace context from propagation headers. The caller's span
// becomes the parent; a trace id is minted when absent.
func FromHeader(h http.Header) Context {
	tc := Context{
		TraceID:      h.Get(TraceIDKey),
		ParentSpanID: h.Get(SpanIDKey),
		SpanID:       generateSpanID(),
	}
	if tc.TraceID == "" {
		tc.TraceID = generateTraceID()
	}
	return tc
}

// ExtractFromJSON extracts trace_id from a websocket JSON message.
// Returns the context and whether a trace_id was found.
func ExtractFromJSON(data []byte) (Context, bool) {
	var msg struct {
		TraceID string `json:"trace_id"`
	}
	if err := json.Unmarshal(data, &msg); err != nil || msg.TraceID == "" {
		return New(), false
	}
	return Context{TraceID: msg.TraceID, SpanID: generateSpanID()}, true
}

// InjectHeader writes ctx's trace ids onto outbound request headers.
func InjectHeader(ctx context.Context, h http.Header) {
	tc, ok := FromContext(ctx)
	if !ok {
		return
	}
	h.Set(TraceIDKey, tc.TraceID)
	h.Set(SpanIDKey, tc.SpanID)
}
