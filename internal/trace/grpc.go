package trace

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// UnaryClientInterceptor injects trace context into outgoing Google API calls.
func UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		return invoker(injectMetadata(ctx), method, req, reply, cc, opts...)
	}
}

// StreamClientInterceptor injects trace context into streaming calls such as
// StreamingRecognize.
func StreamClientInterceptor() grpc.StreamClientInterceptor {
	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		return streamer(injectMetadata(ctx), desc, cc, method, opts...)
	}
}

func injectMetadata(ctx context.Context) context.Context {
	ctx, tc := EnsureContext(ctx)
	pairs := []string{TraceIDKey, tc.TraceID, SpanIDKey, tc.SpanID}
	if tc.ParentSpanID != "" {
		pairs = append(pairs, ParentSpanIDKey, tc.ParentSpanID)
	}
	return metadata.AppendToOutgoingContext(ctx, pairs...)
}
