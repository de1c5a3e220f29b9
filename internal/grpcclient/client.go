// Package grpcclient builds the client options shared by the Google Cloud gRPC
// clients (speech, text-to-speech): regional endpoints, keepalive and trace
// propagation.
package grpcclient

import (
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"

	"github.com/dazdaz/gemini/internal/trace"
)

// RegionalEndpoint returns the host:port of a regional Google API, e.g.
// "us-central1-speech.googleapis.com:443". A global location yields the
// default global endpoint.
func RegionalEndpoint(location, service string) string {
	if location == "" || location == "global" {
		return fmt.Sprintf("%s.googleapis.com:%s", service, apiPort)
	}
	return fmt.Sprintf("%s-%s.googleapis.com:%s", location, service, apiPort)
}

// Options returns client options for a Google gRPC client. endpoint may be empty
// to keep the library default. extra options are appended last.
func Options(endpoint string, extra ...option.ClientOption) []option.ClientOption {
	opts := []option.ClientOption{
		option.WithGRPCDialOption(grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:    DefaultKeepaliveTime,
			Timeout: DefaultKeepaliveTimeout,
		})),
		option.WithGRPCDialOption(grpc.WithChainUnaryInterceptor(trace.UnaryClientInterceptor())),
		option.WithGRPCDialOption(grpc.WithChainStreamInterceptor(trace.StreamClientInterceptor())),
	}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	return append(opts, extra...)
}
