package grpcclient

import "time"

const (
	// Google front-ends answer over-eager pings with GOAWAY, so stay at 30s or above.
	DefaultKeepaliveTime    = 30 * time.Second
	DefaultKeepaliveTimeout = 10 * time.Second

	apiPort = "443"
)
