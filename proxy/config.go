package proxy

import (
	"time"

	"github.com/papercomputeco/streamflow/pkg/eventstream"
)

// Config is the proxy server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// UpstreamURL is the upstream producer URL (e.g., "http://localhost:3000")
	UpstreamURL string

	// ResponseNode is the graph node whose output is the assistant reply.
	// Defaults to transcript.DefaultResponseNode.
	ResponseNode string

	// Publisher is an optional event stream for recorded turns.
	// If nil, turns are only stored.
	Publisher eventstream.Publisher

	// Timeout bounds each upstream request. Defaults to 5 minutes.
	Timeout time.Duration
}
