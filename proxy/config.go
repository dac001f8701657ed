package proxy

import (
	"time"

	"github.com/papercomputeco/algoqa/pkg/decoder"
	"github.com/papercomputeco/algoqa/pkg/eventstream"
)

// DefaultStreamPath is the streaming QA endpoint the proxy records.
const DefaultStreamPath = "/api/qa/stream"

// Config is the proxy server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8081")
	ListenAddr string

	// UpstreamURL is the QA backend URL (e.g., "http://localhost:8080")
	UpstreamURL string

	// StreamPath is the recorded endpoint. Defaults to DefaultStreamPath.
	StreamPath string

	// Policy decides what the side decoder does with unrecognized payloads.
	// Recording never changes the bytes relayed to the client.
	Policy decoder.Policy

	// ReadBuffer is the size of each read from the upstream stream.
	ReadBuffer int

	// ResponseHeaderTimeout bounds the wait for upstream headers. Zero means
	// no limit. Streams that already started are never cut off.
	ResponseHeaderTimeout time.Duration

	// Publisher is an optional event stream for finished transcripts.
	// If nil, events are not published.
	Publisher eventstream.Publisher
}
