package decoder

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/papercomputeco/algoqa/pkg/logger"
)

// Policy decides what happens to JSON payloads that match neither the text
// nor the reference shape.
type Policy string

const (
	// PolicyDrop discards unrecognized payloads. This is the default.
	PolicyDrop Policy = "drop"

	// PolicyReport hands unrecognized payloads to consumers implementing
	// answer.DiagnosticConsumer. They are never delivered as answer text.
	PolicyReport Policy = "report"
)

// ParsePolicy accepts "drop" or "report" (case-insensitive). An empty string
// is PolicyDrop.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyDrop:
		return PolicyDrop, nil
	case PolicyReport:
		return PolicyReport, nil
	default:
		return "", fmt.Errorf("unknown unrecognized-payload policy %q (available: drop, report)", s)
	}
}

type options struct {
	logger *slog.Logger
	policy Policy
}

// Option configures a decode session.
type Option func(*options)

// WithLogger sets the session logger. Defaults to logger.Nop().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithUnrecognizedPolicy sets the policy for unrecognized JSON payloads.
func WithUnrecognizedPolicy(p Policy) Option {
	return func(o *options) {
		o.policy = p
	}
}

func newOptions(opts []Option) *options {
	o := &options{
		logger: logger.Nop(),
		policy: PolicyDrop,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
