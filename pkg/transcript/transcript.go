// Package transcript records one question and its streamed answer.
package transcript

import (
	"time"

	"github.com/papercomputeco/algoqa/pkg/answer"
)

// Status is the lifecycle state of a transcript.
type Status string

const (
	StatusStreaming Status = "streaming"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Transcript is a finished (or in-flight) answer session.
type Transcript struct {
	ID         string             `json:"id"`
	Question   string             `json:"question"`
	Answer     string             `json:"answer"`
	References []answer.Reference `json:"references"`
	Status     Status             `json:"status"`

	// Error is the failure message when Status is StatusFailed.
	Error string `json:"error,omitempty"`

	// Latency is the time from the start of the session to its terminal
	// callback.
	Latency time.Duration `json:"latency"`

	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// PrimaryTopicID is the topic of the first reference, the one a UI would
// show a visualization for. It is empty without references.
func (t Transcript) PrimaryTopicID() string {
	if len(t.References) == 0 {
		return ""
	}
	return t.References[0].TopicID
}

// Terminal reports whether the session has finished.
func (t Transcript) Terminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}
