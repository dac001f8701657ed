package transcript

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/algoqa/pkg/answer"
)

// Sink receives a transcript once its session has finished.
type Sink func(Transcript)

// Recorder is an answer.Consumer that builds a Transcript. Text fragments are
// appended, reference lists replace each other, and a failure keeps the
// partial answer with an error marker appended.
type Recorder struct {
	mu   sync.Mutex
	t    Transcript
	text strings.Builder
	sink Sink
	now  func() time.Time
}

var _ answer.Consumer = (*Recorder)(nil)

// Option configures a Recorder.
type Option func(*Recorder)

// WithSink is called with the finished transcript after OnDone or OnError.
func WithSink(s Sink) Option {
	return func(r *Recorder) {
		r.sink = s
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		r.now = now
	}
}

// WithID sets the transcript ID instead of generating one.
func WithID(id string) Option {
	return func(r *Recorder) {
		r.t.ID = id
	}
}

// NewRecorder starts recording the answer to question.
func NewRecorder(question string, opts ...Option) *Recorder {
	r := &Recorder{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	if r.t.ID == "" {
		r.t.ID = uuid.NewString()
	}
	r.t.Question = question
	r.t.Status = StatusStreaming
	r.t.StartedAt = r.now()
	return r
}

func (r *Recorder) OnChunk(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.text.WriteString(text)
}

func (r *Recorder) OnReferences(refs []answer.Reference) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.t.References = append([]answer.Reference(nil), refs...)
}

func (r *Recorder) OnDone() {
	r.finish(StatusCompleted, nil)
}

func (r *Recorder) OnError(err error) {
	r.finish(StatusFailed, err)
}

func (r *Recorder) finish(status Status, err error) {
	r.mu.Lock()
	if r.t.Terminal() {
		r.mu.Unlock()
		return
	}
	if err != nil {
		fmt.Fprintf(&r.text, "\n[error: %s]", err)
		r.t.Error = err.Error()
	}
	r.t.Status = status
	r.t.CompletedAt = r.now()
	r.t.Latency = r.t.CompletedAt.Sub(r.t.StartedAt)
	snapshot := r.snapshot()
	sink := r.sink
	r.mu.Unlock()

	if sink != nil {
		sink(snapshot)
	}
}

// Transcript returns a copy of the transcript so far.
func (r *Recorder) Transcript() Transcript {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot()
}

func (r *Recorder) snapshot() Transcript {
	t := r.t
	t.Answer = r.text.String()
	t.References = append([]answer.Reference(nil), r.t.References...)
	return t
}
