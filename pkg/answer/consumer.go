package answer

import "sync"

// Consumer receives the decoded events of one session. OnChunk and
// OnReferences fire in arrival order; exactly one of OnDone or OnError fires
// last. Decoders in this module guarantee nothing is called after the
// terminal callback.
type Consumer interface {
	// OnChunk appends text to the answer being built.
	OnChunk(text string)

	// OnReferences replaces any previously delivered reference list.
	OnReferences(refs []Reference)

	// OnDone reports a normal end of stream.
	OnDone()

	// OnError reports a failure. Text already delivered stays valid.
	OnError(err error)
}

// DiagnosticConsumer is implemented by consumers that want to see
// unrecognized JSON payloads when the decoder runs with the report policy.
type DiagnosticConsumer interface {
	Consumer
	OnUnrecognized(raw string)
}

// Funcs adapts plain functions to Consumer. Nil fields are skipped.
type Funcs struct {
	Chunk        func(text string)
	References   func(refs []Reference)
	Done         func()
	Error        func(err error)
	Unrecognized func(raw string)
}

var _ DiagnosticConsumer = Funcs{}

func (f Funcs) OnChunk(text string) {
	if f.Chunk != nil {
		f.Chunk(text)
	}
}

func (f Funcs) OnReferences(refs []Reference) {
	if f.References != nil {
		f.References(refs)
	}
}

func (f Funcs) OnDone() {
	if f.Done != nil {
		f.Done()
	}
}

func (f Funcs) OnError(err error) {
	if f.Error != nil {
		f.Error(err)
	}
}

func (f Funcs) OnUnrecognized(raw string) {
	if f.Unrecognized != nil {
		f.Unrecognized(raw)
	}
}

// CallKind names a consumer callback.
type CallKind string

const (
	CallChunk        CallKind = "chunk"
	CallReferences   CallKind = "references"
	CallDone         CallKind = "done"
	CallError        CallKind = "error"
	CallUnrecognized CallKind = "unrecognized"
)

// Call is one recorded consumer callback.
type Call struct {
	Kind       CallKind
	Text       string
	References []Reference
	Err        error
}

// Collector records every callback in order. It is safe for concurrent use
// so tests can inspect it while a session is still running.
type Collector struct {
	mu    sync.Mutex
	calls []Call
}

var _ DiagnosticConsumer = (*Collector)(nil)

func (c *Collector) record(call Call) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call)
}

func (c *Collector) OnChunk(text string) { c.record(Call{Kind: CallChunk, Text: text}) }

func (c *Collector) OnReferences(refs []Reference) {
	c.record(Call{Kind: CallReferences, References: refs})
}

func (c *Collector) OnDone() { c.record(Call{Kind: CallDone}) }

func (c *Collector) OnError(err error) { c.record(Call{Kind: CallError, Err: err}) }

func (c *Collector) OnUnrecognized(raw string) {
	c.record(Call{Kind: CallUnrecognized, Text: raw})
}

// Calls returns a copy of the recorded callbacks.
func (c *Collector) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Call, len(c.calls))
	copy(out, c.calls)
	return out
}

// Text concatenates every chunk received so far.
func (c *Collector) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int
	for _, call := range c.calls {
		n += len(call.Text)
	}
	buf := make([]byte, 0, n)
	for _, call := range c.calls {
		if call.Kind == CallChunk {
			buf = append(buf, call.Text...)
		}
	}
	return string(buf)
}

// References returns the most recent reference list, honouring replace
// semantics.
func (c *Collector) References() []Reference {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.calls) - 1; i >= 0; i-- {
		if c.calls[i].Kind == CallReferences {
			return c.calls[i].References
		}
	}
	return nil
}

// Tee fans every callback out to each consumer in order. OnUnrecognized
// reaches only the consumers that implement DiagnosticConsumer.
func Tee(consumers ...Consumer) DiagnosticConsumer {
	return tee(consumers)
}

type tee []Consumer

func (t tee) OnChunk(text string) {
	for _, c := range t {
		c.OnChunk(text)
	}
}

func (t tee) OnReferences(refs []Reference) {
	for _, c := range t {
		c.OnReferences(refs)
	}
}

func (t tee) OnDone() {
	for _, c := range t {
		c.OnDone()
	}
}

func (t tee) OnError(err error) {
	for _, c := range t {
		c.OnError(err)
	}
}

func (t tee) OnUnrecognized(raw string) {
	for _, c := range t {
		if dc, ok := c.(DiagnosticConsumer); ok {
			dc.OnUnrecognized(raw)
		}
	}
}
