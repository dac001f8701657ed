package decoder

import (
	"github.com/papercomputeco/algoqa/pkg/answer"
)

// state is the dispatcher lifecycle: idle -> streaming -> {done | failed}.
type state int

const (
	stateIdle state = iota
	stateStreaming
	stateDone
	stateFailed
)

func (s state) terminal() bool {
	return s == stateDone || s == stateFailed
}

// dispatcher forwards events to a Consumer and enforces terminal
// exclusivity: after done or failed every call is a no-op.
type dispatcher struct {
	consumer answer.Consumer
	policy   Policy
	state    state
}

func newDispatcher(c answer.Consumer, policy Policy) *dispatcher {
	return &dispatcher{consumer: c, policy: policy}
}

// start moves idle to streaming.
func (d *dispatcher) start() {
	if d.state == stateIdle {
		d.state = stateStreaming
	}
}

// emit delivers one interpreted event. Unrecognized payloads reach only a
// DiagnosticConsumer and only under PolicyReport.
func (d *dispatcher) emit(ev answer.Event) {
	if d.state.terminal() {
		return
	}
	d.state = stateStreaming

	switch ev.Kind {
	case answer.KindText:
		d.consumer.OnChunk(ev.Text)
	case answer.KindReferences:
		d.consumer.OnReferences(ev.References)
	case answer.KindUnrecognized:
		if d.policy != PolicyReport {
			return
		}
		if dc, ok := d.consumer.(answer.DiagnosticConsumer); ok {
			dc.OnUnrecognized(ev.Raw)
		}
	}
}

// complete fires OnDone once.
func (d *dispatcher) complete() {
	if d.state.terminal() {
		return
	}
	d.state = stateDone
	d.consumer.OnDone()
}

// fail fires OnError once.
func (d *dispatcher) fail(err error) {
	if d.state.terminal() {
		return
	}
	d.state = stateFailed
	d.consumer.OnError(err)
}
