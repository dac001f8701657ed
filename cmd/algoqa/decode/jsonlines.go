package decodecmder

import (
	"encoding/json"
	"io"

	"github.com/papercomputeco/algoqa/pkg/answer"
	"github.com/papercomputeco/algoqa/pkg/decoder"
)

type jsonEvent struct {
	Type       string             `json:"type"`
	Text       string             `json:"text,omitempty"`
	References []answer.Reference `json:"references,omitempty"`
	Raw        string             `json:"raw,omitempty"`
	Error      string             `json:"error,omitempty"`
	Stats      *decoder.Stats     `json:"stats,omitempty"`
}

// jsonLines writes each decoded event as one JSON object per line and keeps
// the first write error.
type jsonLines struct {
	enc *json.Encoder
	err error
}

var _ answer.DiagnosticConsumer = (*jsonLines)(nil)

func newJSONLines(w io.Writer) *jsonLines {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &jsonLines{enc: enc}
}

func (j *jsonLines) emit(e jsonEvent) {
	if j.err != nil {
		return
	}
	j.err = j.enc.Encode(e)
}

func (j *jsonLines) OnChunk(text string) {
	j.emit(jsonEvent{Type: "text", Text: text})
}

func (j *jsonLines) OnReferences(refs []answer.Reference) {
	j.emit(jsonEvent{Type: "references", References: refs})
}

func (j *jsonLines) OnDone() {
	j.emit(jsonEvent{Type: "done"})
}

func (j *jsonLines) OnError(err error) {
	j.emit(jsonEvent{Type: "error", Error: err.Error()})
}

func (j *jsonLines) OnUnrecognized(raw string) {
	j.emit(jsonEvent{Type: "unrecognized", Raw: raw})
}

func (j *jsonLines) stats(s decoder.Stats) {
	j.emit(jsonEvent{Type: "stats", Stats: &s})
}
