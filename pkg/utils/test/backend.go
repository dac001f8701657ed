// Package testutils holds fakes shared by command and integration tests.
package testutils

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// ContentFrame returns a data line carrying an answer text fragment.
func ContentFrame(text string) string {
	b, _ := json.Marshal(map[string]string{"content": text})
	return "data: " + string(b) + "\n"
}

// ReferencesFrame returns a data line carrying a reference list. Each pair
// is a topicId and topicTitle.
func ReferencesFrame(pairs ...[2]any) string {
	refs := make([]map[string]any, 0, len(pairs))
	for _, p := range pairs {
		refs = append(refs, map[string]any{"topicId": p[0], "topicTitle": p[1]})
	}
	b, _ := json.Marshal(refs)
	return "data: " + string(b) + "\n"
}

// KeepAlive is an empty data frame.
const KeepAlive = "data:\n"

// QABackend is an httptest server that answers every request with a fixed
// event stream and remembers the request bodies it saw.
type QABackend struct {
	*httptest.Server

	mu     sync.Mutex
	bodies []string
	status int
	stream string
}

// NewQABackend starts a backend streaming the given frames.
func NewQABackend(frames ...string) *QABackend {
	b := &QABackend{status: http.StatusOK, stream: strings.Join(frames, "")}
	b.Server = httptest.NewServer(http.HandlerFunc(b.serve))
	return b
}

// FailWith makes subsequent requests answer with status and body instead of
// the stream.
func (b *QABackend) FailWith(status int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = status
	b.stream = body
}

// Bodies returns the request bodies received so far.
func (b *QABackend) Bodies() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.bodies...)
}

func (b *QABackend) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	b.mu.Lock()
	b.bodies = append(b.bodies, string(body))
	status, stream := b.status, b.stream
	b.mu.Unlock()

	if status == http.StatusOK {
		w.Header().Set("Content-Type", "text/event-stream")
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(status)
	_, _ = io.WriteString(w, stream)
}
