package sse

import "strings"

// DataMarker is the literal prefix of an event-bearing line.
const DataMarker = "data:"

// Frame is one completed "data:" line with its marker and optional separator
// space removed.
type Frame struct {
	// Payload is everything after "data:" and at most one space. Any further
	// leading or trailing whitespace is preserved.
	Payload string
}

// KeepAlive reports whether the frame carries no payload. Keep-alive frames
// hold the connection open and never reach the payload interpreter.
func (f Frame) KeepAlive() bool {
	return f.Payload == ""
}

// Classify recognises event-bearing lines. Lines that do not begin with
// "data:" (comments, "event:" fields, blank separators) report false and are
// meant to be dropped silently.
func Classify(line string) (Frame, bool) {
	payload, ok := strings.CutPrefix(line, DataMarker)
	if !ok {
		return Frame{}, false
	}

	// Exactly one separating space is stripped, never more.
	payload = strings.TrimPrefix(payload, " ")

	return Frame{Payload: payload}, true
}
