// Package sse turns raw response bytes into event-bearing frames for the
// algoqa answer decoder. It covers the two lowest stages of the pipeline:
//
//	┌──────────────────┐
//	│  raw byte chunk  │
//	└──────────────────┘
//	│
//	▼
//	┌──────────────────┐
//	│  LineAssembler   │  utf-8 carry-over, "\n" splitting, unterminated tail
//	└──────────────────┘
//	│
//	▼
//	┌──────────────────┐
//	│    Classify()    │  "data:" marker, single optional space
//	└──────────────────┘
//	│
//	▼
//	┌──────────────────┐
//	│      Frame       │
//	└──────────────────┘
//
// Unlike a full Server-Sent Events reader this package does not group lines
// into blank-line delimited events: every "data:" line is a frame of its own,
// which is what the QA backend emits. Fields other than "data" are ignored.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse
