// Package decoder drives one answer stream from raw bytes to consumer
// callbacks:
//
//	Source.Next -> sse.LineAssembler -> sse.Classify -> answer.Interpret -> dispatcher
//
// A session runs on the calling goroutine and blocks only inside Source.Next.
// Sessions share no state, so any number of them may run concurrently.
package decoder

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/papercomputeco/algoqa/pkg/answer"
	"github.com/papercomputeco/algoqa/pkg/sse"
)

// Stats counts what one session saw.
type Stats struct {
	Bytes           int `json:"bytes"`
	Chunks          int `json:"chunks"`
	Lines           int `json:"lines"`
	Frames          int `json:"frames"`
	KeepAlives      int `json:"keep_alives"`
	TextEvents      int `json:"text_events"`
	ReferenceEvents int `json:"reference_events"`
	Unrecognized    int `json:"unrecognized"`

	// Fallbacks counts JSON-looking payloads that failed to parse and were
	// delivered as raw text.
	Fallbacks int `json:"fallbacks"`
}

// Outcome is the single terminal result of a session. Err is nil when the
// stream completed and OnDone fired; otherwise it is the error handed to
// OnError.
type Outcome struct {
	Err   error
	Stats Stats
}

// Run opens the stream and decodes it into c. An error from open is wrapped
// in a ConnectionError (unless it already is one) and delivered through
// OnError without decoding anything.
func Run(ctx context.Context, open Opener, c answer.Consumer, opts ...Option) Outcome {
	o := newOptions(opts)
	d := newDispatcher(c, o.policy)

	src, err := open(ctx)
	if err == nil && src == nil {
		err = errors.New("opener returned no stream")
	}
	if err != nil {
		var connErr *ConnectionError
		if !errors.As(err, &connErr) {
			connErr = &ConnectionError{Err: err}
		}
		o.logger.Debug("stream open failed", "error", connErr)
		d.fail(connErr)
		return Outcome{Err: connErr}
	}

	return decode(ctx, src, d, o)
}

// Decode consumes an already opened source into c.
func Decode(ctx context.Context, src Source, c answer.Consumer, opts ...Option) Outcome {
	o := newOptions(opts)
	return decode(ctx, src, newDispatcher(c, o.policy), o)
}

func decode(ctx context.Context, src Source, d *dispatcher, o *options) Outcome {
	var stats Stats
	d.start()

	assembler := sse.NewLineAssembler()
	for {
		chunk, err := src.Next(ctx)
		if len(chunk) > 0 {
			stats.Bytes += len(chunk)
			stats.Chunks++
			for _, line := range assembler.Feed(chunk) {
				handleLine(line, d, &stats, o.logger)
			}
		}

		if err == nil {
			continue
		}

		if errors.Is(err, io.EOF) {
			if line, ok := assembler.Flush(); ok {
				handleLine(line, d, &stats, o.logger)
			}
			d.complete()
			o.logger.Debug("stream complete", statsAttrs(stats)...)
			return Outcome{Stats: stats}
		}

		readErr := &TransportReadError{Err: err}
		o.logger.Debug("stream failed",
			append(statsAttrs(stats), "error", err, "pending_bytes", assembler.Pending())...,
		)
		d.fail(readErr)
		return Outcome{Err: readErr, Stats: stats}
	}
}

func handleLine(line string, d *dispatcher, stats *Stats, l *slog.Logger) {
	stats.Lines++

	frame, ok := sse.Classify(line)
	if !ok {
		return
	}
	stats.Frames++

	if frame.KeepAlive() {
		stats.KeepAlives++
		return
	}

	ev := answer.Interpret(frame.Payload)
	switch ev.Kind {
	case answer.KindText:
		stats.TextEvents++
		if ev.Fallback {
			stats.Fallbacks++
			l.Debug("payload is not valid json, delivering as raw text", "payload", ev.Text)
		}
	case answer.KindReferences:
		stats.ReferenceEvents++
	case answer.KindUnrecognized:
		stats.Unrecognized++
		l.Debug("unrecognized payload", "payload", ev.Raw)
	}

	d.emit(ev)
}

func statsAttrs(s Stats) []any {
	return []any{
		"bytes", s.Bytes,
		"chunks", s.Chunks,
		"frames", s.Frames,
		"keepalives", s.KeepAlives,
		"text_events", s.TextEvents,
		"reference_events", s.ReferenceEvents,
		"unrecognized", s.Unrecognized,
		"fallbacks", s.Fallbacks,
	}
}
