// Package answer defines the decoded answer model: the events a QA answer
// stream carries, the references that accompany an answer, and the consumer
// contract that receives them.
package answer

// EventKind tags the variant held by an Event.
type EventKind int

const (
	// KindKeepAlive is an empty payload. It never reaches a consumer.
	KindKeepAlive EventKind = iota

	// KindText is a fragment to append to the answer being built.
	KindText

	// KindReferences replaces the current reference set.
	KindReferences

	// KindUnrecognized is JSON-shaped but matches no known payload shape.
	KindUnrecognized
)

func (k EventKind) String() string {
	switch k {
	case KindKeepAlive:
		return "keepalive"
	case KindText:
		return "text"
	case KindReferences:
		return "references"
	case KindUnrecognized:
		return "unrecognized"
	default:
		return "unknown"
	}
}

// Event is one interpreted payload. Only the field matching Kind is set.
type Event struct {
	Kind EventKind

	// Text is set for KindText.
	Text string

	// References is set for KindReferences and is never empty.
	References []Reference

	// Raw is the untouched payload for KindUnrecognized.
	Raw string

	// Fallback is true when a JSON-looking payload failed to parse and was
	// recovered as legacy raw text.
	Fallback bool
}

// TextEvent returns a KindText event.
func TextEvent(text string) Event {
	return Event{Kind: KindText, Text: text}
}

// ReferencesEvent returns a KindReferences event.
func ReferencesEvent(refs []Reference) Event {
	return Event{Kind: KindReferences, References: refs}
}
