package answer

import (
	"bytes"
	"encoding/json"
)

// Interpret classifies one frame payload. The order of checks is fixed and
// the first match wins:
//
//  1. A payload starting with '{' or '[' is parsed as JSON.
//     a. A parse failure falls back to legacy raw text.
//     b. An object with a string "content" field is a text fragment.
//     c. A non-empty array whose first element is an object with a
//     "topicTitle" field is a reference list.
//     d. Anything else is unrecognized.
//  2. Every other payload is legacy raw text.
//
// An empty payload is a keep-alive. Interpret never fails: decode errors are
// absorbed here and surface only as Event.Fallback.
func Interpret(payload string) Event {
	if payload == "" {
		return Event{Kind: KindKeepAlive}
	}

	switch payload[0] {
	case '{':
		return interpretObject(payload)
	case '[':
		return interpretArray(payload)
	default:
		return TextEvent(payload)
	}
}

func interpretObject(payload string) Event {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &obj); err != nil {
		return fallback(payload)
	}

	if raw, ok := obj["content"]; ok && isJSONString(raw) {
		var content string
		if err := json.Unmarshal(raw, &content); err == nil {
			return TextEvent(content)
		}
	}

	return Event{Kind: KindUnrecognized, Raw: payload}
}

func interpretArray(payload string) Event {
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(payload), &items); err != nil {
		return fallback(payload)
	}

	if len(items) == 0 || !hasKey(items[0], "topicTitle") {
		return Event{Kind: KindUnrecognized, Raw: payload}
	}

	refs := make([]Reference, len(items))
	for i, item := range items {
		if err := refs[i].UnmarshalJSON(item); err != nil {
			return Event{Kind: KindUnrecognized, Raw: payload}
		}
	}

	return ReferencesEvent(refs)
}

// hasKey reports whether raw is a JSON object that defines key.
func hasKey(raw json.RawMessage, key string) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return false
	}
	_, ok := obj[key]
	return ok
}

// isJSONString reports whether raw is a string literal. A null "content"
// decodes into a Go string without error, so it is checked up front.
func isJSONString(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '"'
}

func fallback(payload string) Event {
	return Event{Kind: KindText, Text: payload, Fallback: true}
}
