package answer

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// Reference is a citation record accompanying an answer. Only the topic
// identity and title are interpreted; every other field is kept verbatim in
// Raw.
type Reference struct {
	// TopicID is the "topicId" field rendered as text: numbers keep their
	// JSON spelling, strings lose their quotes. Empty when absent or null.
	TopicID string

	// TopicTitle is the "topicTitle" field when it is a JSON string.
	TopicTitle string

	// Raw is the complete JSON value this reference was decoded from.
	Raw json.RawMessage
}

// UnmarshalJSON keeps the raw object and lifts out topicId and topicTitle.
// A non-object element still decodes; it just has no identity.
func (r *Reference) UnmarshalJSON(data []byte) error {
	r.Raw = append(json.RawMessage(nil), data...)
	r.TopicID = ""
	r.TopicTitle = ""

	var fields map[string]json.RawMessage
	if json.Unmarshal(data, &fields) != nil {
		// Not an object; keep Raw and move on.
		return nil
	}

	if raw, ok := fields["topicId"]; ok {
		r.TopicID = scalarText(raw)
	}
	if raw, ok := fields["topicTitle"]; ok {
		var title string
		if err := json.Unmarshal(raw, &title); err == nil {
			r.TopicTitle = title
		}
	}

	return nil
}

// MarshalJSON re-emits the original object so opaque fields survive a round
// trip through storage or the event stream.
func (r Reference) MarshalJSON() ([]byte, error) {
	if len(r.Raw) > 0 {
		return r.Raw, nil
	}
	return json.Marshal(map[string]string{
		"topicId":    r.TopicID,
		"topicTitle": r.TopicTitle,
	})
}

// Field decodes the named opaque field into v.
func (r Reference) Field(name string, v any) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(r.Raw, &fields); err != nil {
		return err
	}
	raw, ok := fields[name]
	if !ok {
		return errors.New("field not present: " + name)
	}
	return json.Unmarshal(raw, v)
}

// scalarText renders a JSON scalar without quotes. Objects and arrays are
// returned compacted.
func scalarText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
