package decoder

import (
	"fmt"
)

// ConnectionError reports that the stream could not be opened or the server
// answered with a non-success status. It is raised before any byte is decoded.
type ConnectionError struct {
	// StatusCode is the HTTP status when the server answered, 0 otherwise.
	StatusCode int

	// Body is a short excerpt of the error response, if any.
	Body string

	Err error
}

func (e *ConnectionError) Error() string {
	msg := "connection failed"
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s: status %d", msg, e.StatusCode)
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TransportReadError reports a failure while waiting for the next chunk,
// including cancellation of the session context.
type TransportReadError struct {
	Err error
}

func (e *TransportReadError) Error() string {
	return "reading stream: " + e.Err.Error()
}

func (e *TransportReadError) Unwrap() error { return e.Err }
