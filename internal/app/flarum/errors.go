package flarum

import "fmt"

// APIError is a forum response with a non-success status. Message carries the
// forum's own error detail when the payload was decodable, otherwise a body
// excerpt, and is surfaced verbatim to the operator.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("forum returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("forum returned status %d: %s", e.StatusCode, e.Message)
}

// DecodeError is a 2xx forum response whose body was not valid JSON. It marks
// a transport or forum-side fault; it is never treated as an empty success.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("undecodable forum response from %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
