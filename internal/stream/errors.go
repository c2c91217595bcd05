package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"
)

// ErrEmptyBody is reported when a streaming response carries no body.
var ErrEmptyBody = errors.New("response body is empty")

// UnexpectedEndMessage is the message of the error synthesized when a stream ends
// without a complete or error record.
const UnexpectedEndMessage = "stream ended unexpectedly"

const maxErrorBody = 4 * 1024

// TransportError reports a request that failed before the server accepted it:
// the request could not be built or sent, the server answered with a non-2xx
// status, or the response had no body. Body read failures after a 2xx are
// StreamErrors.
type TransportError struct {
	// Op is the endpoint path the request targeted.
	Op string

	// StatusCode and Status are set when the server answered with a non-2xx status.
	StatusCode int
	Status     string

	// Detail is the server-provided error description, if one could be extracted.
	Detail string

	Err error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Detail != "":
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Status, e.Detail)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: %s", e.Op, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: request failed: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: request failed", e.Op)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// StreamError reports a stream that failed after the response started: the
// server sent an error record, the body ended without a terminal record, or
// reading the body failed mid-stream.
type StreamError struct {
	Message string

	// Unexpected is set when the stream ended without a terminal record.
	Unexpected bool

	Err error
}

func (e *StreamError) Error() string { return e.Message }

func (e *StreamError) Unwrap() error { return e.Err }

// DecodeError reports a line that is not a valid record. It is never fatal to
// an exchange.
type DecodeError struct {
	Line string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("invalid record %q: %v", truncate(e.Line, 120), e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// HandlerError reports a callback that panicked while handling a record.
type HandlerError struct {
	Record RecordType
	Value  any
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("%s handler panicked: %v", e.Record, e.Value)
}

// NewStatusError builds a TransportError from a non-2xx response, extracting
// the server's error detail when the body is a JSON error document.
func NewStatusError(op string, resp *http.Response) *TransportError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	return &TransportError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Detail:     parseErrorDetail(body),
	}
}

// parseErrorDetail understands {"detail": "..."} and {"message": "..."}
// documents, falling back to the raw body text.
func parseErrorDetail(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var doc struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &doc); err == nil {
		var detail string
		if len(doc.Detail) > 0 && json.Unmarshal(doc.Detail, &detail) == nil && detail != "" {
			return detail
		}
		if doc.Message != "" {
			return doc.Message
		}
		if len(doc.Detail) > 0 {
			return string(doc.Detail)
		}
	}

	return strings.TrimSpace(truncate(string(body), 512))
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
