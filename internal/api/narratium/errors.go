package narratium

import (
	"fmt"

	"github.com/tjfontaine/narratium-client/internal/stream"
)

// The transport and stream failures are shared with the streaming layer.
type (
	TransportError = stream.TransportError
	StreamError    = stream.StreamError
	DecodeError    = stream.DecodeError
	HandlerError   = stream.HandlerError
)

// ApplicationError reports a non-streaming call the server answered with success=false.
type ApplicationError struct {
	Op      string
	Message string
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// checkSuccess turns a success=false GameResponse into an *ApplicationError.
func checkSuccess(op string, resp *GameResponse, fallback string) error {
	if resp.Success {
		return nil
	}
	msg := resp.Message
	if msg == "" {
		msg = fallback
	}
	return &ApplicationError{Op: op, Message: msg}
}
