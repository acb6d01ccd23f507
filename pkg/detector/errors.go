package detector

import (
	"errors"
	"fmt"
)

var (
	ErrNoFileSelected = errors.New("no file selected")
	ErrTimeout        = errors.New("request timed out")
	ErrNetwork        = errors.New("network error")
	ErrSuperseded     = errors.New("superseded by a newer submission")
	ErrInvalidPayload = errors.New("invalid response payload")
)

// ServerError is returned for any non-2xx response. StatusText carries the
// server's own reason phrase.
type ServerError struct {
	StatusCode int
	StatusText string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("Server Error: %s", e.StatusText)
}
