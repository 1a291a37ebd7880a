package backend

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnauthorized is returned when the ingestion endpoint answers 401:
	// the backend session must be renewed through the login flow.
	ErrUnauthorized = errors.New("backend session not authorized")
	// ErrEncode means the survey could not be turned into a request body.
	ErrEncode = errors.New("cannot encode survey")
)

// StatusError is a non-2xx answer from the backend.
type StatusError struct {
	StatusCode int
	Endpoint   string
	Message    string
	Timestamp  time.Time
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("[%d] %s (endpoint: %s, timestamp: %s)",
		e.StatusCode,
		e.Message,
		e.Endpoint,
		e.Timestamp.Format("2006-01-02 15:04:05"),
	)
}

func (e *StatusError) Unwrap() error {
	if e.StatusCode == 401 {
		return ErrUnauthorized
	}
	return nil
}
