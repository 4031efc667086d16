package scorecard

import (
	"errors"
	"fmt"
)

var (
	ErrUsage         = errors.New("invalid usage")
	ErrAPICall       = errors.New("completion API call failed")
	ErrResponseParse = errors.New("could not parse completion response")
)

// OpError annotates an error with the pipeline stage it came from.
type OpError struct {
	Op        string
	RequestID string
	Err       error
}

func (e *OpError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	if e.RequestID != "" {
		return fmt.Sprintf("%s (request_id=%s): %v", e.Op, e.RequestID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *OpError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func opError(op, requestID string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, RequestID: requestID, Err: err}
}
