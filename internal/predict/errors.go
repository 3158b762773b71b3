package predict

import "fmt"

// ValidationError means the request did not carry a usable upload.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// DecodeError means the uploaded bytes are not a readable image.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }

// InferenceError wraps any failure inside a model call. Stage is
// "detection" or "severity".
type InferenceError struct {
	Stage string
	Err   error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("%s inference failed: %v", e.Stage, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }
