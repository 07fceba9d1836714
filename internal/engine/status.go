package engine

import "fmt"

// Decode status codes, following llama_decode.
const (
	StatusNoRoom       = 1
	StatusInvalidBatch = -1
	StatusGraphExport  = -3
)

// StatusError is returned by Decode with a non-zero status.
type StatusError struct {
	Status int
	Err    error
}

func (e *StatusError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("decode failed with status %d", e.Status)
	}
	return fmt.Sprintf("decode failed with status %d: %v", e.Status, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }
