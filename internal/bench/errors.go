package bench

import (
	"errors"
	"fmt"
)

var (
	ErrUsage              = errors.New("usage error")
	ErrModelLoad          = errors.New("unable to load model")
	ErrInsufficientCorpus = errors.New("insufficient corpus")
	ErrTokenization       = errors.New("failed to tokenize the prompt")
	ErrProfilerInit       = errors.New("failed to initialize profiler")
	ErrContextCreation    = errors.New("failed to create the context")
	ErrDecode             = errors.New("failed to eval")
	ErrSessionConfig      = errors.New("invalid session config")
	ErrNoLogits           = errors.New("no logits for the final position")
)

// UsageError reports invalid invocation parameters. Callers print usage text
// alongside it.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string { return e.Msg }

func (e *UsageError) Is(target error) bool { return target == ErrUsage }

// InsufficientCorpusError is returned when the corpus tokenizes to fewer
// tokens than were requested.
type InsufficientCorpusError struct {
	Requested int
	Available int
}

func (e *InsufficientCorpusError) Error() string {
	return fmt.Sprintf("requested n_tokens (%d) is greater than the total tokens in the preset prompt (%d)", e.Requested, e.Available)
}

func (e *InsufficientCorpusError) Is(target error) bool { return target == ErrInsufficientCorpus }

// DecodeError carries the engine status of a failed decode.
type DecodeError struct {
	Status int
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to eval, return code %d", e.Status)
}

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

func (e *DecodeError) Unwrap() error { return e.Err }
