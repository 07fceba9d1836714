package bench

import (
	"fmt"
)

// Window is the token prefix evaluated by a run.
type Window []int32

// SelectWindow tokenizes text with special tokens enabled and returns its
// first n tokens. The caller validates n > 0.
func SelectWindow(vocab Vocab, text string, n int) (Window, error) {
	total, err := safeMeasure(vocab, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenization, err)
	}
	if total < n {
		return nil, &InsufficientCorpusError{Requested: n, Available: total}
	}

	all := make([]int32, total)
	got, err := safeFill(vocab, text, all)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenization, err)
	}
	if got != total {
		return nil, fmt.Errorf("%w: measured %d tokens, filled %d", ErrTokenization, total, got)
	}
	return Window(all[:n:n]), nil
}

func safeMeasure(vocab Vocab, text string) (n int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in Measure: %v", rec)
		}
	}()
	return vocab.Measure(text, true, true)
}

func safeFill(vocab Vocab, text string, dst []int32) (n int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in Fill: %v", rec)
		}
	}()
	return vocab.Fill(text, dst, true, true)
}
