// Package tokenizer implements the byte-level BPE vocabulary used to turn the
// benchmark corpus into token ids.
package tokenizer

import (
	"errors"
	"fmt"
)

// ErrBufferTooSmall is returned by Fill when dst cannot hold the result.
var ErrBufferTooSmall = errors.New("tokenizer: buffer too small")

// CapacityError reports the capacity a Fill call needed.
type CapacityError struct {
	Need int
	Have int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("tokenizer: need capacity %d, have %d", e.Need, e.Have)
}

func (e *CapacityError) Is(target error) bool { return target == ErrBufferTooSmall }

// TokenType mirrors the tokenizer.ggml.token_type classification.
type TokenType int32

const (
	TokenUndefined   TokenType = 0
	TokenNormal      TokenType = 1
	TokenUnknown     TokenType = 2
	TokenControl     TokenType = 3
	TokenUserDefined TokenType = 4
	TokenUnused      TokenType = 5
	TokenByte        TokenType = 6
)

// Special reports whether text of this type is matched verbatim when special
// parsing is enabled.
func (t TokenType) Special() bool {
	return t == TokenControl || t == TokenUserDefined
}
