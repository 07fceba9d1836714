// Package corpus holds the canonical benchmark text. Every token window is a
// prefix of this text's tokenization, so any edit to Text invalidates
// previously recorded baselines; bump Version when that happens.
package corpus

import (
	"crypto/sha256"
	"encoding/hex"
)

// Version identifies the corpus revision recorded alongside benchmark results.
const Version = "v1"

// Text is the canonical corpus.
const Text = "The quick brown fox jumps over the lazy dog. This is a long prompt designed to provide enough tokens for various testing scenarios. We need sufficient length to ensure that even larger values of 'n' can be accommodated. Let's add more sentences. The weather today is sunny and warm. Artificial intelligence is a fascinating field with many applications. Large language models are capable of generating human-like text. This example focuses on evaluating the decoding performance for a specific number of tokens. More text is needed to reach a significant token count. Reading books is a great way to expand knowledge. Software development requires careful planning and execution. The universe is vast and full of mysteries. Let's keep adding words to make sure we have plenty of tokens. One hundred tokens should be easily achievable with this amount of text, perhaps even two hundred or more depending on the tokenizer used. Final sentence to ensure length."

// digest is the sha256 of Text, computed once.
var digest = func() string {
	sum := sha256.Sum256([]byte(Text))
	return hex.EncodeToString(sum[:])
}()

// Digest returns the hex sha256 of Text. It is the corpus identity.
func Digest() string {
	return digest
}
