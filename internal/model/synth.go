package model

import (
	"fmt"

	"github.com/samcharles93/tracebench/internal/gguf"
	"github.com/samcharles93/tracebench/internal/tensor"
	"github.com/samcharles93/tracebench/internal/tokenizer"
)

// Control tokens appended after the learned vocabulary.
const (
	TokenBOS = "<|begin_of_text|>"
	TokenEOS = "<|end_of_text|>"
)

// SynthOptions describes a generated toylm model.
type SynthOptions struct {
	Name          string
	Text          string // training text for the BPE merges
	Merges        int
	Hidden        int
	ContextLength int
	Seed          int64
	// Untied writes a separate output.weight instead of reusing the embedding.
	Untied bool
}

// Synthesize builds a deterministic toylm model. The same options always
// produce byte-identical output.
func Synthesize(opts SynthOptions) (*gguf.Writer, error) {
	if opts.Hidden <= 0 {
		return nil, fmt.Errorf("hidden size must be positive, got %d", opts.Hidden)
	}
	if opts.ContextLength <= 0 {
		return nil, fmt.Errorf("context length must be positive, got %d", opts.ContextLength)
	}
	if opts.Merges < 0 {
		return nil, fmt.Errorf("merge count must not be negative, got %d", opts.Merges)
	}

	tokens, merges := tokenizer.TrainBPE(opts.Text, opts.Merges, "gpt2")
	bos := int32(len(tokens))
	eos := bos + 1
	tokens = append(tokens, TokenBOS, TokenEOS)

	types := make([]int32, len(tokens))
	for i := range types {
		types[i] = int32(tokenizer.TokenNormal)
	}
	types[bos] = int32(tokenizer.TokenControl)
	types[eos] = int32(tokenizer.TokenControl)

	vocab := len(tokens)
	w := gguf.NewWriter()
	w.SetString(KeyArchitecture, Arch)
	if opts.Name != "" {
		w.SetString(KeyName, opts.Name)
	}
	w.SetUint32(KeyContextLength, uint32(opts.ContextLength))
	w.SetUint32(KeyEmbeddingLength, uint32(opts.Hidden))
	w.SetFloat32(KeyRMSEps, defaultRMSEps)

	w.SetString(tokenizer.KeyModel, "gpt2")
	w.SetString(tokenizer.KeyPre, "gpt2")
	w.SetStringArray(tokenizer.KeyTokens, tokens)
	w.SetInt32Array(tokenizer.KeyTokenType, types)
	w.SetStringArray(tokenizer.KeyMerges, merges)
	w.SetUint32(tokenizer.KeyBOS, uint32(bos))
	w.SetUint32(tokenizer.KeyEOS, uint32(eos))
	w.SetBool(tokenizer.KeyAddBOS, true)
	w.SetBool(tokenizer.KeyAddEOS, false)

	emb := tensor.NewMat(vocab, opts.Hidden)
	tensor.FillRand(&emb, opts.Seed+11, 2)
	if err := w.AddTensorF32(TensorTokenEmbd, []uint64{uint64(opts.Hidden), uint64(vocab)}, emb.Data); err != nil {
		return nil, err
	}

	norm := make([]float32, opts.Hidden)
	tensor.FillRandSlice(norm, opts.Seed+17, 0.2)
	for i := range norm {
		norm[i] += 1
	}
	if err := w.AddTensorF32(TensorOutputNorm, []uint64{uint64(opts.Hidden)}, norm); err != nil {
		return nil, err
	}

	if opts.Untied {
		out := tensor.NewMat(vocab, opts.Hidden)
		tensor.FillRand(&out, opts.Seed+23, 2)
		if err := w.AddTensorF32(TensorOutput, []uint64{uint64(opts.Hidden), uint64(vocab)}, out.Data); err != nil {
			return nil, err
		}
	}
	return w, nil
}
