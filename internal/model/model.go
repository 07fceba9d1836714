// Package model loads the toylm architecture: a token embedding, an RMS norm
// gain and an output projection, all stored in a single GGUF file along with
// its byte-level BPE vocabulary.
package model

import (
	"context"
	"errors"
	"fmt"

	"github.com/samcharles93/tracebench/internal/gguf"
	"github.com/samcharles93/tracebench/internal/logger"
	"github.com/samcharles93/tracebench/internal/tensor"
	"github.com/samcharles93/tracebench/internal/tokenizer"
)

// Arch is the only architecture name Load accepts.
const Arch = "toylm"

const (
	KeyArchitecture    = "general.architecture"
	KeyName            = "general.name"
	KeyContextLength   = Arch + ".context_length"
	KeyEmbeddingLength = Arch + ".embedding_length"
	KeyRMSEps          = Arch + ".attention.layer_norm_rms_epsilon"

	TensorTokenEmbd  = "token_embd.weight"
	TensorOutputNorm = "output_norm.weight"
	TensorOutput     = "output.weight"
)

const defaultRMSEps = 1e-5

var ErrClosed = errors.New("model is closed")

// Model holds the weights and vocabulary of a loaded toylm file.
type Model struct {
	Path string
	Name string

	// Embedding is [vocab x hidden].
	Embedding *tensor.Mat
	// OutputNorm is the RMS norm gain, [hidden].
	OutputNorm []float32
	// Output is [vocab x hidden]. It aliases Embedding when the file has no
	// separate output projection.
	Output *tensor.Mat
	Tied   bool

	Hidden     int
	ContextLen int
	RMSEps     float32

	vocab  *tokenizer.Vocab
	closed bool
}

// Load reads a toylm GGUF file. Tensor data is copied out of the mapping, so
// the file is released before Load returns.
func Load(ctx context.Context, path string) (*Model, error) {
	log := logger.FromContext(ctx)

	f, err := gguf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gguf: %w", err)
	}
	defer func() { _ = f.Close() }()

	arch, err := gguf.MustGetString(f.KV, KeyArchitecture)
	if err != nil {
		return nil, err
	}
	if arch != Arch {
		return nil, fmt.Errorf("unsupported architecture %q (want %q)", arch, Arch)
	}

	ctxLen, err := gguf.MustGetUint64(f.KV, KeyContextLength)
	if err != nil {
		return nil, err
	}
	if ctxLen == 0 {
		return nil, fmt.Errorf("%s must be positive", KeyContextLength)
	}

	vocab, err := tokenizer.FromGGUF(f.KV)
	if err != nil {
		return nil, fmt.Errorf("load vocab: %w", err)
	}

	m := &Model{
		Path:       path,
		ContextLen: int(ctxLen),
		RMSEps:     defaultRMSEps,
		vocab:      vocab,
	}
	m.Name, _ = gguf.GetString(f.KV, KeyName)
	if eps, ok := gguf.GetFloat64(f.KV, KeyRMSEps); ok && eps > 0 {
		m.RMSEps = float32(eps)
	}

	if m.Embedding, err = tensor.LoadGGUFMat(f, TensorTokenEmbd); err != nil {
		return nil, err
	}
	m.Hidden = m.Embedding.C
	if m.Embedding.R != vocab.Size() {
		return nil, fmt.Errorf("%s has %d rows, vocab has %d tokens", TensorTokenEmbd, m.Embedding.R, vocab.Size())
	}
	if hidden, ok := gguf.GetUint64(f.KV, KeyEmbeddingLength); ok && int(hidden) != m.Hidden {
		return nil, fmt.Errorf("%s=%d does not match %s width %d", KeyEmbeddingLength, hidden, TensorTokenEmbd, m.Hidden)
	}

	if m.OutputNorm, err = tensor.LoadGGUFVec(f, TensorOutputNorm); err != nil {
		return nil, err
	}
	if len(m.OutputNorm) != m.Hidden {
		return nil, fmt.Errorf("%s has %d elements, want %d", TensorOutputNorm, len(m.OutputNorm), m.Hidden)
	}

	if _, ok := f.TensorByName(TensorOutput); ok {
		if m.Output, err = tensor.LoadGGUFMat(f, TensorOutput); err != nil {
			return nil, err
		}
		if m.Output.R != vocab.Size() || m.Output.C != m.Hidden {
			return nil, fmt.Errorf("%s is %dx%d, want %dx%d", TensorOutput, m.Output.R, m.Output.C, vocab.Size(), m.Hidden)
		}
	} else {
		m.Output = m.Embedding
		m.Tied = true
	}

	log.Debug("model loaded",
		"path", path,
		"arch", arch,
		"vocab", vocab.Size(),
		"hidden", m.Hidden,
		"context_length", m.ContextLen,
		"tied_output", m.Tied,
	)
	return m, nil
}

func (m *Model) Vocab() *tokenizer.Vocab { return m.vocab }

func (m *Model) VocabSize() int { return m.vocab.Size() }

func (m *Model) ContextLength() int { return m.ContextLen }

// Closed reports whether Close has been called.
func (m *Model) Closed() bool { return m.closed }

// Close drops the weights. It is safe to call more than once.
func (m *Model) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	m.Embedding = nil
	m.Output = nil
	m.OutputNorm = nil
	return nil
}
