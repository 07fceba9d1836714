// Package engine evaluates token batches against a loaded toylm model.
//
// A Context owns the per-sequence state: the running causal pool, the logits
// of the last decoded position, perf counters and a pending graph capture.
// Contexts are not safe for concurrent use.
package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/samcharles93/tracebench/internal/model"
	"github.com/samcharles93/tracebench/internal/tensor"
)

var (
	ErrInvalidParams = errors.New("invalid context params")
	ErrClosed        = errors.New("context is closed")
)

// Params mirrors the knobs of a llama-style context.
type Params struct {
	NCtx         int
	NBatch       int
	Threads      int
	ThreadsBatch int
	Embeddings   bool
	NoPerf       bool
}

// Perf holds the counters collected when NoPerf is false.
type Perf struct {
	ContextInit time.Duration
	Eval        time.Duration
	EvalTokens  int
	Evals       int
}

// TokensPerSecond is zero until something has been evaluated.
func (p Perf) TokensPerSecond() float64 {
	if p.Eval <= 0 {
		return 0
	}
	return float64(p.EvalTokens) / p.Eval.Seconds()
}

type Context struct {
	model  *model.Model
	params Params

	nPast   int
	poolSum []float32
	pooled  tensor.Mat
	normed  []float32
	logits  []float32
	// nOut is the size of the batch that produced logits, 0 when none.
	nOut int

	capturePath string
	lastGraph   *Graph

	perf   Perf
	closed bool
}

// NewContext validates p against m and allocates the scratch buffers.
func NewContext(m *model.Model, p Params) (*Context, error) {
	start := time.Now()

	if m == nil || m.Closed() {
		return nil, fmt.Errorf("%w: model is not loaded", ErrInvalidParams)
	}
	if p.NCtx <= 0 || p.NBatch <= 0 {
		return nil, fmt.Errorf("%w: n_ctx=%d n_batch=%d must be positive", ErrInvalidParams, p.NCtx, p.NBatch)
	}
	if p.NBatch > p.NCtx {
		return nil, fmt.Errorf("%w: n_batch=%d exceeds n_ctx=%d", ErrInvalidParams, p.NBatch, p.NCtx)
	}
	if p.NCtx > m.ContextLength() {
		return nil, fmt.Errorf("%w: n_ctx=%d exceeds model context length %d", ErrInvalidParams, p.NCtx, m.ContextLength())
	}
	if p.Threads <= 0 {
		p.Threads = 1
	}
	if p.ThreadsBatch <= 0 {
		p.ThreadsBatch = p.Threads
	}
	if p.Embeddings {
		return nil, fmt.Errorf("%w: embeddings output is not supported", ErrInvalidParams)
	}

	c := &Context{
		model:   m,
		params:  p,
		poolSum: make([]float32, m.Hidden),
		pooled:  tensor.NewMat(p.NBatch, m.Hidden),
		normed:  make([]float32, m.Hidden),
		logits:  make([]float32, m.VocabSize()),
	}
	c.perf.ContextInit = time.Since(start)
	return c, nil
}

func (c *Context) Params() Params { return c.params }

// NPast is the number of positions already evaluated.
func (c *Context) NPast() int { return c.nPast }

// Perf returns the counters, or false when the context was created with NoPerf.
func (c *Context) Perf() (Perf, bool) {
	if c.params.NoPerf {
		return Perf{}, false
	}
	return c.perf, true
}

// SetGraphCapture asks the next Decode to export its compute graph to path.
// The request is consumed by that Decode whether or not it succeeds.
func (c *Context) SetGraphCapture(path string) {
	c.capturePath = path
}

// LastGraph returns the graph of the most recent successful Decode.
func (c *Context) LastGraph() *Graph { return c.lastGraph }

// Close releases the scratch buffers. It is safe to call more than once.
func (c *Context) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.poolSum = nil
	c.pooled = tensor.Mat{}
	c.normed = nil
	c.logits = nil
	c.nOut = 0
	return nil
}
