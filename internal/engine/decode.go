package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/samcharles93/tracebench/internal/logger"
	"github.com/samcharles93/tracebench/internal/model"
	"github.com/samcharles93/tracebench/internal/tensor"
)

// Decode evaluates tokens as one batch appended to the sequence. Only the
// last position produces logits. Failures are *StatusError.
func (c *Context) Decode(ctx context.Context, tokens []int32) error {
	log := logger.FromContext(ctx)

	capture := c.capturePath
	c.capturePath = ""
	c.nOut = 0

	if c.closed {
		return &StatusError{Status: StatusInvalidBatch, Err: ErrClosed}
	}
	n := len(tokens)
	if n == 0 {
		return &StatusError{Status: StatusInvalidBatch, Err: errors.New("empty batch")}
	}
	if n > c.params.NBatch {
		return &StatusError{Status: StatusInvalidBatch, Err: fmt.Errorf("batch of %d tokens exceeds n_batch=%d", n, c.params.NBatch)}
	}
	if c.nPast+n > c.params.NCtx {
		return &StatusError{Status: StatusNoRoom, Err: fmt.Errorf("n_past=%d + %d tokens exceeds n_ctx=%d", c.nPast, n, c.params.NCtx)}
	}
	vocab := c.model.VocabSize()
	for i, tok := range tokens {
		if tok < 0 || int(tok) >= vocab {
			return &StatusError{Status: StatusInvalidBatch, Err: fmt.Errorf("token[%d]=%d out of range [0,%d)", i, tok, vocab)}
		}
	}

	threads := c.params.Threads
	if n > 1 {
		threads = c.params.ThreadsBatch
	}

	// The pool state is restored if the batch fails after forward.
	saved := slices.Clone(c.poolSum)

	start := time.Now()
	g, err := c.forward(tokens, threads)
	if err != nil {
		copy(c.poolSum, saved)
		return &StatusError{Status: StatusInvalidBatch, Err: err}
	}
	elapsed := time.Since(start)

	if capture != "" {
		if err := exportGraph(capture, g); err != nil {
			copy(c.poolSum, saved)
			return &StatusError{Status: StatusGraphExport, Err: err}
		}
		log.Debug("compute graph exported", "path", capture, "nodes", len(g.Nodes))
	}

	c.nPast += n
	c.nOut = n
	c.lastGraph = g
	if !c.params.NoPerf {
		c.perf.Eval += elapsed
		c.perf.EvalTokens += n
		c.perf.Evals++
	}
	log.Debug("decode", "tokens", n, "n_past", c.nPast, "threads", threads, "elapsed", elapsed)
	return nil
}

// Logits returns the scores for batch position i of the last Decode. Only the
// final position has logits; any other index returns nil. -1 means the final
// position. The slice is owned by the context and is overwritten by the next
// Decode.
func (c *Context) Logits(i int) []float32 {
	if c.closed || c.nOut == 0 {
		return nil
	}
	if i == -1 {
		i = c.nOut - 1
	}
	if i != c.nOut-1 {
		return nil
	}
	return c.logits
}

// forward runs get_rows, causal mean pooling, rms_norm with the output gain
// and the output projection, timing every node.
func (c *Context) forward(tokens []int32, threads int) (*Graph, error) {
	m := c.model
	n := len(tokens)
	hidden := m.Hidden
	g := newGraph(m, c.nPast, n, threads)

	t := time.Now()
	for i, tok := range tokens {
		copy(c.pooled.Row(i), m.Embedding.Row(int(tok)))
	}
	g.node("inp_embd", "GET_ROWS", []int{hidden, n}, []string{model.TensorTokenEmbd, "inp_tokens"}, time.Since(t))

	t = time.Now()
	for i := range n {
		row := c.pooled.Row(i)
		tensor.Add(c.poolSum, row)
		copy(row, c.poolSum)
		tensor.Scale(row, 1/float32(c.nPast+i+1))
	}
	g.node("inp_pooled", "MEAN_CAUSAL", []int{hidden, n}, []string{"inp_embd"}, time.Since(t))

	t = time.Now()
	last := c.pooled.Row(n - 1)
	g.node("inp_out", "VIEW", []int{hidden, 1}, []string{"inp_pooled"}, time.Since(t))

	t = time.Now()
	tensor.RMSNorm(c.normed, last, nil, m.RMSEps)
	g.node("norm", "RMS_NORM", []int{hidden, 1}, []string{"inp_out"}, time.Since(t))

	t = time.Now()
	tensor.Mul(c.normed, m.OutputNorm)
	g.node("result_norm", "MUL", []int{hidden, 1}, []string{"norm", model.TensorOutputNorm}, time.Since(t))

	t = time.Now()
	if err := tensor.MatVec(c.logits, m.Output, c.normed, threads); err != nil {
		return nil, err
	}
	outName := model.TensorOutput
	if m.Tied {
		outName = model.TensorTokenEmbd
	}
	g.node("result_output", "MUL_MAT", []int{m.VocabSize(), 1}, []string{outName, "result_norm"}, time.Since(t))

	return g, nil
}
