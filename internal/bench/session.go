package bench

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/samcharles93/tracebench/internal/engine"
	"github.com/samcharles93/tracebench/internal/logger"
)

// Result is what one inference pass produces.
type Result struct {
	// Scores are the final-position logits, copied out of the context.
	Scores      []float32
	ContextInit time.Duration
	Decode      time.Duration
	// Perf is set only when the config enabled perf counters.
	Perf *engine.Perf
}

// Session runs a single decode of a window. Instrument may be nil.
type Session struct {
	Instrument Instrumentation
	Logger     logger.Logger
}

// Run creates a context sized by cfg, decodes the whole window in one batch
// and returns the final-position scores. The context is closed on every path.
func (s *Session) Run(ctx context.Context, m Model, w Window, cfg SessionConfig) (*Result, error) {
	log := s.Logger
	if log == nil {
		log = logger.FromContext(ctx)
	}
	if err := cfg.validateFor(w); err != nil {
		return nil, err
	}

	_, endInit := s.span(ctx, "context_init",
		attribute.Int("n_ctx", cfg.ContextSize),
		attribute.Int("n_threads", cfg.Threads),
	)
	start := time.Now()
	lctx, err := m.NewContext(cfg)
	initDur := time.Since(start)
	endInit()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrContextCreation, err)
	}
	defer func() {
		if cerr := lctx.Close(); cerr != nil {
			log.Warn("failed to release context", "error", cerr)
		}
	}()

	if s.Instrument != nil {
		s.Instrument.AttachGraphCapture(lctx)
	}

	decodeCtx, endDecode := s.span(ctx, "decode", attribute.Int("n_tokens", len(w)))
	start = time.Now()
	err = safeDecode(decodeCtx, lctx, w)
	decodeDur := time.Since(start)
	endDecode()
	if err != nil {
		return nil, err
	}

	logits := lctx.Logits(len(w) - 1)
	if logits == nil {
		return nil, ErrNoLogits
	}

	res := &Result{
		Scores:      append([]float32(nil), logits...),
		ContextInit: initDur,
		Decode:      decodeDur,
	}
	if !cfg.NoPerf {
		if pc, ok := lctx.(PerfContext); ok {
			if perf, ok := pc.Perf(); ok {
				res.Perf = &perf
			}
		}
	}
	log.Debug("decode complete", "tokens", len(w), "vocab", len(res.Scores), "decode", decodeDur)
	return res, nil
}

func (s *Session) span(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func()) {
	if s.Instrument == nil {
		return ctx, func() {}
	}
	return s.Instrument.StartSpan(ctx, name, attrs...)
}

// safeDecode maps engine failures and panics to *DecodeError.
func safeDecode(ctx context.Context, lctx Context, w Window) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &DecodeError{Status: engine.StatusInvalidBatch, Err: fmt.Errorf("panic in Decode: %v", rec)}
		}
	}()
	if err := lctx.Decode(ctx, w); err != nil {
		status := engine.StatusInvalidBatch
		var se *engine.StatusError
		if errors.As(err, &se) {
			status = se.Status
		}
		return &DecodeError{Status: status, Err: err}
	}
	return nil
}
