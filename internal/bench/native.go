package bench

import (
	"context"

	"github.com/samcharles93/tracebench/internal/engine"
	"github.com/samcharles93/tracebench/internal/model"
)

// NativeLoader loads toylm GGUF files with the in-tree engine.
type NativeLoader struct{}

func (NativeLoader) Load(ctx context.Context, path string) (Model, error) {
	m, err := model.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	return &nativeModel{m: m}, nil
}

type nativeModel struct {
	m *model.Model
}

func (n *nativeModel) Vocab() Vocab { return n.m.Vocab() }

func (n *nativeModel) NewContext(cfg SessionConfig) (Context, error) {
	c, err := engine.NewContext(n.m, engine.Params{
		NCtx:         cfg.ContextSize,
		NBatch:       cfg.BatchSize,
		Threads:      cfg.Threads,
		ThreadsBatch: cfg.ThreadsBatch,
		Embeddings:   cfg.Embeddings,
		NoPerf:       cfg.NoPerf,
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (n *nativeModel) Close() error { return n.m.Close() }
