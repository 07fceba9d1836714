// Package modeltest writes small toylm fixtures for tests.
package modeltest

import (
	"path/filepath"
	"testing"

	"github.com/samcharles93/tracebench/internal/corpus"
	"github.com/samcharles93/tracebench/internal/model"
)

// Options returns fixture options trained on the canonical corpus.
func Options() model.SynthOptions {
	return model.SynthOptions{
		Name:          "fixture",
		Text:          corpus.Text,
		Merges:        32,
		Hidden:        16,
		ContextLength: 2048,
		Seed:          1,
	}
}

// Write synthesizes a model into a temp dir and returns its path.
func Write(tb testing.TB, opts model.SynthOptions) string {
	tb.Helper()
	w, err := model.Synthesize(opts)
	if err != nil {
		tb.Fatalf("synthesize model: %v", err)
	}
	path := filepath.Join(tb.TempDir(), "toylm.gguf")
	if err := w.WriteFile(path); err != nil {
		tb.Fatalf("write model: %v", err)
	}
	return path
}

// Path writes the default fixture.
func Path(tb testing.TB) string {
	tb.Helper()
	return Write(tb, Options())
}
