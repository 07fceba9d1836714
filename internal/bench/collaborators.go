package bench

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/samcharles93/tracebench/internal/engine"
	"github.com/samcharles93/tracebench/internal/profile"
)

// Vocab tokenizes with a two-phase contract: Measure returns the token count
// and Fill writes into a caller-sized buffer.
type Vocab interface {
	Measure(text string, addSpecial, parseSpecial bool) (int, error)
	Fill(text string, dst []int32, addSpecial, parseSpecial bool) (int, error)
	Size() int
}

// Context is one inference context. Logits(i) returns scores for batch
// position i of the last Decode, or nil.
type Context interface {
	Decode(ctx context.Context, tokens []int32) error
	Logits(i int) []float32
	SetGraphCapture(path string)
	Close() error
}

// PerfContext is implemented by contexts that expose engine counters.
type PerfContext interface {
	Perf() (engine.Perf, bool)
}

type Model interface {
	Vocab() Vocab
	NewContext(cfg SessionConfig) (Context, error)
	Close() error
}

type Loader interface {
	Load(ctx context.Context, path string) (Model, error)
}

// Instrumentation is the part of a profiling session the inference session
// talks to.
type Instrumentation interface {
	StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func())
	AttachGraphCapture(target profile.GraphTarget)
}

// ProfileSession is a running profiling session as seen by the harness.
type ProfileSession interface {
	Instrumentation
	RecordDecode(st profile.DecodeStats)
	End(ctx context.Context) error
}

// ProfileFunc starts a profiling session rooted at dir.
type ProfileFunc func(ctx context.Context, dir string, opts profile.Options) (ProfileSession, error)

// BeginProfile is the default ProfileFunc.
func BeginProfile(ctx context.Context, dir string, opts profile.Options) (ProfileSession, error) {
	s, err := profile.Begin(ctx, dir, opts)
	if err != nil {
		return nil, err
	}
	return s, nil
}
