package bench

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/samcharles93/tracebench/internal/corpus"
	"github.com/samcharles93/tracebench/internal/dump"
	"github.com/samcharles93/tracebench/internal/engine"
	"github.com/samcharles93/tracebench/internal/logger"
	"github.com/samcharles93/tracebench/internal/profile"
	"github.com/samcharles93/tracebench/internal/version"
)

// Options are the parameters of one benchmark run.
type Options struct {
	ModelPath string
	Tokens    int
	// OutputDir enables profiling artifacts when non-empty.
	OutputDir     string
	Threads       int
	MemoryProfile bool
	// DumpPath defaults to dump.DefaultPath.
	DumpPath string
}

// Validate reports a *UsageError for missing or invalid options.
func (o Options) Validate() error {
	if strings.TrimSpace(o.ModelPath) == "" {
		return &UsageError{Msg: "model path is required"}
	}
	if o.Tokens <= 0 {
		return &UsageError{Msg: fmt.Sprintf("n_tokens must be positive, got %d", o.Tokens)}
	}
	return nil
}

// Report summarises a successful run.
type Report struct {
	RunID       string
	Window      Window
	Scores      []float32
	DumpPath    string
	ContextInit time.Duration
	Decode      time.Duration
	Perf        *engine.Perf
}

// Harness wires model loading, window selection, profiling, the inference
// session and the dump writer into one sequential run.
type Harness struct {
	Loader   Loader
	Logger   logger.Logger
	Stdout   io.Writer
	Profiler ProfileFunc
	// Corpus defaults to corpus.Text.
	Corpus string
}

func (h *Harness) Run(ctx context.Context, opts Options) (*Report, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := h.Logger
	if log == nil {
		log = logger.FromContext(ctx)
	}
	log = log.With("run_id", runID)
	ctx = logger.WithContext(ctx, log)

	loader := h.Loader
	if loader == nil {
		loader = NativeLoader{}
	}
	text := h.Corpus
	if text == "" {
		text = corpus.Text
	}

	m, err := loader.Load(ctx, opts.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrModelLoad, opts.ModelPath, err)
	}
	defer func() {
		if cerr := m.Close(); cerr != nil {
			log.Warn("failed to release model", "error", cerr)
		}
	}()

	vocab := m.Vocab()
	window, err := SelectWindow(vocab, text, opts.Tokens)
	if err != nil {
		return nil, err
	}
	log.Debug("window selected", "tokens", len(window), "corpus", corpus.Version)

	profiling := opts.OutputDir != ""
	session := &Session{Logger: log}
	var prof ProfileSession
	if profiling {
		begin := h.Profiler
		if begin == nil {
			begin = BeginProfile
		}
		prof, err = begin(ctx, opts.OutputDir, profile.Options{
			RunID:          runID,
			ServiceVersion: version.String(),
			MemoryProfile:  opts.MemoryProfile,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrProfilerInit, err)
		}
		defer func() {
			if eerr := prof.End(ctx); eerr != nil {
				log.Warn("failed to finalize profiling artifacts", "error", eerr)
			}
		}()
		session.Instrument = prof
	}

	cfg := NewSessionConfig(len(window), opts.Threads, profiling)
	res, err := session.Run(ctx, m, window, cfg)
	if err != nil {
		return nil, err
	}

	if prof != nil {
		prof.RecordDecode(profile.DecodeStats{
			Decode:       res.Decode,
			ContextInit:  res.ContextInit,
			WindowTokens: len(window),
			VocabSize:    len(res.Scores),
			Threads:      cfg.Threads,
		})
	}

	w := &dump.Writer{Path: opts.DumpPath, Stdout: h.Stdout, Logger: log}
	dumpPath, err := w.Write(window, res.Scores)
	if err != nil {
		return nil, err
	}

	log.Info(fmt.Sprintf("successfully evaluated %d tokens", len(window)),
		"decode", res.Decode,
		"dump", dumpPath,
		"vocab", vocab.Size(),
	)

	return &Report{
		RunID:       runID,
		Window:      window,
		Scores:      res.Scores,
		DumpPath:    dumpPath,
		ContextInit: res.ContextInit,
		Decode:      res.Decode,
		Perf:        res.Perf,
	}, nil
}
