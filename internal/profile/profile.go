// Package profile manages the process-wide profiling session of a benchmark
// run. A session streams spans to timing.json, collects run gauges into
// metrics.prom, requests a compute graph export and can write a heap profile.
package profile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/samcharles93/tracebench/internal/logger"
)

const (
	TimingFile  = "timing.json"
	GraphFile   = "compute_graph.json"
	MetricsFile = "metrics.prom"
	MemoryFile  = "memory.pprof"

	ServiceName = "tracebench"

	tracerName      = "github.com/samcharles93/tracebench/internal/profile"
	metricNamespace = "tracebench"
)

var (
	ErrInit          = errors.New("profiler initialization failed")
	ErrAlreadyActive = errors.New("profiling session already active")
)

// active guards the single process-wide session.
var active atomic.Bool

// Active reports whether a session is currently running.
func Active() bool { return active.Load() }

type Options struct {
	RunID          string
	ServiceVersion string
	MemoryProfile  bool
}

// GraphTarget is anything that accepts a one-shot graph capture request.
type GraphTarget interface {
	SetGraphCapture(path string)
}

// DecodeStats feeds the run gauges.
type DecodeStats struct {
	Decode       time.Duration
	ContextInit  time.Duration
	WindowTokens int
	VocabSize    int
	Threads      int
}

type Session struct {
	dir  string
	opts Options
	log  logger.Logger

	file   *os.File
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer
	root   trace.Span

	registry        *prometheus.Registry
	decodeSeconds   prometheus.Gauge
	initSeconds     prometheus.Gauge
	windowTokens    prometheus.Gauge
	vocabSize       prometheus.Gauge
	tokensPerSecond prometheus.Gauge
	threads         prometheus.Gauge

	ended bool
}

// Begin starts the session rooted at dir. Only one session may be active per
// process; a second Begin fails with ErrAlreadyActive until End is called.
func Begin(ctx context.Context, dir string, opts Options) (*Session, error) {
	if !active.CompareAndSwap(false, true) {
		return nil, ErrAlreadyActive
	}

	s := &Session{
		dir:  dir,
		opts: opts,
		log:  logger.FromContext(ctx).With("component", "profile"),
	}
	if err := s.start(ctx); err != nil {
		s.abort(ctx)
		active.Store(false)
		return nil, fmt.Errorf("%w: %w", ErrInit, err)
	}

	s.log.Debug("profiling started", "dir", dir, "memory_profile", opts.MemoryProfile)
	return s, nil
}

func (s *Session) start(ctx context.Context) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	f, err := os.Create(filepath.Join(s.dir, TimingFile))
	if err != nil {
		return fmt.Errorf("create timing file: %w", err)
	}
	s.file = f

	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(f),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return fmt.Errorf("create span exporter: %w", err)
	}

	attrs := []attribute.KeyValue{semconv.ServiceName(ServiceName)}
	if s.opts.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(s.opts.ServiceVersion))
	}
	if s.opts.RunID != "" {
		attrs = append(attrs, attribute.String("tracebench.run_id", s.opts.RunID))
	}

	s.tp = sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(semconv.SchemaURL, attrs...)),
	)
	s.tracer = s.tp.Tracer(tracerName)
	_, s.root = s.tracer.Start(ctx, "profile")

	s.registry = prometheus.NewRegistry()
	labels := prometheus.Labels{}
	if s.opts.RunID != "" {
		labels["run_id"] = s.opts.RunID
	}
	factory := promauto.With(s.registry)
	gauge := func(name, help string) prometheus.Gauge {
		return factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   metricNamespace,
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
	}
	s.decodeSeconds = gauge("decode_seconds", "Wall time of the measured decode.")
	s.initSeconds = gauge("context_init_seconds", "Wall time of context creation.")
	s.windowTokens = gauge("window_tokens", "Number of tokens in the evaluated window.")
	s.vocabSize = gauge("vocab_size", "Length of the final-position score vector.")
	s.tokensPerSecond = gauge("tokens_per_second", "Window tokens divided by decode time.")
	s.threads = gauge("threads", "Compute threads used for the decode.")
	return nil
}

// Dir is the artifact directory.
func (s *Session) Dir() string { return s.dir }

// GraphPath is where the compute graph is written.
func (s *Session) GraphPath() string { return filepath.Join(s.dir, GraphFile) }

// StartSpan opens a span under ctx, or under the session root when ctx
// carries none. Call the returned func to end it.
func (s *Session) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func()) {
	if s.tracer == nil {
		return ctx, func() {}
	}
	if !trace.SpanFromContext(ctx).SpanContext().IsValid() {
		ctx = trace.ContextWithSpan(ctx, s.root)
	}
	ctx, span := s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, func() { span.End() }
}

// AttachGraphCapture asks target to export the graph of its next decode.
func (s *Session) AttachGraphCapture(target GraphTarget) {
	target.SetGraphCapture(s.GraphPath())
}

func (s *Session) RecordDecode(st DecodeStats) {
	s.decodeSeconds.Set(st.Decode.Seconds())
	s.initSeconds.Set(st.ContextInit.Seconds())
	s.windowTokens.Set(float64(st.WindowTokens))
	s.vocabSize.Set(float64(st.VocabSize))
	s.threads.Set(float64(st.Threads))
	var tps float64
	if st.Decode > 0 {
		tps = float64(st.WindowTokens) / st.Decode.Seconds()
	}
	s.tokensPerSecond.Set(tps)

	s.root.SetAttributes(
		attribute.Int("tracebench.window_tokens", st.WindowTokens),
		attribute.Int("tracebench.vocab_size", st.VocabSize),
		attribute.Float64("tracebench.tokens_per_second", tps),
	)
}

// End flushes every artifact and releases the process-wide guard. It is safe
// to call more than once; later calls return nil.
func (s *Session) End(ctx context.Context) error {
	if s == nil || s.ended {
		return nil
	}
	s.ended = true
	defer active.Store(false)

	var errs []error
	s.root.End()
	if err := s.tp.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown tracer: %w", err))
	}
	if err := s.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close timing file: %w", err))
	}
	if err := prometheus.WriteToTextfile(filepath.Join(s.dir, MetricsFile), s.registry); err != nil {
		errs = append(errs, fmt.Errorf("write metrics: %w", err))
	}
	if s.opts.MemoryProfile {
		if err := writeHeapProfile(filepath.Join(s.dir, MemoryFile)); err != nil {
			errs = append(errs, err)
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		s.log.Warn("profiling ended with errors", "error", err)
	} else {
		s.log.Debug("profiling ended", "dir", s.dir)
	}
	return err
}

// abort releases whatever start managed to acquire.
func (s *Session) abort(ctx context.Context) {
	if s.root != nil {
		s.root.End()
	}
	if s.tp != nil {
		_ = s.tp.Shutdown(ctx)
	}
	if s.file != nil {
		_ = s.file.Close()
	}
}

func writeHeapProfile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create memory profile: %w", err)
	}
	defer func() { _ = f.Close() }()
	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		return fmt.Errorf("write memory profile: %w", err)
	}
	return nil
}
