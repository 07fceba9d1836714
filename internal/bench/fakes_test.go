package bench

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"github.com/samcharles93/tracebench/internal/profile"
)

type events []string

func (e *events) add(s string) { *e = append(*e, s) }

type fakeVocab struct {
	tokens     []int32
	measureErr error
	fillShort  bool
	panics     bool
}

func (v *fakeVocab) Measure(string, bool, bool) (int, error) {
	if v.panics {
		panic("tokenizer exploded")
	}
	if v.measureErr != nil {
		return 0, v.measureErr
	}
	return len(v.tokens), nil
}

func (v *fakeVocab) Fill(_ string, dst []int32, _, _ bool) (int, error) {
	n := copy(dst, v.tokens)
	if v.fillShort {
		n--
	}
	return n, nil
}

func (v *fakeVocab) Size() int { return 4 }

type fakeContext struct {
	ev        *events
	logits    []float32
	decodeErr error
	panics    bool
	captured  string
	decoded   []int32
}

func (c *fakeContext) Decode(_ context.Context, tokens []int32) error {
	c.ev.add("context.decode")
	if c.panics {
		panic("engine exploded")
	}
	c.decoded = append([]int32(nil), tokens...)
	return c.decodeErr
}

func (c *fakeContext) Logits(i int) []float32 {
	if i != len(c.decoded)-1 {
		return nil
	}
	return c.logits
}

func (c *fakeContext) SetGraphCapture(path string) {
	c.ev.add("context.capture")
	c.captured = path
}

func (c *fakeContext) Close() error {
	c.ev.add("context.close")
	return nil
}

type fakeModel struct {
	ev       *events
	vocab    *fakeVocab
	ctx      *fakeContext
	ctxErr   error
	contexts int
	cfg      SessionConfig
}

func (m *fakeModel) Vocab() Vocab { return m.vocab }

func (m *fakeModel) NewContext(cfg SessionConfig) (Context, error) {
	m.ev.add("context.new")
	if m.ctxErr != nil {
		return nil, m.ctxErr
	}
	m.contexts++
	m.cfg = cfg
	return m.ctx, nil
}

func (m *fakeModel) Close() error {
	m.ev.add("model.close")
	return nil
}

type fakeLoader struct {
	ev    *events
	model *fakeModel
	err   error
	calls int
}

func (l *fakeLoader) Load(context.Context, string) (Model, error) {
	l.calls++
	l.ev.add("model.load")
	if l.err != nil {
		return nil, l.err
	}
	return l.model, nil
}

type fakeProfile struct {
	ev    *events
	stats *profile.DecodeStats
	ended int
}

func (p *fakeProfile) StartSpan(ctx context.Context, name string, _ ...attribute.KeyValue) (context.Context, func()) {
	return ctx, func() {}
}

func (p *fakeProfile) AttachGraphCapture(target profile.GraphTarget) {
	target.SetGraphCapture("graph.json")
}

func (p *fakeProfile) RecordDecode(st profile.DecodeStats) { p.stats = &st }

func (p *fakeProfile) End(context.Context) error {
	p.ev.add("profile.end")
	p.ended++
	return nil
}

// newFakes builds a model whose vocab yields tokens 0..n-1 and whose context
// returns fixed logits.
func newFakes(n int) (*events, *fakeLoader) {
	ev := &events{}
	tokens := make([]int32, n)
	for i := range tokens {
		tokens[i] = int32(i)
	}
	ctx := &fakeContext{ev: ev, logits: []float32{0.5, -1, 2, 0}}
	m := &fakeModel{ev: ev, vocab: &fakeVocab{tokens: tokens}, ctx: ctx}
	return ev, &fakeLoader{ev: ev, model: m}
}

func profileFunc(ev *events, p *fakeProfile, err error) ProfileFunc {
	return func(context.Context, string, profile.Options) (ProfileSession, error) {
		ev.add("profile.begin")
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

var errBoom = errors.New("boom")
