package tensor

import (
	"bytes"
	"math"
	"testing"

	"github.com/samcharles93/tracebench/internal/gguf"
)

func matVecNaive(dst []float32, w *Mat, x []float32) {
	for i := 0; i < w.R; i++ {
		row := w.Row(i)
		var sum float32
		for j := 0; j < w.C; j++ {
			sum += row[j] * x[j]
		}
		dst[i] = sum
	}
}

func maxAbsDiff(a, b []float32) float64 {
	var maxAbs float64
	for i := range a {
		d := math.Abs(float64(a[i] - b[i]))
		if d > maxAbs {
			maxAbs = d
		}
	}
	return maxAbs
}

func TestMatVecMatchesNaive(t *testing.T) {
	w := NewMat(257, 63)
	FillRand(&w, 1, 0.02)
	x := make([]float32, 63)
	FillRandSlice(x, 2, 1)

	want := make([]float32, w.R)
	matVecNaive(want, &w, x)

	for _, threads := range []int{0, 1, 2, 4, 16} {
		got := make([]float32, w.R)
		if err := MatVec(got, &w, x, threads); err != nil {
			t.Fatalf("threads=%d: %v", threads, err)
		}
		if d := maxAbsDiff(got, want); d > 1e-5 {
			t.Fatalf("threads=%d: max abs diff %g", threads, d)
		}
	}
}

func TestMatVecThreadCountInvariant(t *testing.T) {
	w := NewMat(512, 40)
	FillRand(&w, 7, 0.5)
	x := make([]float32, 40)
	FillRandSlice(x, 8, 1)

	single := make([]float32, w.R)
	if err := MatVec(single, &w, x, 1); err != nil {
		t.Fatal(err)
	}
	multi := make([]float32, w.R)
	if err := MatVec(multi, &w, x, 8); err != nil {
		t.Fatal(err)
	}
	for i := range single {
		if single[i] != multi[i] {
			t.Fatalf("row %d: single=%v multi=%v", i, single[i], multi[i])
		}
	}
}

func TestMatVecShapeErrors(t *testing.T) {
	w := NewMat(4, 3)
	if err := MatVec(make([]float32, 4), &w, make([]float32, 2), 1); err == nil {
		t.Fatal("expected error for short input")
	}
	if err := MatVec(make([]float32, 3), &w, make([]float32, 3), 1); err == nil {
		t.Fatal("expected error for short output")
	}
}

func TestNewMatFromData(t *testing.T) {
	m, err := NewMatFromData(2, 3, []float32{1, 2, 3, 4, 5, 6})
	if err != nil {
		t.Fatal(err)
	}
	if got := m.Row(1); got[0] != 4 || got[2] != 6 {
		t.Fatalf("unexpected row 1: %v", got)
	}
	if _, err := NewMatFromData(2, 2, []float32{1}); err != ErrSizeMismatch {
		t.Fatalf("expected ErrSizeMismatch, got %v", err)
	}
	if _, err := NewMatFromData(-1, 2, nil); err != ErrNegativeDim {
		t.Fatalf("expected ErrNegativeDim, got %v", err)
	}
}

func TestFillRandDeterministic(t *testing.T) {
	a := NewMat(8, 8)
	b := NewMat(8, 8)
	FillRand(&a, 42, 0.02)
	FillRand(&b, 42, 0.02)
	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			t.Fatalf("element %d differs", i)
		}
		if a.Data[i] < -0.01 || a.Data[i] > 0.01 {
			t.Fatalf("element %d out of range: %v", i, a.Data[i])
		}
	}
}

func TestRMSNorm(t *testing.T) {
	src := []float32{3, 4}
	dst := make([]float32, 2)
	RMSNorm(dst, src, nil, 0)
	// rms = sqrt((9+16)/2)
	rms := float32(math.Sqrt(12.5))
	if math.Abs(float64(dst[0]-3/rms)) > 1e-6 || math.Abs(float64(dst[1]-4/rms)) > 1e-6 {
		t.Fatalf("unexpected norm: %v", dst)
	}

	RMSNorm(dst, src, []float32{2, 0}, 0)
	if dst[1] != 0 || math.Abs(float64(dst[0]-6/rms)) > 1e-6 {
		t.Fatalf("weight not applied: %v", dst)
	}
}

func TestSoftmaxAndArgmax(t *testing.T) {
	x := []float32{1, 3, 2}
	if got := Argmax(x); got != 1 {
		t.Fatalf("Argmax = %d, want 1", got)
	}
	Softmax(x)
	var sum float32
	for _, v := range x {
		sum += v
	}
	if math.Abs(float64(sum-1)) > 1e-6 {
		t.Fatalf("softmax sum = %v", sum)
	}
	if Argmax(nil) != -1 {
		t.Fatal("Argmax(nil) should be -1")
	}
}

func TestLoadGGUF(t *testing.T) {
	w := gguf.NewWriter()
	if err := w.AddTensorF32("m", []uint64{3, 2}, []float32{1, 2, 3, 4, 5, 6}); err != nil {
		t.Fatal(err)
	}
	if err := w.AddTensorF32("v", []uint64{3}, []float32{7, 8, 9}); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	f, err := gguf.Parse(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}

	m, err := LoadGGUFMat(f, "m")
	if err != nil {
		t.Fatal(err)
	}
	if m.R != 2 || m.C != 3 {
		t.Fatalf("shape = %dx%d, want 2x3", m.R, m.C)
	}
	if m.Row(1)[0] != 4 {
		t.Fatalf("row 1 = %v", m.Row(1))
	}

	v, err := LoadGGUFVec(f, "v")
	if err != nil {
		t.Fatal(err)
	}
	if len(v) != 3 || v[2] != 9 {
		t.Fatalf("vec = %v", v)
	}

	if _, err := LoadGGUFMat(f, "v"); err == nil {
		t.Fatal("expected dims error loading vector as matrix")
	}
	if _, err := LoadGGUFVec(f, "missing"); err == nil {
		t.Fatal("expected error for missing tensor")
	}
}

func BenchmarkMatVec(b *testing.B) {
	w := NewMat(2048, 256)
	FillRand(&w, 1, 0.02)
	x := make([]float32, 256)
	dst := make([]float32, 2048)
	for b.Loop() {
		_ = MatVec(dst, &w, x, 4)
	}
}
