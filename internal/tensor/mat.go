package tensor

import (
	"errors"
	"math/rand"
)

// Mat represents a dense row-major matrix of float32 values.
//
// R and C are the number of rows and columns. Stride is the number of
// elements between the starts of two consecutive rows; for matrices built by
// this package it equals C. Out-of-range indices panic.
type Mat struct {
	R, C   int
	Stride int
	Data   []float32
}

var (
	ErrNegativeDim  = errors.New("negative dimension for matrix")
	ErrSizeMismatch = errors.New("data length mismatch")
)

// NewMat allocates a zeroed r x c matrix.
func NewMat(r, c int) Mat {
	if r < 0 || c < 0 {
		panic(ErrNegativeDim)
	}
	return Mat{
		R:      r,
		C:      c,
		Stride: c,
		Data:   make([]float32, r*c),
	}
}

// NewMatFromData wraps existing data without copying.
func NewMatFromData(r, c int, data []float32) (Mat, error) {
	if r < 0 || c < 0 {
		return Mat{}, ErrNegativeDim
	}
	if r*c != len(data) {
		return Mat{}, ErrSizeMismatch
	}
	return Mat{
		R:      r,
		C:      c,
		Stride: c,
		Data:   data,
	}, nil
}

// Row returns a view of the i-th row. Writes through the slice update the matrix.
func (m *Mat) Row(i int) []float32 {
	if i < 0 || i >= m.R {
		panic("row index out of range")
	}
	start := i * m.Stride
	return m.Data[start : start+m.C]
}

// FillRand fills the matrix with reproducible values in roughly (-scale/2, scale/2).
// The same seed always produces the same matrix.
func FillRand(m *Mat, seed int64, scale float32) {
	FillRandSlice(m.Data, seed, scale)
}

// FillRandSlice is FillRand for a bare vector.
func FillRandSlice(dst []float32, seed int64, scale float32) {
	rng := rand.New(rand.NewSource(seed))
	for i := range dst {
		dst[i] = (rng.Float32() - 0.5) * scale
	}
}
