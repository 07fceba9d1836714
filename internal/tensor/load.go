package tensor

import (
	"fmt"

	"github.com/samcharles93/tracebench/internal/gguf"
)

// LoadGGUFMat loads a 2D tensor. GGUF dims are innermost first, so dims[0]
// is the column count.
func LoadGGUFMat(f *gguf.File, name string) (*Mat, error) {
	data, dims, err := gguf.ReadTensorF32(f, name)
	if err != nil {
		return nil, err
	}
	if len(dims) != 2 {
		return nil, fmt.Errorf("%s: expected 2D tensor, got %d dims", name, len(dims))
	}
	m, err := NewMatFromData(int(dims[1]), int(dims[0]), data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &m, nil
}

// LoadGGUFVec loads a 1D tensor.
func LoadGGUFVec(f *gguf.File, name string) ([]float32, error) {
	data, dims, err := gguf.ReadTensorF32(f, name)
	if err != nil {
		return nil, err
	}
	if len(dims) != 1 {
		return nil, fmt.Errorf("%s: expected 1D tensor, got %d dims", name, len(dims))
	}
	return data, nil
}
