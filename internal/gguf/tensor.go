package gguf

import (
	"encoding/binary"
	"fmt"
	"math"
)

// TensorByName returns the tensor info for the given name.
func (f *File) TensorByName(name string) (TensorInfo, bool) {
	i, ok := f.index[name]
	if !ok {
		return TensorInfo{}, false
	}
	return f.Tensors[i], true
}

// ReadTensorF32 decodes a tensor into a fresh float32 slice and returns it with
// its dims (innermost first). Supported types: F32, F16.
func ReadTensorF32(f *File, name string) ([]float32, []uint64, error) {
	info, ok := f.TensorByName(name)
	if !ok {
		return nil, nil, fmt.Errorf("tensor not found: %s", name)
	}
	n, err := tensorElements(info.Dims)
	if err != nil {
		return nil, nil, fmt.Errorf("tensor %s: %w", name, err)
	}
	elem, err := elemSize(info.Type)
	if err != nil {
		return nil, nil, fmt.Errorf("tensor %s: %w", name, err)
	}

	start := f.DataOffset + info.Offset
	end := start + uint64(n*elem)
	if f.Data == nil || end > uint64(len(f.Data)) || end < start {
		return nil, nil, fmt.Errorf("tensor %s: data out of bounds", name)
	}
	buf := f.Data[start:end]

	out := make([]float32, n)
	switch info.Type {
	case TensorF32:
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
		}
	case TensorF16:
		for i := range out {
			out[i] = fp16ToFloat32(binary.LittleEndian.Uint16(buf[i*2:]))
		}
	}
	return out, info.Dims, nil
}

func tensorElements(dims []uint64) (int, error) {
	if len(dims) == 0 {
		return 0, fmt.Errorf("empty dims")
	}
	var n uint64 = 1
	for _, d := range dims {
		if d == 0 {
			return 0, fmt.Errorf("zero dimension")
		}
		if n > uint64(^uint(0)>>1)/d {
			return 0, fmt.Errorf("tensor too large")
		}
		n *= d
	}
	return int(n), nil
}

func elemSize(t TensorType) (int, error) {
	switch t {
	case TensorF32:
		return 4, nil
	case TensorF16:
		return 2, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedType, t)
	}
}

func fp16ToFloat32(h uint16) float32 {
	sign := uint32(h>>15) << 31
	exp := uint32(h>>10) & 0x1f
	mant := uint32(h) & 0x3ff

	switch exp {
	case 0:
		if mant == 0 {
			return math.Float32frombits(sign)
		}
		// subnormal: renormalize
		e := uint32(127 - 15 + 1)
		for mant&0x400 == 0 {
			mant <<= 1
			e--
		}
		mant &= 0x3ff
		return math.Float32frombits(sign | e<<23 | mant<<13)
	case 0x1f:
		return math.Float32frombits(sign | 0xff<<23 | mant<<13)
	default:
		return math.Float32frombits(sign | (exp+127-15)<<23 | mant<<13)
	}
}
