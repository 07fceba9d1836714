// Package gguf reads and writes the subset of the GGUF container format the
// harness needs: metadata key/values, tensor descriptors and F32/F16 tensor
// payloads.
package gguf

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

const (
	magicGGUF        = "GGUF"
	defaultAlignment = 32
)

var (
	ErrInvalidMagic    = errors.New("gguf: invalid magic")
	ErrUnsupported     = errors.New("gguf: unsupported version")
	ErrUnsupportedType = errors.New("gguf: unsupported tensor type")
)

type ValueType uint32

const (
	TypeUint8   ValueType = 0
	TypeInt8    ValueType = 1
	TypeUint16  ValueType = 2
	TypeInt16   ValueType = 3
	TypeUint32  ValueType = 4
	TypeInt32   ValueType = 5
	TypeFloat32 ValueType = 6
	TypeBool    ValueType = 7
	TypeString  ValueType = 8
	TypeArray   ValueType = 9
	TypeUint64  ValueType = 10
	TypeInt64   ValueType = 11
	TypeFloat64 ValueType = 12
)

var valueTypeNames = map[ValueType]string{
	TypeUint8: "u8", TypeInt8: "i8", TypeUint16: "u16", TypeInt16: "i16",
	TypeUint32: "u32", TypeInt32: "i32", TypeUint64: "u64", TypeInt64: "i64",
	TypeFloat32: "f32", TypeFloat64: "f64", TypeBool: "bool",
	TypeString: "string", TypeArray: "array",
}

func (t ValueType) String() string {
	if s, ok := valueTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("type(%d)", uint32(t))
}

type ArrayValue struct {
	ElemType ValueType
	Values   []any
}

type Value struct {
	Type  ValueType
	Value any
}

type Header struct {
	Version     uint32
	TensorCount uint64
	KVCount     uint64
}

type TensorType uint32

const (
	TensorF32 TensorType = 0
	TensorF16 TensorType = 1
)

func (t TensorType) String() string {
	switch t {
	case TensorF32:
		return "F32"
	case TensorF16:
		return "F16"
	default:
		return fmt.Sprintf("type(%d)", uint32(t))
	}
}

type TensorInfo struct {
	Name   string
	Dims   []uint64
	Type   TensorType
	Offset uint64
}

// File is a parsed GGUF file. Data holds the whole file, either mapped or
// read into memory; tensor payloads are sliced out of it.
type File struct {
	Path       string
	Header     Header
	KV         map[string]Value
	Tensors    []TensorInfo
	Alignment  uint64
	DataOffset uint64
	Data       []byte

	mapped bool
	index  map[string]int
}

// Open maps path read-only and parses its header. If mmap is unavailable the
// file is read into memory instead.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := st.Size()
	if size < 0 || size > int64(int(^uint(0)>>1)) {
		return nil, fmt.Errorf("gguf: file size %d out of range", size)
	}

	mapped := false
	var data []byte
	if size > 0 {
		if b, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED); err == nil {
			data, mapped = b, true
		}
	}
	if !mapped {
		data = make([]byte, size)
		if _, err := io.ReadFull(f, data); err != nil {
			return nil, fmt.Errorf("gguf: read %s: %w", path, err)
		}
	}

	file, err := Parse(data)
	if err != nil {
		if mapped {
			_ = unix.Munmap(data)
		}
		return nil, err
	}
	file.Path = path
	file.mapped = mapped
	return file, nil
}

// Parse decodes a GGUF document held in memory. The returned File aliases data.
func Parse(data []byte) (*File, error) {
	c := &cursor{buf: data}

	magic, err := c.take(4)
	if err != nil {
		return nil, err
	}
	if string(magic) != magicGGUF {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMagic, string(magic))
	}

	var h Header
	if h.Version, err = c.u32(); err != nil {
		return nil, err
	}
	if h.Version < 2 || h.Version > 3 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupported, h.Version)
	}
	if h.TensorCount, err = c.u64(); err != nil {
		return nil, err
	}
	if h.KVCount, err = c.u64(); err != nil {
		return nil, err
	}

	kv := make(map[string]Value, min(h.KVCount, 1024))
	for i := range h.KVCount {
		key, err := c.str()
		if err != nil {
			return nil, fmt.Errorf("read key %d: %w", i, err)
		}
		vt, err := c.u32()
		if err != nil {
			return nil, fmt.Errorf("read value type for %s: %w", key, err)
		}
		v, err := c.value(ValueType(vt))
		if err != nil {
			return nil, fmt.Errorf("read value for %s: %w", key, err)
		}
		kv[key] = Value{Type: ValueType(vt), Value: v}
	}

	tensors := make([]TensorInfo, 0, min(h.TensorCount, 4096))
	index := make(map[string]int, cap(tensors))
	for i := range h.TensorCount {
		name, err := c.str()
		if err != nil {
			return nil, fmt.Errorf("read tensor name %d: %w", i, err)
		}
		nDim, err := c.u32()
		if err != nil {
			return nil, fmt.Errorf("read tensor dims %s: %w", name, err)
		}
		dims := make([]uint64, nDim)
		for d := range dims {
			if dims[d], err = c.u64(); err != nil {
				return nil, fmt.Errorf("read tensor dim %s[%d]: %w", name, d, err)
			}
		}
		tt, err := c.u32()
		if err != nil {
			return nil, fmt.Errorf("read tensor type %s: %w", name, err)
		}
		off, err := c.u64()
		if err != nil {
			return nil, fmt.Errorf("read tensor offset %s: %w", name, err)
		}
		index[name] = len(tensors)
		tensors = append(tensors, TensorInfo{Name: name, Dims: dims, Type: TensorType(tt), Offset: off})
	}

	alignment := uint64(defaultAlignment)
	if u, ok := GetUint64(kv, "general.alignment"); ok && u > 0 {
		alignment = u
	}

	return &File{
		Header:     h,
		KV:         kv,
		Tensors:    tensors,
		Alignment:  alignment,
		DataOffset: align(uint64(c.off), alignment),
		Data:       data,
		index:      index,
	}, nil
}

// Close unmaps the file. It is safe to call more than once.
func (f *File) Close() error {
	if !f.mapped || f.Data == nil {
		f.Data = nil
		return nil
	}
	data := f.Data
	f.Data = nil
	f.mapped = false
	return unix.Munmap(data)
}

func align(offset, alignment uint64) uint64 {
	if alignment == 0 {
		return offset
	}
	if rem := offset % alignment; rem != 0 {
		return offset + (alignment - rem)
	}
	return offset
}
