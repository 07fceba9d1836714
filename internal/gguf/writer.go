package gguf

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

// Writer assembles a GGUF v3 document. Keys and tensors are emitted in the
// order they were added, so identical inputs produce identical files.
type Writer struct {
	kv      []kvEntry
	tensors []tensorEntry
}

type kvEntry struct {
	key string
	typ ValueType
	val any
}

type tensorEntry struct {
	name string
	dims []uint64
	data []float32
}

func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) SetString(key, v string)        { w.set(key, TypeString, v) }
func (w *Writer) SetUint32(key string, v uint32) { w.set(key, TypeUint32, v) }
func (w *Writer) SetFloat32(key string, v float32) {
	w.set(key, TypeFloat32, v)
}
func (w *Writer) SetBool(key string, v bool) { w.set(key, TypeBool, v) }

func (w *Writer) SetStringArray(key string, v []string) {
	vals := make([]any, len(v))
	for i, s := range v {
		vals[i] = s
	}
	w.set(key, TypeArray, ArrayValue{ElemType: TypeString, Values: vals})
}

func (w *Writer) SetInt32Array(key string, v []int32) {
	vals := make([]any, len(v))
	for i, x := range v {
		vals[i] = x
	}
	w.set(key, TypeArray, ArrayValue{ElemType: TypeInt32, Values: vals})
}

func (w *Writer) set(key string, typ ValueType, val any) {
	for i := range w.kv {
		if w.kv[i].key == key {
			w.kv[i] = kvEntry{key: key, typ: typ, val: val}
			return
		}
	}
	w.kv = append(w.kv, kvEntry{key: key, typ: typ, val: val})
}

// AddTensorF32 queues an F32 tensor. dims are innermost first, as in GGUF.
func (w *Writer) AddTensorF32(name string, dims []uint64, data []float32) error {
	n, err := tensorElements(dims)
	if err != nil {
		return fmt.Errorf("tensor %s: %w", name, err)
	}
	if n != len(data) {
		return fmt.Errorf("tensor %s: %d values for %d elements", name, len(data), n)
	}
	for _, t := range w.tensors {
		if t.name == name {
			return fmt.Errorf("tensor %s: duplicate name", name)
		}
	}
	w.tensors = append(w.tensors, tensorEntry{name: name, dims: append([]uint64(nil), dims...), data: data})
	return nil
}

// WriteTo encodes the document.
func (w *Writer) WriteTo(out io.Writer) (int64, error) {
	e := &encoder{w: bufio.NewWriter(out)}

	e.raw([]byte(magicGGUF))
	e.u32(3)
	e.u64(uint64(len(w.tensors)))
	e.u64(uint64(len(w.kv)))
	for _, kv := range w.kv {
		e.str(kv.key)
		e.u32(uint32(kv.typ))
		e.value(kv.typ, kv.val)
	}

	var off uint64
	for _, t := range w.tensors {
		e.str(t.name)
		e.u32(uint32(len(t.dims)))
		for _, d := range t.dims {
			e.u64(d)
		}
		e.u32(uint32(TensorF32))
		e.u64(off)
		off = align(off+uint64(len(t.data))*4, defaultAlignment)
	}

	e.pad(defaultAlignment)
	for _, t := range w.tensors {
		for _, v := range t.data {
			e.u32(math.Float32bits(v))
		}
		e.pad(defaultAlignment)
	}

	if e.err == nil {
		e.err = e.w.Flush()
	}
	return e.n, e.err
}

// WriteFile writes the document to path, replacing any existing file.
func (w *Writer) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := w.WriteTo(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

type encoder struct {
	w   *bufio.Writer
	n   int64
	err error
	buf [8]byte
}

func (e *encoder) raw(b []byte) {
	if e.err != nil {
		return
	}
	n, err := e.w.Write(b)
	e.n += int64(n)
	e.err = err
}

func (e *encoder) u8(v uint8) { e.raw([]byte{v}) }

func (e *encoder) u32(v uint32) {
	binary.LittleEndian.PutUint32(e.buf[:4], v)
	e.raw(e.buf[:4])
}

func (e *encoder) u64(v uint64) {
	binary.LittleEndian.PutUint64(e.buf[:8], v)
	e.raw(e.buf[:8])
}

func (e *encoder) str(s string) {
	e.u64(uint64(len(s)))
	e.raw([]byte(s))
}

func (e *encoder) pad(alignment uint64) {
	if rem := uint64(e.n) % alignment; rem != 0 {
		e.raw(make([]byte, alignment-rem))
	}
}

func (e *encoder) value(typ ValueType, v any) {
	switch typ {
	case TypeString:
		e.str(v.(string))
	case TypeUint32:
		e.u32(v.(uint32))
	case TypeInt32:
		e.u32(uint32(v.(int32)))
	case TypeFloat32:
		e.u32(math.Float32bits(v.(float32)))
	case TypeBool:
		if v.(bool) {
			e.u8(1)
		} else {
			e.u8(0)
		}
	case TypeArray:
		arr := v.(ArrayValue)
		e.u32(uint32(arr.ElemType))
		e.u64(uint64(len(arr.Values)))
		for _, item := range arr.Values {
			e.value(arr.ElemType, item)
		}
	default:
		if e.err == nil {
			e.err = fmt.Errorf("gguf: cannot encode value type %s", typ)
		}
	}
}
