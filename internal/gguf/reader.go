package gguf

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// cursor walks a little-endian GGUF header held in memory.
type cursor struct {
	buf []byte
	off int
}

func (c *cursor) take(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("invalid read length %d", n)
	}
	if c.off+n > len(c.buf) {
		return nil, io.ErrUnexpectedEOF
	}
	b := c.buf[c.off : c.off+n]
	c.off += n
	return b, nil
}

func (c *cursor) u8() (uint8, error) {
	b, err := c.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *cursor) u16() (uint16, error) {
	b, err := c.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (c *cursor) u32() (uint32, error) {
	b, err := c.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (c *cursor) u64() (uint64, error) {
	b, err := c.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (c *cursor) str() (string, error) {
	n, err := c.u64()
	if err != nil {
		return "", err
	}
	if n > uint64(len(c.buf)-c.off) {
		return "", fmt.Errorf("string length too large: %d", n)
	}
	b, err := c.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (c *cursor) value(vt ValueType) (any, error) {
	switch vt {
	case TypeUint8:
		return c.u8()
	case TypeInt8:
		v, err := c.u8()
		return int8(v), err
	case TypeUint16:
		return c.u16()
	case TypeInt16:
		v, err := c.u16()
		return int16(v), err
	case TypeUint32:
		return c.u32()
	case TypeInt32:
		v, err := c.u32()
		return int32(v), err
	case TypeUint64:
		return c.u64()
	case TypeInt64:
		v, err := c.u64()
		return int64(v), err
	case TypeFloat32:
		v, err := c.u32()
		return math.Float32frombits(v), err
	case TypeFloat64:
		v, err := c.u64()
		return math.Float64frombits(v), err
	case TypeBool:
		v, err := c.u8()
		return v != 0, err
	case TypeString:
		return c.str()
	case TypeArray:
		et, err := c.u32()
		if err != nil {
			return nil, err
		}
		count, err := c.u64()
		if err != nil {
			return nil, err
		}
		// Every element occupies at least one byte.
		if count > uint64(len(c.buf)-c.off) {
			return nil, fmt.Errorf("array length too large: %d", count)
		}
		values := make([]any, 0, count)
		for range count {
			v, err := c.value(ValueType(et))
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		return ArrayValue{ElemType: ValueType(et), Values: values}, nil
	default:
		return nil, fmt.Errorf("unsupported value type %d", uint32(vt))
	}
}
