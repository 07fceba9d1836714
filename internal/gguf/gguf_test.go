package gguf

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildSample(t *testing.T) *Writer {
	t.Helper()
	w := NewWriter()
	w.SetString("general.architecture", "toylm")
	w.SetUint32("toylm.context_length", 128)
	w.SetFloat32("toylm.attention.layer_norm_rms_epsilon", 1e-5)
	w.SetBool("tokenizer.ggml.add_bos_token", true)
	w.SetStringArray("tokenizer.ggml.tokens", []string{"<s>", "a", "b"})
	w.SetInt32Array("tokenizer.ggml.token_type", []int32{3, 1, 1})
	require.NoError(t, w.AddTensorF32("token_embd.weight", []uint64{2, 3}, []float32{1, 2, 3, 4, 5, 6}))
	require.NoError(t, w.AddTensorF32("output_norm.weight", []uint64{2}, []float32{0.5, -0.25}))
	return w
}

func TestWriterRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	_, err := buildSample(t).WriteTo(&buf)
	require.NoError(t, err)

	f, err := Parse(buf.Bytes())
	require.NoError(t, err)

	assert.Equal(t, uint32(3), f.Header.Version)
	assert.Equal(t, uint64(2), f.Header.TensorCount)
	assert.Equal(t, uint64(6), f.Header.KVCount)
	assert.Zero(t, f.DataOffset%defaultAlignment)

	arch, err := MustGetString(f.KV, "general.architecture")
	require.NoError(t, err)
	assert.Equal(t, "toylm", arch)

	ctx, ok := GetUint64(f.KV, "toylm.context_length")
	require.True(t, ok)
	assert.Equal(t, uint64(128), ctx)

	addBOS, ok := GetBool(f.KV, "tokenizer.ggml.add_bos_token")
	require.True(t, ok)
	assert.True(t, addBOS)

	tokens, ok := GetArray[string](f.KV, "tokenizer.ggml.tokens")
	require.True(t, ok)
	assert.Equal(t, []string{"<s>", "a", "b"}, tokens)

	emb, dims, err := ReadTensorF32(f, "token_embd.weight")
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 3}, dims)
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, emb)

	norm, _, err := ReadTensorF32(f, "output_norm.weight")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -0.25}, norm)

	_, _, err = ReadTensorF32(f, "missing.weight")
	assert.Error(t, err)
}

func TestWriterIsDeterministic(t *testing.T) {
	var a, b bytes.Buffer
	_, err := buildSample(t).WriteTo(&a)
	require.NoError(t, err)
	_, err = buildSample(t).WriteTo(&b)
	require.NoError(t, err)
	assert.Equal(t, a.Bytes(), b.Bytes())
}

func TestWriterRejectsBadTensors(t *testing.T) {
	w := NewWriter()
	assert.Error(t, w.AddTensorF32("x", []uint64{2, 2}, []float32{1, 2, 3}))
	assert.Error(t, w.AddTensorF32("x", []uint64{0}, nil))
	require.NoError(t, w.AddTensorF32("x", []uint64{1}, []float32{1}))
	assert.Error(t, w.AddTensorF32("x", []uint64{1}, []float32{1}))
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.gguf")
	require.NoError(t, buildSample(t).WriteFile(path))

	f, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, path, f.Path)

	emb, _, err := ReadTensorF32(f, "token_embd.weight")
	require.NoError(t, err)
	assert.Len(t, emb, 6)

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
}

func TestOpenErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Open(filepath.Join(dir, "missing.gguf"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	empty := filepath.Join(dir, "empty.gguf")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = Open(empty)
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.gguf")
	require.NoError(t, os.WriteFile(bad, []byte("GGML\x03\x00\x00\x00"), 0o644))
	_, err = Open(bad)
	assert.ErrorIs(t, err, ErrInvalidMagic)
}

func TestParseRejectsVersion(t *testing.T) {
	doc := []byte("GGUF\x01\x00\x00\x00")
	_, err := Parse(doc)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestFP16ToFloat32(t *testing.T) {
	cases := map[uint16]float32{
		0x0000: 0,
		0x3c00: 1,
		0xc000: -2,
		0x3800: 0.5,
		0x0001: 5.9604645e-08, // smallest subnormal
		0x7bff: 65504,
	}
	for in, want := range cases {
		assert.Equal(t, want, fp16ToFloat32(in), "fp16 %#04x", in)
	}
}
