package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samcharles93/tracebench/internal/gguf"
)

const sample = "The quick brown fox jumps over the lazy dog. The dog sleeps."

func newTestVocab(t *testing.T, merges int) *Vocab {
	t.Helper()
	tokens, ranks := TrainBPE(sample, merges, "")
	tokens = append(tokens, "<|begin_of_text|>", "<|end_of_text|>")
	v, err := NewVocab(Config{
		Tokens: tokens,
		Merges: ranks,
		BOS:    int32(len(tokens) - 2),
		EOS:    int32(len(tokens) - 1),
		UNK:    -1,
		AddBOS: true,
	})
	require.NoError(t, err)
	return v
}

func TestTrainBPEDeterministic(t *testing.T) {
	tokA, mergesA := TrainBPE(sample, 20, "")
	tokB, mergesB := TrainBPE(sample, 20, "")
	assert.Equal(t, tokA, tokB)
	assert.Equal(t, mergesA, mergesB)
	assert.Len(t, mergesA, 20)
	assert.Len(t, tokA[:256], 256)
	// "Ġ" is the byte-level symbol for a space.
	assert.Equal(t, "Ġ", tokA[' '])
}

func TestTrainBPEStopsWhenExhausted(t *testing.T) {
	_, merges := TrainBPE("ab", 10, "")
	assert.Equal(t, []string{"a b"}, merges)
}

func TestEncodeRoundTrip(t *testing.T) {
	v := newTestVocab(t, 40)
	ids, err := v.Encode(sample, false, false)
	require.NoError(t, err)
	assert.Less(t, len(ids), len(sample), "merges should compress the text")

	text, err := v.Decode(ids)
	require.NoError(t, err)
	assert.Equal(t, sample, text)
}

func TestAddSpecialPrependsBOS(t *testing.T) {
	v := newTestVocab(t, 10)
	plain, err := v.Encode(sample, false, false)
	require.NoError(t, err)
	withBOS, err := v.Encode(sample, true, false)
	require.NoError(t, err)

	require.Len(t, withBOS, len(plain)+1)
	assert.Equal(t, v.BOS(), withBOS[0])
	assert.Equal(t, plain, withBOS[1:])
}

func TestParseSpecial(t *testing.T) {
	v := newTestVocab(t, 10)
	text := "<|end_of_text|>dog"

	parsed, err := v.Encode(text, false, true)
	require.NoError(t, err)
	assert.Equal(t, v.EOS(), parsed[0])

	literal, err := v.Encode(text, false, false)
	require.NoError(t, err)
	assert.NotContains(t, literal, v.EOS())
	assert.Greater(t, len(literal), len(parsed))
}

func TestMeasureFill(t *testing.T) {
	v := newTestVocab(t, 25)

	n, err := v.Measure(sample, true, true)
	require.NoError(t, err)
	require.Positive(t, n)

	short := make([]int32, n-1)
	_, err = v.Fill(sample, short, true, true)
	require.ErrorIs(t, err, ErrBufferTooSmall)
	var capErr *CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, n, capErr.Need)
	assert.Equal(t, n-1, capErr.Have)
	assert.Equal(t, make([]int32, n-1), short, "failed fill must not write")

	buf := make([]int32, n+3)
	got, err := v.Fill(sample, buf, true, true)
	require.NoError(t, err)
	assert.Equal(t, n, got)

	want, err := v.Encode(sample, true, true)
	require.NoError(t, err)
	assert.Equal(t, want, buf[:got])
}

func TestNewVocabValidation(t *testing.T) {
	_, err := NewVocab(Config{})
	assert.Error(t, err)

	_, err = NewVocab(Config{Tokens: []string{"a"}, AddBOS: true, BOS: 4})
	assert.Error(t, err)

	_, err = NewVocab(Config{Tokens: []string{"a", "b"}, Types: []TokenType{TokenNormal}})
	assert.Error(t, err)
}

func TestUnknownSymbol(t *testing.T) {
	v, err := NewVocab(Config{Tokens: []string{"a"}, UNK: -1})
	require.NoError(t, err)
	_, err = v.Encode("b", false, false)
	assert.Error(t, err)

	v, err = NewVocab(Config{Tokens: []string{"<unk>", "a"}, UNK: 0})
	require.NoError(t, err)
	ids, err := v.Encode("ab", false, false)
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 0}, ids)
}

func TestFromGGUF(t *testing.T) {
	tokens, merges := TrainBPE(sample, 8, "")
	tokens = append(tokens, "<s>")
	types := make([]any, len(tokens))
	for i := range types {
		types[i] = int32(TokenNormal)
	}
	types[len(types)-1] = int32(TokenControl)

	strs := func(ss []string) gguf.Value {
		vals := make([]any, len(ss))
		for i, s := range ss {
			vals[i] = s
		}
		return gguf.Value{Type: gguf.TypeArray, Value: gguf.ArrayValue{ElemType: gguf.TypeString, Values: vals}}
	}
	kv := map[string]gguf.Value{
		KeyModel:     {Type: gguf.TypeString, Value: "gpt2"},
		KeyTokens:    strs(tokens),
		KeyMerges:    strs(merges),
		KeyTokenType: {Type: gguf.TypeArray, Value: gguf.ArrayValue{ElemType: gguf.TypeInt32, Values: types}},
		KeyBOS:       {Type: gguf.TypeUint32, Value: uint32(len(tokens) - 1)},
		KeyAddBOS:    {Type: gguf.TypeBool, Value: true},
	}

	v, err := FromGGUF(kv)
	require.NoError(t, err)
	assert.Equal(t, len(tokens), v.Size())
	assert.Equal(t, TokenControl, v.TokenType(int32(len(tokens)-1)))

	ids, err := v.Encode("<s>dog", true, true)
	require.NoError(t, err)
	assert.Equal(t, v.BOS(), ids[0])
	assert.Equal(t, v.BOS(), ids[1])

	kv[KeyModel] = gguf.Value{Type: gguf.TypeString, Value: "llama"}
	_, err = FromGGUF(kv)
	assert.Error(t, err)
}
