package bench

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samcharles93/tracebench/internal/corpus"
	"github.com/samcharles93/tracebench/internal/model"
	"github.com/samcharles93/tracebench/internal/model/modeltest"
)

func TestSelectWindowPrefix(t *testing.T) {
	v := &fakeVocab{tokens: []int32{9, 8, 7, 6, 5}}

	w, err := SelectWindow(v, "ignored", 3)
	require.NoError(t, err)
	assert.Equal(t, Window{9, 8, 7}, w)
	assert.Equal(t, 3, cap(w))

	w, err = SelectWindow(v, "ignored", 5)
	require.NoError(t, err)
	assert.Equal(t, Window{9, 8, 7, 6, 5}, w)
}

func TestSelectWindowInsufficient(t *testing.T) {
	v := &fakeVocab{tokens: []int32{1, 2}}

	_, err := SelectWindow(v, "ignored", 3)
	require.ErrorIs(t, err, ErrInsufficientCorpus)
	var ice *InsufficientCorpusError
	require.ErrorAs(t, err, &ice)
	assert.Equal(t, 3, ice.Requested)
	assert.Equal(t, 2, ice.Available)
	assert.Contains(t, err.Error(), "(3)")
	assert.Contains(t, err.Error(), "(2)")
}

func TestSelectWindowTokenizationFailures(t *testing.T) {
	for name, v := range map[string]*fakeVocab{
		"measure error": {tokens: []int32{1}, measureErr: errBoom},
		"short fill":    {tokens: []int32{1, 2, 3}, fillShort: true},
		"panic":         {tokens: []int32{1}, panics: true},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := SelectWindow(v, "ignored", 1)
			require.ErrorIs(t, err, ErrTokenization)
		})
	}
}

func TestSelectWindowMatchesFullTokenization(t *testing.T) {
	m, err := model.Load(context.Background(), modeltest.Path(t))
	require.NoError(t, err)
	defer m.Close()

	vocab := m.Vocab()
	all, err := vocab.Encode(corpus.Text, true, true)
	require.NoError(t, err)
	require.Greater(t, len(all), 64)
	assert.Equal(t, vocab.BOS(), all[0])

	for _, n := range []int{1, 2, 17, 64, len(all)} {
		w, err := SelectWindow(vocab, corpus.Text, n)
		require.NoError(t, err)
		assert.Equal(t, all[:n], []int32(w), "n=%d", n)
	}

	_, err = SelectWindow(vocab, corpus.Text, len(all)+1)
	require.ErrorIs(t, err, ErrInsufficientCorpus)
}
