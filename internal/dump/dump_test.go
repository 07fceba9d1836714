package dump

import (
	"bytes"
	"errors"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samcharles93/tracebench/internal/logger"
)

type countingWriter struct {
	bytes.Buffer
	writes int
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.writes++
	return w.Buffer.Write(p)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestEncodeFormat(t *testing.T) {
	var w countingWriter
	err := Encode(&w, []int32{1, 22, 333}, []float32{0.5, -1.25, math.MaxFloat32, 0})
	require.NoError(t, err)

	assert.Equal(t, "1\n22\n333\n---\n0.5\n-1.25\n3.4028235e+38\n0\n", w.String())
	assert.Equal(t, 1, w.writes)
}

func TestEncodeEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, nil, nil))
	assert.Equal(t, "---\n", buf.String())

	tokens, scores, err := Decode(&buf)
	require.NoError(t, err)
	assert.Empty(t, tokens)
	assert.Empty(t, scores)
}

func TestEncodeWriteError(t *testing.T) {
	require.Error(t, Encode(failingWriter{}, []int32{1}, []float32{1}))
}

func TestRoundTripBitExact(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	scores := []float32{
		float32(math.Inf(1)),
		float32(math.Inf(-1)),
		float32(math.Copysign(0, -1)),
		math.SmallestNonzeroFloat32,
		math.MaxFloat32,
	}
	for range 2000 {
		scores = append(scores, math.Float32frombits(rng.Uint32()&^(0xff<<23)|uint32(rng.Intn(255))<<23))
	}
	tokens := make([]int32, 300)
	for i := range tokens {
		tokens[i] = rng.Int31n(1 << 20)
	}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, tokens, scores))

	gotTokens, gotScores, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, tokens, gotTokens)
	require.Len(t, gotScores, len(scores))
	for i := range scores {
		if math.Float32bits(scores[i]) != math.Float32bits(gotScores[i]) {
			t.Fatalf("score %d: %v (%#x) decoded as %v (%#x)", i,
				scores[i], math.Float32bits(scores[i]), gotScores[i], math.Float32bits(gotScores[i]))
		}
	}
}

func TestDecodeErrors(t *testing.T) {
	_, _, err := Decode(strings.NewReader("1\n2\n"))
	assert.ErrorContains(t, err, "separator")

	_, _, err = Decode(strings.NewReader("1\nx\n---\n"))
	assert.ErrorContains(t, err, "line 2")

	_, _, err = Decode(strings.NewReader("---\n0.5\nnope\n"))
	assert.ErrorContains(t, err, "line 3")
}

func TestWriterFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "dump.txt")
	var stdout bytes.Buffer
	w := &Writer{Path: path, Stdout: &stdout}

	got, err := w.Write([]int32{7, 8}, []float32{0.25})
	require.NoError(t, err)
	assert.Equal(t, path, got)
	assert.Zero(t, stdout.Len())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "7\n8\n---\n0.25\n", string(data))
}

func TestWriterStdoutFallback(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	var stdout, logs bytes.Buffer
	w := &Writer{
		Path:   filepath.Join(blocker, "dump.txt"),
		Stdout: &stdout,
		Logger: logger.JSON(&logs, slog.LevelDebug),
	}

	got, err := w.Write([]int32{1}, []float32{2})
	require.NoError(t, err)
	assert.Equal(t, StdoutPath, got)
	assert.Equal(t, "1\n---\n2\n", stdout.String())
	assert.Contains(t, logs.String(), "writing dump to stdout")
	assert.Contains(t, logs.String(), "could not create dump directory")
}

func TestWriterDefaultPath(t *testing.T) {
	t.Chdir(t.TempDir())
	got, err := (&Writer{}).Write([]int32{1}, []float32{1})
	require.NoError(t, err)
	assert.Equal(t, DefaultPath, got)
	assert.FileExists(t, DefaultPath)
}
