package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samcharles93/tracebench/internal/dump"
)

func writeDump(t *testing.T, name string, tokens []int32, scores []float32) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, dump.Encode(&buf, tokens, scores))
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestIdenticalDumps(t *testing.T) {
	tokens := []int32{128000, 5, 9}
	scores := []float32{0.25, -1, 3}
	a := writeDump(t, "a.txt", tokens, scores)
	b := writeDump(t, "b.txt", tokens, scores)

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"dumpdiff", a, b}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "tokens: 3 equal")
	assert.Contains(t, stdout.String(), "scores: 3 bit-identical")
}

func TestDriftWithinTolerance(t *testing.T) {
	tokens := []int32{1, 2}
	a := writeDump(t, "a.txt", tokens, []float32{1, 2, 3})
	b := writeDump(t, "b.txt", tokens, []float32{1, 2, 3.25})

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"dumpdiff", "--tol", "0.5", a, b}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "max_abs=0.25")

	stdout.Reset()
	code = run(context.Background(), []string{"dumpdiff", a, b}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "dumps differ")
}

func TestTokenMismatch(t *testing.T) {
	scores := []float32{1}
	a := writeDump(t, "a.txt", []int32{1, 2, 3}, scores)
	b := writeDump(t, "b.txt", []int32{1, 2, 4}, scores)

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"dumpdiff", "--tol", "1", a, b}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout.String(), "tokens: mismatch at 2")
}

func TestArgumentErrors(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"dumpdiff", "only-one.txt"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "expected two dump files")

	stderr.Reset()
	missing := filepath.Join(t.TempDir(), "missing.txt")
	code = run(context.Background(), []string{"dumpdiff", missing, missing}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "missing.txt")
}

func TestMalformedDump(t *testing.T) {
	good := writeDump(t, "a.txt", []int32{1}, []float32{1})
	bad := filepath.Join(t.TempDir(), "bad.txt")
	require.NoError(t, os.WriteFile(bad, []byte("1\n2\n"), 0o644))

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"dumpdiff", good, bad}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "bad.txt")
}
