// Package dump writes the token window and final-position scores of a run in
// a two-part text format:
//
//	<token id>      one per line, window order
//	---
//	<score>         one per line, vocabulary order
//
// Scores use the shortest decimal form that round-trips float32 exactly, so
// Decode(Encode(x)) reproduces x bit for bit.
package dump

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/samcharles93/tracebench/internal/logger"
)

// DefaultPath is where runs write their dump.
const DefaultPath = "out/dump.txt"

// StdoutPath is returned by Write when the dump went to stdout.
const StdoutPath = "-"

const separator = "---"

// Encode renders the document in memory and emits it with a single Write.
func Encode(w io.Writer, tokens []int32, scores []float32) error {
	var buf bytes.Buffer
	buf.Grow(len(tokens)*6 + len(scores)*14 + len(separator) + 1)

	var num []byte
	for _, tok := range tokens {
		num = strconv.AppendInt(num[:0], int64(tok), 10)
		buf.Write(num)
		buf.WriteByte('\n')
	}
	buf.WriteString(separator)
	buf.WriteByte('\n')
	for _, s := range scores {
		num = strconv.AppendFloat(num[:0], float64(s), 'g', -1, 32)
		buf.Write(num)
		buf.WriteByte('\n')
	}

	_, err := w.Write(buf.Bytes())
	return err
}

// Decode parses a document produced by Encode.
func Decode(r io.Reader) ([]int32, []float32, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	tokens := []int32{}
	scores := []float32{}
	inScores := false
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if !inScores {
			if text == separator {
				inScores = true
				continue
			}
			v, err := strconv.ParseInt(text, 10, 32)
			if err != nil {
				return nil, nil, fmt.Errorf("line %d: invalid token id %q", line, text)
			}
			tokens = append(tokens, int32(v))
			continue
		}
		v, err := strconv.ParseFloat(text, 32)
		if err != nil {
			return nil, nil, fmt.Errorf("line %d: invalid score %q", line, text)
		}
		scores = append(scores, float32(v))
	}
	if err := sc.Err(); err != nil {
		return nil, nil, err
	}
	if !inScores {
		return nil, nil, fmt.Errorf("missing %q separator", separator)
	}
	return tokens, scores, nil
}

// Writer writes dumps to Path, falling back to Stdout when the file cannot
// be created.
type Writer struct {
	Path   string
	Stdout io.Writer
	Logger logger.Logger
}

// Write returns the path written, or StdoutPath after a fallback.
func (w *Writer) Write(tokens []int32, scores []float32) (string, error) {
	path := w.Path
	if path == "" {
		path = DefaultPath
	}
	log := w.Logger
	if log == nil {
		log = logger.Discard()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Warn("could not create dump directory", "dir", dir, "error", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		log.Warn("writing dump to stdout", "path", path, "error", err)
		out := w.Stdout
		if out == nil {
			out = os.Stdout
		}
		if err := Encode(out, tokens, scores); err != nil {
			return "", fmt.Errorf("write dump to stdout: %w", err)
		}
		return StdoutPath, nil
	}

	if err := Encode(f, tokens, scores); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write dump %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close dump %s: %w", path, err)
	}
	return path, nil
}
