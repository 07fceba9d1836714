// Command gguf_inspect prints the header, model parameters and tensor table
// of a GGUF file, and how many tokens of the benchmark corpus its vocabulary
// produces.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/tracebench/internal/corpus"
	"github.com/samcharles93/tracebench/internal/gguf"
	"github.com/samcharles93/tracebench/internal/model"
	"github.com/samcharles93/tracebench/internal/tokenizer"
	"github.com/samcharles93/tracebench/internal/version"
)

var summaryKeys = []string{
	model.KeyName,
	model.KeyArchitecture,
	"general.alignment",
	model.KeyContextLength,
	model.KeyEmbeddingLength,
	model.KeyRMSEps,
	tokenizer.KeyModel,
	tokenizer.KeyPre,
	tokenizer.KeyBOS,
	tokenizer.KeyEOS,
	tokenizer.KeyAddBOS,
}

func main() {
	os.Exit(run(context.Background(), os.Args, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if err := newApp(stdout, stderr).Run(ctx, args); err != nil {
		_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func newApp(stdout, stderr io.Writer) *cli.Command {
	var (
		showKV     bool
		numTensors int64
		noCorpus   bool
	)
	return &cli.Command{
		Name:            "gguf_inspect",
		Usage:           "print a summary of a GGUF model",
		ArgsUsage:       "<path.gguf>",
		Version:         version.String(),
		Writer:          stdout,
		ErrWriter:       stderr,
		HideHelpCommand: true,
		ExitErrHandler:  func(context.Context, *cli.Command, error) {},
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "kv", Usage: "show all metadata key/values", Destination: &showKV},
			&cli.Int64Flag{Name: "tensors", Usage: "number of tensors to list (0 to skip, -1 for all)", Value: 20, Destination: &numTensors},
			&cli.BoolFlag{Name: "no-corpus", Usage: "skip tokenizing the benchmark corpus", Destination: &noCorpus},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				return fmt.Errorf("expected one GGUF path, got %d", cmd.NArg())
			}
			path := cmd.Args().First()
			f, err := gguf.Open(path)
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()

			_, _ = fmt.Fprintf(stdout, "File: %s\n", path)
			_, _ = fmt.Fprintf(stdout, "GGUF v%d | tensors=%d | kv=%d | alignment=%d | data_offset=%d\n",
				f.Header.Version, f.Header.TensorCount, f.Header.KVCount, f.Alignment, f.DataOffset)
			for _, key := range summaryKeys {
				if v, ok := f.KV[key]; ok {
					_, _ = fmt.Fprintf(stdout, "  %-36s %s\n", key+":", formatValue(v))
				}
			}

			if !noCorpus {
				printCorpus(stdout, f)
			}
			if showKV {
				printKV(stdout, f)
			}
			printTensors(stdout, f, int(numTensors))
			return nil
		},
	}
}

// printCorpus reports the vocabulary and the corpus token count, which bounds
// the -n a tracebench run can request with this model.
func printCorpus(w io.Writer, f *gguf.File) {
	_, _ = fmt.Fprintln(w)
	vocab, err := tokenizer.FromGGUF(f.KV)
	if err != nil {
		_, _ = fmt.Fprintf(w, "Tokenizer: unavailable (%v)\n", err)
		return
	}
	_, _ = fmt.Fprintf(w, "Tokenizer: vocab=%d bos=%d eos=%d\n", vocab.Size(), vocab.BOS(), vocab.EOS())
	n, err := vocab.Measure(corpus.Text, true, true)
	if err != nil {
		_, _ = fmt.Fprintf(w, "Corpus %s: %v\n", corpus.Version, err)
		return
	}
	_, _ = fmt.Fprintf(w, "Corpus %s: %d tokens\n", corpus.Version, n)
}

func printKV(w io.Writer, f *gguf.File) {
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "All metadata:")
	keys := make([]string, 0, len(f.KV))
	for k := range f.KV {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		_, _ = fmt.Fprintf(w, "  %s = %s\n", k, formatValue(f.KV[k]))
	}
}

func printTensors(w io.Writer, f *gguf.File, n int) {
	if n == 0 {
		return
	}
	count := len(f.Tensors)
	if n < 0 || n > count {
		n = count
	}
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "Tensors:")
	for _, t := range f.Tensors[:n] {
		_, _ = fmt.Fprintf(w, "  %-32s %-4s dims=%s off=%d\n", t.Name, t.Type, formatDims(t.Dims), t.Offset)
	}
	if n < count {
		_, _ = fmt.Fprintf(w, "  ... (%d more)\n", count-n)
	}
}

func formatDims(dims []uint64) string {
	if len(dims) == 0 {
		return "[]"
	}
	parts := make([]string, len(dims))
	for i, v := range dims {
		parts[i] = strconv.FormatUint(v, 10)
	}
	return "[" + strings.Join(parts, "x") + "]"
}

func formatValue(v gguf.Value) string {
	switch val := v.Value.(type) {
	case string:
		return val
	case gguf.ArrayValue:
		return fmt.Sprintf("array(%s) len=%d", val.ElemType, len(val.Values))
	default:
		return fmt.Sprint(val)
	}
}
