// Command mkmodel writes a deterministic toylm GGUF model whose vocabulary is
// trained on the canonical corpus, so tracebench can run without external
// weights.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/tracebench/internal/corpus"
	"github.com/samcharles93/tracebench/internal/logger"
	"github.com/samcharles93/tracebench/internal/model"
	"github.com/samcharles93/tracebench/internal/version"
)

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
		out      string
		hidden   int64
		merges   int64
		seed     int64
		ctxLen   int64
		untied   bool
		logLevel string
	)
	return &cli.Command{
		Name:            "mkmodel",
		Usage:           "write a deterministic toylm model for tracebench",
		Version:         version.String(),
		Writer:          stdout,
		ErrWriter:       stderr,
		HideHelpCommand: true,
		ExitErrHandler:  func(context.Context, *cli.Command, error) {},
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output .gguf path", Value: "toylm.gguf", Destination: &out},
			&cli.Int64Flag{Name: "hidden", Usage: "embedding width", Value: 64, Destination: &hidden},
			&cli.Int64Flag{Name: "merges", Usage: "number of BPE merges to learn from the corpus", Value: 96, Destination: &merges},
			&cli.Int64Flag{Name: "seed", Usage: "weight initialisation seed", Value: 42, Destination: &seed},
			&cli.Int64Flag{Name: "ctx", Usage: "model context length", Value: 2048, Destination: &ctxLen},
			&cli.BoolFlag{Name: "untied", Usage: "write a separate output projection", Destination: &untied},
			&cli.StringFlag{Name: "log-level", Usage: "log level (debug, info, warn, error)", Value: "info", Destination: &logLevel},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.Pretty(stderr, logger.ParseLevel(logLevel))

			w, err := model.Synthesize(model.SynthOptions{
				Name:          "tracebench-toylm",
				Text:          corpus.Text,
				Merges:        int(merges),
				Hidden:        int(hidden),
				ContextLength: int(ctxLen),
				Seed:          seed,
				Untied:        untied,
			})
			if err != nil {
				return err
			}
			if err := w.WriteFile(out); err != nil {
				return err
			}

			m, err := model.Load(logger.WithContext(ctx, log), out)
			if err != nil {
				return fmt.Errorf("verify %s: %w", out, err)
			}
			defer m.Close()

			log.Info("model written",
				"path", out,
				"vocab", m.VocabSize(),
				"hidden", m.Hidden,
				"context_length", m.ContextLength(),
				"corpus", corpus.Version,
			)
			return nil
		},
	}
}
