// Command dumpdiff compares two tracebench dump files. It exits non-zero when
// the token windows differ or a score drifts beyond the tolerance, so it can
// gate a baseline in CI.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/tracebench/internal/dump"
	"github.com/samcharles93/tracebench/internal/version"
)

// ErrDrift is returned when the second dump does not reproduce the first.
var ErrDrift = errors.New("dumps differ")

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
		topK int64
		tol  float64
	)
	return &cli.Command{
		Name:            "dumpdiff",
		Usage:           "compare two tracebench dumps",
		ArgsUsage:       "baseline.txt candidate.txt",
		Version:         version.String(),
		Writer:          stdout,
		ErrWriter:       stderr,
		HideHelpCommand: true,
		ExitErrHandler:  func(context.Context, *cli.Command, error) {},
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "topk", Usage: "top-k overlap to report", Value: 5, Destination: &topK},
			&cli.Float64Flag{Name: "tol", Usage: "largest accepted absolute score difference", Value: 0, Destination: &tol},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 2 {
				return fmt.Errorf("expected two dump files, got %d", cmd.NArg())
			}
			if tol < 0 {
				return errors.New("--tol must be >= 0")
			}
			a, b := cmd.Args().Get(0), cmd.Args().Get(1)

			tokA, scoresA, err := readDump(a)
			if err != nil {
				return err
			}
			tokB, scoresB, err := readDump(b)
			if err != nil {
				return err
			}

			d := dump.Compare(tokA, scoresA, tokB, scoresB, int(topK))
			printDiff(stdout, d)
			if !d.Within(tol) {
				return fmt.Errorf("%w: %s vs %s", ErrDrift, a, b)
			}
			return nil
		},
	}
}

func readDump(path string) ([]int32, []float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = f.Close() }()

	tokens, scores, err := dump.Decode(f)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return tokens, scores, nil
}

func printDiff(w io.Writer, d dump.Diff) {
	if d.TokensEqual {
		_, _ = fmt.Fprintf(w, "tokens: %d equal\n", d.Tokens)
	} else {
		_, _ = fmt.Fprintf(w, "tokens: mismatch at %d\n", d.FirstMismatch)
	}
	if !d.LengthsEqual {
		_, _ = fmt.Fprintf(w, "scores: length mismatch, compared %d\n", d.Scores)
	}
	if d.BitIdentical {
		_, _ = fmt.Fprintf(w, "scores: %d bit-identical\n", d.Scores)
		return
	}
	_, _ = fmt.Fprintf(w, "scores: n=%d max_abs=%.6g mean_abs=%.6g rmse=%.6g cos=%.6g\n",
		d.Scores, d.MaxAbs, d.MeanAbs, d.RMSE, d.Cosine)
	_, _ = fmt.Fprintf(w, "top1: %d vs %d match=%v top%d_overlap=%d\n",
		d.Top1A, d.Top1B, d.Top1Match, d.TopK, d.Overlap)
}
