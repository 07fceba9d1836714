package tensor

import (
	"fmt"

	"golang.org/x/sync/errgroup"
)

// minRowsPerWorker keeps tiny matrices on the calling goroutine.
const minRowsPerWorker = 16

// MatVec computes dst = w * x using at most threads goroutines.
// threads <= 1 runs on the caller. Rows are split into contiguous chunks so
// the result is identical for any thread count.
func MatVec(dst []float32, w *Mat, x []float32, threads int) error {
	if len(x) < w.C {
		return fmt.Errorf("matvec: input has %d elements, want %d", len(x), w.C)
	}
	if len(dst) < w.R {
		return fmt.Errorf("matvec: output has %d elements, want %d", len(dst), w.R)
	}

	workers := min(threads, (w.R+minRowsPerWorker-1)/minRowsPerWorker)
	if workers <= 1 {
		matVecRange(dst, w, x, 0, w.R)
		return nil
	}

	chunk := (w.R + workers - 1) / workers
	var g errgroup.Group
	g.SetLimit(workers)
	for rs := 0; rs < w.R; rs += chunk {
		re := min(rs+chunk, w.R)
		g.Go(func() error {
			matVecRange(dst, w, x, rs, re)
			return nil
		})
	}
	return g.Wait()
}

func matVecRange(dst []float32, w *Mat, x []float32, rs, re int) {
	for i := rs; i < re; i++ {
		row := w.Data[i*w.Stride : i*w.Stride+w.C]
		var sum float32
		j := 0
		for ; j+3 < w.C; j += 4 {
			sum += row[j]*x[j] + row[j+1]*x[j+1] + row[j+2]*x[j+2] + row[j+3]*x[j+3]
		}
		for ; j < w.C; j++ {
			sum += row[j] * x[j]
		}
		dst[i] = sum
	}
}
