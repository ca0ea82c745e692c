package engine

import (
	"context"

	"github.com/23skdu/catdist/internal/kernel"
	"github.com/23skdu/catdist/internal/layout"
	"github.com/23skdu/catdist/internal/matrix"
	"github.com/23skdu/catdist/internal/metrics"
	"github.com/23skdu/catdist/internal/pack"
	"golang.org/x/sync/errgroup"
)

// Blocked accumulates every chunk of l into a new matrix. With workers > 1,
// rows are dealt round-robin to that many goroutines; each goroutine walks the
// chunks in order and writes only its own rows. ctx is checked before each
// chunk, and a canceled computation returns ctx's error with no matrix.
func Blocked[T pack.Scalar](ctx context.Context, l *layout.Layout[T], counts kernel.Counter[T], penalty uint64, workers int) (*matrix.Matrix, error) {
	if l.Order() != layout.ChunkMajor {
		return nil, errNotChunkMajor
	}
	n := l.Samples()
	mat := matrix.New(n)
	workers = max(1, min(workers, n))

	if workers == 1 {
		if err := accumulate(ctx, l, counts, penalty, mat, 0, 1); err != nil {
			return nil, err
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		for w := 0; w < workers; w++ {
			g.Go(func() error {
				return accumulate(gctx, l, counts, penalty, mat, w, workers)
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	k := float64(l.Chunks())
	metrics.ChunksProcessedTotal.Add(k)
	metrics.KernelInvocationsTotal.WithLabelValues("self").Add(k * float64(n))
	metrics.KernelInvocationsTotal.WithLabelValues("cross").Add(k * float64(n) * float64(n-1) / 2)
	return mat, nil
}

// accumulate processes rows first, first+stride, ... for every chunk.
func accumulate[T pack.Scalar](ctx context.Context, l *layout.Layout[T], counts kernel.Counter[T], penalty uint64, mat *matrix.Matrix, first, stride int) error {
	n := l.Samples()
	masked := l.HasPresence()
	for kk := 0; kk < l.Chunks(); kk++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		take := l.Take(kk)
		chunk := l.Chunk(kk)
		for i := first; i < n; i += stride {
			row := mat.Row(i)
			bi := chunk[i]
			if masked {
				mi := l.Mask(kk, i)
				row[0] += kernel.SelfMasked(bi, mi, counts, kk, take)
				for j := i + 1; j < n; j++ {
					row[j-i] += kernel.CrossMasked(bi, mi, chunk[j], l.Mask(kk, j), counts, kk, take, penalty)
				}
				continue
			}
			row[0] += kernel.Self(bi, counts, kk, take)
			for j := i + 1; j < n; j++ {
				row[j-i] += kernel.Cross(bi, chunk[j], counts, kk, take, penalty)
			}
		}
	}
	return nil
}
