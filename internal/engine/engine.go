package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/23skdu/catdist/internal/dataset"
	catderrors "github.com/23skdu/catdist/internal/errors"
	"github.com/23skdu/catdist/internal/freq"
	"github.com/23skdu/catdist/internal/layout"
	"github.com/23skdu/catdist/internal/matrix"
	"github.com/23skdu/catdist/internal/memory"
	"github.com/23skdu/catdist/internal/metrics"
	"github.com/23skdu/catdist/internal/pack"
	arrowmem "github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/rs/zerolog"
)

// DefaultBlockBytes is one cache line.
const DefaultBlockBytes = 64

var (
	errNotChunkMajor = errors.New("blocked computation needs a chunk-major layout")

	// ErrMismatch is returned by Compute with Verify set when the blocked
	// matrix differs from the naive one.
	ErrMismatch = errors.New("blocked matrix differs from naive reference")
)

// Config controls an Engine.
type Config struct {
	// BlockBytes is the packed block width and alignment in bytes.
	BlockBytes int
	// Workers is the number of goroutines accumulating rows; 0 selects GOMAXPROCS.
	Workers int
	// Presence packs a presence mask next to every block so that the zero
	// code is a valid category. Off by default, matching the sentinel behavior.
	Presence bool
	// Verify recomputes the matrix naively and fails on any difference.
	Verify bool
	// SlabBytes is the arena slab size; 0 selects the arena default.
	SlabBytes int
	// Allocator backs the block arena; nil selects the Arrow default allocator.
	Allocator arrowmem.Allocator
	// Logger receives phase and completion logs.
	Logger zerolog.Logger
}

// DefaultConfig returns a single-cache-line, all-cores configuration that logs nothing.
func DefaultConfig() Config {
	return Config{
		BlockBytes: DefaultBlockBytes,
		Logger:     zerolog.Nop(),
	}
}

// Stats describes a completed computation.
type Stats struct {
	Samples            int
	Features           int
	Chunks             int
	Lanes              int
	Workers            int
	Presence           bool
	SentinelCollisions int
	ArenaBytes         int64
	Duration           time.Duration
	// BackingBytes is the peak memory drawn from the allocator, slab padding included.
	BackingBytes int64
	// NsPerIter is Duration divided by the m·n·(n+1)/2 feature comparisons of
	// the upper triangle.
	NsPerIter float64
}

// Result is a finished distance matrix and its statistics.
type Result struct {
	Matrix *matrix.Matrix
	Stats  Stats
}

// Engine computes distance matrices over datasets of element type T.
type Engine[T pack.Scalar] struct {
	cfg   Config
	width pack.Width[T]
	log   zerolog.Logger
}

// New validates cfg for element type T.
func New[T pack.Scalar](cfg Config) (*Engine[T], error) {
	if cfg.BlockBytes == 0 {
		cfg.BlockBytes = DefaultBlockBytes
	}
	w, err := pack.NewWidth[T](cfg.BlockBytes)
	if err != nil {
		return nil, catderrors.WrapConfigurationError(err, "engine.New", "invalid block width").
			WithContext("block_bytes", cfg.BlockBytes)
	}
	if cfg.Workers < 0 {
		return nil, catderrors.NewConfigurationError("engine.New", fmt.Sprintf("negative worker count %d", cfg.Workers))
	}
	if cfg.Workers == 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	return &Engine[T]{
		cfg:   cfg,
		width: w,
		log:   cfg.Logger.With().Str("component", "engine").Logger(),
	}, nil
}

// Width returns the block width in use.
func (e *Engine[T]) Width() pack.Width[T] { return e.width }

// Workers returns the resolved worker count.
func (e *Engine[T]) Workers() int { return e.cfg.Workers }

// Compute builds the distance matrix of d. The mismatch penalty is d.N().
func (e *Engine[T]) Compute(ctx context.Context, d *dataset.Dataset[T]) (*Result, error) {
	res, err := e.compute(ctx, d)
	if err != nil {
		metrics.ComputeErrorsTotal.WithLabelValues(string(catderrors.TypeOf(err))).Inc()
		return nil, err
	}
	return res, nil
}

func (e *Engine[T]) compute(ctx context.Context, d *dataset.Dataset[T]) (*Result, error) {
	n, m := d.N(), d.M()
	if err := matrix.CheckCapacity(n, m); err != nil {
		return nil, catderrors.WrapOverflowError(err, "engine.Compute", "dataset shape exceeds accumulator width")
	}

	collisions := d.SentinelCollisions()
	if collisions > 0 && !e.cfg.Presence {
		e.log.Warn().
			Int("values", collisions).
			Msg("dataset contains zero codes; they are treated as missing without presence masks")
	}

	start := time.Now()
	counts := freq.Build(d)
	if err := counts.Check(d); err != nil {
		return nil, catderrors.WrapComputationError(err, "engine.Compute", "frequency table disagrees with column presence")
	}
	e.log.Debug().Int("columns", counts.Columns()).Bool("dense", counts.Dense()).Msg("frequency table built")

	backing := memory.NewTrackingAllocator(e.cfg.Allocator)
	arena, err := memory.NewSlabArena(backing, e.width.Bytes(), e.cfg.SlabBytes)
	if err != nil {
		return nil, catderrors.WrapAlignmentError(err, "engine.Compute", "create block arena")
	}
	defer func() {
		arena.Release()
		if live := backing.InUse(); live != 0 {
			e.log.Error().Int64("bytes", live).Msg("block arena released with live allocations")
		}
	}()

	l, err := layout.Build(arena, d, e.width, layout.Options{Order: layout.ChunkMajor, Presence: e.cfg.Presence})
	if err != nil {
		return nil, catderrors.WrapAlignmentError(err, "engine.Compute", "build chunk-major layout")
	}
	e.log.Debug().
		Int("chunks", l.Chunks()).
		Int("lanes", e.width.Lanes()).
		Int64("arena_bytes", arena.Allocated()).
		Msg("layout built")

	penalty := uint64(n)
	mat, err := Blocked(ctx, l, counts, penalty, e.cfg.Workers)
	if err != nil {
		if ctx.Err() != nil {
			return nil, catderrors.WrapCanceledError(err, "engine.Compute", "aborted between chunks")
		}
		return nil, catderrors.WrapComputationError(err, "engine.Compute", "accumulate chunks")
	}
	elapsed := time.Since(start)

	mode := "blocked"
	if e.cfg.Workers > 1 {
		mode = "parallel"
	}
	metrics.ComputeDurationSeconds.WithLabelValues(mode).Observe(elapsed.Seconds())

	stats := Stats{
		Samples:            n,
		Features:           m,
		Chunks:             l.Chunks(),
		Lanes:              e.width.Lanes(),
		Workers:            e.cfg.Workers,
		Presence:           e.cfg.Presence,
		SentinelCollisions: collisions,
		ArenaBytes:         arena.Allocated(),
		BackingBytes:       backing.Peak(),
		Duration:           elapsed,
	}
	if iters := float64(m) * float64(n) * float64(n+1) / 2; iters > 0 {
		stats.NsPerIter = float64(elapsed.Nanoseconds()) / iters
	}

	if e.cfg.Verify {
		if err := e.verify(d, counts, penalty, mat); err != nil {
			return nil, err
		}
	}

	e.log.Info().
		Int("samples", n).
		Int("features", m).
		Int("chunks", stats.Chunks).
		Int("lanes", stats.Lanes).
		Int("workers", stats.Workers).
		Bool("presence", stats.Presence).
		Dur("duration", elapsed).
		Float64("ns_per_iter", stats.NsPerIter).
		Msg("distance matrix computed")

	return &Result{Matrix: mat, Stats: stats}, nil
}

func (e *Engine[T]) verify(d *dataset.Dataset[T], counts *freq.Table[T], penalty uint64, mat *matrix.Matrix) error {
	start := time.Now()
	ref := Naive(d, counts, penalty)
	metrics.ComputeDurationSeconds.WithLabelValues("naive").Observe(time.Since(start).Seconds())

	if i, j, ok := ref.Diff(mat); !ok {
		return catderrors.WrapComputationError(ErrMismatch, "engine.Compute", "verification failed").
			WithContext("i", i).
			WithContext("j", j).
			WithContext("naive", ref.At(i, j)).
			WithContext("blocked", mat.At(i, j))
	}
	e.log.Debug().Dur("naive_duration", time.Since(start)).Msg("blocked matrix matches naive reference")
	return nil
}
