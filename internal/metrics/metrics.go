package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// KernelInvocationsTotal counts distance kernel calls by kind ("self", "cross")
	KernelInvocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catdist_kernel_invocations_total",
			Help: "Total number of distance kernel invocations",
		},
		[]string{"kind"},
	)

	// ChunksProcessedTotal counts chunks fully accumulated into a matrix
	ChunksProcessedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catdist_chunks_processed_total",
			Help: "Total number of chunks accumulated into distance matrices",
		},
	)

	// ComputeDurationSeconds measures end-to-end matrix computation by mode
	ComputeDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catdist_compute_duration_seconds",
			Help:    "Duration of distance matrix computation",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
		[]string{"mode"},
	)

	// ComputeErrorsTotal counts failed computations by error type
	ComputeErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catdist_compute_errors_total",
			Help: "Total number of failed distance matrix computations",
		},
		[]string{"type"},
	)

	// ArenaAllocatedBytes tracks bytes currently held by aligned arenas
	ArenaAllocatedBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "catdist_arena_allocated_bytes",
			Help: "Bytes handed out by aligned slab arenas and not yet released",
		},
	)

	// ArenaSlabsTotal counts slabs requested from the backing allocator
	ArenaSlabsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catdist_arena_slabs_total",
			Help: "Total number of slabs allocated by aligned arenas",
		},
	)

	// DatasetRowsLoadedTotal counts samples read by source ("arrow", "parquet", "synth")
	DatasetRowsLoadedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catdist_dataset_rows_loaded_total",
			Help: "Total number of samples loaded into datasets",
		},
		[]string{"source"},
	)

	// MatrixEntriesWrittenTotal counts upper-triangle entries persisted
	MatrixEntriesWrittenTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catdist_matrix_entries_written_total",
			Help: "Total number of distance matrix entries written to storage",
		},
	)

	// AllocatorBytesAllocatedTotal counts bytes requested through tracking allocators
	AllocatorBytesAllocatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catdist_allocator_bytes_allocated_total",
			Help: "Total bytes allocated through tracking allocators",
		},
	)

	// AllocatorBytesFreedTotal counts bytes returned through tracking allocators
	AllocatorBytesFreedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catdist_allocator_bytes_freed_total",
			Help: "Total bytes freed through tracking allocators",
		},
	)

	// AllocatorAllocationsActive tracks live allocations
	AllocatorAllocationsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "catdist_allocator_allocations_active",
			Help: "Number of allocations not yet freed",
		},
	)
)
