// Package engine computes frequency-weighted categorical distance matrices.
//
// Compute runs three phases: a frequency table is built from the dataset, the
// dataset is packed into a chunk-major layout of aligned blocks, and the
// kernels accumulate every chunk into the upper triangle of the matrix. The
// first two phases finish before any kernel runs and their results are only
// read afterwards, so parallel workers share them without synchronization.
// Workers own disjoint sets of rows and never write the same entry.
//
// Naive is the reference implementation: a direct per-feature loop that the
// blocked computation must match exactly whenever no observed code equals the
// zero sentinel (or presence masks are enabled).
package engine
