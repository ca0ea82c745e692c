// Package pack provides fixed-width, alignment-guaranteed blocks of unsigned
// scalars.
//
// A Width fixes the block size in bytes; the number of lanes per block is
// Width.Bytes() / sizeof(T). Every block holds exactly that many lanes, no
// matter how many source values were supplied: sources are truncated to the
// lane count and padded with the zero value. Missing (None) source values are
// also stored as zero, so zero doubles as the "missing" sentinel. A dataset in
// which zero is a real category loses those observations once packed; callers
// that need zero must use the presence masks kept by the layout package.
//
// Block storage comes from a memory.SlabArena and starts at an address that is
// a multiple of Width.Bytes(). Construction fails instead of returning a
// misaligned block.
package pack
