package main

import (
	"path/filepath"
	"strings"

	"github.com/23skdu/catdist/internal/dataset"
	"github.com/23skdu/catdist/internal/pack"
)

// isArrowPath reports whether path names an Arrow IPC stream rather than a
// Parquet cell file.
func isArrowPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".arrow", ".arrows", ".ipc":
		return true
	default:
		return false
	}
}

func saveDataset[T pack.Scalar](path string, d *dataset.Dataset[T]) error {
	if isArrowPath(path) {
		return dataset.SaveArrowFile(path, d)
	}
	return dataset.SaveFile(path, d)
}

func loadDataset[T pack.Scalar](path string) (*dataset.Dataset[T], error) {
	if isArrowPath(path) {
		return dataset.LoadArrowFile[T](path)
	}
	return dataset.LoadFile[T](path)
}
