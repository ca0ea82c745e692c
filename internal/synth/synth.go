// Package synth generates random categorical datasets.
package synth

import (
	"fmt"
	"math/rand/v2"

	"github.com/23skdu/catdist/internal/dataset"
	catderrors "github.com/23skdu/catdist/internal/errors"
	"github.com/23skdu/catdist/internal/metrics"
	"github.com/23skdu/catdist/internal/pack"
	"gonum.org/v1/gonum/stat/distuv"
)

// Config describes a generated dataset. Codes are drawn uniformly from
// 1..Codes, so the zero sentinel never appears.
type Config struct {
	Samples     int
	Features    int
	Codes       int
	MissingRate float64
	Seed        uint64
}

// DefaultConfig mirrors a die roll per value: faces 1..6 are codes and a
// seventh face marks the value missing.
func DefaultConfig() Config {
	return Config{
		Samples:     1000,
		Features:    127,
		Codes:       6,
		MissingRate: 1.0 / 7,
		Seed:        1,
	}
}

// Validate checks cfg for element type T.
func Validate[T pack.Scalar](cfg Config) error {
	if cfg.Samples < 0 || cfg.Features < 0 {
		return fmt.Errorf("negative shape %dx%d", cfg.Samples, cfg.Features)
	}
	if cfg.Codes < 1 {
		return fmt.Errorf("codes must be at least 1, got %d", cfg.Codes)
	}
	if uint64(cfg.Codes) > uint64(^T(0)) {
		return fmt.Errorf("%d codes do not fit the element type", cfg.Codes)
	}
	if cfg.MissingRate < 0 || cfg.MissingRate > 1 {
		return fmt.Errorf("missing rate %v outside [0,1]", cfg.MissingRate)
	}
	return nil
}

// Generate draws a dataset. The same Config always yields the same dataset.
func Generate[T pack.Scalar](cfg Config) (*dataset.Dataset[T], error) {
	if err := Validate[T](cfg); err != nil {
		return nil, catderrors.WrapValidationError(err, "synth.Generate", "invalid generator config")
	}

	weights := make([]float64, cfg.Codes+1)
	weights[0] = cfg.MissingRate
	for c := 1; c <= cfg.Codes; c++ {
		weights[c] = (1 - cfg.MissingRate) / float64(cfg.Codes)
	}
	die := distuv.NewCategorical(weights, rand.NewPCG(cfg.Seed, cfg.Seed^0xda3e39cb94b95bdb))

	rows := make([][]pack.Opt[T], cfg.Samples)
	for i := range rows {
		row := make([]pack.Opt[T], cfg.Features)
		for k := range row {
			if face := int(die.Rand()); face > 0 {
				row[k] = pack.Some(T(face))
			}
		}
		rows[i] = row
	}

	metrics.DatasetRowsLoadedTotal.WithLabelValues("synth").Add(float64(cfg.Samples))
	return dataset.New(rows), nil
}
