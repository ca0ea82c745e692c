package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Shape(t *testing.T) {
	cfg := Config{Samples: 50, Features: 33, Codes: 6, MissingRate: 1.0 / 7, Seed: 42}
	d, err := Generate[uint8](cfg)
	require.NoError(t, err)

	assert.Equal(t, 50, d.N())
	assert.Equal(t, 33, d.M())
	assert.Zero(t, d.SentinelCollisions())

	for i := 0; i < d.N(); i++ {
		for k := 0; k < d.M(); k++ {
			if v, ok := d.At(i, k).Get(); ok {
				assert.GreaterOrEqual(t, v, uint8(1))
				assert.LessOrEqual(t, v, uint8(6))
			}
		}
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Samples, cfg.Features = 20, 15

	a, err := Generate[uint8](cfg)
	require.NoError(t, err)
	b, err := Generate[uint8](cfg)
	require.NoError(t, err)
	for i := 0; i < a.N(); i++ {
		assert.Equal(t, a.Row(i), b.Row(i))
	}

	cfg.Seed++
	c, err := Generate[uint8](cfg)
	require.NoError(t, err)
	differs := false
	for i := 0; i < a.N() && !differs; i++ {
		for k := 0; k < a.M(); k++ {
			if a.At(i, k) != c.At(i, k) {
				differs = true
				break
			}
		}
	}
	assert.True(t, differs)
}

func TestGenerate_MissingRate(t *testing.T) {
	all, err := Generate[uint8](Config{Samples: 10, Features: 10, Codes: 3, MissingRate: 1, Seed: 1})
	require.NoError(t, err)
	for k := 0; k < all.M(); k++ {
		assert.Zero(t, all.PresentCount(k))
	}

	none, err := Generate[uint8](Config{Samples: 10, Features: 10, Codes: 3, MissingRate: 0, Seed: 1})
	require.NoError(t, err)
	for k := 0; k < none.M(); k++ {
		assert.Equal(t, uint64(10), none.PresentCount(k))
	}

	cfg := Config{Samples: 400, Features: 50, Codes: 6, MissingRate: 0.25, Seed: 3}
	d, err := Generate[uint8](cfg)
	require.NoError(t, err)
	var present uint64
	for k := 0; k < d.M(); k++ {
		present += d.PresentCount(k)
	}
	rate := 1 - float64(present)/float64(cfg.Samples*cfg.Features)
	assert.InDelta(t, 0.25, rate, 0.02)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate[uint8](DefaultConfig()))
	assert.Error(t, Validate[uint8](Config{Samples: -1, Codes: 1}))
	assert.Error(t, Validate[uint8](Config{Codes: 0}))
	assert.Error(t, Validate[uint8](Config{Codes: 256}))
	assert.NoError(t, Validate[uint16](Config{Codes: 256}))
	assert.Error(t, Validate[uint8](Config{Codes: 2, MissingRate: 1.5}))
}
