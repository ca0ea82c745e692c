package dataset

import (
	"bytes"
	"math"
	"path/filepath"
	"slices"
	"testing"

	"github.com/23skdu/catdist/internal/pack"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func some(v uint8) pack.Opt[uint8] { return pack.Some(v) }
func none() pack.Opt[uint8]        { return pack.None[uint8]() }

func sample() *Dataset[uint8] {
	return New([][]pack.Opt[uint8]{
		{some(1), some(2), none()},
		{some(1), none(), some(3)},
		{some(2), some(2)},
		{none(), none(), none()},
	})
}

func TestNew_Shape(t *testing.T) {
	d := sample()
	assert.Equal(t, 4, d.N())
	assert.Equal(t, 3, d.M())

	assert.Equal(t, some(2), d.At(2, 1))
	// Past the end of a short row.
	assert.Equal(t, none(), d.At(2, 2))
	assert.Len(t, d.Row(2), 2)
}

func TestNew_CopiesInput(t *testing.T) {
	rows := [][]pack.Opt[uint8]{{some(1)}}
	d := New(rows)
	rows[0][0] = some(9)
	assert.Equal(t, some(1), d.At(0, 0))
}

func TestPresence(t *testing.T) {
	d := sample()

	assert.Equal(t, []uint32{0, 1, 2}, d.Present(0).ToArray())
	assert.Equal(t, []uint32{0, 2}, d.Present(1).ToArray())
	assert.Equal(t, []uint32{1}, d.Present(2).ToArray())
	assert.Equal(t, uint64(1), d.PresentCount(2))

	// Present hands out a copy.
	d.Present(0).Add(3)
	assert.Equal(t, uint64(3), d.PresentCount(0))
}

func TestPresentSamples(t *testing.T) {
	d := sample()
	assert.Equal(t, []int{0, 1, 2}, slices.Collect(d.PresentSamples(0)))
	assert.Equal(t, []int{1}, slices.Collect(d.PresentSamples(2)))

	var first []int
	for i := range d.PresentSamples(0) {
		first = append(first, i)
		break
	}
	assert.Equal(t, []int{0}, first)
}

func TestSentinelCollisions(t *testing.T) {
	assert.Zero(t, sample().SentinelCollisions())

	d := New([][]pack.Opt[uint8]{{some(0), none()}, {some(0), some(4)}})
	assert.Equal(t, 2, d.SentinelCollisions())
}

func TestFromValues(t *testing.T) {
	d := FromValues([][]uint16{{1, 2}, {3}})
	assert.Equal(t, 2, d.M())
	assert.Equal(t, pack.Some[uint16](3), d.At(1, 0))
	assert.False(t, d.At(1, 1).Valid)
}

func TestRecordRoundTrip(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	d := sample()
	rec := d.ToRecord(mem)
	defer rec.Release()

	assert.Equal(t, int64(4), rec.NumRows())
	assert.Equal(t, int64(3), rec.NumCols())
	assert.Equal(t, arrow.PrimitiveTypes.Uint8, rec.Column(0).DataType())
	assert.True(t, rec.Column(2).IsNull(0))

	back, err := FromRecord[uint8](rec)
	require.NoError(t, err)
	for i := 0; i < d.N(); i++ {
		for k := 0; k < d.M(); k++ {
			assert.Equal(t, d.At(i, k), back.At(i, k), "(%d,%d)", i, k)
		}
	}
}

func TestArrowStreamRoundTrip(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	d := sample()
	var buf bytes.Buffer
	require.NoError(t, WriteArrow(&buf, d, mem))

	back, err := ReadArrow[uint8](&buf, mem)
	require.NoError(t, err)
	assert.Equal(t, d.N(), back.N())
	assert.Equal(t, d.M(), back.M())
	for i := 0; i < d.N(); i++ {
		for k := 0; k < d.M(); k++ {
			assert.Equal(t, d.At(i, k), back.At(i, k), "(%d,%d)", i, k)
		}
	}
}

func TestReadArrow_ConcatenatesBatches(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	first := sample().ToRecord(mem)
	defer first.Release()
	second := FromValues([][]uint8{{7, 8, 9}}).ToRecord(mem)
	defer second.Release()

	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(first.Schema()), ipc.WithAllocator(mem))
	require.NoError(t, w.Write(first))
	require.NoError(t, w.Write(second))
	require.NoError(t, w.Close())

	d, err := ReadArrow[uint8](&buf, mem)
	require.NoError(t, err)
	assert.Equal(t, 5, d.N())
	assert.Equal(t, some(3), d.At(1, 2))
	assert.Equal(t, some(9), d.At(4, 2))
}

func TestReadArrow_Invalid(t *testing.T) {
	_, err := ReadArrow[uint8](bytes.NewReader([]byte("not arrow")), memory.DefaultAllocator)
	assert.Error(t, err)
}

func TestSaveLoadArrowFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.arrow")
	require.NoError(t, SaveArrowFile(path, sample()))

	back, err := LoadArrowFile[uint8](path)
	require.NoError(t, err)
	assert.Equal(t, 4, back.N())
	assert.Equal(t, some(2), back.At(2, 1))

	wide, err := LoadArrowFile[uint16](path)
	require.NoError(t, err)
	assert.Equal(t, pack.Some[uint16](3), wide.At(1, 2))

	_, err = LoadArrowFile[uint8](filepath.Join(t.TempDir(), "missing.arrow"))
	assert.Error(t, err)
}

func TestFromRecord_Widening(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	b := array.NewUint8Builder(mem)
	defer b.Release()
	b.AppendValues([]uint8{4, 0, 6}, []bool{true, false, true})
	col := b.NewArray()
	defer col.Release()

	schema := arrow.NewSchema([]arrow.Field{{Name: "color", Type: arrow.PrimitiveTypes.Uint8, Nullable: true}}, nil)
	rec := array.NewRecord(schema, []arrow.Array{col}, 3)
	defer rec.Release()

	d, err := FromRecord[uint32](rec)
	require.NoError(t, err)
	assert.Equal(t, pack.Some[uint32](4), d.At(0, 0))
	assert.False(t, d.At(1, 0).Valid)
	assert.Equal(t, pack.Some[uint32](6), d.At(2, 0))
}

func TestFromRecord_Errors(t *testing.T) {
	mem := memory.NewGoAllocator()

	wide := array.NewUint16Builder(mem)
	wide.AppendValues([]uint16{300}, nil)
	wideCol := wide.NewArray()
	wideSchema := arrow.NewSchema([]arrow.Field{{Name: "f0", Type: arrow.PrimitiveTypes.Uint16}}, nil)
	wideRec := array.NewRecord(wideSchema, []arrow.Array{wideCol}, 1)
	_, err := FromRecord[uint8](wideRec)
	assert.ErrorContains(t, err, "overflows")

	str := array.NewStringBuilder(mem)
	str.Append("red")
	strCol := str.NewArray()
	strSchema := arrow.NewSchema([]arrow.Field{{Name: "f0", Type: arrow.BinaryTypes.String}}, nil)
	strRec := array.NewRecord(strSchema, []arrow.Array{strCol}, 1)
	_, err = FromRecord[uint8](strRec)
	assert.ErrorContains(t, err, "unsupported type")
}

func TestParquetRoundTrip(t *testing.T) {
	d := sample()

	var buf bytes.Buffer
	require.NoError(t, WriteParquet(&buf, d))

	back, err := ReadParquet[uint8](bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	// Sample 3 has no cells; the shape metadata keeps it.
	assert.Equal(t, d.N(), back.N())
	assert.Equal(t, d.M(), back.M())
	for i := 0; i < d.N(); i++ {
		for k := 0; k < d.M(); k++ {
			assert.Equal(t, d.At(i, k), back.At(i, k))
		}
	}
}

func TestParquetRoundTrip_Uint64Extremes(t *testing.T) {
	d := New([][]pack.Opt[uint64]{
		{pack.Some[uint64](math.MaxUint64), pack.Some[uint64](1 << 63)},
		{pack.None[uint64](), pack.Some[uint64](1<<63 - 1)},
	})

	var buf bytes.Buffer
	require.NoError(t, WriteParquet(&buf, d))

	back, err := ReadParquet[uint64](bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	for i := 0; i < d.N(); i++ {
		for k := 0; k < d.M(); k++ {
			assert.Equal(t, d.At(i, k), back.At(i, k), "cell (%d,%d)", i, k)
		}
	}
}

func writeCells(t *testing.T, cells []Cell) *bytes.Reader {
	t.Helper()
	var buf bytes.Buffer
	pw := parquet.NewGenericWriter[Cell](&buf)
	_, err := pw.Write(cells)
	require.NoError(t, err)
	require.NoError(t, pw.Close())
	return bytes.NewReader(buf.Bytes())
}

func TestReadParquet_InferredShape(t *testing.T) {
	r := writeCells(t, []Cell{{Sample: 0, Feature: 0, Code: 1}, {Sample: 2, Feature: 4, Code: 7}})

	d, err := ReadParquet[uint8](r, r.Size())
	require.NoError(t, err)
	assert.Equal(t, 3, d.N())
	assert.Equal(t, 5, d.M())
	assert.Equal(t, some(7), d.At(2, 4))
	assert.False(t, d.At(1, 1).Valid)
}

func TestReadParquet_InvalidCells(t *testing.T) {
	tests := []struct {
		name  string
		cells []Cell
	}{
		{"negative", []Cell{{Sample: -1, Feature: 0, Code: 1}}},
		{"duplicate", []Cell{{Sample: 0, Feature: 0, Code: 1}, {Sample: 0, Feature: 0, Code: 2}}},
		{"code overflow", []Cell{{Sample: 0, Feature: 0, Code: 256}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := writeCells(t, tt.cells)
			_, err := ReadParquet[uint8](r, r.Size())
			assert.ErrorIs(t, err, ErrCell)
		})
	}
}

func TestSaveLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cells.parquet")
	require.NoError(t, SaveFile(path, sample()))

	d, err := LoadFile[uint8](path)
	require.NoError(t, err)
	assert.Equal(t, 4, d.N())
	assert.Equal(t, some(3), d.At(1, 2))

	_, err = LoadFile[uint8](filepath.Join(t.TempDir(), "missing.parquet"))
	assert.Error(t, err)
}
