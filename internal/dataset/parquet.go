package dataset

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/23skdu/catdist/internal/metrics"
	"github.com/23skdu/catdist/internal/pack"
	"github.com/parquet-go/parquet-go"
)

// Key-value metadata recording the dataset shape, so that trailing samples or
// features with no values survive a round trip.
const (
	metaSamples  = "catdist.samples"
	metaFeatures = "catdist.features"
)

// ErrCell is returned for cells with out-of-range or duplicate coordinates.
var ErrCell = errors.New("invalid cell")

// Cell is one present value in the long-format Parquet representation.
// Missing values have no cell.
type Cell struct {
	Sample  int32  `parquet:"sample"`
	Feature int32  `parquet:"feature"`
	Code    uint64 `parquet:"code"`
}

const cellBatch = 4096

// WriteParquet writes the present values of d as cells.
func WriteParquet[T pack.Scalar](w io.Writer, d *Dataset[T]) error {
	pw := parquet.NewGenericWriter[Cell](w,
		parquet.Compression(&parquet.Zstd),
		parquet.KeyValueMetadata(metaSamples, strconv.Itoa(d.N())),
		parquet.KeyValueMetadata(metaFeatures, strconv.Itoa(d.M())),
	)
	batch := make([]Cell, 0, cellBatch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if _, err := pw.Write(batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for i, r := range d.rows {
		for k, o := range r {
			if !o.Valid {
				continue
			}
			batch = append(batch, Cell{Sample: int32(i), Feature: int32(k), Code: uint64(o.Value)})
			if len(batch) == cellBatch {
				if err := flush(); err != nil {
					return err
				}
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}
	return pw.Close()
}

// ReadParquet reads a cell file written by WriteParquet. Files without shape
// metadata are sized from the largest sample and feature indices.
func ReadParquet[T pack.Scalar](r io.ReaderAt, size int64) (*Dataset[T], error) {
	f, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	n, hasN := lookupInt(f, metaSamples)
	m, hasM := lookupInt(f, metaFeatures)

	var cells []Cell
	reader := parquet.NewGenericReader[Cell](r)
	defer func() {
		_ = reader.Close()
	}()

	buf := make([]Cell, cellBatch)
	for {
		got, err := reader.Read(buf)
		cells = append(cells, buf[:got]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read cells: %w", err)
		}
	}

	for _, c := range cells {
		if c.Sample < 0 || c.Feature < 0 {
			return nil, fmt.Errorf("%w: negative coordinate (%d,%d)", ErrCell, c.Sample, c.Feature)
		}
		if !hasN {
			n = max(n, int(c.Sample)+1)
		}
		if !hasM {
			m = max(m, int(c.Feature)+1)
		}
	}

	limit := uint64(^T(0))
	rows := make([][]pack.Opt[T], n)
	for i := range rows {
		rows[i] = make([]pack.Opt[T], m)
	}
	for _, c := range cells {
		i, k := int(c.Sample), int(c.Feature)
		if i >= n || k >= m {
			return nil, fmt.Errorf("%w: (%d,%d) outside %dx%d", ErrCell, i, k, n, m)
		}
		if c.Code > limit {
			return nil, fmt.Errorf("%w: code %d at (%d,%d) out of range", ErrCell, c.Code, i, k)
		}
		if rows[i][k].Valid {
			return nil, fmt.Errorf("%w: duplicate (%d,%d)", ErrCell, i, k)
		}
		rows[i][k] = pack.Some(T(c.Code))
	}

	metrics.DatasetRowsLoadedTotal.WithLabelValues("parquet").Add(float64(n))
	return adopt(rows), nil
}

// SaveFile writes d to a Parquet cell file at path.
func SaveFile[T pack.Scalar](path string, d *Dataset[T]) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return WriteParquet(f, d)
}

// LoadFile reads a Parquet cell file from path.
func LoadFile[T pack.Scalar](path string) (*Dataset[T], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return ReadParquet[T](f, st.Size())
}

func lookupInt(f *parquet.File, key string) (int, bool) {
	v, ok := f.Lookup(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
