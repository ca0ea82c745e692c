package matrix

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/23skdu/catdist/internal/metrics"
	"github.com/parquet-go/parquet-go"
)

const metaSamples = "catdist.samples"

const entryBatch = 8192

// Entry is one upper-triangle distance, I <= J.
type Entry struct {
	I        int32  `parquet:"i"`
	J        int32  `parquet:"j"`
	Distance uint64 `parquet:"distance"`
}

// WriteParquet writes the upper triangle of m, diagonal included.
func WriteParquet(w io.Writer, m *Matrix) error {
	pw := parquet.NewGenericWriter[Entry](w,
		parquet.Compression(&parquet.Zstd),
		parquet.KeyValueMetadata(metaSamples, strconv.Itoa(m.n)),
	)
	batch := make([]Entry, 0, entryBatch)
	for i := 0; i < m.n; i++ {
		for j := i; j < m.n; j++ {
			batch = append(batch, Entry{I: int32(i), J: int32(j), Distance: m.At(i, j)})
			if len(batch) == entryBatch {
				if _, err := pw.Write(batch); err != nil {
					return err
				}
				metrics.MatrixEntriesWrittenTotal.Add(float64(len(batch)))
				batch = batch[:0]
			}
		}
	}
	if len(batch) > 0 {
		if _, err := pw.Write(batch); err != nil {
			return err
		}
		metrics.MatrixEntriesWrittenTotal.Add(float64(len(batch)))
	}
	return pw.Close()
}

// ReadParquet reads a matrix written by WriteParquet.
func ReadParquet(r io.ReaderAt, size int64) (*Matrix, error) {
	f, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	v, ok := f.Lookup(metaSamples)
	if !ok {
		return nil, fmt.Errorf("missing %s metadata", metaSamples)
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return nil, fmt.Errorf("invalid %s metadata %q", metaSamples, v)
	}

	m := New(n)
	reader := parquet.NewGenericReader[Entry](r)
	defer func() {
		_ = reader.Close()
	}()

	buf := make([]Entry, entryBatch)
	for {
		got, err := reader.Read(buf)
		for _, e := range buf[:got] {
			i, j := int(e.I), int(e.J)
			if i < 0 || i > j || j >= n {
				return nil, fmt.Errorf("entry (%d,%d) outside upper triangle of %d", i, j, n)
			}
			m.data[i*n+j] = e.Distance
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read entries: %w", err)
		}
	}
	return m, nil
}

// SaveFile writes m to a Parquet file at path.
func SaveFile(path string, m *Matrix) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return WriteParquet(f, m)
}

// LoadFile reads a matrix Parquet file from path.
func LoadFile(path string) (*Matrix, error) {
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
	return ReadParquet(f, st.Size())
}
