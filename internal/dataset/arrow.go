package dataset

import (
	"fmt"
	"io"
	"os"
	"unsafe"

	"github.com/23skdu/catdist/internal/metrics"
	"github.com/23skdu/catdist/internal/pack"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// FromRecord builds a Dataset from a record whose columns are unsigned integer
// arrays, one column per feature and one row per sample. Nulls are missing values.
func FromRecord[T pack.Scalar](rec arrow.Record) (*Dataset[T], error) {
	rows, err := recordRows[T](rec)
	if err != nil {
		return nil, err
	}
	metrics.DatasetRowsLoadedTotal.WithLabelValues("arrow").Add(float64(len(rows)))
	return adopt(rows), nil
}

func recordRows[T pack.Scalar](rec arrow.Record) ([][]pack.Opt[T], error) {
	n := int(rec.NumRows())
	m := int(rec.NumCols())
	limit := uint64(^T(0))

	rows := make([][]pack.Opt[T], n)
	for i := range rows {
		rows[i] = make([]pack.Opt[T], m)
	}

	for k := 0; k < m; k++ {
		col := rec.Column(k)
		var value func(i int) uint64
		switch c := col.(type) {
		case *array.Uint8:
			value = func(i int) uint64 { return uint64(c.Value(i)) }
		case *array.Uint16:
			value = func(i int) uint64 { return uint64(c.Value(i)) }
		case *array.Uint32:
			value = func(i int) uint64 { return uint64(c.Value(i)) }
		case *array.Uint64:
			value = c.Value
		default:
			return nil, fmt.Errorf("column %q: unsupported type %s", rec.ColumnName(k), col.DataType())
		}
		for i := 0; i < n; i++ {
			if col.IsNull(i) {
				continue
			}
			v := value(i)
			if v > limit {
				return nil, fmt.Errorf("column %q row %d: code %d overflows %d-byte element", rec.ColumnName(k), i, v, unsafe.Sizeof(T(0)))
			}
			rows[i][k] = pack.Some(T(v))
		}
	}

	return rows, nil
}

// WriteArrow writes d to w as an Arrow IPC stream holding a single record.
func WriteArrow[T pack.Scalar](w io.Writer, d *Dataset[T], mem memory.Allocator) error {
	rec := d.ToRecord(mem)
	defer rec.Release()

	writer := ipc.NewWriter(w, ipc.WithSchema(rec.Schema()), ipc.WithAllocator(mem))
	if err := writer.Write(rec); err != nil {
		_ = writer.Close()
		return err
	}
	return writer.Close()
}

// ReadArrow reads an Arrow IPC stream. Records are appended in order, so a
// stream of several record batches yields their samples concatenated.
func ReadArrow[T pack.Scalar](r io.Reader, mem memory.Allocator) (*Dataset[T], error) {
	reader, err := ipc.NewReader(r, ipc.WithAllocator(mem))
	if err != nil {
		return nil, fmt.Errorf("open arrow stream: %w", err)
	}
	defer reader.Release()

	var rows [][]pack.Opt[T]
	for reader.Next() {
		batch, err := recordRows[T](reader.Record())
		if err != nil {
			return nil, err
		}
		rows = append(rows, batch...)
	}
	if err := reader.Err(); err != nil {
		return nil, fmt.Errorf("read arrow stream: %w", err)
	}
	metrics.DatasetRowsLoadedTotal.WithLabelValues("arrow").Add(float64(len(rows)))
	return adopt(rows), nil
}

// SaveArrowFile writes d to an Arrow IPC stream file at path.
func SaveArrowFile[T pack.Scalar](path string, d *Dataset[T]) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return WriteArrow(f, d, memory.DefaultAllocator)
}

// LoadArrowFile reads an Arrow IPC stream file from path.
func LoadArrowFile[T pack.Scalar](path string) (*Dataset[T], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()
	return ReadArrow[T](f, memory.DefaultAllocator)
}

// ToRecord exports the Dataset as a record with one nullable unsigned column per
// feature. The caller owns the returned record and must Release it.
func (d *Dataset[T]) ToRecord(mem memory.Allocator) arrow.Record {
	dt := arrowType[T]()
	fields := make([]arrow.Field, d.m)
	cols := make([]arrow.Array, d.m)
	defer func() {
		for _, c := range cols {
			if c != nil {
				c.Release()
			}
		}
	}()

	for k := 0; k < d.m; k++ {
		fields[k] = arrow.Field{Name: fmt.Sprintf("f%d", k), Type: dt, Nullable: true}
		b := array.NewBuilder(mem, dt)
		b.Reserve(d.N())
		for i := 0; i < d.N(); i++ {
			o := d.At(i, k)
			if !o.Valid {
				b.AppendNull()
				continue
			}
			switch ub := b.(type) {
			case *array.Uint8Builder:
				ub.Append(uint8(o.Value))
			case *array.Uint16Builder:
				ub.Append(uint16(o.Value))
			case *array.Uint32Builder:
				ub.Append(uint32(o.Value))
			case *array.Uint64Builder:
				ub.Append(uint64(o.Value))
			}
		}
		cols[k] = b.NewArray()
		b.Release()
	}

	schema := arrow.NewSchema(fields, nil)
	return array.NewRecord(schema, cols, int64(d.N()))
}

func arrowType[T pack.Scalar]() arrow.DataType {
	switch unsafe.Sizeof(T(0)) {
	case 1:
		return arrow.PrimitiveTypes.Uint8
	case 2:
		return arrow.PrimitiveTypes.Uint16
	case 4:
		return arrow.PrimitiveTypes.Uint32
	default:
		return arrow.PrimitiveTypes.Uint64
	}
}
