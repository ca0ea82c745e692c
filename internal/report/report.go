// Package report runs analytical queries over a distance matrix saved as
// Parquet.
package report

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"

	catderrors "github.com/23skdu/catdist/internal/errors"
	"github.com/apache/arrow-go/v18/arrow/array"
	duckdb "github.com/marcboeker/go-duckdb"
)

// ViewName is the view exposing the Parquet entries to queries.
const ViewName = "distances"

const nearestSQL = `
WITH pairs AS (
	SELECT i AS sample, j AS neighbor, distance FROM distances WHERE i <> j
	UNION ALL
	SELECT j AS sample, i AS neighbor, distance FROM distances WHERE i <> j
), ranked AS (
	SELECT sample, neighbor, distance,
		ROW_NUMBER() OVER (PARTITION BY sample ORDER BY distance, neighbor) AS rnk
	FROM pairs
)
SELECT CAST(sample AS INTEGER) AS sample,
	CAST(neighbor AS INTEGER) AS neighbor,
	CAST(distance AS UBIGINT) AS distance,
	CAST(rnk AS INTEGER) AS rnk
FROM ranked
WHERE rnk <= ?
ORDER BY sample, rnk`

// Neighbor is one ranked nearest neighbour of Sample.
type Neighbor struct {
	Sample   int
	Neighbor int
	Distance uint64
	Rank     int
}

// Reporter queries one distance file written by matrix.SaveFile.
type Reporter struct {
	path string
}

func New(path string) *Reporter {
	return &Reporter{path: path}
}

// Query executes query against the distances view.
// Returns a RecordReader and a cleanup function. The caller must call cleanup() when done.
func (r *Reporter) Query(ctx context.Context, query string, args ...any) (array.RecordReader, func(), error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open duckdb: %w", err)
	}

	// The Arrow interface needs a dedicated driver connection.
	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to open conn: %w", err)
	}

	var ar *duckdb.Arrow
	err = conn.Raw(func(c any) error {
		dc, ok := c.(driver.Conn)
		if !ok {
			return fmt.Errorf("not a duckdb driver connection")
		}
		var err error
		ar, err = duckdb.NewArrowFromConn(dc)
		return err
	})
	if err != nil {
		_ = conn.Close()
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to init arrow: %w", err)
	}

	view := fmt.Sprintf("CREATE VIEW %s AS SELECT * FROM read_parquet('%s')",
		ViewName, strings.ReplaceAll(r.path, "'", "''"))
	if _, err := conn.ExecContext(ctx, view); err != nil {
		_ = conn.Close()
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to create view: %w", err)
	}

	rdr, err := ar.QueryContext(ctx, query, args...)
	if err != nil {
		_ = conn.Close()
		_ = db.Close()
		return nil, nil, fmt.Errorf("query execution failed: %w", err)
	}

	cleanup := func() {
		rdr.Release()
		_ = conn.Close()
		_ = db.Close()
	}
	return rdr, cleanup, nil
}

// Nearest returns the k closest other samples of every sample, ordered by
// sample then rank. Ties break on the lower neighbour index.
func (r *Reporter) Nearest(ctx context.Context, k int) ([]Neighbor, error) {
	if k < 1 {
		return nil, catderrors.NewValidationError("report.Nearest", fmt.Sprintf("k must be at least 1, got %d", k))
	}
	rdr, cleanup, err := r.Query(ctx, nearestSQL, k)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	var out []Neighbor
	for rdr.Next() {
		rec := rdr.Record()
		samples, ok1 := rec.Column(0).(*array.Int32)
		neighbors, ok2 := rec.Column(1).(*array.Int32)
		distances, ok3 := rec.Column(2).(*array.Uint64)
		ranks, ok4 := rec.Column(3).(*array.Int32)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			return nil, fmt.Errorf("unexpected result schema %s", rec.Schema())
		}
		for row := 0; row < int(rec.NumRows()); row++ {
			out = append(out, Neighbor{
				Sample:   int(samples.Value(row)),
				Neighbor: int(neighbors.Value(row)),
				Distance: distances.Value(row),
				Rank:     int(ranks.Value(row)),
			})
		}
	}
	if err := rdr.Err(); err != nil {
		return nil, fmt.Errorf("reading results: %w", err)
	}
	return out, nil
}
