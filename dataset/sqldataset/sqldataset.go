/*
Package sqldataset provides an implementation of dataset.Dataset
that reads samples from an SQL database.

Samples are the rows returned by a query: the first column holds the
label and the rest hold the feature values, in feature order. Every
column must be numeric and non-null.
*/
package sqldataset

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"github.com/AfafAlalwan/arch-forest/dataset"
)

type sqlDataset struct {
	db    *sql.DB
	query string
	args  []interface{}
}

/*
New takes a database handle, a query and its arguments and returns
a dataset.Dataset with the rows returned by the query as samples.
The query is run on every Read.
*/
func New(db *sql.DB, query string, args ...interface{}) dataset.Dataset {
	return &sqlDataset{db, query, args}
}

// TableQuery returns a query for New selecting the given label column
// and feature columns of a table
func TableQuery(table, label string, features []string) string {
	q := fmt.Sprintf("SELECT %s", label)
	for _, f := range features {
		q += ", " + f
	}
	return q + " FROM " + table
}

func (sd *sqlDataset) Dim() int {
	return 0
}

func (sd *sqlDataset) Read(ctx context.Context) (<-chan *dataset.Sample, <-chan error) {
	samples := make(chan *dataset.Sample)
	errs := make(chan error, 1)
	go func() {
		defer close(samples)
		defer close(errs)
		err := sd.read(ctx, samples)
		if err != nil {
			errs <- err
		}
	}()
	return samples, errs
}

func (sd *sqlDataset) read(ctx context.Context, samples chan<- *dataset.Sample) error {
	rows, err := sd.db.QueryContext(ctx, sd.query, sd.args...)
	if err != nil {
		return fmt.Errorf("querying samples: %v", err)
	}
	defer rows.Close()
	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("querying samples: %v", err)
	}
	if len(columns) < 2 {
		return fmt.Errorf("querying samples: expected a label and at least one feature column, got %d columns", len(columns))
	}
	values := make([]sql.NullFloat64, len(columns))
	dest := make([]interface{}, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}
	for row := 1; rows.Next(); row++ {
		if err = rows.Scan(dest...); err != nil {
			return fmt.Errorf("scanning sample %d: %v", row, err)
		}
		s := &dataset.Sample{Features: make([]float64, len(columns)-1)}
		for i, v := range values {
			if !v.Valid || math.IsNaN(v.Float64) || math.IsInf(v.Float64, 0) {
				return fmt.Errorf("scanning sample %d: column %s is not a finite number", row, columns[i])
			}
			if i == 0 {
				s.Label = v.Float64
			} else {
				s.Features[i-1] = v.Float64
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case samples <- s:
		}
	}
	if err = rows.Err(); err != nil {
		return fmt.Errorf("reading samples: %v", err)
	}
	return nil
}
