package mariadb

import (
	"context"
	"database/sql/driver"
	"io"
	"math/big"
	"reflect"
	"time"

	"cloud.google.com/go/civil"
	"github.com/litebase/mariadb-go/codec"
	"github.com/shopspring/decimal"
)

// Rows adapts Results to database/sql. Each result with columns is one
// result set.
type Rows struct {
	columns []string
	ctx     context.Context
	current *Result
	index   int
	next    *Result
	nextErr error
	results *Results
}

func NewRows(ctx context.Context, results *Results) (*Rows, error) {
	r := &Rows{
		ctx:     ctx,
		results: results,
	}

	result, err := results.Next(ctx)

	if err == io.EOF {
		result, err = &Result{}, nil
	}

	if err != nil {
		results.Close()
		return nil, err
	}

	r.setCurrent(result)

	return r, nil
}

func (r *Rows) setCurrent(result *Result) {
	r.current = result
	r.index = -1
	r.columns = make([]string, len(result.Columns))

	for i, column := range result.Columns {
		r.columns[i] = column.Name
	}
}

func (r *Rows) Columns() []string {
	return r.columns
}

func (r *Rows) ColumnTypeDatabaseTypeName(index int) string {
	return r.current.Columns[index].DataType.String()
}

func (r *Rows) ColumnTypeNullable(index int) (nullable, ok bool) {
	return r.current.Columns[index].Nullable(), true
}

func (r *Rows) Close() error {
	return r.results.CloseContext(r.ctx)
}

func (r *Rows) Next(dest []driver.Value) error {
	if r.index >= len(r.current.rows)-1 {
		return io.EOF
	}

	r.index++
	row := r.current.rows[r.index]

	for i := range dest {
		v, err := driverValue(row, i)

		if err != nil {
			return err
		}

		dest[i] = v
	}

	return nil
}

func (r *Rows) HasNextResultSet() bool {
	if r.next == nil && r.nextErr == nil {
		r.next, r.nextErr = r.results.Next(r.ctx)
	}

	return r.next != nil || (r.nextErr != nil && r.nextErr != io.EOF)
}

func (r *Rows) NextResultSet() error {
	if !r.HasNextResultSet() {
		return io.EOF
	}

	if r.nextErr != nil {
		err := r.nextErr
		r.nextErr = nil

		return err
	}

	r.setCurrent(r.next)
	r.next = nil

	return nil
}

// driverValue narrows a decoded column to the value types database/sql
// accepts.
func driverValue(row *Row, index int) (driver.Value, error) {
	if row.IsNull(index) {
		return nil, nil
	}

	switch codec.DefaultType(row.columns[index]) {
	case reflect.TypeFor[civil.Date](), reflect.TypeFor[civil.DateTime]():
		return row.GetAs(index, reflect.TypeFor[time.Time]())
	case reflect.TypeFor[time.Duration]():
		return row.GetAs(index, reflect.TypeFor[string]())
	}

	v, err := row.Get(index)

	if err != nil {
		return nil, err
	}

	switch t := v.(type) {
	case *big.Int:
		if t.IsInt64() {
			return t.Int64(), nil
		}

		return t.String(), nil
	case float32:
		return float64(t), nil
	case decimal.Decimal:
		return t.String(), nil
	case codec.Bits:
		return []byte(t), nil
	}

	return v, nil
}

// execResult drains results into one driver.Result: affected rows summed
// over every result, the last insert id of the last one.
func execResult(ctx context.Context, results *Results) (driver.Result, error) {
	all, err := results.Collect(ctx)

	if err != nil {
		return nil, err
	}

	total := &Result{}

	for _, result := range all {
		total.affectedRows += result.affectedRows

		if result.lastInsertID != 0 {
			total.lastInsertID = result.lastInsertID
		}
	}

	return total, nil
}
