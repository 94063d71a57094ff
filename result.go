package mariadb

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/go-mysql-org/go-mysql/mysql"
	"github.com/litebase/mariadb-go/codec"
	"github.com/pkg/errors"
)

// Result is one logical result of a command: either a row set or an update
// count.
type Result struct {
	// CommandID is the id of the command that produced the result.
	CommandID string

	Columns []*codec.ColumnDescriptor

	// Batch is set on results of a batch execution, one per added set.
	Batch bool

	// GeneratedColumns are the column names generated values were requested
	// for.
	GeneratedColumns []string

	Warnings uint16

	affectedRows uint64
	lastInsertID uint64
	rows         []*Row
}

func (r *Result) LastInsertId() (int64, error) {
	return int64(r.lastInsertID), nil
}

func (r *Result) RowsAffected() (int64, error) {
	return int64(r.affectedRows), nil
}

// RowsUpdated is the server's affected row count.
func (r *Result) RowsUpdated() uint64 {
	return r.affectedRows
}

// HasRows reports whether the result is a row set.
func (r *Result) HasRows() bool {
	return len(r.Columns) > 0
}

func (r *Result) Rows() []*Row {
	return r.rows
}

// Map calls fn for every row in order and stops at the first error.
func (r *Result) Map(fn func(*Row) error) error {
	for _, row := range r.rows {
		if err := fn(row); err != nil {
			return err
		}
	}

	return nil
}

// MapRows converts every row of r with fn.
func MapRows[T any](r *Result, fn func(*Row) (T, error)) ([]T, error) {
	out := make([]T, 0, len(r.rows))

	for _, row := range r.rows {
		v, err := fn(row)

		if err != nil {
			return nil, err
		}

		out = append(out, v)
	}

	return out, nil
}

// Row holds raw column values; each value is decoded when read.
type Row struct {
	binary   bool
	columns  []*codec.ColumnDescriptor
	registry *codec.Registry
	values   [][]byte
}

func (r *Row) Columns() []*codec.ColumnDescriptor {
	return r.columns
}

func (r *Row) Len() int {
	return len(r.values)
}

func (r *Row) IsNull(index int) bool {
	return index >= 0 && index < len(r.values) && r.values[index] == nil
}

// Get decodes the value at index into the column's default host type.
func (r *Row) Get(index int) (any, error) {
	return r.GetAs(index, nil)
}

// GetAs decodes the value at index into target.
func (r *Row) GetAs(index int, target reflect.Type) (any, error) {
	if index < 0 || index >= len(r.values) {
		return nil, &IndexOutOfRangeError{Index: index, Count: len(r.values)}
	}

	v, err := r.registry.Decode(r.values[index], r.binary, r.columns[index], target)

	if err != nil {
		return nil, errors.Wrapf(err, "mariadb: column %q", r.columns[index].Name)
	}

	return v, nil
}

// GetByName decodes the value of the first column named name, ignoring case.
func (r *Row) GetByName(name string) (any, error) {
	index := r.columnIndex(name)

	if index == -1 {
		return nil, errors.Errorf("mariadb: no column named %q", name)
	}

	return r.Get(index)
}

func (r *Row) columnIndex(name string) int {
	for i, column := range r.columns {
		if strings.EqualFold(column.Name, name) {
			return i
		}
	}

	return -1
}

// Get decodes the value at index as T. SQL NULL yields the zero value.
func Get[T any](row *Row, index int) (T, error) {
	var zero T

	if index < 0 || index >= len(row.values) {
		return zero, &IndexOutOfRangeError{Index: index, Count: len(row.values)}
	}

	v, err := codec.DecodeAs[T](row.registry, row.values[index], row.binary, row.columns[index])

	if err != nil {
		return zero, errors.Wrapf(err, "mariadb: column %q", row.columns[index].Name)
	}

	return v, nil
}

// resultTag carries what the execution asked for into each of its results.
type resultTag struct {
	batch     bool
	generated []string
	returning bool
}

func buildResult(commandID string, messages []ServerMessage, tag resultTag, registry *codec.Registry) (*Result, error) {
	result := &Result{
		CommandID:        commandID,
		Batch:            tag.batch,
		GeneratedColumns: tag.generated,
	}

	for _, message := range messages {
		switch m := message.(type) {
		case *ColumnDefinition:
			result.Columns = append(result.Columns, m.Column)
		case *RowData:
			row, err := splitRow(m, result.Columns, registry)

			if err != nil {
				return nil, err
			}

			result.rows = append(result.rows, row)
		case *OKPacket:
			result.affectedRows = m.AffectedRows
			result.lastInsertID = m.LastInsertID
			result.Warnings = m.Warnings
		case *EOFPacket:
			result.Warnings = m.Warnings
		default:
			return nil, errors.Errorf("mariadb: unexpected %T in result", message)
		}
	}

	if len(tag.generated) == 1 && !tag.returning && !result.HasRows() {
		result.Columns, result.rows = generatedKeyRow(tag.generated[0], result.lastInsertID, registry)
	}

	return result, nil
}

func splitRow(m *RowData, columns []*codec.ColumnDescriptor, registry *codec.Registry) (*Row, error) {
	var (
		values [][]byte
		err    error
	)

	if m.Binary {
		values, err = codec.SplitBinaryRow(m.Raw, columns)
	} else {
		values, err = codec.SplitTextRow(m.Raw, len(columns))
	}

	if err != nil {
		return nil, errors.Wrap(err, "mariadb: malformed row")
	}

	return &Row{
		binary:   m.Binary,
		columns:  columns,
		registry: registry,
		values:   values,
	}, nil
}

// generatedKeyRow builds the single-row result servers without RETURNING
// report generated keys through: the OK packet's last insert id under the
// requested column name.
func generatedKeyRow(name string, lastInsertID uint64, registry *codec.Registry) ([]*codec.ColumnDescriptor, []*Row) {
	columns := []*codec.ColumnDescriptor{{
		Name:     name,
		DataType: codec.BigInt,
		Flags:    uint16(mysql.UNSIGNED_FLAG | mysql.NOT_NULL_FLAG),
		Length:   20,
	}}

	row := &Row{
		columns:  columns,
		registry: registry,
		values:   [][]byte{strconv.AppendUint(nil, lastInsertID, 10)},
	}

	return columns, []*Row{row}
}
