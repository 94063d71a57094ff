package mariadb

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

// scanPlaceholders calls fn with the byte offset of every '?' placeholder in
// sql. Placeholders inside quoted strings, quoted identifiers and comments
// are skipped.
func scanPlaceholders(sql string, fn func(offset int)) {
	for i := 0; i < len(sql); i++ {
		switch ch := sql[i]; ch {
		case '?':
			fn(i)
		case '\'', '"', '`':
			i++

			for i < len(sql) && sql[i] != ch {
				if sql[i] == '\\' && ch != '`' {
					i++
				}

				i++
			}
		case '#':
			i = skipLine(sql, i)
		case '-':
			if strings.HasPrefix(sql[i:], "-- ") || sql[i:] == "--" {
				i = skipLine(sql, i)
			}
		case '/':
			if strings.HasPrefix(sql[i:], "/*") {
				end := strings.Index(sql[i+2:], "*/")

				if end == -1 {
					return
				}

				i += end + 3
			}
		}
	}
}

func skipLine(sql string, i int) int {
	end := strings.IndexByte(sql[i:], '\n')

	if end == -1 {
		return len(sql)
	}

	return i + end
}

// CountPlaceholders returns the number of '?' parameters in sql.
func CountPlaceholders(sql string) int {
	count := 0
	scanPlaceholders(sql, func(int) { count++ })

	return count
}

// interpolate replaces each placeholder with the text encoding of its value.
func interpolate(sql string, params []Parameter) (string, error) {
	var offsets []int
	scanPlaceholders(sql, func(offset int) { offsets = append(offsets, offset) })

	if len(offsets) != len(params) {
		return "", &ParameterCountError{Expected: len(offsets), Got: len(params)}
	}

	if len(params) == 0 {
		return sql, nil
	}

	out := make([]byte, 0, len(sql)+len(params)*8)
	last := 0

	for i, offset := range offsets {
		out = append(out, sql[last:offset]...)

		var err error

		out, err = params[i].encodeText(out)

		if err != nil {
			return "", errors.Wrapf(err, "mariadb: encoding parameter %d", i)
		}

		last = offset + 1
	}

	return string(append(out, sql[last:]...)), nil
}

// ClientStatement runs SQL over the text protocol with parameters
// interpolated on the client.
type ClientStatement struct {
	bindings   *Bindings
	connection *Connection
	sql        string
}

func (c *Connection) CreateClientStatement(sql string) *ClientStatement {
	return &ClientStatement{
		bindings:   c.NewBindings(CountPlaceholders(sql)),
		connection: c,
		sql:        sql,
	}
}

func (s *ClientStatement) Bindings() *Bindings {
	return s.bindings
}

func (s *ClientStatement) Bind(index int, value any) error {
	return s.bindings.Bind(index, value)
}

func (s *ClientStatement) Add() error {
	return s.bindings.Add()
}

// Execute sends one text query per binding set.
func (s *ClientStatement) Execute(ctx context.Context) (*Results, error) {
	batch := s.bindings.Len() > 0

	var sets [][]Parameter

	if batch {
		all, err := s.bindings.sets()

		if err != nil {
			return nil, err
		}

		sets = all
	} else {
		params, err := s.bindings.single()

		if err != nil {
			return nil, err
		}

		sets = [][]Parameter{params}
	}

	queries := make([]string, len(sets))

	for i, params := range sets {
		query, err := interpolate(s.sql, params)

		if err != nil {
			return nil, err
		}

		queries[i] = query
	}

	return s.connection.sendQueries(ctx, s.sql, queries, batch)
}
