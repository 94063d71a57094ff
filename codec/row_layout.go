package codec

import (
	"github.com/go-mysql-org/go-mysql/mysql"
	"github.com/pkg/errors"
)

const (
	binaryRowHeader = 0x00
	textNull        = 0xfb
)

// ReadLengthEncoded reads one length-encoded string and returns its content
// and the number of bytes consumed. A nil value is SQL NULL.
func ReadLengthEncoded(b []byte) ([]byte, int, error) {
	if len(b) == 0 {
		return nil, 0, errors.Wrap(ErrShortBuffer, "length-encoded value")
	}

	if b[0] == textNull {
		return nil, 1, nil
	}

	header := 1

	switch b[0] {
	case 0xfc:
		header = 3
	case 0xfd:
		header = 4
	case 0xfe:
		header = 9
	}

	if len(b) < header {
		return nil, 0, errors.Wrap(ErrShortBuffer, "length-encoded header")
	}

	value, _, n, err := mysql.LengthEncodedString(b)

	if err != nil {
		return nil, 0, errors.Wrap(ErrShortBuffer, "length-encoded value")
	}

	if value == nil {
		value = []byte{}
	}

	return value, n, nil
}

// SplitBinaryRow cuts a binary protocol row into one raw value per column.
// NULL columns come back as nil; temporal values lose their length byte.
func SplitBinaryRow(row []byte, columns []*ColumnDescriptor) ([][]byte, error) {
	if len(row) == 0 || row[0] != binaryRowHeader {
		return nil, errors.New("binary row does not start with a 0x00 header")
	}

	bitmapLen := (len(columns) + 7 + 2) / 8
	pos := 1 + bitmapLen

	if len(row) < pos {
		return nil, errors.Wrap(ErrShortBuffer, "binary row null bitmap")
	}

	bitmap := row[1:pos]
	values := make([][]byte, len(columns))

	for i, column := range columns {
		bit := i + 2

		if bitmap[bit/8]&(1<<(bit%8)) != 0 {
			continue
		}

		if width := binaryWidth(column.DataType); width > 0 {
			if len(row) < pos+width {
				return nil, errors.Wrapf(ErrShortBuffer, "column %q", column.Name)
			}

			values[i] = row[pos : pos+width]
			pos += width

			continue
		}

		if column.DataType.isTemporal() {
			if len(row) <= pos {
				return nil, errors.Wrapf(ErrShortBuffer, "column %q", column.Name)
			}

			length := int(row[pos])

			if len(row) < pos+1+length {
				return nil, errors.Wrapf(ErrShortBuffer, "column %q", column.Name)
			}

			values[i] = row[pos+1 : pos+1+length]
			pos += 1 + length

			continue
		}

		value, n, err := ReadLengthEncoded(row[pos:])

		if err != nil {
			return nil, errors.Wrapf(err, "column %q", column.Name)
		}

		values[i] = value
		pos += n
	}

	return values, nil
}

// SplitTextRow cuts a text protocol row into count raw values. NULL columns
// come back as nil.
func SplitTextRow(row []byte, count int) ([][]byte, error) {
	values := make([][]byte, count)
	pos := 0

	for i := 0; i < count; i++ {
		value, n, err := ReadLengthEncoded(row[pos:])

		if err != nil {
			return nil, errors.Wrapf(err, "column %d", i)
		}

		values[i] = value
		pos += n
	}

	return values, nil
}
