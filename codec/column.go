package codec

import (
	"fmt"

	"github.com/go-mysql-org/go-mysql/mysql"
)

// binaryCharset is the collation id the server reports for binary strings.
const binaryCharset = 63

// ColumnDescriptor is the metadata the server sends ahead of row data for
// one result column.
type ColumnDescriptor struct {
	Schema   string
	Table    string
	Name     string
	DataType DataType
	Flags    uint16
	Charset  uint16
	Length   uint32
	Decimals uint8
}

func (c *ColumnDescriptor) Signed() bool {
	return c.Flags&uint16(mysql.UNSIGNED_FLAG) == 0
}

func (c *ColumnDescriptor) Nullable() bool {
	return c.Flags&uint16(mysql.NOT_NULL_FLAG) == 0
}

// Binary reports whether string and blob values of the column carry raw
// bytes rather than characters.
func (c *ColumnDescriptor) Binary() bool {
	return c.Charset == binaryCharset
}

// TypeName renders the column type the way decode errors report it, e.g.
// "BIGINT(unsigned)".
func (c *ColumnDescriptor) TypeName() string {
	if c.Signed() {
		return fmt.Sprintf("%s(signed)", c.DataType)
	}

	return fmt.Sprintf("%s(unsigned)", c.DataType)
}

// integerBits is the width of the value range of an integer-like column and
// whether that range is signed.
func (c *ColumnDescriptor) integerBits() (bits int, signed bool) {
	switch c.DataType {
	case TinyInt:
		return 8, c.Signed()
	case SmallInt:
		return 16, c.Signed()
	case Year:
		return 16, false
	case MediumInt:
		return 24, c.Signed()
	case Integer:
		return 32, c.Signed()
	case BigInt:
		return 64, c.Signed()
	case Bit:
		if c.Length == 0 || c.Length > 64 {
			return 64, false
		}

		return int(c.Length), false
	}

	return 0, false
}
