package codec

import (
	"math/big"
	"reflect"

	"github.com/go-mysql-org/go-mysql/mysql"
	"github.com/shopspring/decimal"
)

func appendLengthEncoded(dst []byte, b []byte) []byte {
	dst = append(dst, mysql.PutLengthEncodedInt(uint64(len(b)))...)
	return append(dst, b...)
}

func numericColumn(t DataType) bool {
	return t.isInteger() || t.isDecimal() || t.isFloat() || t == Bit ||
		t == VarChar || t == VarString || t == String
}

type decimalCodec struct{}

func (decimalCodec) CanEncode(value any) bool {
	_, ok := value.(decimal.Decimal)
	return ok
}

func (decimalCodec) CanDecode(column *ColumnDescriptor, target reflect.Type) bool {
	return isType[decimal.Decimal](target) && numericColumn(column.DataType)
}

func (decimalCodec) DecodeText(buf []byte, column *ColumnDescriptor, _ reflect.Type) (any, error) {
	return readDecimal(buf, column, false)
}

func (decimalCodec) DecodeBinary(buf []byte, column *ColumnDescriptor, _ reflect.Type) (any, error) {
	return readDecimal(buf, column, true)
}

func (decimalCodec) EncodeText(dst []byte, value any) ([]byte, error) {
	return append(dst, value.(decimal.Decimal).String()...), nil
}

// EncodeBinary sends decimals as their text form; the server parses them.
func (decimalCodec) EncodeBinary(dst []byte, value any) ([]byte, error) {
	return appendLengthEncoded(dst, []byte(value.(decimal.Decimal).String())), nil
}

func (decimalCodec) BinaryEncodeType() DataType {
	return Decimal
}

func (decimalCodec) String() string {
	return "DecimalCodec"
}

// bigIntCodec carries integers beyond 64 bits, and is the default host type
// of BIGINT UNSIGNED columns.
type bigIntCodec struct{}

func (bigIntCodec) CanEncode(value any) bool {
	_, ok := value.(*big.Int)
	return ok
}

func (bigIntCodec) CanDecode(column *ColumnDescriptor, target reflect.Type) bool {
	return isType[*big.Int](target) && numericColumn(column.DataType)
}

func (bigIntCodec) decode(buf []byte, column *ColumnDescriptor, binaryProtocol bool) (any, error) {
	if column.DataType.isInteger() || column.DataType == Bit {
		n, err := readWholeNumber(buf, column, binaryProtocol)

		if err != nil {
			return nil, err
		}

		return n.bigInt(), nil
	}

	d, err := readDecimal(buf, column, binaryProtocol)

	if err != nil {
		return nil, err
	}

	if !d.IsInteger() {
		return nil, parseError(buf, "integer", nil)
	}

	return d.BigInt(), nil
}

func (c bigIntCodec) DecodeText(buf []byte, column *ColumnDescriptor, _ reflect.Type) (any, error) {
	return c.decode(buf, column, false)
}

func (c bigIntCodec) DecodeBinary(buf []byte, column *ColumnDescriptor, _ reflect.Type) (any, error) {
	return c.decode(buf, column, true)
}

func (bigIntCodec) EncodeText(dst []byte, value any) ([]byte, error) {
	return value.(*big.Int).Append(dst, 10), nil
}

func (bigIntCodec) EncodeBinary(dst []byte, value any) ([]byte, error) {
	return appendLengthEncoded(dst, value.(*big.Int).Append(nil, 10)), nil
}

func (bigIntCodec) BinaryEncodeType() DataType {
	return Decimal
}

func (bigIntCodec) String() string {
	return "BigIntegerCodec"
}
