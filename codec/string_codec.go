package codec

import (
	"bytes"
	"encoding/hex"
	"reflect"
	"strconv"

	"github.com/go-mysql-org/go-mysql/mysql"
)

type stringCodec struct{}

func (stringCodec) CanEncode(value any) bool {
	_, ok := value.(string)
	return ok
}

func (stringCodec) CanDecode(column *ColumnDescriptor, target reflect.Type) bool {
	return isType[string](target) && column.DataType != Null
}

func (stringCodec) DecodeText(buf []byte, _ *ColumnDescriptor, _ reflect.Type) (any, error) {
	return string(buf), nil
}

// DecodeBinary renders typed binary values in the server's text form.
func (stringCodec) DecodeBinary(buf []byte, column *ColumnDescriptor, _ reflect.Type) (any, error) {
	switch t := column.DataType; {
	case t.isInteger():
		n, err := readWholeNumber(buf, column, true)

		if err != nil {
			return nil, err
		}

		return n.String(), nil
	case t.isFloat():
		f, err := readFloat(buf, column, true)

		if err != nil {
			return nil, err
		}

		bitSize := 64

		if t == Float {
			bitSize = 32
		}

		return strconv.FormatFloat(f, 'g', -1, bitSize), nil
	case t == Time:
		return formatBinaryTime(buf, column)
	case t.isDateLike():
		return formatBinaryDateTime(buf, column)
	}

	return string(buf), nil
}

func (stringCodec) EncodeText(dst []byte, value any) ([]byte, error) {
	dst = append(dst, '\'')
	dst = append(dst, mysql.Escape(value.(string))...)
	return append(dst, '\''), nil
}

func (stringCodec) EncodeBinary(dst []byte, value any) ([]byte, error) {
	return appendLengthEncoded(dst, []byte(value.(string))), nil
}

func (stringCodec) BinaryEncodeType() DataType {
	return VarString
}

func (stringCodec) String() string {
	return "StringCodec"
}

func appendHexLiteral(dst []byte, b []byte) []byte {
	dst = append(dst, "x'"...)
	dst = hex.AppendEncode(dst, b)
	return append(dst, '\'')
}

type bytesCodec struct{}

func (bytesCodec) CanEncode(value any) bool {
	_, ok := value.([]byte)
	return ok
}

func (bytesCodec) CanDecode(column *ColumnDescriptor, target reflect.Type) bool {
	t := column.DataType
	return isType[[]byte](target) && (t.isBlob() || t.isText() || t == Bit)
}

func (bytesCodec) DecodeText(buf []byte, _ *ColumnDescriptor, _ reflect.Type) (any, error) {
	return bytes.Clone(buf), nil
}

func (bytesCodec) DecodeBinary(buf []byte, _ *ColumnDescriptor, _ reflect.Type) (any, error) {
	return bytes.Clone(buf), nil
}

func (bytesCodec) EncodeText(dst []byte, value any) ([]byte, error) {
	return appendHexLiteral(dst, value.([]byte)), nil
}

func (bytesCodec) EncodeBinary(dst []byte, value any) ([]byte, error) {
	return appendLengthEncoded(dst, value.([]byte)), nil
}

func (bytesCodec) BinaryEncodeType() DataType {
	return Blob
}

func (bytesCodec) String() string {
	return "ByteArrayCodec"
}

// Bits is a BIT column value: a fixed-width bit vector, most significant
// byte first.
type Bits []byte

// Uint64 returns the vector as a number.
func (b Bits) Uint64() uint64 {
	return ParseBit(b)
}

// Bit reports whether bit i (0 = least significant) is set.
func (b Bits) Bit(i int) bool {
	byteIndex := len(b) - 1 - i/8

	if i < 0 || byteIndex < 0 {
		return false
	}

	return b[byteIndex]&(1<<(i%8)) != 0
}

type bitsCodec struct{}

func (bitsCodec) CanEncode(value any) bool {
	_, ok := value.(Bits)
	return ok
}

func (bitsCodec) CanDecode(column *ColumnDescriptor, target reflect.Type) bool {
	t := column.DataType
	return isType[Bits](target) && (t == Bit || t.isBlob() || t == VarString || t == String)
}

func (bitsCodec) DecodeText(buf []byte, _ *ColumnDescriptor, _ reflect.Type) (any, error) {
	return Bits(bytes.Clone(buf)), nil
}

func (bitsCodec) DecodeBinary(buf []byte, _ *ColumnDescriptor, _ reflect.Type) (any, error) {
	return Bits(bytes.Clone(buf)), nil
}

func (bitsCodec) EncodeText(dst []byte, value any) ([]byte, error) {
	return appendHexLiteral(dst, value.(Bits)), nil
}

func (bitsCodec) EncodeBinary(dst []byte, value any) ([]byte, error) {
	return appendLengthEncoded(dst, value.(Bits)), nil
}

func (bitsCodec) BinaryEncodeType() DataType {
	return Blob
}

func (bitsCodec) String() string {
	return "BitSetCodec"
}
