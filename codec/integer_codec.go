package codec

import (
	"fmt"
	"reflect"
	"strconv"

	"golang.org/x/exp/constraints"
)

// integerCodec handles one Go integer type. Integer columns are accepted only
// when their whole value range fits T; decimal, float and text columns are
// range checked per value.
type integerCodec[T constraints.Integer] struct {
	encodeType DataType
	bits       int
	unsigned   bool
}

func newIntegerCodec[T constraints.Integer](encodeType DataType) integerCodec[T] {
	var zero T

	return integerCodec[T]{
		encodeType: encodeType,
		bits:       binaryWidth(encodeType) * 8,
		unsigned:   zero-1 > 0,
	}
}

func (c integerCodec[T]) CanEncode(value any) bool {
	_, ok := value.(T)
	return ok
}

func (c integerCodec[T]) CanDecode(column *ColumnDescriptor, target reflect.Type) bool {
	if !isType[T](target) {
		return false
	}

	t := column.DataType

	if t.isInteger() || t == Bit {
		bits, signed := column.integerBits()

		if c.unsigned {
			return !signed && bits <= c.bits
		}

		return (signed && bits <= c.bits) || (!signed && bits < c.bits)
	}

	return t.isDecimal() || t.isFloat() || t == VarChar || t == VarString || t == String
}

func (c integerCodec[T]) decode(buf []byte, column *ColumnDescriptor, binaryProtocol bool) (any, error) {
	n, err := readInteger(buf, column, binaryProtocol)

	if err != nil {
		return nil, err
	}

	v, err := toInteger[T](n)

	if err != nil {
		return nil, err
	}

	return v, nil
}

func (c integerCodec[T]) DecodeText(buf []byte, column *ColumnDescriptor, _ reflect.Type) (any, error) {
	return c.decode(buf, column, false)
}

func (c integerCodec[T]) DecodeBinary(buf []byte, column *ColumnDescriptor, _ reflect.Type) (any, error) {
	return c.decode(buf, column, true)
}

func (c integerCodec[T]) EncodeText(dst []byte, value any) ([]byte, error) {
	v := value.(T)

	if c.unsigned {
		return strconv.AppendUint(dst, uint64(v), 10), nil
	}

	return strconv.AppendInt(dst, int64(v), 10), nil
}

func (c integerCodec[T]) EncodeBinary(dst []byte, value any) ([]byte, error) {
	return appendLittleEndian(dst, uint64(value.(T)), c.bits/8), nil
}

func (c integerCodec[T]) BinaryEncodeType() DataType {
	return c.encodeType
}

func (c integerCodec[T]) EncodesUnsigned() bool {
	return c.unsigned
}

func (c integerCodec[T]) String() string {
	var zero T
	return fmt.Sprintf("IntegerCodec[%T]", zero)
}
