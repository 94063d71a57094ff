package codec

import (
	"reflect"

	"golang.org/x/exp/slices"
)

var boolCompatibleTypes = []DataType{
	VarChar,
	VarString,
	String,
	BigInt,
	Integer,
	MediumInt,
	SmallInt,
	TinyInt,
	Year,
	Bit,
}

type boolCodec struct{}

func (boolCodec) CanEncode(value any) bool {
	_, ok := value.(bool)
	return ok
}

func (boolCodec) CanDecode(column *ColumnDescriptor, target reflect.Type) bool {
	return isType[bool](target) && slices.Contains(boolCompatibleTypes, column.DataType)
}

// DecodeText is false only for a numeric zero or the exact text "0".
func (boolCodec) DecodeText(buf []byte, column *ColumnDescriptor, _ reflect.Type) (any, error) {
	switch column.DataType {
	case Bit:
		return ParseBit(buf) != 0, nil
	case VarChar, VarString, String:
		return string(buf) != "0", nil
	}

	n, err := readWholeNumber(buf, column, false)

	if err != nil {
		return nil, err
	}

	return !n.isZero(), nil
}

func (boolCodec) DecodeBinary(buf []byte, column *ColumnDescriptor, _ reflect.Type) (any, error) {
	switch column.DataType {
	case Bit:
		return ParseBit(buf) != 0, nil
	case VarChar, VarString, String:
		return string(buf) != "0", nil
	}

	n, err := readWholeNumber(buf, column, true)

	if err != nil {
		return nil, err
	}

	return !n.isZero(), nil
}

func (boolCodec) EncodeText(dst []byte, value any) ([]byte, error) {
	if value.(bool) {
		return append(dst, '1'), nil
	}

	return append(dst, '0'), nil
}

func (boolCodec) EncodeBinary(dst []byte, value any) ([]byte, error) {
	if value.(bool) {
		return append(dst, 1), nil
	}

	return append(dst, 0), nil
}

func (boolCodec) BinaryEncodeType() DataType {
	return TinyInt
}

func (boolCodec) String() string {
	return "BooleanCodec"
}
