package codec

import (
	"encoding/binary"
	"fmt"
	"math"
	"reflect"
	"strconv"

	"github.com/pkg/errors"
)

type floatCodec[T float32 | float64] struct {
	encodeType DataType
}

func (c floatCodec[T]) bitSize() int {
	if c.encodeType == Float {
		return 32
	}

	return 64
}

func (c floatCodec[T]) CanEncode(value any) bool {
	_, ok := value.(T)
	return ok
}

func (c floatCodec[T]) CanDecode(column *ColumnDescriptor, target reflect.Type) bool {
	return isType[T](target) && numericColumn(column.DataType)
}

func (c floatCodec[T]) DecodeText(buf []byte, column *ColumnDescriptor, _ reflect.Type) (any, error) {
	f, err := readFloat(buf, column, false)

	if err != nil {
		return nil, err
	}

	return T(f), nil
}

func (c floatCodec[T]) DecodeBinary(buf []byte, column *ColumnDescriptor, _ reflect.Type) (any, error) {
	f, err := readFloat(buf, column, true)

	if err != nil {
		return nil, err
	}

	return T(f), nil
}

func (c floatCodec[T]) EncodeText(dst []byte, value any) ([]byte, error) {
	f := float64(value.(T))

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return dst, errors.Errorf("%v cannot be sent as a SQL number", f)
	}

	return strconv.AppendFloat(dst, f, 'g', -1, c.bitSize()), nil
}

func (c floatCodec[T]) EncodeBinary(dst []byte, value any) ([]byte, error) {
	if c.encodeType == Float {
		return binary.LittleEndian.AppendUint32(dst, math.Float32bits(float32(value.(T)))), nil
	}

	return binary.LittleEndian.AppendUint64(dst, math.Float64bits(float64(value.(T)))), nil
}

func (c floatCodec[T]) BinaryEncodeType() DataType {
	return c.encodeType
}

func (c floatCodec[T]) String() string {
	var zero T
	return fmt.Sprintf("FloatCodec[%T]", zero)
}
