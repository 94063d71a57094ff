package codec

import (
	"encoding/binary"
	"math"
	"math/big"
	"strconv"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/exp/constraints"
)

// wholeNumber is an integer column value. Values of unsigned columns keep
// their magnitude in u so BIGINT UNSIGNED never wraps.
type wholeNumber struct {
	i        int64
	u        uint64
	unsigned bool
}

func (n wholeNumber) isZero() bool {
	if n.unsigned {
		return n.u == 0
	}

	return n.i == 0
}

func (n wholeNumber) bigInt() *big.Int {
	if n.unsigned {
		return new(big.Int).SetUint64(n.u)
	}

	return big.NewInt(n.i)
}

func (n wholeNumber) String() string {
	if n.unsigned {
		return strconv.FormatUint(n.u, 10)
	}

	return strconv.FormatInt(n.i, 10)
}

// binaryWidth is the size of a fixed-width binary value of the type, or 0.
func binaryWidth(t DataType) int {
	switch t {
	case TinyInt:
		return 1
	case SmallInt, Year:
		return 2
	case MediumInt, Integer, Float:
		return 4
	case BigInt, Double:
		return 8
	}

	return 0
}

func readWholeNumber(buf []byte, column *ColumnDescriptor, binaryProtocol bool) (wholeNumber, error) {
	if column.DataType == Bit {
		return wholeNumber{u: ParseBit(buf), unsigned: true}, nil
	}

	unsigned := !column.Signed() || column.DataType == Year

	if !binaryProtocol {
		if unsigned {
			u, err := strconv.ParseUint(string(buf), 10, 64)

			if err != nil {
				return wholeNumber{}, parseError(buf, "unsigned integer", err)
			}

			return wholeNumber{u: u, unsigned: true}, nil
		}

		i, err := strconv.ParseInt(string(buf), 10, 64)

		if err != nil {
			return wholeNumber{}, parseError(buf, "integer", err)
		}

		return wholeNumber{i: i}, nil
	}

	width := binaryWidth(column.DataType)

	if width == 0 || len(buf) < width {
		return wholeNumber{}, errors.Wrapf(ErrShortBuffer, "%s value of %d bytes", column.DataType, len(buf))
	}

	var u uint64
	var i int64

	switch width {
	case 1:
		u, i = uint64(buf[0]), int64(int8(buf[0]))
	case 2:
		v := binary.LittleEndian.Uint16(buf)
		u, i = uint64(v), int64(int16(v))
	case 4:
		v := binary.LittleEndian.Uint32(buf)
		u, i = uint64(v), int64(int32(v))
	default:
		u = binary.LittleEndian.Uint64(buf)
		i = int64(u)
	}

	if unsigned {
		return wholeNumber{u: u, unsigned: true}, nil
	}

	return wholeNumber{i: i}, nil
}

// toInteger narrows n to T, failing instead of wrapping.
func toInteger[T constraints.Integer](n wholeNumber) (T, error) {
	var zero T
	unsignedTarget := zero-1 > 0

	if n.unsigned {
		t := T(n.u)

		if uint64(t) != n.u || t < 0 {
			return zero, errors.Wrapf(ErrOutOfRange, "%d does not fit %T", n.u, zero)
		}

		return t, nil
	}

	t := T(n.i)

	if (unsignedTarget && n.i < 0) || int64(t) != n.i {
		return zero, errors.Wrapf(ErrOutOfRange, "%d does not fit %T", n.i, zero)
	}

	return t, nil
}

func readFloat(buf []byte, column *ColumnDescriptor, binaryProtocol bool) (float64, error) {
	switch {
	case binaryProtocol && column.DataType == Float:
		if len(buf) < 4 {
			return 0, errors.Wrap(ErrShortBuffer, "FLOAT value")
		}

		return float64(math.Float32frombits(binary.LittleEndian.Uint32(buf))), nil
	case binaryProtocol && column.DataType == Double:
		if len(buf) < 8 {
			return 0, errors.Wrap(ErrShortBuffer, "DOUBLE value")
		}

		return math.Float64frombits(binary.LittleEndian.Uint64(buf)), nil
	case column.DataType.isInteger() || column.DataType == Bit:
		n, err := readWholeNumber(buf, column, binaryProtocol)

		if err != nil {
			return 0, err
		}

		if n.unsigned {
			return float64(n.u), nil
		}

		return float64(n.i), nil
	}

	f, err := strconv.ParseFloat(string(buf), 64)

	if err != nil {
		return 0, parseError(buf, "number", err)
	}

	return f, nil
}

func readDecimal(buf []byte, column *ColumnDescriptor, binaryProtocol bool) (decimal.Decimal, error) {
	switch t := column.DataType; {
	case t.isInteger() || t == Bit:
		n, err := readWholeNumber(buf, column, binaryProtocol)

		if err != nil {
			return decimal.Decimal{}, err
		}

		return decimal.NewFromBigInt(n.bigInt(), 0), nil
	case t.isFloat() && binaryProtocol:
		f, err := readFloat(buf, column, binaryProtocol)

		if err != nil {
			return decimal.Decimal{}, err
		}

		if t == Float {
			return decimal.NewFromFloat32(float32(f)), nil
		}

		return decimal.NewFromFloat(f), nil
	}

	d, err := decimal.NewFromString(string(buf))

	if err != nil {
		return decimal.Decimal{}, parseError(buf, "decimal", err)
	}

	return d, nil
}

// readInteger reads any numeric column as a whole number; fractional values
// are rejected.
func readInteger(buf []byte, column *ColumnDescriptor, binaryProtocol bool) (wholeNumber, error) {
	if column.DataType.isInteger() || column.DataType == Bit {
		return readWholeNumber(buf, column, binaryProtocol)
	}

	d, err := readDecimal(buf, column, binaryProtocol)

	if err != nil {
		return wholeNumber{}, err
	}

	if !d.IsInteger() {
		return wholeNumber{}, parseError(buf, "integer", nil)
	}

	b := d.BigInt()

	if b.IsInt64() {
		return wholeNumber{i: b.Int64()}, nil
	}

	if b.IsUint64() {
		return wholeNumber{u: b.Uint64(), unsigned: true}, nil
	}

	return wholeNumber{}, errors.Wrapf(ErrOutOfRange, "%s exceeds 64 bits", d)
}

// ParseBit reads a BIT column value, most significant byte first.
func ParseBit(buf []byte) uint64 {
	var v uint64

	for _, b := range buf {
		v = v<<8 | uint64(b)
	}

	return v
}

// PackBits renders v as the fixed-width, most significant byte first vector
// a BIT(bitLength) column stores.
func PackBits(v uint64, bitLength int) Bits {
	n := (bitLength + 7) / 8

	if n == 0 {
		n = 1
	}

	out := make(Bits, n)

	for i := n - 1; i >= 0; i-- {
		out[i] = byte(v)
		v >>= 8
	}

	return out
}

func appendLittleEndian(dst []byte, v uint64, width int) []byte {
	for i := 0; i < width; i++ {
		dst = append(dst, byte(v>>(8*i)))
	}

	return dst
}
