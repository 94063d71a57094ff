package codec

import (
	"math/big"
	"reflect"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Codec converts one host value type to and from the text and binary wire
// encodings.
//
// Decoders receive the raw column value: for the binary protocol that is the
// fixed-width value, the length-encoded string content, or the payload that
// follows a temporal length byte. Encoders append the complete wire form of
// the value to dst and leave dst untouched on error.
type Codec interface {
	CanEncode(value any) bool
	CanDecode(column *ColumnDescriptor, target reflect.Type) bool
	DecodeText(buf []byte, column *ColumnDescriptor, target reflect.Type) (any, error)
	DecodeBinary(buf []byte, column *ColumnDescriptor, target reflect.Type) (any, error)
	EncodeText(dst []byte, value any) ([]byte, error)
	EncodeBinary(dst []byte, value any) ([]byte, error)

	// BinaryEncodeType is the type code sent in the execute parameter header.
	BinaryEncodeType() DataType
}

// UnsignedEncoder is implemented by codecs whose binary parameters must be
// flagged unsigned in the execute parameter header.
type UnsignedEncoder interface {
	EncodesUnsigned() bool
}

// Registry is an ordered codec list. The first codec that accepts a value or
// a (column, target) pair is used.
type Registry struct {
	codecs []Codec
}

func NewRegistry(codecs ...Codec) *Registry {
	return &Registry{codecs: codecs}
}

// Default uses UTC for time.Time values.
var Default = NewRegistry(DefaultCodecs(time.UTC)...)

// DefaultCodecs returns the built-in codecs in priority order. loc is the
// zone DATETIME and TIMESTAMP values are interpreted in when read into or
// written from time.Time.
func DefaultCodecs(loc *time.Location) []Codec {
	if loc == nil {
		loc = time.UTC
	}

	return []Codec{
		boolCodec{},
		newIntegerCodec[int8](TinyInt),
		newIntegerCodec[int16](SmallInt),
		newIntegerCodec[int32](Integer),
		newIntegerCodec[int64](BigInt),
		newIntegerCodec[int](BigInt),
		newIntegerCodec[uint8](TinyInt),
		newIntegerCodec[uint16](SmallInt),
		newIntegerCodec[uint32](Integer),
		newIntegerCodec[uint64](BigInt),
		newIntegerCodec[uint](BigInt),
		bigIntCodec{},
		decimalCodec{},
		floatCodec[float32]{encodeType: Float},
		floatCodec[float64]{encodeType: Double},
		durationCodec{},
		localTimeCodec{},
		dateCodec{},
		dateTimeCodec{},
		timeCodec{location: loc},
		bitsCodec{},
		stringCodec{},
		bytesCodec{},
	}
}

func (r *Registry) Codecs() []Codec {
	return r.codecs
}

// ForEncode returns the first codec that accepts value.
func (r *Registry) ForEncode(value any) (Codec, error) {
	for _, c := range r.codecs {
		if c.CanEncode(value) {
			return c, nil
		}
	}

	return nil, &UnsupportedTypeError{Value: value}
}

// ForDecode returns the first codec that can read column into target.
// Interface targets resolve to the column's default host type first.
func (r *Registry) ForDecode(column *ColumnDescriptor, target reflect.Type) (Codec, reflect.Type, error) {
	if target == nil || target.Kind() == reflect.Interface {
		target = DefaultType(column)
	}

	for _, c := range r.codecs {
		if c.CanDecode(column, target) {
			return c, target, nil
		}
	}

	return nil, target, &NoDecoderError{Target: target, Column: column}
}

// Decode reads one column value. A nil buf is SQL NULL and decodes to nil.
func (r *Registry) Decode(buf []byte, binary bool, column *ColumnDescriptor, target reflect.Type) (any, error) {
	c, target, err := r.ForDecode(column, target)

	if err != nil {
		return nil, err
	}

	if buf == nil {
		return nil, nil
	}

	if binary {
		return c.DecodeBinary(buf, column, target)
	}

	return c.DecodeText(buf, column, target)
}

// DecodeAs is Decode for a static target type. SQL NULL and zero dates yield
// the zero value of T.
func DecodeAs[T any](r *Registry, buf []byte, binary bool, column *ColumnDescriptor) (T, error) {
	var zero T

	v, err := r.Decode(buf, binary, column, reflect.TypeFor[T]())

	if err != nil || v == nil {
		return zero, err
	}

	t, ok := v.(T)

	if !ok {
		return zero, &NoDecoderError{Target: reflect.TypeFor[T](), Column: column}
	}

	return t, nil
}

// DefaultType is the host type a column decodes to when the caller does not
// ask for one.
func DefaultType(column *ColumnDescriptor) reflect.Type {
	switch t := column.DataType; {
	case t == BigInt && !column.Signed():
		return reflect.TypeFor[*big.Int]()
	case t.isInteger():
		return reflect.TypeFor[int64]()
	case t == Float:
		return reflect.TypeFor[float32]()
	case t == Double:
		return reflect.TypeFor[float64]()
	case t.isDecimal():
		return reflect.TypeFor[decimal.Decimal]()
	case t == Date || t == NewDate:
		return reflect.TypeFor[civil.Date]()
	case t == DateTime || t == Timestamp:
		return reflect.TypeFor[civil.DateTime]()
	case t == Time:
		return reflect.TypeFor[time.Duration]()
	case t == Bit:
		return reflect.TypeFor[Bits]()
	case t.isBlob() || t == VarString || t == String:
		if column.Binary() {
			return reflect.TypeFor[[]byte]()
		}
	}

	return reflect.TypeFor[string]()
}

func isType[T any](target reflect.Type) bool {
	return target == reflect.TypeFor[T]()
}
