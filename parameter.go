package mariadb

import (
	"database/sql/driver"

	"github.com/litebase/mariadb-go/codec"
)

// Parameter is a bound value together with the codec that encodes it.
type Parameter struct {
	codec codec.Codec
	value any
	null  bool
}

// NullParameter is an explicit SQL NULL.
var NullParameter = Parameter{null: true}

func NewParameter(registry *codec.Registry, value any) (Parameter, error) {
	if value == nil {
		return NullParameter, nil
	}

	c, err := registry.ForEncode(value)

	if err != nil {
		return Parameter{}, err
	}

	return Parameter{codec: c, value: value}, nil
}

func (p Parameter) IsNull() bool {
	return p.null
}

func (p Parameter) Value() any {
	return p.value
}

func (p Parameter) isSet() bool {
	return p.null || p.codec != nil
}

// binaryType is the (type, flag) pair of the execute parameter header.
func (p Parameter) binaryType() (byte, byte) {
	if p.null {
		return codec.Null.Code(), 0
	}

	var flag byte

	if u, ok := p.codec.(codec.UnsignedEncoder); ok && u.EncodesUnsigned() {
		flag = unsignedParamFlag
	}

	return p.codec.BinaryEncodeType().Code(), flag
}

func (p Parameter) encodeBinary(dst []byte) ([]byte, error) {
	if p.null {
		return dst, nil
	}

	return p.codec.EncodeBinary(dst, p.value)
}

func (p Parameter) encodeText(dst []byte) ([]byte, error) {
	if p.null {
		return append(dst, "NULL"...), nil
	}

	return p.codec.EncodeText(dst, p.value)
}

// bindNamedValues binds database/sql arguments by ordinal.
func bindNamedValues(bindings *Bindings, args []driver.NamedValue) error {
	for _, arg := range args {
		if arg.Name != "" {
			return ErrNamedParameterUnsupported
		}

		if err := bindings.Bind(arg.Ordinal-1, arg.Value); err != nil {
			return err
		}
	}

	return nil
}

func namedValues(args []driver.Value) []driver.NamedValue {
	named := make([]driver.NamedValue, len(args))

	for i, arg := range args {
		named[i] = driver.NamedValue{Ordinal: i + 1, Value: arg}
	}

	return named
}
