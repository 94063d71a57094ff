package codec

import (
	"reflect"
	"time"

	"cloud.google.com/go/civil"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

var dateCompatibleTypes = []DataType{Date, NewDate, DateTime, Timestamp}

func readDateTime(buf []byte, binaryProtocol bool) (civil.DateTime, bool, error) {
	var (
		p   dateTimeParts
		ok  bool
		err error
	)

	if binaryProtocol {
		p, ok, err = decodeBinaryDateTime(buf)
	} else {
		p, ok, err = parseDateTimeText(buf)
	}

	if err != nil || !ok {
		return civil.DateTime{}, false, err
	}

	return p.dateTime(), true, nil
}

type dateCodec struct{}

func (dateCodec) CanEncode(value any) bool {
	_, ok := value.(civil.Date)
	return ok
}

func (dateCodec) CanDecode(column *ColumnDescriptor, target reflect.Type) bool {
	return isType[civil.Date](target) && slices.Contains(dateCompatibleTypes, column.DataType)
}

func (dateCodec) DecodeText(buf []byte, _ *ColumnDescriptor, _ reflect.Type) (any, error) {
	dt, ok, err := readDateTime(buf, false)

	if err != nil || !ok {
		return nil, err
	}

	return dt.Date, nil
}

func (dateCodec) DecodeBinary(buf []byte, _ *ColumnDescriptor, _ reflect.Type) (any, error) {
	dt, ok, err := readDateTime(buf, true)

	if err != nil || !ok {
		return nil, err
	}

	return dt.Date, nil
}

func (dateCodec) EncodeText(dst []byte, value any) ([]byte, error) {
	d := value.(civil.Date)

	if !d.IsValid() {
		return dst, errors.Errorf("invalid date %s", d)
	}

	dst = append(dst, '\'')
	dst = appendDateText(dst, d)

	return append(dst, '\''), nil
}

func (dateCodec) EncodeBinary(dst []byte, value any) ([]byte, error) {
	d := value.(civil.Date)

	if !d.IsValid() {
		return dst, errors.Errorf("invalid date %s", d)
	}

	return appendBinaryDateTime(dst, civil.DateTime{Date: d}, false), nil
}

func (dateCodec) BinaryEncodeType() DataType {
	return Date
}

func (dateCodec) String() string {
	return "LocalDateCodec"
}

type dateTimeCodec struct{}

func (dateTimeCodec) CanEncode(value any) bool {
	_, ok := value.(civil.DateTime)
	return ok
}

func (dateTimeCodec) CanDecode(column *ColumnDescriptor, target reflect.Type) bool {
	return isType[civil.DateTime](target) && slices.Contains(dateCompatibleTypes, column.DataType)
}

func (dateTimeCodec) DecodeText(buf []byte, _ *ColumnDescriptor, _ reflect.Type) (any, error) {
	dt, ok, err := readDateTime(buf, false)

	if err != nil || !ok {
		return nil, err
	}

	return dt, nil
}

func (dateTimeCodec) DecodeBinary(buf []byte, _ *ColumnDescriptor, _ reflect.Type) (any, error) {
	dt, ok, err := readDateTime(buf, true)

	if err != nil || !ok {
		return nil, err
	}

	return dt, nil
}

func (dateTimeCodec) EncodeText(dst []byte, value any) ([]byte, error) {
	dt := value.(civil.DateTime)

	if !dt.IsValid() {
		return dst, errors.Errorf("invalid datetime %s", dt)
	}

	dst = append(dst, '\'')
	dst = appendDateTimeText(dst, dt, fractionDigits(nil, dt.Time.Nanosecond))

	return append(dst, '\''), nil
}

func (dateTimeCodec) EncodeBinary(dst []byte, value any) ([]byte, error) {
	dt := value.(civil.DateTime)

	if !dt.IsValid() {
		return dst, errors.Errorf("invalid datetime %s", dt)
	}

	return appendBinaryDateTime(dst, dt, true), nil
}

func (dateTimeCodec) BinaryEncodeType() DataType {
	return DateTime
}

func (dateTimeCodec) String() string {
	return "LocalDateTimeCodec"
}

// timeCodec maps time.Time to DATETIME values read and written in location.
type timeCodec struct {
	location *time.Location
}

func (timeCodec) CanEncode(value any) bool {
	_, ok := value.(time.Time)
	return ok
}

func (timeCodec) CanDecode(column *ColumnDescriptor, target reflect.Type) bool {
	return isType[time.Time](target) && slices.Contains(dateCompatibleTypes, column.DataType)
}

func (c timeCodec) decode(buf []byte, binaryProtocol bool) (any, error) {
	dt, ok, err := readDateTime(buf, binaryProtocol)

	if err != nil || !ok {
		return nil, err
	}

	return dt.In(c.location), nil
}

func (c timeCodec) DecodeText(buf []byte, _ *ColumnDescriptor, _ reflect.Type) (any, error) {
	return c.decode(buf, false)
}

func (c timeCodec) DecodeBinary(buf []byte, _ *ColumnDescriptor, _ reflect.Type) (any, error) {
	return c.decode(buf, true)
}

func (c timeCodec) EncodeText(dst []byte, value any) ([]byte, error) {
	return dateTimeCodec{}.EncodeText(dst, civil.DateTimeOf(value.(time.Time).In(c.location)))
}

func (c timeCodec) EncodeBinary(dst []byte, value any) ([]byte, error) {
	return dateTimeCodec{}.EncodeBinary(dst, civil.DateTimeOf(value.(time.Time).In(c.location)))
}

func (timeCodec) BinaryEncodeType() DataType {
	return DateTime
}

func (timeCodec) String() string {
	return "TimeCodec"
}
