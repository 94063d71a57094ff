package codec

import (
	"math"
	"reflect"
	"time"

	"cloud.google.com/go/civil"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

var timeCompatibleTypes = []DataType{Time, DateTime, Timestamp}

func durationOf(p timeParts) time.Duration {
	d := time.Duration(p.hours)*time.Hour +
		time.Duration(p.minutes)*time.Minute +
		time.Duration(p.seconds)*time.Second +
		time.Duration(p.nanos)

	if p.negative {
		return -d
	}

	return d
}

// durationSinceMonthStart turns a DATETIME into a duration counting the day
// of month from zero.
func durationSinceMonthStart(p dateTimeParts) time.Duration {
	return time.Duration(p.day-1)*24*time.Hour +
		time.Duration(p.hour)*time.Hour +
		time.Duration(p.minute)*time.Minute +
		time.Duration(p.second)*time.Second +
		time.Duration(p.nanos)
}

func splitDuration(d time.Duration) timeParts {
	p := timeParts{}

	if d < 0 {
		p.negative = true
		d = -d
	}

	p.hours = int(d / time.Hour)
	d -= time.Duration(p.hours) * time.Hour
	p.minutes = int(d / time.Minute)
	d -= time.Duration(p.minutes) * time.Minute
	p.seconds = int(d / time.Second)
	p.nanos = int(d - time.Duration(p.seconds)*time.Second)

	return p
}

type durationCodec struct{}

func (durationCodec) CanEncode(value any) bool {
	_, ok := value.(time.Duration)
	return ok
}

func (durationCodec) CanDecode(column *ColumnDescriptor, target reflect.Type) bool {
	return isType[time.Duration](target) && slices.Contains(timeCompatibleTypes, column.DataType)
}

func (durationCodec) DecodeText(buf []byte, column *ColumnDescriptor, _ reflect.Type) (any, error) {
	if column.DataType == Time {
		p, err := parseTimeText(buf)

		if err != nil {
			return nil, err
		}

		return durationOf(p), nil
	}

	p, ok, err := parseDateTimeText(buf)

	if err != nil || !ok {
		return nil, err
	}

	return durationSinceMonthStart(p), nil
}

func (durationCodec) DecodeBinary(buf []byte, column *ColumnDescriptor, _ reflect.Type) (any, error) {
	if column.DataType == Time {
		p, err := decodeBinaryTime(buf)

		if err != nil {
			return nil, err
		}

		return durationOf(p), nil
	}

	p, ok, err := decodeBinaryDateTime(buf)

	if err != nil || !ok {
		return nil, err
	}

	return durationSinceMonthStart(p), nil
}

func (durationCodec) EncodeText(dst []byte, value any) ([]byte, error) {
	d := value.(time.Duration)

	if d == math.MinInt64 {
		return dst, errors.Wrapf(ErrOutOfRange, "duration %s", d)
	}

	p := splitDuration(d)

	dst = append(dst, '\'')
	dst = appendTimeText(dst, p, fractionDigits(nil, p.nanos))

	return append(dst, '\''), nil
}

func (durationCodec) EncodeBinary(dst []byte, value any) ([]byte, error) {
	d := value.(time.Duration)

	if d == math.MinInt64 {
		return dst, errors.Wrapf(ErrOutOfRange, "duration %s", d)
	}

	p := splitDuration(d)
	days := p.hours / 24

	return appendBinaryTime(dst, p.negative, uint32(days), p.hours-days*24, p.minutes, p.seconds, p.nanos/1000), nil
}

func (durationCodec) BinaryEncodeType() DataType {
	return Time
}

func (durationCodec) String() string {
	return "DurationCodec"
}

// localTimeCodec reads the time-of-day part of TIME and DATETIME columns.
type localTimeCodec struct{}

func (localTimeCodec) CanEncode(value any) bool {
	_, ok := value.(civil.Time)
	return ok
}

func (localTimeCodec) CanDecode(column *ColumnDescriptor, target reflect.Type) bool {
	return isType[civil.Time](target) && slices.Contains(timeCompatibleTypes, column.DataType)
}

func (localTimeCodec) DecodeText(buf []byte, column *ColumnDescriptor, _ reflect.Type) (any, error) {
	if column.DataType == Time {
		p, err := parseTimeText(buf)

		if err != nil {
			return nil, err
		}

		return civil.Time{Hour: p.hours % 24, Minute: p.minutes, Second: p.seconds, Nanosecond: p.nanos}, nil
	}

	p, ok, err := parseDateTimeText(buf)

	if err != nil || (!ok && p == dateTimeParts{}) {
		return nil, err
	}

	return p.dateTime().Time, nil
}

func (localTimeCodec) DecodeBinary(buf []byte, column *ColumnDescriptor, _ reflect.Type) (any, error) {
	if column.DataType == Time {
		p, err := decodeBinaryTime(buf)

		if err != nil {
			return nil, err
		}

		return civil.Time{Hour: p.hours % 24, Minute: p.minutes, Second: p.seconds, Nanosecond: p.nanos}, nil
	}

	p, ok, err := decodeBinaryDateTime(buf)

	if err != nil || (!ok && p == dateTimeParts{}) {
		return nil, err
	}

	return p.dateTime().Time, nil
}

func (localTimeCodec) EncodeText(dst []byte, value any) ([]byte, error) {
	t := value.(civil.Time)

	if !t.IsValid() {
		return dst, errors.Errorf("invalid time of day %s", t)
	}

	p := timeParts{hours: t.Hour, minutes: t.Minute, seconds: t.Second, nanos: t.Nanosecond}

	dst = append(dst, '\'')
	dst = appendTimeText(dst, p, fractionDigits(nil, p.nanos))

	return append(dst, '\''), nil
}

func (localTimeCodec) EncodeBinary(dst []byte, value any) ([]byte, error) {
	t := value.(civil.Time)

	if !t.IsValid() {
		return dst, errors.Errorf("invalid time of day %s", t)
	}

	return appendBinaryTime(dst, false, 0, t.Hour, t.Minute, t.Second, t.Nanosecond/1000), nil
}

func (localTimeCodec) BinaryEncodeType() DataType {
	return Time
}

func (localTimeCodec) String() string {
	return "LocalTimeCodec"
}
