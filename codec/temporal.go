package codec

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/pkg/errors"
)

const (
	timePattern     = `time in "[-]HH:MM:SS[.fraction]" format`
	dateTimePattern = `date in "YYYY-MM-DD[ HH:MM:SS[.fraction]]" format`
)

// timeParts is a TIME value. hours is unbounded: days are folded into it.
type timeParts struct {
	negative bool
	hours    int
	minutes  int
	seconds  int
	nanos    int
}

type dateTimeParts struct {
	year   int
	month  int
	day    int
	hour   int
	minute int
	second int
	nanos  int
}

func (p dateTimeParts) dateTime() civil.DateTime {
	return civil.DateTime{
		Date: civil.Date{Year: p.year, Month: time.Month(p.month), Day: p.day},
		Time: civil.Time{Hour: p.hour, Minute: p.minute, Second: p.second, Nanosecond: p.nanos},
	}
}

// extractNanos reads the fraction after the first '.' as exactly nine digits,
// padding missing digits with zeros and dropping extra ones.
func extractNanos(s string) int {
	index := strings.IndexByte(s, '.')

	if index == -1 {
		return 0
	}

	nanos := 0

	for i := index + 1; i < index+10; i++ {
		digit := 0

		if i < len(s) && s[i] >= '0' && s[i] <= '9' {
			digit = int(s[i] - '0')
		}

		nanos = nanos*10 + digit
	}

	return nanos
}

func atoiField(field string) (int, bool) {
	if field == "" {
		return 0, false
	}

	v, err := strconv.Atoi(field)

	return v, err == nil && v >= 0
}

func parseTimeText(buf []byte) (timeParts, error) {
	raw := string(buf)
	p := timeParts{}

	if strings.HasPrefix(raw, "-") {
		p.negative = true
		raw = raw[1:]
	}

	fields := strings.Split(raw, ":")

	if len(fields) != 3 || len(fields[2]) < 2 {
		return p, parseError(buf, timePattern, nil)
	}

	var ok1, ok2, ok3 bool

	p.hours, ok1 = atoiField(fields[0])
	p.minutes, ok2 = atoiField(fields[1])
	p.seconds, ok3 = atoiField(fields[2][:2])

	if !ok1 || !ok2 || !ok3 {
		return p, parseError(buf, timePattern, nil)
	}

	p.nanos = extractNanos(raw)

	return p, nil
}

// parseDateTimeText parses DATE, DATETIME and TIMESTAMP text values. ok is
// false for a zero day, which carries no value.
func parseDateTimeText(buf []byte) (p dateTimeParts, ok bool, err error) {
	raw := string(buf)
	datePart, timePart, hasTime := strings.Cut(raw, " ")
	dateFields := strings.Split(datePart, "-")

	if len(dateFields) != 3 {
		return p, false, parseError(buf, dateTimePattern, nil)
	}

	var ok1, ok2, ok3 bool

	p.year, ok1 = atoiField(dateFields[0])
	p.month, ok2 = atoiField(dateFields[1])
	p.day, ok3 = atoiField(dateFields[2])

	if !ok1 || !ok2 || !ok3 {
		return p, false, parseError(buf, dateTimePattern, nil)
	}

	if hasTime {
		t, err := parseTimeText([]byte(timePart))

		if err != nil || t.negative {
			return p, false, parseError(buf, dateTimePattern, nil)
		}

		p.hour, p.minute, p.second, p.nanos = t.hours, t.minutes, t.seconds, t.nanos
	}

	return p, p.day != 0, nil
}

// decodeBinaryTime reads a TIME payload of 0, 8 or 12 bytes.
func decodeBinaryTime(buf []byte) (timeParts, error) {
	p := timeParts{}

	switch len(buf) {
	case 0:
		return p, nil
	case 8, 12:
	default:
		return p, errors.Wrapf(ErrShortBuffer, "TIME value of %d bytes", len(buf))
	}

	p.negative = buf[0] == 0x01
	days := binary.LittleEndian.Uint32(buf[1:5])
	p.hours = int(days)*24 + int(buf[5])
	p.minutes = int(buf[6])
	p.seconds = int(buf[7])

	if len(buf) == 12 {
		p.nanos = int(binary.LittleEndian.Uint32(buf[8:12])) * 1000
	}

	return p, nil
}

// decodeBinaryDateTime reads a DATE, DATETIME or TIMESTAMP payload of 0, 4, 7
// or 11 bytes. ok is false for a zero day, which carries no value.
func decodeBinaryDateTime(buf []byte) (p dateTimeParts, ok bool, err error) {
	switch len(buf) {
	case 0:
		return p, false, nil
	case 4, 7, 11:
	default:
		return p, false, errors.Wrapf(ErrShortBuffer, "DATETIME value of %d bytes", len(buf))
	}

	p.year = int(binary.LittleEndian.Uint16(buf[0:2]))
	p.month = int(buf[2])
	p.day = int(buf[3])

	if len(buf) > 4 {
		p.hour = int(buf[4])
		p.minute = int(buf[5])
		p.second = int(buf[6])

		if len(buf) > 7 {
			p.nanos = int(binary.LittleEndian.Uint32(buf[7:11])) * 1000
		}
	}

	return p, p.day != 0, nil
}

// appendBinaryTime writes the length byte and TIME payload. The microsecond
// field is only written when non-zero.
func appendBinaryTime(dst []byte, negative bool, days uint32, hour, minute, second, micros int) []byte {
	if micros > 0 {
		dst = append(dst, 12)
	} else {
		dst = append(dst, 8)
	}

	if negative {
		dst = append(dst, 1)
	} else {
		dst = append(dst, 0)
	}

	dst = binary.LittleEndian.AppendUint32(dst, days)
	dst = append(dst, byte(hour), byte(minute), byte(second))

	if micros > 0 {
		dst = binary.LittleEndian.AppendUint32(dst, uint32(micros))
	}

	return dst
}

// appendBinaryDateTime writes the length byte and a 4, 7 or 11 byte payload.
func appendBinaryDateTime(dst []byte, dt civil.DateTime, withTime bool) []byte {
	micros := dt.Time.Nanosecond / 1000

	switch {
	case !withTime:
		dst = append(dst, 4)
	case micros > 0:
		dst = append(dst, 11)
	default:
		dst = append(dst, 7)
	}

	dst = binary.LittleEndian.AppendUint16(dst, uint16(dt.Date.Year))
	dst = append(dst, byte(dt.Date.Month), byte(dt.Date.Day))

	if !withTime {
		return dst
	}

	dst = append(dst, byte(dt.Time.Hour), byte(dt.Time.Minute), byte(dt.Time.Second))

	if micros > 0 {
		dst = binary.LittleEndian.AppendUint32(dst, uint32(micros))
	}

	return dst
}

func appendFraction(dst []byte, nanos int, digits int) []byte {
	if digits <= 0 {
		return dst
	}

	if digits > 9 {
		digits = 9
	}

	frac := fmt.Sprintf("%09d", nanos)

	return append(append(dst, '.'), frac[:digits]...)
}

// fractionDigits is the column's declared precision, or 6 when a value has
// sub-second precision and no column says otherwise.
func fractionDigits(column *ColumnDescriptor, nanos int) int {
	if column != nil && column.Decimals > 0 && column.Decimals <= 6 {
		return int(column.Decimals)
	}

	if nanos/1000 > 0 {
		return 6
	}

	return 0
}

func appendTimeText(dst []byte, p timeParts, digits int) []byte {
	if p.negative {
		dst = append(dst, '-')
	}

	dst = fmt.Appendf(dst, "%02d:%02d:%02d", p.hours, p.minutes, p.seconds)

	return appendFraction(dst, p.nanos, digits)
}

func appendDateText(dst []byte, d civil.Date) []byte {
	return fmt.Appendf(dst, "%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func appendDateTimeText(dst []byte, dt civil.DateTime, digits int) []byte {
	dst = appendDateText(dst, dt.Date)
	dst = fmt.Appendf(dst, " %02d:%02d:%02d", dt.Time.Hour, dt.Time.Minute, dt.Time.Second)

	return appendFraction(dst, dt.Time.Nanosecond, digits)
}

func formatBinaryTime(buf []byte, column *ColumnDescriptor) (string, error) {
	p, err := decodeBinaryTime(buf)

	if err != nil {
		return "", err
	}

	return string(appendTimeText(nil, p, fractionDigits(column, p.nanos))), nil
}

func formatBinaryDateTime(buf []byte, column *ColumnDescriptor) (string, error) {
	p, _, err := decodeBinaryDateTime(buf)

	if err != nil {
		return "", err
	}

	dt := p.dateTime()

	if column.DataType == Date || column.DataType == NewDate {
		return string(appendDateText(nil, dt.Date)), nil
	}

	return string(appendDateTimeText(nil, dt, fractionDigits(column, p.nanos))), nil
}
