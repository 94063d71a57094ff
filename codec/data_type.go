package codec

import (
	"fmt"

	"github.com/go-mysql-org/go-mysql/mysql"
	"github.com/pkg/errors"
)

// DataType is a column type as it appears on the wire.
type DataType int

const (
	OldDecimal DataType = iota
	TinyInt
	SmallInt
	Integer
	Float
	Double
	Null
	Timestamp
	BigInt
	MediumInt
	Date
	Time
	DateTime
	Year
	NewDate
	VarChar
	Bit
	JSON
	Decimal
	Enum
	Set
	TinyBlob
	MediumBlob
	LongBlob
	Blob
	VarString
	String
	Geometry
)

var dataTypes = []struct {
	name string
	code byte
}{
	OldDecimal: {"OLDDECIMAL", mysql.MYSQL_TYPE_DECIMAL},
	TinyInt:    {"TINYINT", mysql.MYSQL_TYPE_TINY},
	SmallInt:   {"SMALLINT", mysql.MYSQL_TYPE_SHORT},
	Integer:    {"INTEGER", mysql.MYSQL_TYPE_LONG},
	Float:      {"FLOAT", mysql.MYSQL_TYPE_FLOAT},
	Double:     {"DOUBLE", mysql.MYSQL_TYPE_DOUBLE},
	Null:       {"NULL", mysql.MYSQL_TYPE_NULL},
	Timestamp:  {"TIMESTAMP", mysql.MYSQL_TYPE_TIMESTAMP},
	BigInt:     {"BIGINT", mysql.MYSQL_TYPE_LONGLONG},
	MediumInt:  {"MEDIUMINT", mysql.MYSQL_TYPE_INT24},
	Date:       {"DATE", mysql.MYSQL_TYPE_DATE},
	Time:       {"TIME", mysql.MYSQL_TYPE_TIME},
	DateTime:   {"DATETIME", mysql.MYSQL_TYPE_DATETIME},
	Year:       {"YEAR", mysql.MYSQL_TYPE_YEAR},
	NewDate:    {"NEWDATE", mysql.MYSQL_TYPE_NEWDATE},
	VarChar:    {"VARCHAR", mysql.MYSQL_TYPE_VARCHAR},
	Bit:        {"BIT", mysql.MYSQL_TYPE_BIT},
	JSON:       {"JSON", mysql.MYSQL_TYPE_JSON},
	Decimal:    {"DECIMAL", mysql.MYSQL_TYPE_NEWDECIMAL},
	Enum:       {"ENUM", mysql.MYSQL_TYPE_ENUM},
	Set:        {"SET", mysql.MYSQL_TYPE_SET},
	TinyBlob:   {"TINYBLOB", mysql.MYSQL_TYPE_TINY_BLOB},
	MediumBlob: {"MEDIUMBLOB", mysql.MYSQL_TYPE_MEDIUM_BLOB},
	LongBlob:   {"LONGBLOB", mysql.MYSQL_TYPE_LONG_BLOB},
	Blob:       {"BLOB", mysql.MYSQL_TYPE_BLOB},
	VarString:  {"VARSTRING", mysql.MYSQL_TYPE_VAR_STRING},
	String:     {"STRING", mysql.MYSQL_TYPE_STRING},
	Geometry:   {"GEOMETRY", mysql.MYSQL_TYPE_GEOMETRY},
}

var dataTypesByCode = func() map[byte]DataType {
	m := make(map[byte]DataType, len(dataTypes))

	for t, entry := range dataTypes {
		m[entry.code] = DataType(t)
	}

	return m
}()

// DataTypeFromCode maps a wire type code to its DataType.
func DataTypeFromCode(code byte) (DataType, error) {
	t, ok := dataTypesByCode[code]

	if !ok {
		return 0, errors.Errorf("unknown column type code 0x%02x", code)
	}

	return t, nil
}

// Code returns the wire type code.
func (t DataType) Code() byte {
	return dataTypes[t].code
}

func (t DataType) String() string {
	if t < 0 || int(t) >= len(dataTypes) {
		return fmt.Sprintf("DataType(%d)", int(t))
	}

	return dataTypes[t].name
}

func (t DataType) isInteger() bool {
	switch t {
	case TinyInt, SmallInt, MediumInt, Integer, BigInt, Year:
		return true
	}

	return false
}

func (t DataType) isDecimal() bool {
	return t == Decimal || t == OldDecimal
}

func (t DataType) isFloat() bool {
	return t == Float || t == Double
}

func (t DataType) isText() bool {
	switch t {
	case VarChar, VarString, String, Enum, Set, JSON:
		return true
	}

	return false
}

func (t DataType) isBlob() bool {
	switch t {
	case TinyBlob, MediumBlob, LongBlob, Blob, Geometry:
		return true
	}

	return false
}

func (t DataType) isDateLike() bool {
	switch t {
	case Date, NewDate, DateTime, Timestamp:
		return true
	}

	return false
}

// isTemporal reports whether binary values of the type are length-byte prefixed.
func (t DataType) isTemporal() bool {
	return t == Time || t.isDateLike()
}
