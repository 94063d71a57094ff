package mariadb_test

import (
	"reflect"
	"testing"

	"github.com/litebase/mariadb-go"
	"github.com/litebase/mariadb-go/codec"
	"github.com/pkg/errors"
)

func TestServerErrorClassification(t *testing.T) {
	syntax := errors.Wrap(&mariadb.ServerError{Code: 1064, SQLState: "42000", Message: "syntax"}, "executing")

	if !mariadb.IsBadGrammar(syntax) {
		t.Fatal("Expected SQLSTATE 42000 to be bad grammar")
	}

	if mariadb.IsDataTruncation(syntax) || mariadb.IsStatementNotFound(syntax) {
		t.Fatal("Expected a syntax error to match nothing else")
	}

	tooLong := &mariadb.ServerError{Code: 1406, SQLState: "22001", Message: "Data too long"}

	if !mariadb.IsDataTruncation(tooLong) {
		t.Fatal("Expected SQLSTATE 22001 to be a data truncation")
	}

	if mariadb.IsTransient(tooLong) {
		t.Fatal("Expected a server error not to be transient")
	}
}

func TestDecodeErrorsAreTransient(t *testing.T) {
	column := &codec.ColumnDescriptor{Name: "id", DataType: codec.BigInt, Flags: 32}

	_, err := codec.Default.Decode([]byte("1"), false, column, reflect.TypeFor[bool]())

	if err != nil {
		t.Fatal(err)
	}

	_, err = codec.Default.Decode([]byte("1"), false, column, reflect.TypeFor[int64]())

	if err == nil {
		t.Fatal("Expected int64 to reject an unsigned BIGINT column")
	}

	if !mariadb.IsTransient(errors.Wrap(err, "column id")) {
		t.Fatalf("Expected %v to be transient", err)
	}
}
