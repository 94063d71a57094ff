package mariadb_test

import (
	"testing"

	"github.com/litebase/mariadb-go"
	"github.com/pkg/errors"
)

func TestBindingsRejectsIndexOutOfRange(t *testing.T) {
	bindings := mariadb.NewBindings(2, nil)

	for _, index := range []int{-1, 2} {
		err := bindings.Bind(index, "x")

		var outOfRange *mariadb.IndexOutOfRangeError

		if !errors.As(err, &outOfRange) {
			t.Fatalf("Expected IndexOutOfRangeError for %d, got %v", index, err)
		}

		if outOfRange.Count != 2 {
			t.Fatalf("Expected the error to report 2 parameters, got %d", outOfRange.Count)
		}
	}
}

func TestBindingsRejectsUnsupportedValues(t *testing.T) {
	bindings := mariadb.NewBindings(1, nil)

	err := bindings.Bind(0, struct{}{})

	var unsupported *mariadb.UnsupportedTypeError

	if !errors.As(err, &unsupported) {
		t.Fatalf("Expected UnsupportedTypeError, got %v", err)
	}
}

func TestBindingsRejectsNames(t *testing.T) {
	bindings := mariadb.NewBindings(1, nil)

	if err := bindings.BindName("id", 1); !errors.Is(err, mariadb.ErrNamedParameterUnsupported) {
		t.Fatalf("Expected ErrNamedParameterUnsupported, got %v", err)
	}
}

func TestBindingsAddValidatesCurrentSet(t *testing.T) {
	bindings := mariadb.NewBindings(2, nil)

	if err := bindings.Bind(1, int64(1)); err != nil {
		t.Fatal(err)
	}

	err := bindings.Add()

	var missing *mariadb.MissingParameterError

	if !errors.As(err, &missing) || missing.Index != 0 {
		t.Fatalf("Expected a missing parameter at index 0, got %v", err)
	}

	if err := bindings.BindNull(0, nil); err != nil {
		t.Fatal(err)
	}

	if err := bindings.Add(); err != nil {
		t.Fatal(err)
	}

	if bindings.Len() != 1 {
		t.Fatalf("Expected 1 set, got %d", bindings.Len())
	}

	// A new set starts empty
	if err := bindings.Add(); err == nil {
		t.Fatal("Expected the empty set to fail validation")
	}

	bindings.Clear()

	if bindings.Len() != 0 {
		t.Fatalf("Expected Clear to drop every set, got %d", bindings.Len())
	}
}

func TestCountPlaceholders(t *testing.T) {
	cases := map[string]int{
		"SELECT 1":                                  0,
		"SELECT ?, ?":                               2,
		"SELECT '?', \"?\", `?`, ?":                 1,
		"SELECT 'it''s ?', ?":                       1,
		"SELECT 'a\\'?', ?":                         1,
		"SELECT ? -- where ?\n, ?":                  2,
		"SELECT ? # comment ?\n":                    1,
		"SELECT /* ? */ ?":                          1,
		"UPDATE t SET a = ? WHERE b = ? AND c = ?": 3,
	}

	for sql, expected := range cases {
		if n := mariadb.CountPlaceholders(sql); n != expected {
			t.Fatalf("Expected %d placeholders in %q, got %d", expected, sql, n)
		}
	}
}
