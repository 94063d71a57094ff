package codec_test

import (
	"bytes"
	"testing"

	"github.com/litebase/mariadb-go/codec"
)

func TestSplitBinaryRow(t *testing.T) {
	columns := []*codec.ColumnDescriptor{
		{Name: "id", DataType: codec.Integer},
		{Name: "name", DataType: codec.VarString},
		{Name: "created_at", DataType: codec.DateTime},
		{Name: "note", DataType: codec.Blob},
	}

	row := []byte{
		0x00,
		0x08,
		0x07, 0x00, 0x00, 0x00,
		0x04, 0xe8, 0x07, 0x03, 0x0f,
		0x02, 'h', 'i',
	}

	values, err := codec.SplitBinaryRow(row, columns)

	if err != nil {
		t.Fatal(err)
	}

	if len(values) != 4 {
		t.Fatalf("Expected 4 values, got %d", len(values))
	}

	if !bytes.Equal(values[0], []byte{7, 0, 0, 0}) {
		t.Fatalf("Unexpected id value %x", values[0])
	}

	if values[1] != nil {
		t.Fatalf("Expected name to be NULL, got %x", values[1])
	}

	if !bytes.Equal(values[2], []byte{0xe8, 0x07, 0x03, 0x0f}) {
		t.Fatalf("Expected the length byte to be stripped, got %x", values[2])
	}

	if string(values[3]) != "hi" {
		t.Fatalf("Expected hi, got %q", values[3])
	}

	_, err = codec.SplitBinaryRow(row[:5], columns)

	if err == nil {
		t.Fatal("Expected a truncated row to fail")
	}
}

func TestSplitTextRow(t *testing.T) {
	row := []byte{0x01, '1', 0xfb, 0x03, 'a', 'b', 'c', 0x00}

	values, err := codec.SplitTextRow(row, 4)

	if err != nil {
		t.Fatal(err)
	}

	if string(values[0]) != "1" || values[1] != nil || string(values[2]) != "abc" {
		t.Fatalf("Unexpected values %q", values)
	}

	if values[3] == nil || len(values[3]) != 0 {
		t.Fatalf("Expected an empty string to stay non-NULL, got %v", values[3])
	}
}
