package mariadb_test

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/go-mysql-org/go-mysql/mysql"
	"github.com/litebase/mariadb-go"
	"github.com/litebase/mariadb-go/codec"
	"github.com/pkg/errors"
)

func TestExecuteBatchReturnsOneResultPerSet(t *testing.T) {
	transport := newScriptedTransport()
	executes := 0

	transport.handler = func(command *mariadb.Command) []mariadb.ServerMessage {
		if command.Kind == mysql.COM_STMT_PREPARE {
			return []mariadb.ServerMessage{transport.prepareOK(command.SQL)}
		}

		executes++

		return []mariadb.ServerMessage{&mariadb.OKPacket{AffectedRows: uint64(executes), LastInsertID: uint64(100 + executes)}}
	}

	connection := newTestConnection(transport, "10.11.6-MariaDB", 10)
	sql := "INSERT INTO users (name, age) VALUES (?, ?)"
	bindings := connection.NewBindings(2)

	for i, name := range []string{"ada", "grace", "linus"} {
		if err := bindings.Bind(0, name); err != nil {
			t.Fatal(err)
		}

		if err := bindings.Bind(1, int64(30+i)); err != nil {
			t.Fatal(err)
		}

		if err := bindings.Add(); err != nil {
			t.Fatal(err)
		}
	}

	results, err := connection.ExecuteBatch(context.Background(), sql, []*mariadb.Bindings{bindings})

	if err != nil {
		t.Fatal(err)
	}

	all, err := results.Collect(context.Background())

	if err != nil {
		t.Fatal(err)
	}

	if len(all) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(all))
	}

	sent := transport.sent(mysql.COM_STMT_EXECUTE)

	if len(sent) != 3 {
		t.Fatalf("Expected 3 execute commands, got %d", len(sent))
	}

	for i, result := range all {
		if !result.Batch {
			t.Fatalf("Expected result %d to be tagged as a batch result", i)
		}

		if result.CommandID != sent[i].ID {
			t.Fatalf("Expected result %d to come from command %s, got %s", i, sent[i].ID, result.CommandID)
		}

		if result.RowsUpdated() != uint64(i+1) {
			t.Fatalf("Expected result %d to report %d rows, got %d", i, i+1, result.RowsUpdated())
		}
	}

	if len(transport.sent(mysql.COM_STMT_PREPARE)) != 1 {
		t.Fatal("Expected the statement to be prepared once")
	}

	if bindings.Len() != 0 {
		t.Fatalf("Expected the batch to be consumed, %d sets left", bindings.Len())
	}
}

func TestMissingParameterFailsBeforeSending(t *testing.T) {
	transport := newScriptedTransport()
	connection := newTestConnection(transport, "10.11.6-MariaDB", 10)

	bindings := connection.NewBindings(3)
	bindings.Bind(0, "a")
	bindings.Bind(1, "b")

	_, err := connection.PrepareAndExecute(context.Background(), "INSERT INTO t VALUES (?, ?, ?)", bindings)

	var missing *mariadb.MissingParameterError

	if !errors.As(err, &missing) {
		t.Fatalf("Expected a MissingParameterError, got %v", err)
	}

	if missing.Index != 2 {
		t.Fatalf("Expected the error to name index 2, got %d", missing.Index)
	}

	if !strings.Contains(err.Error(), "position 2") {
		t.Fatalf("Expected the message to name position 2, got %q", err.Error())
	}

	if transport.count() != 0 {
		t.Fatalf("Expected nothing to be sent, got %d commands", transport.count())
	}
}

func TestConcurrentPreparesShareOneHandle(t *testing.T) {
	transport := newScriptedTransport()
	connection := newTestConnection(transport, "10.11.6-MariaDB", 10)
	sql := "SELECT * FROM users WHERE id = ?"

	var wg sync.WaitGroup
	handles := make([]*mariadb.PreparedHandle, 16)
	errs := make([]error, 16)

	for i := range handles {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()
			handles[i], errs[i] = connection.Prepare(context.Background(), sql)
		}(i)
	}

	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("Prepare %d failed: %v", i, err)
		}

		if handles[i] != handles[0] {
			t.Fatalf("Expected prepare %d to return the cached handle", i)
		}
	}

	if handles[0].UseCount() != 17 {
		t.Fatalf("Expected 17 references, got %d", handles[0].UseCount())
	}

	for _, handle := range handles {
		handle.Release()
	}

	if handles[0].UseCount() != 1 || handles[0].Closed() {
		t.Fatal("Expected the cache to keep its reference")
	}

	// Any duplicate prepared in a race must be closed by the next command.
	if _, err := connection.PrepareAndExecute(context.Background(), "DO 1", nil); err != nil {
		t.Fatal(err)
	}

	prepares := len(transport.sent(mysql.COM_STMT_PREPARE))
	closes := len(transport.sent(mysql.COM_STMT_CLOSE))

	// One for the shared statement, one for DO 1
	if prepares-closes != 2 {
		t.Fatalf("Expected every duplicate statement to be closed, %d prepared and %d closed", prepares, closes)
	}
}

func TestEvictionClosesUnusedStatement(t *testing.T) {
	transport := newScriptedTransport()
	connection := newTestConnection(transport, "10.11.6-MariaDB", 1)
	ctx := context.Background()

	first, err := connection.Prepare(ctx, "SELECT 1")

	if err != nil {
		t.Fatal(err)
	}

	second, err := connection.Prepare(ctx, "SELECT 2")

	if err != nil {
		t.Fatal(err)
	}

	if first.Closed() {
		t.Fatal("Expected an evicted statement in use to stay open")
	}

	if connection.PrepareCache().Get("SELECT 1") != nil {
		t.Fatal("Expected SELECT 1 to be evicted")
	}

	first.Release()

	if !first.Closed() {
		t.Fatal("Expected the statement to close with its last reference")
	}

	second.Release()

	if second.Closed() {
		t.Fatal("Expected the cached statement to stay open")
	}

	if len(transport.sent(mysql.COM_STMT_CLOSE)) != 0 {
		t.Fatal("Expected the close to wait for the next command")
	}

	if _, err := connection.Prepare(ctx, "SELECT 3"); err != nil {
		t.Fatal(err)
	}

	closes := transport.sent(mysql.COM_STMT_CLOSE)

	if len(closes) != 1 || closes[0].StatementID != first.StatementID {
		t.Fatalf("Expected statement %d to be closed once, got %d closes", first.StatementID, len(closes))
	}
}

func TestExecutionKeepsEvictedStatementOpen(t *testing.T) {
	transport := newScriptedTransport()
	connection := newTestConnection(transport, "10.11.6-MariaDB", 1)
	ctx := context.Background()

	results, err := connection.PrepareAndExecute(ctx, "DELETE FROM sessions", nil)

	if err != nil {
		t.Fatal(err)
	}

	handle := connection.PrepareCache().Get("DELETE FROM sessions")
	connection.PrepareCache().Evict("DELETE FROM sessions")

	if handle.Closed() {
		t.Fatal("Expected the running execution to keep the statement open")
	}

	if err := results.Close(); err != nil {
		t.Fatal(err)
	}

	if !handle.Closed() {
		t.Fatal("Expected the statement to close once the results were drained")
	}
}

func TestUncachedStatementIsClosedAfterExecution(t *testing.T) {
	transport := newScriptedTransport()
	connection := newTestConnection(transport, "10.11.6-MariaDB", 0)
	ctx := context.Background()

	if connection.PrepareCache() != nil {
		t.Fatal("Expected caching to be disabled")
	}

	for i := 0; i < 2; i++ {
		results, err := connection.PrepareAndExecute(ctx, "DO 1", nil)

		if err != nil {
			t.Fatal(err)
		}

		if _, err := results.Collect(ctx); err != nil {
			t.Fatal(err)
		}
	}

	if len(transport.sent(mysql.COM_STMT_PREPARE)) != 2 {
		t.Fatal("Expected every execution to prepare")
	}

	if len(transport.sent(mysql.COM_STMT_CLOSE)) != 1 {
		t.Fatal("Expected the first statement to be closed before the second prepare")
	}
}

func TestStatementNotFoundEvictsHandle(t *testing.T) {
	transport := newScriptedTransport()
	sql := "UPDATE users SET name = ? WHERE id = ?"

	transport.handler = func(command *mariadb.Command) []mariadb.ServerMessage {
		if command.Kind == mysql.COM_STMT_PREPARE {
			return []mariadb.ServerMessage{transport.prepareOK(command.SQL)}
		}

		return []mariadb.ServerMessage{&mariadb.ErrorPacket{
			Code:     mysql.ER_UNKNOWN_STMT_HANDLER,
			SQLState: "HY000",
			Message:  "Unknown prepared statement handler",
		}}
	}

	connection := newTestConnection(transport, "10.11.6-MariaDB", 10)
	bindings := connection.NewBindings(2)
	bindings.Bind(0, "ada")
	bindings.Bind(1, int64(1))

	results, err := connection.PrepareAndExecute(context.Background(), sql, bindings)

	if err != nil {
		t.Fatal(err)
	}

	_, err = results.Next(context.Background())

	if !mariadb.IsStatementNotFound(err) {
		t.Fatalf("Expected a statement not found error, got %v", err)
	}

	var serverErr *mariadb.ServerError

	if !errors.As(err, &serverErr) || serverErr.SQL != sql {
		t.Fatalf("Expected the error to carry the statement text, got %v", err)
	}

	if connection.PrepareCache().Get(sql) != nil {
		t.Fatal("Expected the statement to be evicted from the cache")
	}

	if _, err := results.Next(context.Background()); err != io.EOF {
		t.Fatalf("Expected io.EOF after the last result, got %v", err)
	}
}

func TestServerErrorDoesNotStopLaterResults(t *testing.T) {
	transport := newScriptedTransport()
	executes := 0

	transport.handler = func(command *mariadb.Command) []mariadb.ServerMessage {
		if command.Kind == mysql.COM_STMT_PREPARE {
			return []mariadb.ServerMessage{transport.prepareOK(command.SQL)}
		}

		executes++

		if executes == 2 {
			return []mariadb.ServerMessage{&mariadb.ErrorPacket{Code: 1062, SQLState: "23000", Message: "Duplicate entry"}}
		}

		return []mariadb.ServerMessage{&mariadb.OKPacket{AffectedRows: 1}}
	}

	connection := newTestConnection(transport, "10.11.6-MariaDB", 10)
	bindings := connection.NewBindings(1)

	for _, id := range []int64{1, 1, 2} {
		bindings.Bind(0, id)
		bindings.Add()
	}

	results, err := connection.ExecuteBatch(context.Background(), "INSERT INTO t (id) VALUES (?)", []*mariadb.Bindings{bindings})

	if err != nil {
		t.Fatal(err)
	}

	var okCount, errCount int

	for _, err := range results.All(context.Background()) {
		if err != nil {
			errCount++
			continue
		}

		okCount++
	}

	if okCount != 2 || errCount != 1 {
		t.Fatalf("Expected 2 results and 1 error, got %d and %d", okCount, errCount)
	}
}

func TestRowsAreDecodedFromBinaryResults(t *testing.T) {
	transport := newScriptedTransport()
	columns := []*codec.ColumnDescriptor{
		{Name: "id", DataType: codec.Integer, Flags: uint16(mysql.NOT_NULL_FLAG)},
		{Name: "name", DataType: codec.VarString, Charset: 45},
	}

	transport.handler = func(command *mariadb.Command) []mariadb.ServerMessage {
		if command.Kind == mysql.COM_STMT_PREPARE {
			ok := transport.prepareOK(command.SQL)
			ok.NumColumns, ok.Columns = 2, columns

			return []mariadb.ServerMessage{ok}
		}

		return []mariadb.ServerMessage{
			&mariadb.ColumnDefinition{Column: columns[0]},
			&mariadb.ColumnDefinition{Column: columns[1]},
			&mariadb.RowData{Binary: true, Raw: []byte{0x00, 0x00, 0x07, 0x00, 0x00, 0x00, 0x03, 'a', 'd', 'a'}},
			&mariadb.RowData{Binary: true, Raw: []byte{0x00, 0x08, 0x08, 0x00, 0x00, 0x00}},
			&mariadb.EOFPacket{},
		}
	}

	connection := newTestConnection(transport, "10.11.6-MariaDB", 10)
	bindings := connection.NewBindings(1)
	bindings.Bind(0, int64(5))

	results, err := connection.PrepareAndExecute(context.Background(), "SELECT id, name FROM users WHERE id > ?", bindings)

	if err != nil {
		t.Fatal(err)
	}

	result, err := results.Next(context.Background())

	if err != nil {
		t.Fatal(err)
	}

	if !result.HasRows() || len(result.Rows()) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(result.Rows()))
	}

	type user struct {
		id   int64
		name string
	}

	users, err := mariadb.MapRows(result, func(row *mariadb.Row) (user, error) {
		id, err := mariadb.Get[int64](row, 0)

		if err != nil {
			return user{}, err
		}

		name, err := mariadb.Get[string](row, 1)

		return user{id, name}, err
	})

	if err != nil {
		t.Fatal(err)
	}

	if users[0].id != 7 || users[0].name != "ada" {
		t.Fatalf("Unexpected first row %+v", users[0])
	}

	if users[1].id != 8 || !result.Rows()[1].IsNull(1) {
		t.Fatalf("Expected the second row to have a NULL name, got %+v", users[1])
	}

	name, err := result.Rows()[0].GetByName("NAME")

	if err != nil || name != "ada" {
		t.Fatalf("Expected lookup by name to ignore case, got %v, %v", name, err)
	}

	if _, err := result.Rows()[0].Get(2); err == nil {
		t.Fatal("Expected an out of range index to fail")
	}

	if err := results.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestClosedConnectionRejectsCommands(t *testing.T) {
	transport := newScriptedTransport()
	connection := newTestConnection(transport, "10.11.6-MariaDB", 10)

	if err := connection.Close(); err != nil {
		t.Fatal(err)
	}

	if !transport.closed {
		t.Fatal("Expected the transport to be closed")
	}

	_, err := connection.Prepare(context.Background(), "SELECT 1")

	if !errors.Is(err, mariadb.ErrConnectionClosed) {
		t.Fatalf("Expected ErrConnectionClosed, got %v", err)
	}
}
