package mariadb_test

import (
	"context"
	"strings"
	"testing"

	"github.com/go-mysql-org/go-mysql/mysql"
	"github.com/litebase/mariadb-go"
	"github.com/pkg/errors"
)

func TestReturnGeneratedValuesNeedsReturningForSeveralColumns(t *testing.T) {
	transport := newScriptedTransport()
	connection := newTestConnection(transport, "10.4.32-MariaDB", 10)

	statement := connection.CreateStatement("INSERT INTO users (name) VALUES (?)")
	err := statement.ReturnGeneratedValues("id", "created_at")

	var capability *mariadb.CapabilityError

	if !errors.As(err, &capability) {
		t.Fatalf("Expected a CapabilityError, got %v", err)
	}

	if capability.Version.String() != "10.4.32-MariaDB" {
		t.Fatalf("Expected the error to name the server version, got %s", capability.Version)
	}

	if transport.count() != 0 {
		t.Fatal("Expected nothing to be sent")
	}
}

func TestGeneratedKeyFromLastInsertID(t *testing.T) {
	transport := newScriptedTransport()

	transport.handler = func(command *mariadb.Command) []mariadb.ServerMessage {
		if command.Kind == mysql.COM_STMT_PREPARE {
			return []mariadb.ServerMessage{transport.prepareOK(command.SQL)}
		}

		return []mariadb.ServerMessage{&mariadb.OKPacket{AffectedRows: 1, LastInsertID: 42}}
	}

	connection := newTestConnection(transport, "10.4.32-MariaDB", 10)
	statement := connection.CreateStatement("INSERT INTO users (name) VALUES (?)")

	if err := statement.ReturnGeneratedValues("id"); err != nil {
		t.Fatal(err)
	}

	statement.Bind(0, "ada")

	results, err := statement.Execute(context.Background())

	if err != nil {
		t.Fatal(err)
	}

	result, err := results.Next(context.Background())

	if err != nil {
		t.Fatal(err)
	}

	if !result.HasRows() || result.Columns[0].Name != "id" {
		t.Fatal("Expected a synthetic id row")
	}

	id, err := mariadb.Get[uint64](result.Rows()[0], 0)

	if err != nil {
		t.Fatal(err)
	}

	if id != 42 {
		t.Fatalf("Expected id 42, got %d", id)
	}

	prepared := transport.sent(mysql.COM_STMT_PREPARE)

	if strings.Contains(prepared[0].SQL, "RETURNING") {
		t.Fatalf("Expected no RETURNING clause, got %q", prepared[0].SQL)
	}

	results.Close()
}

func TestGeneratedValuesUseReturning(t *testing.T) {
	transport := newScriptedTransport()
	connection := newTestConnection(transport, "10.11.6-MariaDB", 10)
	statement := connection.CreateStatement("INSERT INTO users (name) VALUES (?);")

	if err := statement.ReturnGeneratedValues("id", "created_at"); err != nil {
		t.Fatal(err)
	}

	statement.Bind(0, "ada")

	results, err := statement.Execute(context.Background())

	if err != nil {
		t.Fatal(err)
	}

	results.Close()

	prepared := transport.sent(mysql.COM_STMT_PREPARE)
	expected := "INSERT INTO users (name) VALUES (?) RETURNING id, created_at"

	if prepared[0].SQL != expected {
		t.Fatalf("Expected %q, got %q", expected, prepared[0].SQL)
	}
}

func TestStatementRejectsConcurrentExecution(t *testing.T) {
	transport := newScriptedTransport()
	connection := newTestConnection(transport, "10.11.6-MariaDB", 10)
	statement := connection.CreateStatement("DELETE FROM sessions WHERE id = ?")
	ctx := context.Background()

	statement.Bind(0, int64(1))

	results, err := statement.Execute(ctx)

	if err != nil {
		t.Fatal(err)
	}

	if _, err := statement.Execute(ctx); !errors.Is(err, mariadb.ErrStatementExecuting) {
		t.Fatalf("Expected ErrStatementExecuting, got %v", err)
	}

	if err := results.Close(); err != nil {
		t.Fatal(err)
	}

	results, err = statement.Execute(ctx)

	if err != nil {
		t.Fatal(err)
	}

	results.Close()

	if len(transport.sent(mysql.COM_STMT_PREPARE)) != 1 {
		t.Fatal("Expected the statement to be prepared once")
	}

	if len(transport.sent(mysql.COM_STMT_EXECUTE)) != 2 {
		t.Fatal("Expected 2 executions")
	}
}

func TestStatementReprepareAfterStatementNotFound(t *testing.T) {
	transport := newScriptedTransport()
	failed := false

	transport.handler = func(command *mariadb.Command) []mariadb.ServerMessage {
		if command.Kind == mysql.COM_STMT_PREPARE {
			return []mariadb.ServerMessage{transport.prepareOK(command.SQL)}
		}

		if !failed {
			failed = true

			return []mariadb.ServerMessage{&mariadb.ErrorPacket{Code: mysql.ER_UNKNOWN_STMT_HANDLER, SQLState: "HY000"}}
		}

		return []mariadb.ServerMessage{&mariadb.OKPacket{AffectedRows: 1}}
	}

	connection := newTestConnection(transport, "10.11.6-MariaDB", 10)
	statement := connection.CreateStatement("DO ?")
	ctx := context.Background()

	statement.Bind(0, int64(1))
	results, err := statement.Execute(ctx)

	if err != nil {
		t.Fatal(err)
	}

	if _, err := results.Collect(ctx); !mariadb.IsStatementNotFound(err) {
		t.Fatalf("Expected a statement not found error, got %v", err)
	}

	statement.Bind(0, int64(1))
	results, err = statement.Execute(ctx)

	if err != nil {
		t.Fatal(err)
	}

	if _, err := results.Collect(ctx); err != nil {
		t.Fatal(err)
	}

	executes := transport.sent(mysql.COM_STMT_EXECUTE)

	if len(transport.sent(mysql.COM_STMT_PREPARE)) != 2 {
		t.Fatal("Expected the statement to be prepared again")
	}

	if executes[0].StatementID == executes[1].StatementID {
		t.Fatal("Expected the second execution to use the new statement id")
	}

	statement.Close()

	if _, err := statement.Execute(ctx); !errors.Is(err, mariadb.ErrStatementClosed) {
		t.Fatalf("Expected ErrStatementClosed, got %v", err)
	}
}

func TestBatchWithoutReturningOnlyTagsFirstResult(t *testing.T) {
	transport := newScriptedTransport()
	connection := newTestConnection(transport, "10.4.32-MariaDB", 10)
	statement := connection.CreateStatement("INSERT INTO users (name) VALUES (?)")

	if err := statement.ReturnGeneratedValues("id"); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"ada", "grace"} {
		statement.Bind(0, name)
		statement.Add()
	}

	results, err := statement.Execute(context.Background())

	if err != nil {
		t.Fatal(err)
	}

	all, err := results.Collect(context.Background())

	if err != nil {
		t.Fatal(err)
	}

	if len(all) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(all))
	}

	if len(all[0].GeneratedColumns) != 1 || !all[0].HasRows() {
		t.Fatal("Expected the first result to carry the generated key")
	}

	if len(all[1].GeneratedColumns) != 0 || all[1].HasRows() {
		t.Fatal("Expected later results to carry no generated keys")
	}
}

func TestClientStatementInterpolatesParameters(t *testing.T) {
	transport := newScriptedTransport()
	connection := newTestConnection(transport, "10.11.6-MariaDB", 10)
	statement := connection.CreateClientStatement("INSERT INTO notes (body, author, note) VALUES (?, ?, '?')")

	statement.Bind(0, "it's")
	statement.Bind(1, nil)

	results, err := statement.Execute(context.Background())

	if err != nil {
		t.Fatal(err)
	}

	results.Close()

	queries := transport.sent(mysql.COM_QUERY)

	if len(queries) != 1 {
		t.Fatalf("Expected 1 query, got %d", len(queries))
	}

	if !strings.Contains(queries[0].SQL, "NULL, '?')") {
		t.Fatalf("Expected NULL and an untouched literal, got %q", queries[0].SQL)
	}

	if strings.Contains(queries[0].SQL, "'it's'") {
		t.Fatalf("Expected the quote to be escaped, got %q", queries[0].SQL)
	}
}
