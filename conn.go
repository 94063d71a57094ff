package mariadb

import (
	"context"
	"database/sql/driver"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var isolationLevels = map[driver.IsolationLevel]string{
	1: "READ UNCOMMITTED",
	2: "READ COMMITTED",
	4: "REPEATABLE READ",
	6: "SERIALIZABLE",
}

// Conn is the database/sql view of a Connection.
type Conn struct {
	connection  *Connection
	transaction *Transaction
}

func NewConn(connection *Connection) *Conn {
	return &Conn{
		connection: connection,
	}
}

// Connection exposes the underlying connection, e.g. through sql.Conn.Raw.
func (c *Conn) Connection() *Connection {
	return c.connection
}

func (c *Conn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *Conn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	if opts.Isolation != 0 {
		level, ok := isolationLevels[opts.Isolation]

		if !ok {
			return nil, errors.Errorf("mariadb: unsupported isolation level %d", opts.Isolation)
		}

		if err := c.connection.exec(ctx, "SET TRANSACTION ISOLATION LEVEL "+level); err != nil {
			return nil, err
		}
	}

	begin := "START TRANSACTION"

	if opts.ReadOnly {
		begin += " READ ONLY"
	}

	if err := c.connection.exec(ctx, begin); err != nil {
		return nil, err
	}

	c.transaction = NewTransaction(uuid.NewString(), c)

	return c.transaction, nil
}

func (c *Conn) Close() error {
	if c.transaction != nil {
		c.transaction.Rollback()
	}

	return c.connection.Close()
}

func (c *Conn) ExecContext(ctx context.Context, sql string, args []driver.NamedValue) (driver.Result, error) {
	results, err := c.run(ctx, sql, args)

	if err != nil {
		return nil, err
	}

	return execResult(ctx, results)
}

func (c *Conn) QueryContext(ctx context.Context, sql string, args []driver.NamedValue) (driver.Rows, error) {
	results, err := c.run(ctx, sql, args)

	if err != nil {
		return nil, err
	}

	return NewRows(ctx, results)
}

// run sends parameterless SQL as text and the rest as a prepared statement,
// unless server prepared statements are turned off.
func (c *Conn) run(ctx context.Context, sql string, args []driver.NamedValue) (*Results, error) {
	bindings := c.connection.NewBindings(CountPlaceholders(sql))

	if err := bindNamedValues(bindings, args); err != nil {
		return nil, err
	}

	if len(args) == 0 || !c.connection.config.UseServerPrepStatements {
		return c.connection.Query(ctx, sql, bindings)
	}

	return c.connection.PrepareAndExecute(ctx, sql, bindings)
}

func (c *Conn) Ping(ctx context.Context) error {
	if err := c.connection.exec(ctx, "DO 1"); err != nil {
		return driver.ErrBadConn
	}

	return nil
}

func (c *Conn) Prepare(sql string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), sql)
}

func (c *Conn) PrepareContext(ctx context.Context, sql string) (driver.Stmt, error) {
	return c.connection.CreateStatement(sql), nil
}

// CheckNamedValue passes every value the codec registry can encode through
// unchanged.
func (c *Conn) CheckNamedValue(nv *driver.NamedValue) error {
	if valuer, ok := nv.Value.(driver.Valuer); ok {
		v, err := valuer.Value()

		if err != nil {
			return err
		}

		nv.Value = v
	}

	if nv.Value == nil {
		return nil
	}

	if _, err := c.connection.Registry().ForEncode(nv.Value); err == nil {
		return nil
	}

	return driver.ErrSkip
}

func (c *Conn) ResetSession(ctx context.Context) error {
	if c.connection.closed.Load() {
		return driver.ErrBadConn
	}

	return nil
}
