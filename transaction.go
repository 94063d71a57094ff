package mariadb

import (
	"context"

	"go.uber.org/zap"
)

type Transaction struct {
	conn *Conn
	done bool
	id   string
}

func NewTransaction(id string, conn *Conn) *Transaction {
	return &Transaction{
		conn: conn,
		id:   id,
	}
}

func (t *Transaction) Commit() error {
	return t.finish("COMMIT")
}

func (t *Transaction) Rollback() error {
	return t.finish("ROLLBACK")
}

func (t *Transaction) finish(sql string) error {
	if t.done {
		return nil
	}

	t.done = true
	t.conn.transaction = nil

	connection := t.conn.connection
	connection.logger.Debug("transaction finished", zap.String("transaction_id", t.id), zap.String("sql", sql))

	return connection.exec(context.Background(), sql)
}
