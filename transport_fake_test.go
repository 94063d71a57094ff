package mariadb_test

import (
	"context"
	"io"
	"sync"

	"github.com/go-mysql-org/go-mysql/mysql"
	"github.com/litebase/mariadb-go"
)

// scriptedTransport answers commands with messages from a handler and
// records everything it was sent.
type scriptedTransport struct {
	closed   bool
	commands []*mariadb.Command
	handler  func(*mariadb.Command) []mariadb.ServerMessage
	mutex    sync.Mutex
	prepared uint32
}

func newScriptedTransport() *scriptedTransport {
	t := &scriptedTransport{}
	t.handler = t.defaultResponse

	return t
}

func (t *scriptedTransport) Send(ctx context.Context, command *mariadb.Command) (mariadb.MessageStream, error) {
	t.mutex.Lock()
	t.commands = append(t.commands, command)
	handler := t.handler
	t.mutex.Unlock()

	if !command.ExpectsResponse() {
		return mariadb.EmptyStream, nil
	}

	return &scriptedStream{messages: handler(command)}, nil
}

func (t *scriptedTransport) Close() error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.closed = true

	return nil
}

// defaultResponse prepares every statement with a fresh id and answers
// executes and queries with an OK packet.
func (t *scriptedTransport) defaultResponse(command *mariadb.Command) []mariadb.ServerMessage {
	switch command.Kind {
	case mysql.COM_STMT_PREPARE:
		return []mariadb.ServerMessage{t.prepareOK(command.SQL)}
	}

	return []mariadb.ServerMessage{&mariadb.OKPacket{AffectedRows: 1}}
}

func (t *scriptedTransport) prepareOK(sql string) *mariadb.PrepareOK {
	t.mutex.Lock()
	t.prepared++
	id := t.prepared
	t.mutex.Unlock()

	return &mariadb.PrepareOK{
		StatementID: id,
		NumParams:   mariadb.CountPlaceholders(sql),
	}
}

func (t *scriptedTransport) sent(kind byte) []*mariadb.Command {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	var commands []*mariadb.Command

	for _, command := range t.commands {
		if command.Kind == kind {
			commands = append(commands, command)
		}
	}

	return commands
}

func (t *scriptedTransport) count() int {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	return len(t.commands)
}

type scriptedStream struct {
	messages []mariadb.ServerMessage
}

func (s *scriptedStream) Next(ctx context.Context) (mariadb.ServerMessage, error) {
	if len(s.messages) == 0 {
		return nil, io.EOF
	}

	message := s.messages[0]
	s.messages = s.messages[1:]

	return message, nil
}

func newTestConnection(transport mariadb.Transport, version string, cacheSize int) *mariadb.Connection {
	config := mariadb.NewConfiguration()
	config.ServerVersion = version
	config.PrepareCacheSize = cacheSize

	connection, err := mariadb.NewConnection(transport, config)

	if err != nil {
		panic(err)
	}

	return connection
}
