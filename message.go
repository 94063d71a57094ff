package mariadb

import (
	"context"
	"io"

	"github.com/go-mysql-org/go-mysql/mysql"
	"github.com/litebase/mariadb-go/codec"
)

// ServerMessage is one decoded server response packet.
type ServerMessage interface {
	// ResultSetEnd reports whether the message closes a logical result.
	ResultSetEnd() bool
}

// PrepareOK is the response to COM_STMT_PREPARE, with the parameter and
// column definitions that follow it.
type PrepareOK struct {
	StatementID uint32
	NumColumns  int
	NumParams   int
	Warnings    uint16
	Params      []*codec.ColumnDescriptor
	Columns     []*codec.ColumnDescriptor
}

func (*PrepareOK) ResultSetEnd() bool { return true }

type ColumnDefinition struct {
	Column *codec.ColumnDescriptor
}

func (*ColumnDefinition) ResultSetEnd() bool { return false }

// RowData is one undecoded row.
type RowData struct {
	Raw    []byte
	Binary bool
}

func (*RowData) ResultSetEnd() bool { return false }

type OKPacket struct {
	AffectedRows uint64
	LastInsertID uint64
	Status       uint16
	Warnings     uint16
	Info         string
}

func (*OKPacket) ResultSetEnd() bool { return true }

// MoreResults reports whether another result follows in the same response.
func (p *OKPacket) MoreResults() bool {
	return p.Status&mysql.SERVER_MORE_RESULTS_EXISTS != 0
}

// EOFPacket ends the rows of a result set.
type EOFPacket struct {
	Warnings uint16
	Status   uint16
}

func (*EOFPacket) ResultSetEnd() bool { return true }

func (p *EOFPacket) MoreResults() bool {
	return p.Status&mysql.SERVER_MORE_RESULTS_EXISTS != 0
}

type ErrorPacket struct {
	Code     uint16
	SQLState string
	Message  string
}

func (*ErrorPacket) ResultSetEnd() bool { return true }

// MessageStream yields the server messages answering one command, in order.
// Next returns io.EOF once the response is complete. A stream cannot be
// restarted.
type MessageStream interface {
	Next(ctx context.Context) (ServerMessage, error)
}

// Transport carries commands to an authenticated server session. Send may be
// called again before earlier streams are drained; responses are read in the
// order the commands were sent.
type Transport interface {
	Send(ctx context.Context, command *Command) (MessageStream, error)
	Close() error
}

// emptyStream answers commands that have no response, such as COM_STMT_CLOSE.
type emptyStream struct{}

func (emptyStream) Next(context.Context) (ServerMessage, error) {
	return nil, io.EOF
}

// EmptyStream is the stream of a command the server does not answer.
var EmptyStream MessageStream = emptyStream{}
