package mariadb

import (
	"encoding/binary"

	"github.com/go-mysql-org/go-mysql/mysql"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	cursorTypeNoCursor = 0x00
	unsignedParamFlag  = 0x80
)

// Command is one client command. ID correlates the command with its results
// in logs.
type Command struct {
	ID          string
	Kind        byte
	StatementID uint32
	SQL         string
	Payload     []byte
}

func NewPrepareCommand(sql string) *Command {
	return &Command{
		ID:      uuid.NewString(),
		Kind:    mysql.COM_STMT_PREPARE,
		SQL:     sql,
		Payload: []byte(sql),
	}
}

func NewQueryCommand(sql string) *Command {
	return &Command{
		ID:      uuid.NewString(),
		Kind:    mysql.COM_QUERY,
		SQL:     sql,
		Payload: []byte(sql),
	}
}

func NewCloseCommand(statementID uint32) *Command {
	return &Command{
		ID:          uuid.NewString(),
		Kind:        mysql.COM_STMT_CLOSE,
		StatementID: statementID,
		Payload:     binary.LittleEndian.AppendUint32(nil, statementID),
	}
}

// NewExecuteCommand encodes a COM_STMT_EXECUTE for one complete parameter set.
func NewExecuteCommand(handle *PreparedHandle, params []Parameter) (*Command, error) {
	if len(params) != handle.NumParams {
		return nil, &ParameterCountError{Expected: handle.NumParams, Got: len(params)}
	}

	// Write the statement id, cursor flags and iteration count
	payload := binary.LittleEndian.AppendUint32(nil, handle.StatementID)
	payload = append(payload, cursorTypeNoCursor)
	payload = binary.LittleEndian.AppendUint32(payload, 1)

	if len(params) > 0 {
		nullBitmap := make([]byte, (len(params)+7)/8)
		types := make([]byte, 0, len(params)*2)
		var values []byte

		for i, param := range params {
			if param.IsNull() {
				nullBitmap[i/8] |= 1 << (i % 8)
			}

			code, flag := param.binaryType()
			types = append(types, code, flag)

			var err error

			values, err = param.encodeBinary(values)

			if err != nil {
				return nil, errors.Wrapf(err, "mariadb: encoding parameter %d", i)
			}
		}

		// Write the null bitmap, the new-params-bound flag and the types
		payload = append(payload, nullBitmap...)
		payload = append(payload, 1)
		payload = append(payload, types...)

		// Write the values
		payload = append(payload, values...)
	}

	return &Command{
		ID:          uuid.NewString(),
		Kind:        mysql.COM_STMT_EXECUTE,
		StatementID: handle.StatementID,
		SQL:         handle.SQL,
		Payload:     payload,
	}, nil
}

// Bytes is the command packet body: the command byte then the payload.
func (c *Command) Bytes() []byte {
	out := make([]byte, 0, len(c.Payload)+1)
	out = append(out, c.Kind)

	return append(out, c.Payload...)
}

// ExpectsResponse is false for commands the server never answers.
func (c *Command) ExpectsResponse() bool {
	return c.Kind != mysql.COM_STMT_CLOSE
}

func (c *Command) kindName() string {
	switch c.Kind {
	case mysql.COM_STMT_PREPARE:
		return "prepare"
	case mysql.COM_STMT_EXECUTE:
		return "execute"
	case mysql.COM_STMT_CLOSE:
		return "close"
	case mysql.COM_QUERY:
		return "query"
	}

	return "unknown"
}
