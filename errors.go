package mariadb

import (
	"fmt"
	"strings"

	"github.com/go-mysql-org/go-mysql/mysql"
	"github.com/litebase/mariadb-go/codec"
	"github.com/pkg/errors"
)

var (
	ErrConnectionClosed          = errors.New("mariadb: connection is closed")
	ErrNamedParameterUnsupported = errors.New("mariadb: named parameters are not supported, bind by index")
	ErrNoDialer                  = errors.New("mariadb: no dial function configured")
	ErrStatementClosed           = errors.New("mariadb: prepared statement is closed")
	ErrStatementExecuting        = errors.New("mariadb: statement is already executing")
)

// UnsupportedTypeError is returned when a bound value has no codec.
type UnsupportedTypeError = codec.UnsupportedTypeError

// IndexOutOfRangeError is returned when a parameter index is outside the
// statement's placeholders.
type IndexOutOfRangeError struct {
	Index int
	Count int
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("mariadb: parameter index %d out of range, statement has %d parameters", e.Index, e.Count)
}

// MissingParameterError is returned when a placeholder has no bound value.
type MissingParameterError struct {
	Index int
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("mariadb: parameter at position %d is not set", e.Index)
}

// ParameterCountError is returned when a binding set does not match the
// number of parameters the server prepared.
type ParameterCountError struct {
	Expected int
	Got      int
}

func (e *ParameterCountError) Error() string {
	return fmt.Sprintf("mariadb: statement expects %d parameters, %d bound", e.Expected, e.Got)
}

// CapabilityError is returned before anything is sent when a request needs a
// server feature the connected version lacks.
type CapabilityError struct {
	Feature string
	Version ServerVersion
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("mariadb: %s is not supported by server version %s", e.Feature, e.Version)
}

// ServerError is an ERR packet returned for a command.
type ServerError struct {
	Code     uint16
	SQLState string
	Message  string
	SQL      string
}

func (e *ServerError) Error() string {
	if e.SQL == "" {
		return fmt.Sprintf("mariadb: error %d (%s): %s", e.Code, e.SQLState, e.Message)
	}

	return fmt.Sprintf("mariadb: error %d (%s): %s\nquery: %s", e.Code, e.SQLState, e.Message, e.SQL)
}

func newServerError(packet *ErrorPacket, sql string) *ServerError {
	return &ServerError{
		Code:     packet.Code,
		SQLState: packet.SQLState,
		Message:  packet.Message,
		SQL:      sql,
	}
}

// IsBadGrammar reports a syntax or access rule violation (SQLSTATE class 42).
func IsBadGrammar(err error) bool {
	var serverErr *ServerError
	return errors.As(err, &serverErr) && strings.HasPrefix(serverErr.SQLState, "42")
}

// IsDataTruncation reports a value that was too long for its column.
func IsDataTruncation(err error) bool {
	var serverErr *ServerError
	return errors.As(err, &serverErr) && serverErr.SQLState == "22001"
}

// IsStatementNotFound reports that the server no longer knows a prepared
// statement id.
func IsStatementNotFound(err error) bool {
	var serverErr *ServerError
	return errors.As(err, &serverErr) && serverErr.Code == mysql.ER_UNKNOWN_STMT_HANDLER
}

// IsTransient reports errors scoped to reading one value, after which the
// connection and its results remain usable.
func IsTransient(err error) bool {
	var transient interface{ Transient() bool }
	return errors.As(err, &transient) && transient.Transient()
}
