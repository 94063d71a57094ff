package mariadb

import (
	"context"
	"database/sql/driver"
	"sync"
)

type statementState int

const (
	statementUnprepared statementState = iota
	statementPreparing
	statementPrepared
	statementExecuting
)

func (s statementState) String() string {
	switch s {
	case statementPreparing:
		return "preparing"
	case statementPrepared:
		return "prepared"
	case statementExecuting:
		return "executing"
	}

	return "unprepared"
}

// Statement is a server prepared statement. It keeps a reference on its
// handle between executions and goes back to the prepared state once the
// Results of an execution are done.
type Statement struct {
	bindings   *Bindings
	closed     bool
	connection *Connection
	generated  []string
	handle     *PreparedHandle
	mutex      sync.Mutex
	SQL        string
	state      statementState
}

func (c *Connection) CreateStatement(sql string) *Statement {
	return &Statement{
		bindings:   c.NewBindings(CountPlaceholders(sql)),
		connection: c,
		SQL:        sql,
	}
}

func (s *Statement) Bindings() *Bindings {
	return s.bindings
}

func (s *Statement) Bind(index int, value any) error {
	return s.bindings.Bind(index, value)
}

func (s *Statement) BindNull(index int) error {
	return s.bindings.BindNull(index, nil)
}

func (s *Statement) Add() error {
	return s.bindings.Add()
}

// ReturnGeneratedValues asks for generated column values with the results.
// Servers before MariaDB 10.5.1 can only report one, the last insert id.
func (s *Statement) ReturnGeneratedValues(columns ...string) error {
	version := s.connection.ServerVersion()

	if len(columns) > 1 && !version.SupportsReturning() {
		return &CapabilityError{Feature: "returning several generated columns", Version: version}
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.state == statementExecuting {
		return ErrStatementExecuting
	}

	s.generated = columns
	s.releaseHandle()

	return nil
}

func (s *Statement) effectiveSQL() string {
	if len(s.generated) > 0 && s.connection.ServerVersion().SupportsReturning() {
		return withReturning(s.SQL, s.generated)
	}

	return s.SQL
}

// Execute runs the statement once, or once per added binding set.
func (s *Statement) Execute(ctx context.Context) (*Results, error) {
	s.mutex.Lock()

	if s.closed {
		s.mutex.Unlock()
		return nil, ErrStatementClosed
	}

	if s.state == statementExecuting || s.state == statementPreparing {
		s.mutex.Unlock()
		return nil, ErrStatementExecuting
	}

	e := execution{generated: s.generated, onDone: s.executed}

	if s.bindings.Len() > 0 {
		sets, err := s.bindings.sets()

		if err != nil {
			s.mutex.Unlock()
			return nil, err
		}

		e.sets, e.batch = sets, true
	} else {
		params, err := s.bindings.single()

		if err != nil {
			s.mutex.Unlock()
			return nil, err
		}

		e.sets = [][]Parameter{params}
	}

	if s.handle != nil && s.handle.Stale() {
		s.releaseHandle()
	}

	if s.handle == nil {
		s.state = statementPreparing
		s.mutex.Unlock()

		handle, err := s.connection.Prepare(ctx, s.effectiveSQL())

		s.mutex.Lock()

		if err != nil {
			s.state = statementUnprepared
			s.mutex.Unlock()

			return nil, err
		}

		s.handle = handle
	}

	// The execution takes its own reference; the statement keeps one.
	handle := s.handle

	if !handle.Acquire() {
		s.handle = nil
		s.state = statementUnprepared
		s.mutex.Unlock()

		return nil, ErrStatementClosed
	}

	s.state = statementExecuting
	s.mutex.Unlock()

	return s.connection.run(ctx, handle, e)
}

func (s *Statement) executed() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.handle == nil {
		s.state = statementUnprepared
		return
	}

	s.state = statementPrepared
}

// releaseHandle drops the statement's reference. The caller holds the mutex.
func (s *Statement) releaseHandle() {
	if s.handle != nil {
		s.handle.Release()
		s.handle = nil
	}

	if s.state != statementExecuting {
		s.state = statementUnprepared
	}
}

// Close releases the statement's reference on its prepared handle.
func (s *Statement) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	s.releaseHandle()

	return nil
}

func (s *Statement) NumInput() int {
	return s.bindings.NumParams()
}

func (s *Statement) Exec(args []driver.Value) (driver.Result, error) {
	return s.ExecContext(context.Background(), namedValues(args))
}

func (s *Statement) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	if err := bindNamedValues(s.bindings, args); err != nil {
		return nil, err
	}

	results, err := s.Execute(ctx)

	if err != nil {
		return nil, err
	}

	return execResult(ctx, results)
}

func (s *Statement) Query(args []driver.Value) (driver.Rows, error) {
	return s.QueryContext(context.Background(), namedValues(args))
}

func (s *Statement) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	if err := bindNamedValues(s.bindings, args); err != nil {
		return nil, err
	}

	results, err := s.Execute(ctx)

	if err != nil {
		return nil, err
	}

	return NewRows(ctx, results)
}
