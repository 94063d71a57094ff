package mariadb

import (
	"context"
	"io"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/litebase/mariadb-go/codec"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

// prepareAttempts bounds how often an execution re-prepares when its cached
// handle is evicted before the execution could take a reference.
const prepareAttempts = 3

// Connection runs prepared and text statements over one Transport. Commands
// are half duplex: an execution owns the wire from its first command until
// its Results are drained or closed.
type Connection struct {
	cache      *PrepareCache
	closed     atomic.Bool
	closeQueue *CloseQueue
	config     *Configuration
	gate       *semaphore.Weighted
	id         string
	logger     *zap.Logger
	prepares   singleflight.Group
	registry   *codec.Registry
	transport  Transport
	version    ServerVersion
}

func NewConnection(transport Transport, config *Configuration) (*Connection, error) {
	if config == nil {
		config = NewConfiguration()
	}

	id := uuid.NewString()
	logger := config.logger().With(zap.String("connection_id", id))

	c := &Connection{
		closeQueue: NewCloseQueue(logger),
		config:     config,
		gate:       semaphore.NewWeighted(1),
		id:         id,
		logger:     logger,
		registry:   config.registry(),
		transport:  transport,
		version:    config.serverVersion(),
	}

	if config.PrepareCacheSize > 0 {
		cache, err := NewPrepareCache(config.PrepareCacheSize, logger)

		if err != nil {
			return nil, err
		}

		c.cache = cache
	}

	return c, nil
}

func (c *Connection) ID() string {
	return c.id
}

func (c *Connection) ServerVersion() ServerVersion {
	return c.version
}

func (c *Connection) Registry() *codec.Registry {
	return c.registry
}

// PrepareCache returns the statement cache, or nil when caching is disabled.
func (c *Connection) PrepareCache() *PrepareCache {
	return c.cache
}

func (c *Connection) NewBindings(numParams int) *Bindings {
	return NewBindings(numParams, c.registry)
}

// Close releases cached statements and closes the transport.
func (c *Connection) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	if c.cache != nil {
		c.cache.Purge()
	}

	// Statements die with the session; only tell the server when the wire
	// is free.
	if c.gate.TryAcquire(1) {
		c.closeQueue.Flush(context.Background(), c.transport)
		c.gate.Release(1)
	}

	return c.transport.Close()
}

// Prepare returns a handle for sql with a reference held for the caller,
// who must Release it. Concurrent prepares of the same text share one round
// trip.
func (c *Connection) Prepare(ctx context.Context, sql string) (*PreparedHandle, error) {
	if c.closed.Load() {
		return nil, ErrConnectionClosed
	}

	if c.cache == nil {
		return c.prepareOnServer(ctx, sql)
	}

	for attempt := 0; attempt < prepareAttempts; attempt++ {
		if handle := c.cache.acquire(sql); handle != nil {
			return handle, nil
		}

		ch := c.prepares.DoChan(sql, func() (any, error) {
			handle, err := c.prepareOnServer(ctx, sql)

			if err != nil {
				return nil, err
			}

			return c.cache.Put(sql, handle), nil
		})

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case result := <-ch:
			if result.Err != nil {
				return nil, result.Err
			}

			handle := result.Val.(*PreparedHandle)

			if handle.Acquire() {
				return handle, nil
			}
		}
	}

	return nil, errors.Wrapf(ErrStatementClosed, "mariadb: %q was evicted while preparing", sql)
}

func (c *Connection) prepareOnServer(ctx context.Context, sql string) (*PreparedHandle, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}

	defer c.gate.Release(1)

	command := NewPrepareCommand(sql)

	stream, err := c.transport.Send(ctx, command)

	if err != nil {
		return nil, errors.Wrap(err, "mariadb: sending prepare")
	}

	message, err := stream.Next(ctx)

	if err != nil {
		return nil, errors.Wrap(err, "mariadb: reading prepare response")
	}

	if err := drain(ctx, stream); err != nil {
		return nil, err
	}

	switch m := message.(type) {
	case *PrepareOK:
		handle := NewPreparedHandle(sql, m, c.enqueueClose)

		c.logger.Debug("statement prepared",
			zap.String("command_id", command.ID),
			zap.String("sql", sql),
			zap.Uint32("statement_id", m.StatementID),
			zap.Int("params", m.NumParams),
			zap.Int("columns", m.NumColumns),
		)

		return handle, nil
	case *ErrorPacket:
		return nil, newServerError(m, sql)
	}

	return nil, errors.Errorf("mariadb: unexpected %T in prepare response", message)
}

// acquire takes the wire and sends any queued statement closes.
func (c *Connection) acquire(ctx context.Context) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}

	if err := c.gate.Acquire(ctx, 1); err != nil {
		return err
	}

	c.closeQueue.Flush(ctx, c.transport)

	return nil
}

func (c *Connection) enqueueClose(handle *PreparedHandle) {
	if c.closed.Load() {
		return
	}

	c.logger.Debug("prepared statement released",
		zap.Uint32("statement_id", handle.StatementID),
		zap.String("sql", handle.SQL),
	)

	c.closeQueue.Push(handle.StatementID)
}

// PrepareAndExecute prepares sql, or reuses the cached statement, and runs it
// once with the current set of bindings.
func (c *Connection) PrepareAndExecute(ctx context.Context, sql string, bindings *Bindings) (*Results, error) {
	if bindings == nil {
		bindings = c.NewBindings(0)
	}

	params, err := bindings.single()

	if err != nil {
		return nil, err
	}

	handle, err := c.Prepare(ctx, sql)

	if err != nil {
		return nil, err
	}

	return c.run(ctx, handle, execution{sets: [][]Parameter{params}})
}

// ExecuteBatch prepares sql once and runs it for every binding set, in order.
// Values bound since the last Add are added first.
func (c *Connection) ExecuteBatch(ctx context.Context, sql string, bindings []*Bindings) (*Results, error) {
	var sets [][]Parameter

	for _, b := range bindings {
		s, err := b.sets()

		if err != nil {
			return nil, err
		}

		sets = append(sets, s...)
	}

	if len(sets) == 0 {
		return nil, errors.New("mariadb: batch has no binding sets")
	}

	handle, err := c.Prepare(ctx, sql)

	if err != nil {
		return nil, err
	}

	return c.run(ctx, handle, execution{sets: sets, batch: true})
}

// execution is what one run sends with a prepared handle.
type execution struct {
	batch     bool
	generated []string
	onDone    func()
	sets      [][]Parameter
}

// run sends one COM_STMT_EXECUTE per set and consumes the caller's reference
// on handle, which is released once the Results are done.
func (c *Connection) run(ctx context.Context, handle *PreparedHandle, e execution) (*Results, error) {
	release := func() {
		handle.Release()

		if e.onDone != nil {
			e.onDone()
		}
	}

	if len(e.generated) > 1 && !c.version.SupportsReturning() {
		release()
		return nil, &CapabilityError{Feature: "returning several generated columns", Version: c.version}
	}

	returning := c.version.SupportsReturning()

	// Encode every set before anything is sent.
	commands := make([]*Command, len(e.sets))

	for i, params := range e.sets {
		command, err := NewExecuteCommand(handle, params)

		if err != nil {
			release()
			return nil, err
		}

		commands[i] = command
	}

	if err := c.acquire(ctx); err != nil {
		release()
		return nil, err
	}

	windows := make([]window, 0, len(commands))

	results := newResults(handle.SQL, nil, c.registry, c.logger, func() {
		c.gate.Release(1)
		release()
	})

	results.onServerError = func(err *ServerError) {
		if IsStatementNotFound(err) {
			handle.markStale()

			if c.cache != nil && c.cache.Get(handle.SQL) == handle {
				c.cache.Evict(handle.SQL)
			}
		}
	}

	for i, command := range commands {
		stream, err := c.transport.Send(ctx, command)

		if err != nil {
			results.windows = windows
			results.Close()

			return nil, errors.Wrap(err, "mariadb: sending execute")
		}

		tag := resultTag{batch: e.batch, generated: e.generated, returning: returning}

		if e.batch && i > 0 && !returning {
			tag.generated = nil
		}

		windows = append(windows, window{commandID: command.ID, stream: stream, tag: tag})
	}

	results.windows = windows

	c.logger.Debug("statement executed",
		zap.Uint32("statement_id", handle.StatementID),
		zap.String("command_id", commands[0].ID),
		zap.Int("batch_size", len(commands)),
	)

	return results, nil
}

// Query runs sql over the text protocol, interpolating bindings client side.
func (c *Connection) Query(ctx context.Context, sql string, bindings *Bindings) (*Results, error) {
	if bindings == nil {
		bindings = c.NewBindings(0)
	}

	params, err := bindings.single()

	if err != nil {
		return nil, err
	}

	query, err := interpolate(sql, params)

	if err != nil {
		return nil, err
	}

	return c.sendQueries(ctx, sql, []string{query}, false)
}

func (c *Connection) sendQueries(ctx context.Context, sql string, queries []string, batch bool) (*Results, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}

	results := newResults(sql, nil, c.registry, c.logger, func() {
		c.gate.Release(1)
	})

	windows := make([]window, 0, len(queries))

	for _, query := range queries {
		command := NewQueryCommand(query)

		stream, err := c.transport.Send(ctx, command)

		if err != nil {
			results.windows = windows
			results.Close()

			return nil, errors.Wrap(err, "mariadb: sending query")
		}

		c.logger.Debug("query sent", zap.String("command_id", command.ID))

		windows = append(windows, window{commandID: command.ID, stream: stream, tag: resultTag{batch: batch}})
	}

	results.windows = windows

	return results, nil
}

// exec runs a statement without parameters and discards its rows.
func (c *Connection) exec(ctx context.Context, sql string) error {
	results, err := c.Query(ctx, sql, nil)

	if err != nil {
		return err
	}

	_, err = results.Collect(ctx)

	return err
}

// withReturning appends a RETURNING clause to INSERT, REPLACE and DELETE
// statements.
func withReturning(sql string, columns []string) string {
	trimmed := strings.TrimSpace(sql)
	verb, _, _ := strings.Cut(trimmed, " ")

	switch strings.ToUpper(verb) {
	case "INSERT", "REPLACE", "DELETE":
		return strings.TrimRight(trimmed, "; \t\n") + " RETURNING " + strings.Join(columns, ", ")
	}

	return sql
}

func drain(ctx context.Context, stream MessageStream) error {
	for {
		_, err := stream.Next(ctx)

		if err == io.EOF {
			return nil
		}

		if err != nil {
			return errors.Wrap(err, "mariadb: draining response")
		}
	}
}
