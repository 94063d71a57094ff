package mariadb

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-mysql-org/go-mysql/mysql"
	"github.com/litebase/mariadb-go/codec"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	packetHeaderSize = 4
	quitTimeout      = time.Second
)

type deadliner interface {
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

// PacketTransport speaks the client/server packet protocol over an already
// authenticated session. Commands may be pipelined: each Send writes its
// command immediately and responses are read back in send order.
type PacketTransport struct {
	broken       error
	buffers      *sync.Pool
	closed       atomic.Bool
	conn         io.ReadWriteCloser
	deprecateEOF bool
	logger       *zap.Logger
	pending      []*packetStream
	reader       *bufio.Reader
	readMutex    sync.Mutex
	writer       *bufio.Writer
	writeMutex   sync.Mutex
}

type PacketTransportOption func(*PacketTransport)

// WithDeprecateEOF is for sessions that negotiated CLIENT_DEPRECATE_EOF:
// no EOF packet follows column definitions and result sets end with an OK
// packet.
func WithDeprecateEOF() PacketTransportOption {
	return func(t *PacketTransport) {
		t.deprecateEOF = true
	}
}

func WithTransportLogger(logger *zap.Logger) PacketTransportOption {
	return func(t *PacketTransport) {
		t.logger = logger
	}
}

func NewPacketTransport(conn io.ReadWriteCloser, options ...PacketTransportOption) *PacketTransport {
	t := &PacketTransport{
		buffers: &sync.Pool{
			New: func() interface{} {
				return &bytes.Buffer{}
			},
		},
		conn:   conn,
		logger: zap.NewNop(),
		reader: bufio.NewReaderSize(conn, 16*1024),
		writer: bufio.NewWriterSize(conn, 16*1024),
	}

	for _, option := range options {
		option(t)
	}

	return t
}

func (t *PacketTransport) Send(ctx context.Context, command *Command) (MessageStream, error) {
	if t.closed.Load() {
		return nil, ErrConnectionClosed
	}

	t.writeMutex.Lock()
	defer t.writeMutex.Unlock()

	if d, ok := t.conn.(deadliner); ok {
		deadline, _ := ctx.Deadline()
		d.SetWriteDeadline(deadline)
	}

	var stream *packetStream

	if command.ExpectsResponse() {
		stream = &packetStream{command: command, transport: t}

		t.readMutex.Lock()
		t.pending = append(t.pending, stream)
		t.readMutex.Unlock()
	}

	if err := t.writeCommand(command); err != nil {
		t.setBroken(err)
		return nil, errors.Wrap(err, "mariadb: writing command")
	}

	t.logger.Debug("command written",
		zap.String("command_id", command.ID),
		zap.String("kind", command.kindName()),
		zap.Int("bytes", len(command.Payload)+1),
	)

	if stream == nil {
		return EmptyStream, nil
	}

	return stream, nil
}

// writeCommand frames the command body into packets of at most
// mysql.MaxPayloadLen bytes. A body that is an exact multiple of the limit
// ends with an empty packet.
func (t *PacketTransport) writeCommand(command *Command) error {
	buffer := t.buffers.Get().(*bytes.Buffer)
	defer t.buffers.Put(buffer)

	buffer.Reset()
	buffer.WriteByte(command.Kind)
	buffer.Write(command.Payload)

	body := buffer.Bytes()
	var sequence uint8

	for {
		size := min(len(body), mysql.MaxPayloadLen)

		// Write the 3 byte length and the sequence id
		header := [packetHeaderSize]byte{byte(size), byte(size >> 8), byte(size >> 16), sequence}

		if _, err := t.writer.Write(header[:]); err != nil {
			return err
		}

		if _, err := t.writer.Write(body[:size]); err != nil {
			return err
		}

		body = body[size:]
		sequence++

		if size < mysql.MaxPayloadLen {
			break
		}
	}

	return t.writer.Flush()
}

// readPacket reads one logical packet, joining continuation packets.
func (t *PacketTransport) readPacket() ([]byte, error) {
	var payload []byte
	header := make([]byte, packetHeaderSize)

	for {
		if _, err := io.ReadFull(t.reader, header); err != nil {
			return nil, err
		}

		size := int(uint32(header[0]) | uint32(header[1])<<8 | uint32(header[2])<<16)
		chunk := make([]byte, size)

		if _, err := io.ReadFull(t.reader, chunk); err != nil {
			return nil, err
		}

		if payload == nil {
			payload = chunk
		} else {
			payload = append(payload, chunk...)
		}

		if size < mysql.MaxPayloadLen {
			return payload, nil
		}
	}
}

func (t *PacketTransport) setBroken(err error) {
	t.readMutex.Lock()
	defer t.readMutex.Unlock()

	if t.broken == nil {
		t.broken = err
	}
}

// Close sends COM_QUIT and closes the connection.
func (t *PacketTransport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}

	t.writeMutex.Lock()

	if d, ok := t.conn.(deadliner); ok {
		d.SetWriteDeadline(time.Now().Add(quitTimeout))
	}

	t.writeCommand(&Command{Kind: mysql.COM_QUIT})
	t.writeMutex.Unlock()

	return t.conn.Close()
}

type streamState int

const (
	streamStart streamState = iota
	streamPrepareParams
	streamPrepareParamsEOF
	streamPrepareColumns
	streamPrepareColumnsEOF
	streamColumns
	streamColumnsEOF
	streamRows
	streamDone
)

// packetStream decodes the response to one command.
type packetStream struct {
	buffered  []ServerMessage
	command   *Command
	prepare   *PrepareOK
	remaining int
	state     streamState
	transport *PacketTransport
}

func (s *packetStream) Next(ctx context.Context) (ServerMessage, error) {
	t := s.transport

	t.readMutex.Lock()
	defer t.readMutex.Unlock()

	if d, ok := t.conn.(deadliner); ok {
		deadline, _ := ctx.Deadline()
		d.SetReadDeadline(deadline)
	}

	for {
		if len(s.buffered) > 0 {
			message := s.buffered[0]
			s.buffered = s.buffered[1:]

			return message, nil
		}

		if s.state == streamDone {
			return nil, io.EOF
		}

		if t.broken != nil {
			return nil, t.broken
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if len(t.pending) == 0 {
			return nil, errors.New("mariadb: no response pending")
		}

		// Responses arrive in send order: earlier streams are read into
		// their buffers first.
		head := t.pending[0]

		message, err := head.read()

		if err != nil {
			t.broken = errors.Wrap(err, "mariadb: reading response")
			return nil, t.broken
		}

		if head.state == streamDone {
			t.pending = t.pending[1:]
		}

		if message == nil {
			continue
		}

		if head == s {
			return message, nil
		}

		head.buffered = append(head.buffered, message)
	}
}

// read consumes one packet and returns the message it completes, if any.
func (s *packetStream) read() (ServerMessage, error) {
	packet, err := s.transport.readPacket()

	if err != nil {
		return nil, err
	}

	if len(packet) == 0 {
		return nil, errors.New("mariadb: empty packet")
	}

	switch s.state {
	case streamStart:
		return s.readFirst(packet)
	case streamPrepareParams, streamPrepareColumns, streamColumns:
		column, err := parseColumnDefinition(packet)

		if err != nil {
			return nil, err
		}

		return s.column(column), nil
	case streamPrepareParamsEOF:
		s.state = streamPrepareColumns
		s.remaining = s.prepare.NumColumns

		return s.prepareColumnsDone(), nil
	case streamPrepareColumnsEOF:
		s.state = streamDone
		return s.prepare, nil
	case streamColumnsEOF:
		s.state = streamRows
		return nil, nil
	case streamRows:
		return s.readRow(packet)
	}

	return nil, errors.Errorf("mariadb: packet after the response ended")
}

func (s *packetStream) readFirst(packet []byte) (ServerMessage, error) {
	switch packet[0] {
	case mysql.ERR_HEADER:
		s.state = streamDone
		return parseErrorPacket(packet), nil
	case mysql.OK_HEADER:
		if s.command.Kind == mysql.COM_STMT_PREPARE {
			return s.readPrepareOK(packet)
		}

		ok, err := parseOKPacket(packet)

		if err != nil {
			return nil, err
		}

		if !ok.MoreResults() {
			s.state = streamDone
		}

		return ok, nil
	case mysql.LocalInFile_HEADER:
		return nil, errors.New("mariadb: LOAD DATA LOCAL INFILE is not supported")
	}

	count, _, err := readLengthEncodedInt(packet)

	if err != nil {
		return nil, err
	}

	s.state = streamColumns
	s.remaining = int(count)

	return nil, nil
}

func (s *packetStream) readPrepareOK(packet []byte) (ServerMessage, error) {
	if len(packet) < 12 {
		return nil, errors.Wrap(codec.ErrShortBuffer, "mariadb: prepare OK packet")
	}

	s.prepare = &PrepareOK{
		StatementID: binary.LittleEndian.Uint32(packet[1:5]),
		NumColumns:  int(binary.LittleEndian.Uint16(packet[5:7])),
		NumParams:   int(binary.LittleEndian.Uint16(packet[7:9])),
		Warnings:    binary.LittleEndian.Uint16(packet[10:12]),
	}

	if s.prepare.NumParams > 0 {
		s.state = streamPrepareParams
		s.remaining = s.prepare.NumParams

		return nil, nil
	}

	s.state = streamPrepareColumns
	s.remaining = s.prepare.NumColumns

	return s.prepareColumnsDone(), nil
}

// prepareColumnsDone finishes a prepare response without column definitions.
func (s *packetStream) prepareColumnsDone() ServerMessage {
	if s.remaining > 0 {
		return nil
	}

	s.state = streamDone

	return s.prepare
}

func (s *packetStream) column(column *codec.ColumnDescriptor) ServerMessage {
	s.remaining--

	switch s.state {
	case streamPrepareParams:
		s.prepare.Params = append(s.prepare.Params, column)

		if s.remaining == 0 {
			if s.transport.deprecateEOF {
				s.state = streamPrepareColumns
				s.remaining = s.prepare.NumColumns

				return s.prepareColumnsDone()
			}

			s.state = streamPrepareParamsEOF
		}

		return nil
	case streamPrepareColumns:
		s.prepare.Columns = append(s.prepare.Columns, column)

		if s.remaining == 0 {
			if s.transport.deprecateEOF {
				s.state = streamDone
				return s.prepare
			}

			s.state = streamPrepareColumnsEOF
		}

		return nil
	}

	if s.remaining == 0 {
		if s.transport.deprecateEOF {
			s.state = streamRows
		} else {
			s.state = streamColumnsEOF
		}
	}

	return &ColumnDefinition{Column: column}
}

func (s *packetStream) readRow(packet []byte) (ServerMessage, error) {
	switch {
	case packet[0] == mysql.ERR_HEADER:
		s.state = streamDone
		return parseErrorPacket(packet), nil
	case packet[0] == mysql.EOF_HEADER && len(packet) < 9:
		eof, err := s.parseEnd(packet)

		if err != nil {
			return nil, err
		}

		if eof.MoreResults() {
			s.state = streamStart
		} else {
			s.state = streamDone
		}

		return eof, nil
	}

	return &RowData{Raw: packet, Binary: s.command.Kind == mysql.COM_STMT_EXECUTE}, nil
}

func (s *packetStream) parseEnd(packet []byte) (*EOFPacket, error) {
	if s.transport.deprecateEOF {
		ok, err := parseOKPacket(packet)

		if err != nil {
			return nil, err
		}

		return &EOFPacket{Warnings: ok.Warnings, Status: ok.Status}, nil
	}

	eof := &EOFPacket{}

	if len(packet) >= 5 {
		eof.Warnings = binary.LittleEndian.Uint16(packet[1:3])
		eof.Status = binary.LittleEndian.Uint16(packet[3:5])
	}

	return eof, nil
}

func readLengthEncodedInt(b []byte) (uint64, int, error) {
	if len(b) == 0 {
		return 0, 0, errors.Wrap(codec.ErrShortBuffer, "length-encoded integer")
	}

	size := 1

	switch b[0] {
	case 0xfc:
		size = 3
	case 0xfd:
		size = 4
	case 0xfe:
		size = 9
	}

	if len(b) < size {
		return 0, 0, errors.Wrap(codec.ErrShortBuffer, "length-encoded integer")
	}

	num, _, n := mysql.LengthEncodedInt(b)

	return num, n, nil
}

func parseOKPacket(packet []byte) (*OKPacket, error) {
	pos := 1
	ok := &OKPacket{}

	affected, n, err := readLengthEncodedInt(packet[pos:])

	if err != nil {
		return nil, err
	}

	pos += n

	lastInsertID, n, err := readLengthEncodedInt(packet[pos:])

	if err != nil {
		return nil, err
	}

	pos += n

	ok.AffectedRows = affected
	ok.LastInsertID = lastInsertID

	if len(packet) >= pos+4 {
		ok.Status = binary.LittleEndian.Uint16(packet[pos:])
		ok.Warnings = binary.LittleEndian.Uint16(packet[pos+2:])
		ok.Info = string(packet[pos+4:])
	}

	return ok, nil
}

func parseErrorPacket(packet []byte) *ErrorPacket {
	e := &ErrorPacket{SQLState: "HY000"}

	if len(packet) < 3 {
		e.Message = "malformed error packet"
		return e
	}

	e.Code = binary.LittleEndian.Uint16(packet[1:3])
	message := packet[3:]

	if len(message) >= 6 && message[0] == '#' {
		e.SQLState = string(message[1:6])
		message = message[6:]
	}

	e.Message = string(message)

	return e
}

func parseColumnDefinition(packet []byte) (*codec.ColumnDescriptor, error) {
	pos := 0

	// catalog, schema, table, org_table, name, org_name
	var fields [6]string

	for i := range fields {
		value, n, err := codec.ReadLengthEncoded(packet[pos:])

		if err != nil {
			return nil, errors.Wrap(err, "mariadb: column definition")
		}

		fields[i] = string(value)
		pos += n
	}

	// Skip the length of the fixed fields
	_, n, err := readLengthEncodedInt(packet[pos:])

	if err != nil {
		return nil, errors.Wrap(err, "mariadb: column definition")
	}

	pos += n

	if len(packet) < pos+10 {
		return nil, errors.Wrap(codec.ErrShortBuffer, "mariadb: column definition")
	}

	dataType, err := codec.DataTypeFromCode(packet[pos+6])

	if err != nil {
		return nil, err
	}

	return &codec.ColumnDescriptor{
		Schema:   fields[1],
		Table:    fields[2],
		Name:     fields[4],
		DataType: dataType,
		Charset:  binary.LittleEndian.Uint16(packet[pos:]),
		Length:   binary.LittleEndian.Uint32(packet[pos+2:]),
		Flags:    binary.LittleEndian.Uint16(packet[pos+7:]),
		Decimals: packet[pos+9],
	}, nil
}
