package mariadb

import (
	"sync/atomic"

	"github.com/litebase/mariadb-go/codec"
)

// PreparedHandle is a server prepared statement. It is reference counted:
// the cache holds one reference while the handle is cached and every running
// execution holds one. The server statement is closed exactly once, when the
// count drops to zero.
type PreparedHandle struct {
	StatementID uint32
	SQL         string
	NumParams   int
	NumColumns  int
	Params      []*codec.ColumnDescriptor
	Columns     []*codec.ColumnDescriptor

	closed   atomic.Bool
	onClose  func(*PreparedHandle)
	stale    atomic.Bool
	useCount atomic.Int32
}

// NewPreparedHandle returns a handle holding one reference for its creator.
// onClose is called once when the last reference is released.
func NewPreparedHandle(sql string, ok *PrepareOK, onClose func(*PreparedHandle)) *PreparedHandle {
	h := &PreparedHandle{
		StatementID: ok.StatementID,
		SQL:         sql,
		NumParams:   ok.NumParams,
		NumColumns:  ok.NumColumns,
		Params:      ok.Params,
		Columns:     ok.Columns,
		onClose:     onClose,
	}

	h.useCount.Store(1)

	return h
}

// Acquire takes a reference. It fails once the handle is closed.
func (h *PreparedHandle) Acquire() bool {
	for {
		n := h.useCount.Load()

		if n <= 0 || h.closed.Load() {
			return false
		}

		if h.useCount.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Release drops a reference, closing the handle on the last one.
func (h *PreparedHandle) Release() {
	n := h.useCount.Add(-1)

	if n > 0 {
		return
	}

	if n < 0 {
		h.useCount.Store(0)
		return
	}

	if h.closed.CompareAndSwap(false, true) && h.onClose != nil {
		h.onClose(h)
	}
}

func (h *PreparedHandle) UseCount() int {
	return int(h.useCount.Load())
}

func (h *PreparedHandle) Closed() bool {
	return h.closed.Load()
}

// Stale reports that the server no longer knows the statement id.
func (h *PreparedHandle) Stale() bool {
	return h.stale.Load()
}

func (h *PreparedHandle) markStale() {
	h.stale.Store(true)
}
