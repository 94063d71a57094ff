package mariadb

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// CloseQueue collects statement ids whose handles were released while
// another command may own the wire. The connection flushes it before sending
// its next command.
type CloseQueue struct {
	logger       *zap.Logger
	mutex        sync.Mutex
	statementIDs []uint32
}

func NewCloseQueue(logger *zap.Logger) *CloseQueue {
	return &CloseQueue{
		logger:       logger,
		statementIDs: []uint32{},
	}
}

func (q *CloseQueue) Push(statementID uint32) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	q.statementIDs = append(q.statementIDs, statementID)
}

func (q *CloseQueue) Len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	return len(q.statementIDs)
}

// Flush sends COM_STMT_CLOSE for every queued id. The caller must own the
// wire. Ids that fail to send are dropped: the server frees them with the
// session.
func (q *CloseQueue) Flush(ctx context.Context, transport Transport) error {
	q.mutex.Lock()
	statementIDs := q.statementIDs
	q.statementIDs = []uint32{}
	q.mutex.Unlock()

	var firstErr error

	for _, id := range statementIDs {
		command := NewCloseCommand(id)

		if _, err := transport.Send(ctx, command); err != nil {
			q.logger.Warn("closing prepared statement failed",
				zap.Uint32("statement_id", id),
				zap.String("command_id", command.ID),
				zap.Error(err),
			)

			if firstErr == nil {
				firstErr = errors.Wrapf(err, "mariadb: closing statement %d", id)
			}

			continue
		}

		q.logger.Debug("prepared statement closed",
			zap.Uint32("statement_id", id),
			zap.String("command_id", command.ID),
		)
	}

	return firstErr
}
