package mariadb

import (
	"context"
	"io"
	"iter"
	"sync"

	"github.com/litebase/mariadb-go/codec"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// window is the response stream of one command and the tag its results carry.
type window struct {
	commandID string
	stream    MessageStream
	tag       resultTag
}

// Results splits the response streams of an execution into logical results,
// in the order the commands were sent. The connection stays reserved until
// every stream is consumed or Close is called.
type Results struct {
	current       int
	done          bool
	logger        *zap.Logger
	onServerError func(*ServerError)
	registry      *codec.Registry
	release       func()
	releaseOnce   sync.Once
	sql           string
	windows       []window
}

func newResults(sql string, windows []window, registry *codec.Registry, logger *zap.Logger, release func()) *Results {
	return &Results{
		logger:   logger,
		registry: registry,
		release:  release,
		sql:      sql,
		windows:  windows,
	}
}

// Next returns the next result, or io.EOF when every stream is consumed. A
// server error for one result is returned as *ServerError; later results can
// still be read.
func (r *Results) Next(ctx context.Context) (*Result, error) {
	var messages []ServerMessage

	for !r.done {
		if r.current >= len(r.windows) {
			r.finish()
			break
		}

		w := r.windows[r.current]
		message, err := w.stream.Next(ctx)

		if err == io.EOF {
			if len(messages) > 0 {
				r.fail()
				return nil, errors.New("mariadb: response ended inside a result")
			}

			r.current++
			continue
		}

		if err != nil {
			r.fail()
			return nil, errors.Wrap(err, "mariadb: reading response")
		}

		if errPacket, ok := message.(*ErrorPacket); ok {
			serverErr := newServerError(errPacket, r.sql)

			if r.onServerError != nil {
				r.onServerError(serverErr)
			}

			return nil, serverErr
		}

		messages = append(messages, message)

		if message.ResultSetEnd() {
			return buildResult(w.commandID, messages, w.tag, r.registry)
		}
	}

	return nil, io.EOF
}

// All iterates the remaining results. Breaking out of the loop closes r.
func (r *Results) All(ctx context.Context) iter.Seq2[*Result, error] {
	return func(yield func(*Result, error) bool) {
		for {
			result, err := r.Next(ctx)

			if err == io.EOF {
				return
			}

			if !yield(result, err) {
				r.Close()
				return
			}

			if err != nil && r.done {
				return
			}
		}
	}
}

// Collect reads every remaining result, stopping at the first error.
func (r *Results) Collect(ctx context.Context) ([]*Result, error) {
	var out []*Result

	for result, err := range r.All(ctx) {
		if err != nil {
			r.Close()
			return out, err
		}

		out = append(out, result)
	}

	return out, nil
}

// Close drains what is left of the response so the connection can carry the
// next command.
func (r *Results) Close() error {
	return r.CloseContext(context.Background())
}

func (r *Results) CloseContext(ctx context.Context) error {
	for !r.done {
		_, err := r.Next(ctx)

		if err == io.EOF {
			break
		}

		if err != nil && r.done {
			r.logger.Warn("results abandoned before the response was drained", zap.Error(err))
			return err
		}
	}

	return nil
}

func (r *Results) finish() {
	r.done = true
	r.releaseOnce.Do(func() {
		if r.release != nil {
			r.release()
		}
	})
}

// fail stops reading after a transport error. The remaining streams cannot
// be trusted, so the connection is released as is.
func (r *Results) fail() {
	r.current = len(r.windows)
	r.finish()
}
