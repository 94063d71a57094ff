package mariadb

import (
	"context"
	"database/sql/driver"

	"github.com/pkg/errors"
)

// DialFunc opens a server session: socket, handshake and authentication are
// its concern.
type DialFunc func(ctx context.Context, config *Configuration) (Transport, error)

type Connector struct {
	config *Configuration
	dial   DialFunc
	driver driver.Driver
}

func NewConnector(config *Configuration, dial DialFunc) *Connector {
	if config == nil {
		config = NewConfiguration()
	}

	return &Connector{
		config: config,
		dial:   dial,
		driver: &Driver{Dial: dial},
	}
}

func (c *Connector) Connect(ctx context.Context) (driver.Conn, error) {
	if c.dial == nil {
		return nil, ErrNoDialer
	}

	transport, err := c.dial(ctx, c.config)

	if err != nil {
		return nil, errors.Wrap(err, "mariadb: dial")
	}

	connection, err := NewConnection(transport, c.config)

	if err != nil {
		transport.Close()
		return nil, err
	}

	return NewConn(connection), nil
}

func (c *Connector) Driver() driver.Driver {
	return c.driver
}
