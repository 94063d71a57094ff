package mariadb

import (
	"context"
	"database/sql"
	"database/sql/driver"
)

func init() {
	sql.Register("mariadb", &Driver{})
}

// Driver opens connections through Dial, which hands back an authenticated
// Transport. The driver registered as "mariadb" has no Dial and can only be
// used to validate DSNs; use sql.OpenDB with NewConnector to connect.
type Driver struct {
	Dial DialFunc
}

func (d *Driver) Open(name string) (driver.Conn, error) {
	connector, err := d.OpenConnector(name)

	if err != nil {
		return nil, err
	}

	return connector.Connect(context.Background())
}

func (d *Driver) OpenConnector(name string) (driver.Connector, error) {
	config, err := ParseDSN(name)

	if err != nil {
		return nil, err
	}

	connector := NewConnector(config, d.Dial)
	connector.driver = d

	return connector, nil
}
