package mariadb_test

import (
	"database/sql"
	"testing"
)

func TestOpen(t *testing.T) {
	_, err := sql.Open("mariadb", "prepare_cache_size=250 use_server_prep_statements=true server_version=10.11.6-MariaDB loc=UTC")

	if err != nil {
		t.Fatal(err)
	}
}
