package mariadb

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// MariaDB servers behind a MySQL 5.5 compatible handshake prefix their
// version with this string.
const replicationVersionPrefix = "5.5.5-"

// ServerVersion is the version a server reported in its handshake.
type ServerVersion struct {
	Raw     string
	Major   int
	Minor   int
	Patch   int
	MariaDB bool
}

// ParseServerVersion reads versions such as "10.11.6-MariaDB",
// "5.5.5-10.5.1-MariaDB-log" or "8.0.36".
func ParseServerVersion(raw string) (ServerVersion, error) {
	v := ServerVersion{
		Raw:     raw,
		MariaDB: strings.Contains(strings.ToLower(raw), "mariadb"),
	}

	s := raw

	if v.MariaDB {
		s = strings.TrimPrefix(s, replicationVersionPrefix)
	}

	parts := [3]int{}

	for i := range parts {
		end := 0

		for end < len(s) && s[end] >= '0' && s[end] <= '9' {
			end++
		}

		if end == 0 {
			if i == 0 {
				return v, errors.Errorf("mariadb: invalid server version %q", raw)
			}

			break
		}

		n, err := strconv.Atoi(s[:end])

		if err != nil {
			return v, errors.Wrapf(err, "mariadb: invalid server version %q", raw)
		}

		parts[i] = n
		s = s[end:]

		if !strings.HasPrefix(s, ".") {
			break
		}

		s = s[1:]
	}

	v.Major, v.Minor, v.Patch = parts[0], parts[1], parts[2]

	return v, nil
}

// AtLeast compares the numeric version.
func (v ServerVersion) AtLeast(major, minor, patch int) bool {
	if v.Major != major {
		return v.Major > major
	}

	if v.Minor != minor {
		return v.Minor > minor
	}

	return v.Patch >= patch
}

// SupportsReturning reports whether INSERT and DELETE accept a RETURNING
// clause, which MariaDB added in 10.5.1.
func (v ServerVersion) SupportsReturning() bool {
	return v.MariaDB && v.AtLeast(10, 5, 1)
}

func (v ServerVersion) String() string {
	if v.Raw != "" {
		return v.Raw
	}

	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}
