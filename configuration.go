package mariadb

import (
	"strconv"
	"strings"
	"time"

	"github.com/litebase/mariadb-go/codec"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const defaultPrepareCacheSize = 250

type Configuration struct {
	// PrepareCacheSize bounds the per-connection prepared statement cache.
	// Zero disables caching: every execution prepares and closes its own
	// statement.
	PrepareCacheSize int

	// UseServerPrepStatements selects the binary protocol for parameterized
	// database/sql queries. When false, parameters are interpolated client
	// side and sent as text queries.
	UseServerPrepStatements bool

	// ServerVersion is the version string the server sent in its handshake.
	ServerVersion string

	// Location is the zone time.Time values are read and written in.
	Location *time.Location

	Logger *zap.Logger

	// Codecs overrides the codec registry built from Location.
	Codecs *codec.Registry
}

func NewConfiguration() *Configuration {
	return &Configuration{
		PrepareCacheSize:        defaultPrepareCacheSize,
		UseServerPrepStatements: true,
		Location:                time.UTC,
		Logger:                  zap.NewNop(),
	}
}

// ParseDSN reads a space separated list of key=value pairs:
//
//	prepare_cache_size=250 use_server_prep_statements=true server_version=10.11.6-MariaDB loc=UTC log_level=debug
func ParseDSN(name string) (*Configuration, error) {
	config := NewConfiguration()
	args := make(map[string]string)

	for _, pair := range strings.Fields(name) {
		key, value, ok := strings.Cut(pair, "=")

		if !ok || key == "" {
			return nil, errors.Errorf("mariadb: malformed DSN entry %q", pair)
		}

		args[key] = value
	}

	for key, value := range args {
		switch key {
		case "prepare_cache_size":
			size, err := strconv.Atoi(value)

			if err != nil || size < 0 {
				return nil, errors.Errorf("mariadb: prepare_cache_size must be a non-negative integer, got %q", value)
			}

			config.PrepareCacheSize = size
		case "use_server_prep_statements":
			enabled, err := strconv.ParseBool(value)

			if err != nil {
				return nil, errors.Wrap(err, "mariadb: use_server_prep_statements")
			}

			config.UseServerPrepStatements = enabled
		case "server_version":
			if _, err := ParseServerVersion(value); err != nil {
				return nil, err
			}

			config.ServerVersion = value
		case "loc":
			location, err := time.LoadLocation(value)

			if err != nil {
				return nil, errors.Wrap(err, "mariadb: loc")
			}

			config.Location = location
		case "log_level":
			level, err := zapcore.ParseLevel(value)

			if err != nil {
				return nil, errors.Wrap(err, "mariadb: log_level")
			}

			zapConfig := zap.NewProductionConfig()
			zapConfig.Level = zap.NewAtomicLevelAt(level)

			logger, err := zapConfig.Build()

			if err != nil {
				return nil, errors.Wrap(err, "mariadb: log_level")
			}

			config.Logger = logger
		default:
			return nil, errors.Errorf("mariadb: unknown DSN key %q", key)
		}
	}

	return config, nil
}

func (c *Configuration) registry() *codec.Registry {
	if c.Codecs != nil {
		return c.Codecs
	}

	if c.Location == nil || c.Location == time.UTC {
		return codec.Default
	}

	return codec.NewRegistry(codec.DefaultCodecs(c.Location)...)
}

func (c *Configuration) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}

	return c.Logger
}

func (c *Configuration) serverVersion() ServerVersion {
	// Validated by ParseDSN; a hand-built configuration with a bad string
	// is treated as an unknown server.
	v, _ := ParseServerVersion(c.ServerVersion)

	return v
}
