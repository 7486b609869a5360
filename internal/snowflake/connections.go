package snowflake

import (
	"crypto/rsa"
	"os"
	"path/filepath"
	"sort"
	"strings"

	sf "github.com/snowflakedb/gosnowflake"
	"github.com/spf13/viper"
	"github.com/zalando/go-keyring"
	"golang.org/x/crypto/ssh"

	"studiopipe/internal/common"
	"studiopipe/pkg/errors"
)

const (
	// KeyringService is the keyring service holding connection passwords,
	// keyed by connection name.
	KeyringService = "studiopipe"
	// DefaultConnectionName is used when nothing selects a connection.
	DefaultConnectionName = "default"

	authenticatorJWT = "SNOWFLAKE_JWT"
)

// Connection is one named entry of connections.toml.
type Connection struct {
	Name              string `mapstructure:"-"`
	Account           string `mapstructure:"account"`
	User              string `mapstructure:"user"`
	Password          string `mapstructure:"password"`
	Role              string `mapstructure:"role"`
	Warehouse         string `mapstructure:"warehouse"`
	Database          string `mapstructure:"database"`
	Schema            string `mapstructure:"schema"`
	Host              string `mapstructure:"host"`
	Authenticator     string `mapstructure:"authenticator"`
	PrivateKeyFile    string `mapstructure:"private_key_file"`
	PrivateKeyFilePwd string `mapstructure:"private_key_file_pwd"`
}

// ConnectionsFile returns the connections.toml path. An explicit path wins,
// then $SNOWFLAKE_HOME, then ~/.snowflake.
func ConnectionsFile(explicit string) string {
	if explicit != "" {
		return common.ExpandHome(explicit)
	}
	if home := os.Getenv("SNOWFLAKE_HOME"); home != "" {
		return filepath.Join(common.ExpandHome(home), "connections.toml")
	}
	return common.ExpandHome(filepath.Join("~", ".snowflake", "connections.toml"))
}

// LoadConnections reads every named connection from a TOML file.
func LoadConnections(path string) (map[string]Connection, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(err, errors.ErrCodeConfigNotFound, "Connections file not found").
				WithContext("file", path).
				WithSuggestions(
					"Create ~/.snowflake/connections.toml",
					"Set SNOWFLAKE_HOME or snowflake.connections_file",
				)
		}
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "Failed to parse connections file").
			WithContext("file", path)
	}

	conns := make(map[string]Connection)
	for name, raw := range v.AllSettings() {
		if _, ok := raw.(map[string]interface{}); !ok {
			// top-level scalars such as default_connection_name
			continue
		}
		var c Connection
		if err := v.UnmarshalKey(name, &c); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "Failed to decode connection").
				WithContext("connection", name)
		}
		c.Name = name
		conns[name] = c
	}
	return conns, nil
}

// ConnectionNames returns the connection names sorted.
func ConnectionNames(conns map[string]Connection) []string {
	names := make([]string, 0, len(conns))
	for name := range conns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NeedsSelection reports whether the operator has to choose a connection:
// nothing named one explicitly, there are several and none is the default.
func NeedsSelection(conns map[string]Connection, explicit bool) bool {
	if explicit || len(conns) < 2 {
		return false
	}
	_, hasDefault := conns[DefaultConnectionName]
	return !hasDefault
}

// ResolveConnection picks a connection by name. A single connection is
// used when the default name is requested and no "default" entry exists.
func ResolveConnection(conns map[string]Connection, name string) (Connection, error) {
	key := strings.ToLower(name)
	if c, ok := conns[key]; ok {
		return c, nil
	}
	if key == DefaultConnectionName && len(conns) == 1 {
		for _, c := range conns {
			return c, nil
		}
	}
	return Connection{}, errors.New(errors.ErrCodeConnectionNotFound,
		"Snowflake connection '"+name+"' not found").
		WithContext("connection", name).
		WithContext("available", ConnectionNames(conns)).
		WithSuggestions(
			"Set SNOWFLAKE_CONNECTION_NAME to one of the available connections",
			"Run 'studiopipe connections' to list them",
		)
}

// DriverConfig converts the connection into a gosnowflake config. A
// missing password is looked up in the OS keyring and SNOWFLAKE_JWT loads
// the private key file.
func (c Connection) DriverConfig() (*sf.Config, error) {
	if c.Account == "" {
		return nil, errors.ConfigError("Connection has no account", "account").
			WithContext("connection", c.Name)
	}

	cfg := &sf.Config{
		Account:   c.Account,
		User:      c.User,
		Password:  c.Password,
		Role:      c.Role,
		Warehouse: c.Warehouse,
		Database:  c.Database,
		Schema:    c.Schema,
		Host:      c.Host,
	}

	switch strings.ToUpper(c.Authenticator) {
	case authenticatorJWT:
		key, err := c.privateKey()
		if err != nil {
			return nil, err
		}
		cfg.Authenticator = sf.AuthTypeJwt
		cfg.PrivateKey = key
		cfg.Password = ""
	case "EXTERNALBROWSER":
		cfg.Authenticator = sf.AuthTypeExternalBrowser
	case "", "SNOWFLAKE":
		if cfg.Password == "" {
			if pw, err := keyring.Get(KeyringService, c.Name); err == nil {
				cfg.Password = pw
			}
		}
	default:
		return nil, errors.ConfigError("Unsupported authenticator "+c.Authenticator, "authenticator").
			WithContext("connection", c.Name)
	}

	return cfg, nil
}

func (c Connection) privateKey() (*rsa.PrivateKey, error) {
	if c.PrivateKeyFile == "" {
		return nil, errors.ConfigError("SNOWFLAKE_JWT requires private_key_file", "private_key_file").
			WithContext("connection", c.Name)
	}

	path := common.ExpandHome(c.PrivateKeyFile)
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from the operator's connections file
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeAuthenticationFailed, "Failed to read private key").
			WithContext("file", path)
	}

	var raw interface{}
	if c.PrivateKeyFilePwd != "" {
		raw, err = ssh.ParseRawPrivateKeyWithPassphrase(data, []byte(c.PrivateKeyFilePwd))
	} else {
		raw, err = ssh.ParseRawPrivateKey(data)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeAuthenticationFailed, "Failed to parse private key").
			WithContext("file", path)
	}

	key, ok := raw.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New(errors.ErrCodeAuthenticationFailed, "Key-pair authentication needs an RSA key").
			WithContext("file", path)
	}
	return key, nil
}
