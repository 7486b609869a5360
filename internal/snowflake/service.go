// Package snowflake wraps the gosnowflake driver for the loader and the
// dashboard: named connections, parameterized statements and result tables.
package snowflake

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	sf "github.com/snowflakedb/gosnowflake"

	"studiopipe/internal/observability"
	"studiopipe/pkg/errors"
)

// Service provides Snowflake database operations over one *sql.DB.
type Service struct {
	mu             sync.Mutex
	db             *sql.DB
	conn           Connection
	queryTimeout   time.Duration
	retry          *errors.RetryConfig
	circuitBreaker *errors.CircuitBreaker
	logger         *observability.Logger
	openDB         func(cfg *sf.Config) *sql.DB
}

// Options tunes a Service. Zero values keep the defaults.
type Options struct {
	QueryTimeout time.Duration
	Retry        *errors.RetryConfig
	Logger       *observability.Logger
}

// NewService creates a service for a resolved connection. Nothing is
// opened until Connect.
func NewService(conn Connection, opts Options) *Service {
	retry := opts.Retry
	if retry == nil {
		retry = errors.DefaultRetryConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = observability.GetDefaultLogger()
	}

	s := &Service{
		conn:           conn,
		queryTimeout:   opts.QueryTimeout,
		retry:          retry,
		circuitBreaker: errors.NewCircuitBreaker("snowflake", 5, 30*time.Second),
		logger:         logger.WithField("connection", conn.Name),
		openDB: func(cfg *sf.Config) *sql.DB {
			return sql.OpenDB(sf.NewConnector(sf.SnowflakeDriver{}, *cfg))
		},
	}
	if s.retry.OnRetry == nil {
		s.retry.OnRetry = func(attempt int, delay time.Duration, err error) {
			s.logger.WarnWithFields("Retrying Snowflake connection", map[string]interface{}{
				"attempt": attempt,
				"delay":   delay.String(),
				"error":   err,
			})
		}
	}
	return s
}

// NewServiceWithDB wraps an already open database handle.
func NewServiceWithDB(db *sql.DB, opts Options) *Service {
	s := NewService(Connection{Name: "external"}, opts)
	s.db = db
	return s
}

// SetDriverLogLevel sets the gosnowflake logger level (trace..panic).
func SetDriverLogLevel(level string) error {
	if level == "" {
		return nil
	}
	if err := sf.GetLogger().SetLogLevel(strings.ToLower(level)); err != nil {
		return errors.ConfigError(fmt.Sprintf("Invalid driver log level %q", level), "log.driver_level")
	}
	return nil
}

// Connection returns the connection the service was built for.
func (s *Service) Connection() Connection {
	return s.conn
}

// Connected reports whether a database handle is open.
func (s *Service) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db != nil
}

// Connect opens and pings the connection, retrying recoverable failures
// behind a circuit breaker. It is a no-op when already connected.
func (s *Service) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}

	cfg, err := s.conn.DriverConfig()
	if err != nil {
		return err
	}

	return s.circuitBreaker.Execute(ctx, func() error {
		return errors.Retry(ctx, s.retry, func(ctx context.Context) error {
			db := s.openDB(cfg)

			pingCtx, cancel := s.withTimeout(ctx)
			defer cancel()

			if err := db.PingContext(pingCtx); err != nil {
				_ = db.Close()

				msg := strings.ToLower(err.Error())
				if strings.Contains(msg, "authentication") || strings.Contains(msg, "incorrect username or password") {
					return errors.New(errors.ErrCodeAuthenticationFailed, "Authentication failed").
						WithContext("user", s.conn.User).
						WithContext("connection", s.conn.Name).
						WithSuggestions(
							"Verify the user and password in connections.toml",
							fmt.Sprintf("Store the password with: keyring set %s %s", KeyringService, s.conn.Name),
							"Check the private key registered for key-pair authentication",
						)
				}

				return errors.ConnectionError("Failed to connect to Snowflake", err).
					WithContext("account", s.conn.Account).
					WithContext("connection", s.conn.Name).
					AsRecoverable()
			}

			s.db = db
			s.logger.DebugWithFields("Connected to Snowflake", map[string]interface{}{
				"account":   s.conn.Account,
				"warehouse": s.conn.Warehouse,
			})
			return nil
		})
	})
}

// Close closes the database connection.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}

// Ping checks the open connection.
func (s *Service) Ping(ctx context.Context) error {
	db, err := s.handle()
	if err != nil {
		return err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return errors.ConnectionError("Snowflake ping failed", err)
	}
	return nil
}

// Exec runs a statement with bind parameters.
func (s *Service) Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, errors.SQLError("Failed to execute statement", query, err)
	}
	return result, nil
}

// QueryTable runs a query and buffers the whole result.
func (s *Service) QueryTable(ctx context.Context, query string, args ...interface{}) (*Table, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.SQLError("Failed to execute query", query, err)
	}
	defer rows.Close()

	table, err := scanTable(rows)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeResultParsing, "Failed to read query results").
			WithContext("query", query)
	}
	return table, nil
}

// Count returns SELECT COUNT(*) for a fully qualified table.
func (s *Service) Count(ctx context.Context, fqn string) (int64, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", fqn)

	table, err := s.QueryTable(ctx, query)
	if err != nil {
		return 0, err
	}
	if table.Len() == 0 || len(table.Rows[0]) == 0 {
		return 0, errors.New(errors.ErrCodeNoResults, "COUNT returned no rows").
			WithContext("table", fqn)
	}

	n, ok := ToInt64(table.Rows[0][0])
	if !ok {
		return 0, errors.New(errors.ErrCodeResultParsing, "COUNT returned a non-numeric value").
			WithContext("table", fqn).
			WithContext("value", table.Rows[0][0])
	}
	return n, nil
}

// RefreshDynamicTable triggers a manual refresh and returns the refresh
// statistics column of the response, or "refreshed" when there is none.
func (s *Service) RefreshDynamicTable(ctx context.Context, fqn string) (string, error) {
	query := fmt.Sprintf("ALTER DYNAMIC TABLE %s REFRESH", fqn)

	table, err := s.QueryTable(ctx, query)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeRefreshFailed,
			fmt.Sprintf("Failed to refresh dynamic table %s", fqn)).
			WithContext("table", fqn)
	}

	stats := "refreshed"
	if table.Len() > 0 && len(table.Rows[0]) > 1 {
		stats = FormatValue(table.Rows[0][1])
	}
	s.logger.DebugWithFields("Dynamic table refreshed", map[string]interface{}{
		"table": fqn,
		"stats": stats,
	})
	return stats, nil
}

// DB returns the underlying database handle, nil before Connect.
func (s *Service) DB() *sql.DB {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db
}

func (s *Service) handle() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil, errors.New(errors.ErrCodeConnectionFailed, "Not connected to database").
			WithSuggestions("Call Connect() before executing SQL")
	}
	return s.db, nil
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout > 0 {
		return context.WithTimeout(ctx, s.queryTimeout)
	}
	return context.WithCancel(ctx)
}
