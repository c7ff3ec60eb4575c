package util

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"

	"github.com/sqlport/sqlport/internal/config"
	"github.com/sqlport/sqlport/internal/logger"
	"github.com/sqlport/sqlport/internal/verifier"
)

// ConnectionConfig holds database connection parameters
type ConnectionConfig struct {
	Host            string
	Port            int
	Database        string
	User            string
	Password        string
	SSLMode         string
	ApplicationName string
}

// Connect opens a connection with the given driver ("pgx" or "postgres") and
// DSN, and verifies it with a ping.
func Connect(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	log := logger.Get()
	if driver == "" {
		driver = "pgx"
	}

	log.Debug("Attempting database connection", "driver", driver)

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Debug("Database connection established successfully")
	return conn, nil
}

// TargetConnector adapts an endpoint configuration into the connector the
// verifier uses. Each call opens a fresh connection; the verifier owns its
// lifetime.
func TargetConnector(endpoint config.EndpointConfig) verifier.ConnectFunc {
	return func(ctx context.Context) (*sql.DB, error) {
		dsn := ResolveTargetURI(endpoint.URI)
		if dsn == "" {
			return nil, fmt.Errorf("target database URI is not configured (set database.target.uri or PG* environment variables)")
		}
		return Connect(ctx, endpoint.Driver, dsn)
	}
}

// BuildDSN constructs a PostgreSQL connection string from connection parameters
func BuildDSN(config *ConnectionConfig) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("host=%s", config.Host))
	parts = append(parts, fmt.Sprintf("port=%d", config.Port))
	parts = append(parts, fmt.Sprintf("dbname=%s", config.Database))
	parts = append(parts, fmt.Sprintf("user=%s", config.User))

	if config.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", config.Password))
	}

	if config.SSLMode != "" {
		parts = append(parts, fmt.Sprintf("sslmode=%s", config.SSLMode))
	}

	if config.ApplicationName != "" {
		parts = append(parts, fmt.Sprintf("application_name=%s", config.ApplicationName))
	}

	return strings.Join(parts, " ")
}
