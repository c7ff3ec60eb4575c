package util

import (
	"os"
	"strconv"
)

// GetEnvWithDefault returns the value of an environment variable or a default value if not set
func GetEnvWithDefault(envVar, defaultValue string) string {
	if value := os.Getenv(envVar); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvIntWithDefault returns the value of an environment variable as int or a default value if not set
func GetEnvIntWithDefault(envVar string, defaultValue int) int {
	if value := os.Getenv(envVar); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// ResolveTargetURI resolves the target database connection string. An explicit
// configured URI wins; otherwise SQLPORT_TARGET_URI and DATABASE_URL are
// consulted, and finally a DSN is assembled from the standard PG* environment
// variables when a database name is present.
func ResolveTargetURI(configured string) string {
	if configured != "" {
		return configured
	}
	if uri := os.Getenv("SQLPORT_TARGET_URI"); uri != "" {
		return uri
	}
	if uri := os.Getenv("DATABASE_URL"); uri != "" {
		return uri
	}

	db := os.Getenv("PGDATABASE")
	if db == "" {
		return ""
	}
	return BuildDSN(&ConnectionConfig{
		Host:            GetEnvWithDefault("PGHOST", "localhost"),
		Port:            GetEnvIntWithDefault("PGPORT", 5432),
		Database:        db,
		User:            GetEnvWithDefault("PGUSER", "postgres"),
		Password:        os.Getenv("PGPASSWORD"),
		SSLMode:         GetEnvWithDefault("PGSSLMODE", "prefer"),
		ApplicationName: GetEnvWithDefault("PGAPPNAME", "sqlport"),
	})
}
