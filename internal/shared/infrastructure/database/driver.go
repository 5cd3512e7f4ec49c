// Package database opens the SQL backends entity and token stores run on.
package database

import (
	"fmt"
	"strings"
)

// Driver names a storage backend.
type Driver string

const (
	DriverMemory   Driver = "memory"
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

func (d Driver) String() string {
	return string(d)
}

// ParseDriver resolves a configured store name. An empty name picks
// SQLite, the zero-config local default.
func ParseDriver(name string) (Driver, error) {
	switch Driver(strings.ToLower(strings.TrimSpace(name))) {
	case "", DriverSQLite:
		return DriverSQLite, nil
	case DriverMemory:
		return DriverMemory, nil
	case DriverPostgres, "postgresql":
		return DriverPostgres, nil
	}
	return "", fmt.Errorf("unknown store %q (want memory, sqlite or postgres)", name)
}

// DetectDriver guesses the backend from a connection string.
func DetectDriver(url string) Driver {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return DriverPostgres
	case url == ":memory:":
		return DriverMemory
	default:
		return DriverSQLite
	}
}
