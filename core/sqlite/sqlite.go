// Package sqlite opens SQLite databases through whichever driver the build
// selected.
//
// Build modes:
//   - Default: pure Go modernc.org/sqlite
//   - -tags cgo_sqlite (CGO_ENABLED=1): github.com/mattn/go-sqlite3
//
// Use Open or OpenFile instead of sql.Open so the driver name and the
// connection options match the linked implementation.
package sqlite

import (
	"database/sql"
	"fmt"
)

// DriverName returns the registered SQL driver name.
func DriverName() string {
	return driverName
}

// DriverType returns "cgo" for mattn/go-sqlite3, "purego" for modernc.org/sqlite.
func DriverType() string {
	return driverType
}

// IsCGO returns true if the CGO implementation is being used.
func IsCGO() bool {
	return driverType == "cgo"
}

// Open opens a database with a raw data source name.
func Open(dataSourceName string) (*sql.DB, error) {
	return sql.Open(driverName, dataSourceName)
}

// OpenFile opens the database at path with a busy timeout and foreign keys
// on. The pool is limited to one
// connection so concurrent callers queue instead of failing with
// SQLITE_BUSY.
func OpenFile(path string) (*sql.DB, error) {
	db, err := Open(path + fileOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return db, nil
}

// OpenReadOnly opens the database at path in read-only mode. Writes
// through the returned handle fail.
func OpenReadOnly(path string) (*sql.DB, error) {
	db, err := Open("file:" + path + "?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return db, nil
}

// Info contains information about the SQLite driver configuration.
type Info struct {
	DriverName string `json:"driver_name"`
	DriverType string `json:"driver_type"`
	IsCGO      bool   `json:"is_cgo"`
	Package    string `json:"package"`
}

// GetInfo returns information about the current SQLite configuration.
func GetInfo() Info {
	return Info{
		DriverName: driverName,
		DriverType: DriverType(),
		IsCGO:      IsCGO(),
		Package:    driverPackage,
	}
}
