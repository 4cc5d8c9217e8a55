//go:build !cgo_sqlite

package sqlite

import (
	_ "modernc.org/sqlite" // pure Go SQLite driver
)

const (
	driverName    = "sqlite"
	driverType    = "purego"
	driverPackage = "modernc.org/sqlite"
	fileOptions   = "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
)
