//go:build !cgo_sqlite

package store

// Compiled when building without CGO. The pure Go SQLite implementation
// needs no C compiler and cross-compiles everywhere, at some speed cost.
//
// Build command:
//   CGO_ENABLED=0 go build ./...
//
// Driver used: modernc.org/sqlite

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use.
	DriverName = "sqlite"

	// BuildMode describes the current build configuration.
	BuildMode = "purego"
)
