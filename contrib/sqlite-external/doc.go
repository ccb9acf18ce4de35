// Package sqliteexternal provides the optional CGO SQLite driver.
//
// The coverage archive and tag index use the pure Go driver by default.
// To switch to github.com/mattn/go-sqlite3:
//
//	CGO_ENABLED=1 go build -tags cgo_sqlite ./cmd/tfstbench
//
// Use it when the tag index grows large enough for query speed to matter;
// keep the default when a single static binary is needed.
package sqliteexternal
