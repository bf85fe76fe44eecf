// Package history is the SQLite history database that legacy history is
// migrated into.
package history
