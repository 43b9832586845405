// Package history stores apicase runs in a SQLite database.
//
// Each run gets a random UUID and keeps one row per executed test case with
// its expected and received status, remarks and duration.
package history
