// Package sqlstore provides SQL-backed implementations of the task store
// and the flashcard set repository. It speaks both PostgreSQL (via pgx's
// database/sql driver) and SQLite (via modernc.org/sqlite) through a
// small dialect layer, and is selected by the store.backend=sql
// configuration.
package sqlstore
