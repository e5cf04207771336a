// Package store defines persistence contracts for flashcard sets together
// with an in-memory implementation. Durable database/sql-backed
// implementations live in internal/platform/sqlstore.
package store
