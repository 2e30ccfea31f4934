// Package adapters provide database adapter implementations for the PostgreSQL backend client.
//
// This package implements the adapter pattern to support multiple PostgreSQL database libraries:
// pgx.Pool, sql.DB, and sqlx.DB. All adapters provide equivalent functionality through
// a common DBAdapter interface, so the backend client executes procedures and ad-hoc
// queries the same way regardless of the connection type.
package adapters
