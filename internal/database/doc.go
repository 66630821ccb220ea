// Package database provides PostgreSQL connection pooling for the postgres
// store backend.
package database
