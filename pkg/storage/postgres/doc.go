// Package postgres manages the PostgreSQL and Redis connections: a
// primary/replica connection pool with round-robin read routing, and a
// Redis client used for rate limiting.
package postgres
