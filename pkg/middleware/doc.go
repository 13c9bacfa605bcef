// Package middleware provides the HTTP middleware specific to Quarry's
// API: JWT authentication and Redis-backed rate limiting. Generic
// plumbing (request IDs, logging, recovery) lives in pkg/httputil.
package middleware
