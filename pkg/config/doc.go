// Package config loads and validates application configuration from
// environment variables.
//
// All variables carry the QUARRY_ prefix. The important ones:
//
//	QUARRY_HOST                   - HTTP bind address (default "0.0.0.0")
//	QUARRY_PORT                   - HTTP port (default "8080")
//	QUARRY_HEALTH_PORT            - health/metrics port (default "9090")
//	QUARRY_POSTGRES_URL           - primary database URL (required)
//	QUARRY_POSTGRES_REPLICA_URLS  - comma-separated read replica URLs
//	QUARRY_REDIS_URL              - Redis URL for rate limiting
//	QUARRY_JWT_SECRET             - HMAC secret for access tokens (required, >= 32 chars)
//	QUARRY_ACCESS_TOKEN_TTL       - access token lifetime (default 15m)
//	QUARRY_REFRESH_TOKEN_TTL      - refresh token lifetime (default 720h)
//	QUARRY_RATE_LIMIT_ENABLED     - enable per-user rate limiting (default true)
//	QUARRY_RATE_LIMIT_RPM         - requests per minute per user (default 300)
//	QUARRY_LOG_LEVEL              - debug, info, warn or error (default info)
//	QUARRY_OTEL_ENABLED           - export traces over OTLP gRPC (default false)
//
// LoadConfig reads everything in one pass and fails fast on invalid or
// missing required values, so a misconfigured deployment never starts
// serving traffic.
package config
