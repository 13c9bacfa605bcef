// Package api implements the HTTP surface of the issue tracker.
//
// The server exposes two route groups. /api/v1/auth carries the public
// endpoints (signup, login, token refresh); everything else lives under
// /api/v1 behind the Bearer-token middleware. Every mutating handler runs
// the authorization engine before touching the persistence layer and maps
// the engine's denial reasons onto HTTP statuses: permission denials are
// 403, duplicate conflicts 409, invalid references 422, and resources
// whose owning project cannot be resolved 404.
package api
