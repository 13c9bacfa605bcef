// Package auth implements user accounts and authentication.
//
// Authentication is two-tier: short-lived JWT access tokens signed with
// HMAC-SHA256, and long-lived opaque refresh tokens. Refresh tokens carry
// the "quarry_" prefix for identification and are stored only as SHA-256
// hashes; the plaintext is returned to the client exactly once.
//
// Passwords are hashed with bcrypt. Accounts carry the privacy consent
// flags and birth date needed for signup age checks, data export and the
// right to erasure.
package auth
