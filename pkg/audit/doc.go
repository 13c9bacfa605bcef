// Package audit records security-relevant events: authorization denials,
// membership changes, login activity and account erasure. Entries are
// written to the audit_logs table asynchronously so the request path never
// blocks on the trail.
package audit
