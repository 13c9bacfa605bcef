// Package authz implements the resource-scoped authorization engine for the
// tracker domain.
//
// # Model
//
// Every decision answers one question: may actor perform action on resource?
// The engine resolves the project that owns the resource (one lookup hop for
// comments), consults the membership index, then applies per-kind rules:
//
//   - read: any membership on the owning project suffices
//   - create project: any authenticated user
//   - create membership: project author only, no duplicates
//   - create issue: any member; assignee must be a member; unique title
//   - create comment: any member of the issue's project
//   - update/delete project: the project's author
//   - update/delete membership: the project's author; the last author-role
//     membership cannot be removed
//   - update/delete issue: the reporter or the current assignee
//   - update/delete comment: the comment's author
//
// The membership gate always runs first, so a non-member is told only
// "not a contributor" and never learns which finer-grained permission they
// lack on a resource they cannot see.
//
// # Decisions, not errors
//
// Expected denials come back as Deny(reason) values with stable reason
// codes, never as errors. Only a dangling reference (a comment pointing at a
// deleted issue) is an error: that is a data-integrity fault, not an access
// decision.
//
// The engine is stateless and caches nothing. Decisions are deterministic
// over the store snapshot the Graph exposes.
package authz
