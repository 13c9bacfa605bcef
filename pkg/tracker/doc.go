// Package tracker holds the issue-tracking domain model and its PostgreSQL
// persistence: projects, memberships, issues and comments.
//
// # Ownership tree
//
// Resources form a strict tree rooted at Project:
//
//	Project → Membership(s)
//	Project → Issue(s) → Comment(s)
//
// Deleting a project cascades to its memberships and issues; deleting an
// issue cascades to its comments. Cascades are enforced by foreign keys in
// the schema, not in application code.
//
// # Invariants enforced at the data layer
//
// Uniqueness that matters under concurrency is declared as database
// constraints so two racing inserts can never both succeed:
//
//   - one membership per (project, user)
//   - one issue title per project
//   - globally unique project titles
//
// Violations surface as the typed errors ErrDuplicateMembership and
// ErrDuplicateTitle.
//
// # Resource graph
//
// Every entity implements Resource, resolving the project that owns it.
// Comments require one extra lookup hop (comment → issue → project); the
// Graph interface supplies that lookup. The authorization engine in
// pkg/authz consumes both.
package tracker
