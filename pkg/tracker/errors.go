package tracker

import (
	"errors"

	"github.com/lib/pq"
)

// Typed domain errors. Handlers and the authorization engine match on these
// with errors.Is.
var (
	ErrProjectNotFound    = errors.New("project not found")
	ErrIssueNotFound      = errors.New("issue not found")
	ErrCommentNotFound    = errors.New("comment not found")
	ErrMembershipNotFound = errors.New("membership not found")

	// ErrDuplicateMembership means a membership already exists for the
	// (project, user) pair.
	ErrDuplicateMembership = errors.New("membership already exists")

	// ErrDuplicateTitle means the title is already taken: globally for
	// projects, within the project for issues.
	ErrDuplicateTitle = errors.New("title already in use")
)

const pqUniqueViolation = "23505"

// Constraint names from the schema in migrations.go.
const (
	constraintMembershipUnique = "memberships_project_id_user_id_key"
	constraintIssueTitleUnique = "issues_project_id_title_key"
	constraintProjectTitle     = "projects_title_key"
)

// mapConstraintError translates a postgres unique-constraint violation into
// the matching domain error. The constraints are what make the duplicate
// checks race-free: concurrent inserts both pass the engine's pre-check, but
// only one survives the constraint.
func mapConstraintError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != pqUniqueViolation {
		return err
	}

	switch pqErr.Constraint {
	case constraintMembershipUnique:
		return ErrDuplicateMembership
	case constraintIssueTitleUnique, constraintProjectTitle:
		return ErrDuplicateTitle
	}
	return err
}

// IsNotFound reports whether err is any of the not-found domain errors.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProjectNotFound) ||
		errors.Is(err, ErrIssueNotFound) ||
		errors.Is(err, ErrCommentNotFound) ||
		errors.Is(err, ErrMembershipNotFound)
}
