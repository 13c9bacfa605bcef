package authz

import "errors"

// Action represents an operation on a resource
type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Reason is a stable denial code. The HTTP layer maps these to transport
// statuses; the codes themselves never change meaning.
type Reason string

const (
	// ReasonNotAContributor: actor holds no membership on the resource's project.
	ReasonNotAContributor Reason = "not_a_contributor"
	// ReasonNotAuthor: action requires the author role.
	ReasonNotAuthor Reason = "not_author"
	// ReasonNotOwner: action requires being the resource's reporter, assignee
	// or author, and the actor is none of them.
	ReasonNotOwner Reason = "not_owner"
	// ReasonDuplicateMembership: a membership already exists for (user, project).
	ReasonDuplicateMembership Reason = "duplicate_membership"
	// ReasonDuplicateTitle: the issue title is already used within the project.
	ReasonDuplicateTitle Reason = "duplicate_title"
	// ReasonInvalidAssignee: the assignee holds no membership on the issue's project.
	ReasonInvalidAssignee Reason = "invalid_assignee"
	// ReasonLastAuthor: removing the membership would leave the project with
	// no author.
	ReasonLastAuthor Reason = "last_author"
)

// Decision is the outcome of an authorization check
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  Reason `json:"reason,omitempty"`
}

// Allow returns a granting decision
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny returns a denying decision with a stable reason code
func Deny(reason Reason) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// Outcome returns "allow" or "deny" for metric labels
func (d Decision) Outcome() string {
	if d.Allowed {
		return "allow"
	}
	return "deny"
}

// ErrResourceNotFound marks a resource whose owning project cannot be
// resolved: the resource or an ancestor is gone. This is a precondition
// violation surfaced as an error, distinct from every denial.
var ErrResourceNotFound = errors.New("resource not found")
