package authz

import (
	"context"
	"fmt"

	"github.com/quarryhq/quarry/pkg/tracker"
)

// Engine evaluates authorization decisions over the tracker resource graph.
// It holds no state of its own: every check reads current membership and
// resource data through the Graph, takes all context as explicit parameters,
// and never caches a decision.
type Engine struct {
	graph tracker.Graph
}

// NewEngine creates an authorization engine over the given resource graph
func NewEngine(graph tracker.Graph) *Engine {
	return &Engine{graph: graph}
}

// Authorize decides whether actorID may perform action on resource.
//
// The membership gate runs before any role- or ownership-specific rule, so a
// non-member is always denied with ReasonNotAContributor regardless of what
// finer permission they would have lacked. The single exception is creating
// a brand-new project (ID zero), which any authenticated user may do.
//
// Expected denials return (Decision{Allowed: false}, nil). An error return
// means the decision could not be made at all: a Graph failure, or
// ErrResourceNotFound when the resource's owning project cannot be resolved.
func (e *Engine) Authorize(ctx context.Context, actorID int64, action Action, resource tracker.Resource) (Decision, error) {
	// A project that does not exist yet has no memberships to consult.
	if p, ok := resource.(*tracker.Project); ok && p.ID == 0 {
		if action == ActionCreate {
			return Allow(), nil
		}
		return Decision{}, fmt.Errorf("%w: project has no id", ErrResourceNotFound)
	}

	projectID, err := resource.OwningProject(ctx, e.graph)
	if err != nil {
		if tracker.IsNotFound(err) {
			return Decision{}, fmt.Errorf("%w: %v", ErrResourceNotFound, err)
		}
		return Decision{}, fmt.Errorf("failed to resolve owning project: %w", err)
	}

	role, isMember, err := e.graph.RoleOf(ctx, actorID, projectID)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to look up membership: %w", err)
	}
	if !isMember {
		return Deny(ReasonNotAContributor), nil
	}

	switch action {
	case ActionRead:
		// Membership alone, any role, grants read.
		return Allow(), nil
	case ActionCreate:
		return e.authorizeCreate(ctx, actorID, role, projectID, resource)
	case ActionUpdate, ActionDelete:
		return e.authorizeWrite(ctx, actorID, role, action, projectID, resource)
	default:
		return Decision{}, fmt.Errorf("unknown action %q", action)
	}
}

// authorizeCreate applies the per-kind creation rules. The resource is the
// partial entity about to be persisted, with its project reference set.
// Cross-field invariants (duplicate membership, assignee validity, title
// uniqueness) are checked here, in the same pass as the access decision.
func (e *Engine) authorizeCreate(ctx context.Context, actorID int64, role tracker.Role, projectID int64, resource tracker.Resource) (Decision, error) {
	switch r := resource.(type) {
	case *tracker.Membership:
		// Only a project author may invite.
		if role != tracker.RoleAuthor {
			return Deny(ReasonNotAuthor), nil
		}
		_, exists, err := e.graph.RoleOf(ctx, r.UserID, projectID)
		if err != nil {
			return Decision{}, fmt.Errorf("failed to check target membership: %w", err)
		}
		if exists {
			return Deny(ReasonDuplicateMembership), nil
		}
		return Allow(), nil

	case *tracker.Issue:
		// Any member may file; membership is already established.
		return e.validateIssueFields(ctx, r, 0)

	case *tracker.Comment:
		// Any member of the issue's project may comment.
		return Allow(), nil

	default:
		return Decision{}, fmt.Errorf("create is not defined for %T", resource)
	}
}

// authorizeWrite applies the update/delete rules against the resource's
// current state.
func (e *Engine) authorizeWrite(ctx context.Context, actorID int64, role tracker.Role, action Action, projectID int64, resource tracker.Resource) (Decision, error) {
	switch r := resource.(type) {
	case *tracker.Project:
		if r.AuthorID != actorID {
			return Deny(ReasonNotAuthor), nil
		}
		return Allow(), nil

	case *tracker.Membership:
		if role != tracker.RoleAuthor {
			return Deny(ReasonNotAuthor), nil
		}
		// The last author-role membership is pinned: removing it would
		// orphan the project.
		if r.Role == tracker.RoleAuthor {
			count, err := e.graph.AuthorCount(ctx, projectID)
			if err != nil {
				return Decision{}, fmt.Errorf("failed to count authors: %w", err)
			}
			if count <= 1 {
				return Deny(ReasonLastAuthor), nil
			}
		}
		return Allow(), nil

	case *tracker.Issue:
		if !issueOwnedBy(r, actorID) {
			return Deny(ReasonNotOwner), nil
		}
		return Allow(), nil

	case *tracker.Comment:
		if r.AuthorID != actorID {
			return Deny(ReasonNotOwner), nil
		}
		return Allow(), nil

	default:
		return Decision{}, fmt.Errorf("%s is not defined for %T", action, resource)
	}
}

// ValidateIssueChange re-checks the cross-field invariants for an issue
// about to be updated: the new assignee must be a member of the issue's
// project and the (possibly renamed) title must stay unique within it. The
// issue carries the merged state; ownership must already have been decided
// by Authorize against the stored state.
func (e *Engine) ValidateIssueChange(ctx context.Context, issue *tracker.Issue) (Decision, error) {
	return e.validateIssueFields(ctx, issue, issue.ID)
}

func (e *Engine) validateIssueFields(ctx context.Context, issue *tracker.Issue, excludeIssueID int64) (Decision, error) {
	if issue.AssigneeID != nil {
		_, isMember, err := e.graph.RoleOf(ctx, *issue.AssigneeID, issue.ProjectID)
		if err != nil {
			return Decision{}, fmt.Errorf("failed to check assignee membership: %w", err)
		}
		if !isMember {
			return Deny(ReasonInvalidAssignee), nil
		}
	}

	taken, err := e.graph.IssueTitleTaken(ctx, issue.ProjectID, issue.Title, excludeIssueID)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to check issue title: %w", err)
	}
	if taken {
		return Deny(ReasonDuplicateTitle), nil
	}

	return Allow(), nil
}

// issueOwnedBy reports whether userID is the issue's reporter or its current
// assignee.
func issueOwnedBy(issue *tracker.Issue, userID int64) bool {
	if issue.ReporterID == userID {
		return true
	}
	return issue.AssigneeID != nil && *issue.AssigneeID == userID
}
