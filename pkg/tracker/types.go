package tracker

import (
	"context"
	"time"
)

// Role represents a membership role within a project
type Role string

const (
	RoleAuthor       Role = "author"
	RoleCollaborator Role = "collaborator"
)

// Valid reports whether the role is one of the closed set
func (r Role) Valid() bool {
	switch r {
	case RoleAuthor, RoleCollaborator:
		return true
	}
	return false
}

// ProjectCategory represents the kind of codebase a project tracks
type ProjectCategory string

const (
	CategoryBackEnd  ProjectCategory = "back_end"
	CategoryFrontEnd ProjectCategory = "front_end"
	CategoryIOS      ProjectCategory = "ios"
	CategoryAndroid  ProjectCategory = "android"
)

// IssueTag classifies an issue
type IssueTag string

const (
	TagBug         IssueTag = "bug"
	TagImprovement IssueTag = "improvement"
	TagTask        IssueTag = "task"
)

// IssuePriority orders issues by urgency
type IssuePriority string

const (
	PriorityLow    IssuePriority = "low"
	PriorityMedium IssuePriority = "medium"
	PriorityHigh   IssuePriority = "high"
)

// IssueStatus tracks an issue through its lifecycle
type IssueStatus string

const (
	StatusTodo       IssueStatus = "todo"
	StatusInProgress IssueStatus = "in_progress"
	StatusDone       IssueStatus = "done"
)

// Project is the tenant root: every membership, issue and comment hangs off
// exactly one project. AuthorID is set at creation and never changes.
type Project struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Category    ProjectCategory `json:"category"`
	AuthorID    int64           `json:"author_id"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Membership grants a user a role on a project. At most one membership per
// (project, user) pair exists.
type Membership struct {
	ID        int64     `json:"id"`
	ProjectID int64     `json:"project_id"`
	UserID    int64     `json:"user_id"`
	Role      Role      `json:"role"`
	InvitedBy *int64    `json:"invited_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Issue is a work item filed against a project. ReporterID is the user who
// filed it; AssigneeID, when set, must hold a membership on the same project.
type Issue struct {
	ID          int64         `json:"id"`
	ProjectID   int64         `json:"project_id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Tag         IssueTag      `json:"tag"`
	Priority    IssuePriority `json:"priority"`
	Status      IssueStatus   `json:"status"`
	ReporterID  int64         `json:"reporter_id"`
	AssigneeID  *int64        `json:"assignee_id,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Comment is a remark on an issue, listed oldest first.
type Comment struct {
	ID          int64     `json:"id"`
	IssueID     int64     `json:"issue_id"`
	AuthorID    int64     `json:"author_id"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Graph is the read-only view of the resource tree that ownership
// resolution and the authorization engine need. PostgresService satisfies it.
type Graph interface {
	// ProjectByID returns the project or ErrProjectNotFound.
	ProjectByID(ctx context.Context, id int64) (*Project, error)
	// IssueByID returns the issue or ErrIssueNotFound.
	IssueByID(ctx context.Context, id int64) (*Issue, error)
	// RoleOf is the membership index: the role user holds on project, if any.
	RoleOf(ctx context.Context, userID, projectID int64) (Role, bool, error)
	// IssueTitleTaken reports whether another issue in the project already
	// uses title. excludeIssueID skips the issue itself on renames (0 for
	// creates).
	IssueTitleTaken(ctx context.Context, projectID int64, title string, excludeIssueID int64) (bool, error)
	// AuthorCount counts author-role memberships on a project.
	AuthorCount(ctx context.Context, projectID int64) (int, error)
}

// Resource is implemented by every entity in the ownership tree. It resolves
// the project that owns the resource; for comments this takes one extra
// lookup through the issue.
type Resource interface {
	OwningProject(ctx context.Context, g Graph) (int64, error)
}

// OwningProject returns the project's own ID. A zero ID marks a project that
// does not exist yet (a create request).
func (p *Project) OwningProject(ctx context.Context, g Graph) (int64, error) {
	return p.ID, nil
}

// OwningProject returns the membership's project.
func (m *Membership) OwningProject(ctx context.Context, g Graph) (int64, error) {
	return m.ProjectID, nil
}

// OwningProject returns the issue's project.
func (i *Issue) OwningProject(ctx context.Context, g Graph) (int64, error) {
	return i.ProjectID, nil
}

// OwningProject resolves the comment's project through its issue. Checking
// the issue's project, never the issue's reporter, is what keeps comment
// authorization scoped to the right tenant.
func (c *Comment) OwningProject(ctx context.Context, g Graph) (int64, error) {
	issue, err := g.IssueByID(ctx, c.IssueID)
	if err != nil {
		return 0, err
	}
	return issue.ProjectID, nil
}

// CreateProjectRequest is the payload for creating a project
type CreateProjectRequest struct {
	Title       string          `json:"title" validate:"required,max=100"`
	Description string          `json:"description" validate:"max=5000"`
	Category    ProjectCategory `json:"category" validate:"required,oneof=back_end front_end ios android"`
}

// UpdateProjectRequest is the payload for updating a project
type UpdateProjectRequest struct {
	Title       *string          `json:"title,omitempty" validate:"omitempty,min=1,max=100"`
	Description *string          `json:"description,omitempty" validate:"omitempty,max=5000"`
	Category    *ProjectCategory `json:"category,omitempty" validate:"omitempty,oneof=back_end front_end ios android"`
}

// AddContributorRequest is the payload for adding a project contributor
type AddContributorRequest struct {
	UserID int64 `json:"user_id" validate:"required,gt=0"`
}

// CreateIssueRequest is the payload for filing an issue
type CreateIssueRequest struct {
	Title       string        `json:"title" validate:"required,max=100"`
	Description string        `json:"description" validate:"max=5000"`
	Tag         IssueTag      `json:"tag" validate:"required,oneof=bug improvement task"`
	Priority    IssuePriority `json:"priority" validate:"required,oneof=low medium high"`
	Status      IssueStatus   `json:"status" validate:"omitempty,oneof=todo in_progress done"`
	AssigneeID  *int64        `json:"assignee_id,omitempty" validate:"omitempty,gt=0"`
}

// UpdateIssueRequest is the payload for updating an issue
type UpdateIssueRequest struct {
	Title       *string        `json:"title,omitempty" validate:"omitempty,min=1,max=100"`
	Description *string        `json:"description,omitempty" validate:"omitempty,max=5000"`
	Tag         *IssueTag      `json:"tag,omitempty" validate:"omitempty,oneof=bug improvement task"`
	Priority    *IssuePriority `json:"priority,omitempty" validate:"omitempty,oneof=low medium high"`
	Status      *IssueStatus   `json:"status,omitempty" validate:"omitempty,oneof=todo in_progress done"`
	AssigneeID  *int64         `json:"assignee_id,omitempty" validate:"omitempty,gte=0"`
}

// CreateCommentRequest is the payload for commenting on an issue
type CreateCommentRequest struct {
	Description string `json:"description" validate:"required,max=5000"`
}

// UpdateCommentRequest is the payload for editing a comment
type UpdateCommentRequest struct {
	Description string `json:"description" validate:"required,max=5000"`
}

// Stats holds entity counts for the business gauges
type Stats struct {
	Projects int64
	Issues   int64
}

// Service is the persistence contract for the tracker domain. All mutating
// operations assume the caller already ran the authorization engine.
type Service interface {
	Graph

	// CreateProject persists the project and the author's membership in one
	// transaction: either both commit or neither does.
	CreateProject(ctx context.Context, project *Project) error
	ListProjectsForUser(ctx context.Context, userID int64) ([]*Project, error)
	UpdateProject(ctx context.Context, project *Project) error
	DeleteProject(ctx context.Context, id int64) error

	AddMembership(ctx context.Context, m *Membership) error
	MembershipOf(ctx context.Context, projectID, userID int64) (*Membership, error)
	ListMemberships(ctx context.Context, projectID int64) ([]*Membership, error)
	RemoveMembership(ctx context.Context, projectID, userID int64) error

	CreateIssue(ctx context.Context, issue *Issue) error
	ListIssues(ctx context.Context, projectID int64) ([]*Issue, error)
	UpdateIssue(ctx context.Context, issue *Issue) error
	DeleteIssue(ctx context.Context, id int64) error

	CreateComment(ctx context.Context, comment *Comment) error
	CommentByID(ctx context.Context, id int64) (*Comment, error)
	ListComments(ctx context.Context, issueID int64) ([]*Comment, error)
	UpdateComment(ctx context.Context, comment *Comment) error
	DeleteComment(ctx context.Context, id int64) error

	Stats(ctx context.Context) (*Stats, error)
}
