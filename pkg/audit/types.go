package audit

import "time"

// Action identifies what was attempted
type Action string

const (
	ActionLogin          Action = "login"
	ActionLoginFailed    Action = "login_failed"
	ActionTokenRefresh   Action = "token_refresh"
	ActionAuthzCheck     Action = "authz_check"
	ActionMemberAdded    Action = "member_added"
	ActionMemberRemoved  Action = "member_removed"
	ActionDataExport     Action = "data_export"
	ActionAccountErased  Action = "account_erased"
)

// Decision is the outcome recorded with an event
type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionDeny  Decision = "deny"
	DecisionError Decision = "error"
)

// Event is one audit trail entry
type Event struct {
	ID           int64     `json:"id"`
	UserID       *int64    `json:"user_id,omitempty"`
	Action       Action    `json:"action"`
	ResourceType string    `json:"resource_type"`
	ResourceID   string    `json:"resource_id,omitempty"`
	Decision     Decision  `json:"decision"`
	Reason       string    `json:"reason,omitempty"`
	RequestID    string    `json:"request_id,omitempty"`
	IPAddress    string    `json:"ip_address,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
