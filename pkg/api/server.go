package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/quarryhq/quarry/pkg/audit"
	"github.com/quarryhq/quarry/pkg/auth"
	"github.com/quarryhq/quarry/pkg/authz"
	"github.com/quarryhq/quarry/pkg/contextkeys"
	"github.com/quarryhq/quarry/pkg/httputil"
	"github.com/quarryhq/quarry/pkg/middleware"
	"github.com/quarryhq/quarry/pkg/observability"
	"github.com/quarryhq/quarry/pkg/tracker"
)

// UserStore is the account persistence contract the server needs.
// auth.PostgresStore satisfies it.
type UserStore interface {
	CreateUser(ctx context.Context, user *auth.User) error
	UserByID(ctx context.Context, id int64) (*auth.User, error)
	UserByUsername(ctx context.Context, username string) (*auth.User, error)
	UpdateUser(ctx context.Context, user *auth.User) error
	DeleteUser(ctx context.Context, id int64) error
	ExportUserData(ctx context.Context, userID int64) (*auth.UserExport, error)
	StoreRefreshToken(ctx context.Context, token *auth.RefreshToken) error
	RefreshTokenByHash(ctx context.Context, tokenHash string) (*auth.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, id int64) error
	RevokeUserTokens(ctx context.Context, userID int64) error
}

// ServerConfig wires the server's collaborators
type ServerConfig struct {
	Service    tracker.Service
	Engine     *authz.Engine
	Users      UserStore
	JWT        *auth.JWTManager
	Hasher     *auth.Hasher
	Logger     *observability.Logger
	Metrics    *observability.Metrics
	Audit      *audit.Logger
	RefreshTTL time.Duration

	// RateLimit, when set, is applied to every route.
	RateLimit *middleware.RateLimitMiddleware
}

// Server is the HTTP API server
type Server struct {
	service    tracker.Service
	engine     *authz.Engine
	users      UserStore
	jwt        *auth.JWTManager
	hasher     *auth.Hasher
	tokens     *auth.TokenGenerator
	validate   *validator.Validate
	logger     *observability.Logger
	metrics    *observability.Metrics
	audit      *audit.Logger
	refreshTTL time.Duration
	router     *mux.Router
}

// NewServer creates the API server and registers all routes
func NewServer(cfg ServerConfig) *Server {
	s := &Server{
		service:    cfg.Service,
		engine:     cfg.Engine,
		users:      cfg.Users,
		jwt:        cfg.JWT,
		hasher:     cfg.Hasher,
		tokens:     auth.NewTokenGenerator(),
		validate:   validator.New(),
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		audit:      cfg.Audit,
		refreshTTL: cfg.RefreshTTL,
		router:     mux.NewRouter(),
	}
	s.setupRoutes(cfg.RateLimit)
	return s
}

func (s *Server) setupRoutes(rateLimit *middleware.RateLimitMiddleware) {
	s.router.Use(httputil.RequestIDMiddleware)
	s.router.Use(httputil.LoggingMiddleware(s.logger))
	s.router.Use(httputil.RecoveryMiddleware(s.logger))
	if s.metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.metrics))
	}
	if rateLimit != nil {
		s.router.Use(rateLimit.Handler)
	}

	// Public routes. Registered before the protected subrouter so the
	// auth middleware never sees them.
	public := s.router.PathPrefix("/api/v1/auth").Subrouter()
	public.HandleFunc("/signup", s.handleSignup).Methods(http.MethodPost)
	public.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	public.HandleFunc("/refresh", s.handleRefresh).Methods(http.MethodPost)

	protected := s.router.PathPrefix("/api/v1").Subrouter()
	authMW := middleware.NewAuthMiddleware(s.jwt, s.users)
	protected.Use(authMW.Handler)

	protected.HandleFunc("/auth/logout", s.handleLogout).Methods(http.MethodPost)

	protected.HandleFunc("/users/me", s.handleGetProfile).Methods(http.MethodGet)
	protected.HandleFunc("/users/me", s.handleUpdateProfile).Methods(http.MethodPatch)
	protected.HandleFunc("/users/me", s.handleDeleteAccount).Methods(http.MethodDelete)
	protected.HandleFunc("/users/me/export", s.handleExportData).Methods(http.MethodGet)

	protected.HandleFunc("/projects", s.handleCreateProject).Methods(http.MethodPost)
	protected.HandleFunc("/projects", s.handleListProjects).Methods(http.MethodGet)
	protected.HandleFunc("/projects/{projectID:[0-9]+}", s.handleGetProject).Methods(http.MethodGet)
	protected.HandleFunc("/projects/{projectID:[0-9]+}", s.handleUpdateProject).Methods(http.MethodPatch)
	protected.HandleFunc("/projects/{projectID:[0-9]+}", s.handleDeleteProject).Methods(http.MethodDelete)

	protected.HandleFunc("/projects/{projectID:[0-9]+}/users", s.handleAddContributor).Methods(http.MethodPost)
	protected.HandleFunc("/projects/{projectID:[0-9]+}/users", s.handleListContributors).Methods(http.MethodGet)
	protected.HandleFunc("/projects/{projectID:[0-9]+}/users/{userID:[0-9]+}", s.handleRemoveContributor).Methods(http.MethodDelete)

	protected.HandleFunc("/projects/{projectID:[0-9]+}/issues", s.handleCreateIssue).Methods(http.MethodPost)
	protected.HandleFunc("/projects/{projectID:[0-9]+}/issues", s.handleListIssues).Methods(http.MethodGet)
	protected.HandleFunc("/issues/{issueID:[0-9]+}", s.handleGetIssue).Methods(http.MethodGet)
	protected.HandleFunc("/issues/{issueID:[0-9]+}", s.handleUpdateIssue).Methods(http.MethodPatch)
	protected.HandleFunc("/issues/{issueID:[0-9]+}", s.handleDeleteIssue).Methods(http.MethodDelete)

	protected.HandleFunc("/issues/{issueID:[0-9]+}/comments", s.handleCreateComment).Methods(http.MethodPost)
	protected.HandleFunc("/issues/{issueID:[0-9]+}/comments", s.handleListComments).Methods(http.MethodGet)
	protected.HandleFunc("/comments/{commentID:[0-9]+}", s.handleUpdateComment).Methods(http.MethodPatch)
	protected.HandleFunc("/comments/{commentID:[0-9]+}", s.handleDeleteComment).Methods(http.MethodDelete)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router exposes the underlying router for additional registrations
func (s *Server) Router() *mux.Router {
	return s.router
}

// currentUser returns the authenticated caller. The auth middleware
// guarantees it is set on every protected route.
func (s *Server) currentUser(r *http.Request) *auth.User {
	authCtx := middleware.GetAuthContext(r)
	if authCtx == nil {
		return nil
	}
	return authCtx.User
}

// validateRequest runs struct validation and writes a 400 on failure
func (s *Server) validateRequest(w http.ResponseWriter, req interface{}) bool {
	if err := s.validate.Struct(req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return false
	}
	return true
}

// authorize runs the engine for the caller and writes the refusal response
// when access is denied. Returns true when the handler may proceed.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request, action authz.Action, resource tracker.Resource, resourceType string, resourceID int64) bool {
	user := s.currentUser(r)
	if user == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return false
	}

	start := time.Now()
	decision, err := s.engine.Authorize(r.Context(), user.ID, action, resource)
	if err != nil {
		if errors.Is(err, authz.ErrResourceNotFound) {
			httputil.WriteNotFoundError(w, "resource not found")
			return false
		}
		s.logger.WithError(err).WithFields(map[string]interface{}{
			"user_id":  user.ID,
			"action":   string(action),
			"resource": resourceType,
		}).Error("authorization check failed")
		httputil.WriteInternalError(w, errors.New("authorization check failed"))
		return false
	}

	if s.metrics != nil {
		s.metrics.ObserveAuthzDecision(resourceType, string(action), decision.Outcome(), time.Since(start))
	}

	if !decision.Allowed {
		s.recordDenial(r, user.ID, resourceType, resourceID, decision.Reason)
		writeDenial(w, decision.Reason)
		return false
	}
	return true
}

// recordDenial feeds the audit trail; the logger is optional.
func (s *Server) recordDenial(r *http.Request, userID int64, resourceType string, resourceID int64, reason authz.Reason) {
	if s.audit == nil {
		return
	}
	s.audit.Record(&audit.Event{
		UserID:       &userID,
		Action:       audit.ActionAuthzCheck,
		ResourceType: resourceType,
		ResourceID:   strconv.FormatInt(resourceID, 10),
		Decision:     audit.DecisionDeny,
		Reason:       string(reason),
		RequestID:    contextkeys.RequestID(r.Context()),
		IPAddress:    r.RemoteAddr,
	})
}

// recordEvent appends a non-authorization audit event
func (s *Server) recordEvent(r *http.Request, userID *int64, action audit.Action, resourceType, resourceID string, decision audit.Decision) {
	if s.audit == nil {
		return
	}
	s.audit.Record(&audit.Event{
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Decision:     decision,
		RequestID:    contextkeys.RequestID(r.Context()),
		IPAddress:    r.RemoteAddr,
	})
}

// denialStatus maps an engine reason to an HTTP status. Permission denials
// are 403, existing-state conflicts 409, and bad cross-references 422.
func denialStatus(reason authz.Reason) int {
	switch reason {
	case authz.ReasonDuplicateMembership, authz.ReasonDuplicateTitle:
		return http.StatusConflict
	case authz.ReasonInvalidAssignee:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusForbidden
	}
}

func denialMessage(reason authz.Reason) string {
	switch reason {
	case authz.ReasonNotAContributor:
		return "you are not a contributor on this project"
	case authz.ReasonNotAuthor:
		return "only a project author may do this"
	case authz.ReasonNotOwner:
		return "only the reporter or assignee may modify this issue"
	case authz.ReasonDuplicateMembership:
		return "user is already a contributor on this project"
	case authz.ReasonDuplicateTitle:
		return "title is already in use"
	case authz.ReasonInvalidAssignee:
		return "assignee is not a contributor on this project"
	case authz.ReasonLastAuthor:
		return "cannot remove the last author of a project"
	default:
		return "forbidden"
	}
}

func writeDenial(w http.ResponseWriter, reason authz.Reason) {
	httputil.WriteReason(w, denialStatus(reason), string(reason), denialMessage(reason))
}

// writeServiceError maps persistence errors onto responses. The unique
// constraints surface here when a concurrent writer won the race after the
// engine's pre-check passed.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case tracker.IsNotFound(err):
		httputil.WriteNotFoundError(w, err.Error())
	case errors.Is(err, tracker.ErrDuplicateMembership):
		writeDenial(w, authz.ReasonDuplicateMembership)
	case errors.Is(err, tracker.ErrDuplicateTitle):
		writeDenial(w, authz.ReasonDuplicateTitle)
	default:
		s.logger.WithError(err).Error("persistence operation failed")
		httputil.WriteInternalError(w, errors.New("internal error"))
	}
}
