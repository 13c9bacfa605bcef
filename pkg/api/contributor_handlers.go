package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/quarryhq/quarry/pkg/audit"
	"github.com/quarryhq/quarry/pkg/auth"
	"github.com/quarryhq/quarry/pkg/authz"
	"github.com/quarryhq/quarry/pkg/httputil"
	"github.com/quarryhq/quarry/pkg/tracker"
)

// handleAddContributor invites a user onto a project as a collaborator.
// Authors only; the membership gate and the duplicate check both run in the
// engine before anything is written.
func (s *Server) handleAddContributor(w http.ResponseWriter, r *http.Request) {
	projectID, ok := httputil.ParsePathInt64OrError(w, r, "projectID")
	if !ok {
		return
	}
	var req tracker.AddContributorRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !s.validateRequest(w, &req) {
		return
	}

	// The invited account has to exist before a membership can reference it.
	if _, err := s.users.UserByID(r.Context(), req.UserID); err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			httputil.WriteNotFoundError(w, "user not found")
			return
		}
		s.logger.WithError(err).Error("failed to look up user")
		httputil.WriteInternalError(w, errors.New("internal error"))
		return
	}

	user := s.currentUser(r)
	membership := &tracker.Membership{
		ProjectID: projectID,
		UserID:    req.UserID,
		Role:      tracker.RoleCollaborator,
		InvitedBy: &user.ID,
	}
	if !s.authorize(w, r, authz.ActionCreate, membership, "membership", projectID) {
		return
	}

	if err := s.service.AddMembership(r.Context(), membership); err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.recordEvent(r, &user.ID, audit.ActionMemberAdded, "membership",
		strconv.FormatInt(membership.ID, 10), audit.DecisionAllow)
	s.logger.WithFields(map[string]interface{}{
		"project_id": projectID,
		"user_id":    req.UserID,
		"invited_by": user.ID,
	}).Info("contributor added")
	httputil.WriteCreated(w, membership)
}

// handleListContributors lists a project's memberships, contributors only
func (s *Server) handleListContributors(w http.ResponseWriter, r *http.Request) {
	projectID, ok := httputil.ParsePathInt64OrError(w, r, "projectID")
	if !ok {
		return
	}

	project, err := s.service.ProjectByID(r.Context(), projectID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if !s.authorize(w, r, authz.ActionRead, project, "membership", projectID) {
		return
	}

	memberships, err := s.service.ListMemberships(r.Context(), projectID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, memberships)
}

// handleRemoveContributor removes a membership, authors only. Removing the
// last author is refused so the project is never orphaned.
func (s *Server) handleRemoveContributor(w http.ResponseWriter, r *http.Request) {
	projectID, ok := httputil.ParsePathInt64OrError(w, r, "projectID")
	if !ok {
		return
	}
	targetID, ok := httputil.ParsePathInt64OrError(w, r, "userID")
	if !ok {
		return
	}

	membership, err := s.service.MembershipOf(r.Context(), projectID, targetID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if !s.authorize(w, r, authz.ActionDelete, membership, "membership", membership.ID) {
		return
	}

	if err := s.service.RemoveMembership(r.Context(), projectID, targetID); err != nil {
		s.writeServiceError(w, err)
		return
	}

	user := s.currentUser(r)
	s.recordEvent(r, &user.ID, audit.ActionMemberRemoved, "membership",
		strconv.FormatInt(membership.ID, 10), audit.DecisionAllow)
	s.logger.WithFields(map[string]interface{}{
		"project_id": projectID,
		"user_id":    targetID,
	}).Info("contributor removed")
	httputil.WriteNoContent(w)
}
