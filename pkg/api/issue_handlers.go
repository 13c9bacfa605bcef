package api

import (
	"net/http"

	"github.com/quarryhq/quarry/pkg/authz"
	"github.com/quarryhq/quarry/pkg/httputil"
	"github.com/quarryhq/quarry/pkg/tracker"
)

// handleCreateIssue files an issue against a project. Any contributor may
// file; the engine also checks the assignee and the title in the same pass.
func (s *Server) handleCreateIssue(w http.ResponseWriter, r *http.Request) {
	projectID, ok := httputil.ParsePathInt64OrError(w, r, "projectID")
	if !ok {
		return
	}
	var req tracker.CreateIssueRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !s.validateRequest(w, &req) {
		return
	}

	user := s.currentUser(r)
	issue := &tracker.Issue{
		ProjectID:   projectID,
		Title:       req.Title,
		Description: req.Description,
		Tag:         req.Tag,
		Priority:    req.Priority,
		Status:      req.Status,
		ReporterID:  user.ID,
		AssigneeID:  req.AssigneeID,
	}
	if !s.authorize(w, r, authz.ActionCreate, issue, "issue", 0) {
		return
	}

	if err := s.service.CreateIssue(r.Context(), issue); err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.logger.WithFields(map[string]interface{}{
		"issue_id":   issue.ID,
		"project_id": projectID,
	}).Info("issue created")
	httputil.WriteCreated(w, issue)
}

// handleListIssues lists a project's issues, contributors only
func (s *Server) handleListIssues(w http.ResponseWriter, r *http.Request) {
	projectID, ok := httputil.ParsePathInt64OrError(w, r, "projectID")
	if !ok {
		return
	}

	project, err := s.service.ProjectByID(r.Context(), projectID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if !s.authorize(w, r, authz.ActionRead, project, "issue", projectID) {
		return
	}

	issues, err := s.service.ListIssues(r.Context(), projectID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, issues)
}

// handleGetIssue returns one issue, contributors only
func (s *Server) handleGetIssue(w http.ResponseWriter, r *http.Request) {
	issueID, ok := httputil.ParsePathInt64OrError(w, r, "issueID")
	if !ok {
		return
	}

	issue, err := s.service.IssueByID(r.Context(), issueID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if !s.authorize(w, r, authz.ActionRead, issue, "issue", issueID) {
		return
	}
	httputil.WriteSuccess(w, issue)
}

// handleUpdateIssue applies a partial update. Ownership is decided against
// the stored issue; the merged result is then re-validated so a rename or
// reassignment cannot slip past the create-time invariants.
func (s *Server) handleUpdateIssue(w http.ResponseWriter, r *http.Request) {
	issueID, ok := httputil.ParsePathInt64OrError(w, r, "issueID")
	if !ok {
		return
	}
	var req tracker.UpdateIssueRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !s.validateRequest(w, &req) {
		return
	}

	issue, err := s.service.IssueByID(r.Context(), issueID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if !s.authorize(w, r, authz.ActionUpdate, issue, "issue", issueID) {
		return
	}

	if req.Title != nil {
		issue.Title = *req.Title
	}
	if req.Description != nil {
		issue.Description = *req.Description
	}
	if req.Tag != nil {
		issue.Tag = *req.Tag
	}
	if req.Priority != nil {
		issue.Priority = *req.Priority
	}
	if req.Status != nil {
		issue.Status = *req.Status
	}
	if req.AssigneeID != nil {
		// Zero clears the assignment.
		if *req.AssigneeID == 0 {
			issue.AssigneeID = nil
		} else {
			issue.AssigneeID = req.AssigneeID
		}
	}

	decision, err := s.engine.ValidateIssueChange(r.Context(), issue)
	if err != nil {
		s.logger.WithError(err).WithField("issue_id", issueID).Error("failed to validate issue change")
		httputil.WriteInternalError(w, err)
		return
	}
	if !decision.Allowed {
		user := s.currentUser(r)
		s.recordDenial(r, user.ID, "issue", issueID, decision.Reason)
		writeDenial(w, decision.Reason)
		return
	}

	if err := s.service.UpdateIssue(r.Context(), issue); err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, issue)
}

// handleDeleteIssue deletes an issue, reporter or assignee only
func (s *Server) handleDeleteIssue(w http.ResponseWriter, r *http.Request) {
	issueID, ok := httputil.ParsePathInt64OrError(w, r, "issueID")
	if !ok {
		return
	}

	issue, err := s.service.IssueByID(r.Context(), issueID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if !s.authorize(w, r, authz.ActionDelete, issue, "issue", issueID) {
		return
	}

	if err := s.service.DeleteIssue(r.Context(), issueID); err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.logger.WithField("issue_id", issueID).Info("issue deleted")
	httputil.WriteNoContent(w)
}
