package api

import (
	"net/http"

	"github.com/quarryhq/quarry/pkg/authz"
	"github.com/quarryhq/quarry/pkg/httputil"
	"github.com/quarryhq/quarry/pkg/tracker"
)

// handleCreateComment adds a comment to an issue. Any contributor on the
// issue's project may comment; the engine resolves the project through the
// issue.
func (s *Server) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	issueID, ok := httputil.ParsePathInt64OrError(w, r, "issueID")
	if !ok {
		return
	}
	var req tracker.CreateCommentRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !s.validateRequest(w, &req) {
		return
	}

	user := s.currentUser(r)
	comment := &tracker.Comment{
		IssueID:     issueID,
		AuthorID:    user.ID,
		Description: req.Description,
	}
	if !s.authorize(w, r, authz.ActionCreate, comment, "comment", 0) {
		return
	}

	if err := s.service.CreateComment(r.Context(), comment); err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteCreated(w, comment)
}

// handleListComments lists an issue's comments oldest first
func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	issueID, ok := httputil.ParsePathInt64OrError(w, r, "issueID")
	if !ok {
		return
	}

	issue, err := s.service.IssueByID(r.Context(), issueID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if !s.authorize(w, r, authz.ActionRead, issue, "comment", issueID) {
		return
	}

	comments, err := s.service.ListComments(r.Context(), issueID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, comments)
}

// handleUpdateComment edits a comment, its author only
func (s *Server) handleUpdateComment(w http.ResponseWriter, r *http.Request) {
	commentID, ok := httputil.ParsePathInt64OrError(w, r, "commentID")
	if !ok {
		return
	}
	var req tracker.UpdateCommentRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !s.validateRequest(w, &req) {
		return
	}

	comment, err := s.service.CommentByID(r.Context(), commentID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if !s.authorize(w, r, authz.ActionUpdate, comment, "comment", commentID) {
		return
	}

	comment.Description = req.Description
	if err := s.service.UpdateComment(r.Context(), comment); err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, comment)
}

// handleDeleteComment deletes a comment, its author only
func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	commentID, ok := httputil.ParsePathInt64OrError(w, r, "commentID")
	if !ok {
		return
	}

	comment, err := s.service.CommentByID(r.Context(), commentID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if !s.authorize(w, r, authz.ActionDelete, comment, "comment", commentID) {
		return
	}

	if err := s.service.DeleteComment(r.Context(), commentID); err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
