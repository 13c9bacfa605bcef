package api

import (
	"net/http"

	"github.com/quarryhq/quarry/pkg/authz"
	"github.com/quarryhq/quarry/pkg/httputil"
	"github.com/quarryhq/quarry/pkg/tracker"
)

// handleCreateProject creates a project with the caller as its author
func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req tracker.CreateProjectRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !s.validateRequest(w, &req) {
		return
	}

	user := s.currentUser(r)
	project := &tracker.Project{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		AuthorID:    user.ID,
	}
	if !s.authorize(w, r, authz.ActionCreate, project, "project", 0) {
		return
	}

	if err := s.service.CreateProject(r.Context(), project); err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.logger.WithFields(map[string]interface{}{
		"project_id": project.ID,
		"author_id":  user.ID,
	}).Info("project created")
	httputil.WriteCreated(w, project)
}

// handleListProjects lists the projects the caller contributes to
func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	user := s.currentUser(r)
	projects, err := s.service.ListProjectsForUser(r.Context(), user.ID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, projects)
}

// handleGetProject returns one project, contributors only
func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	projectID, ok := httputil.ParsePathInt64OrError(w, r, "projectID")
	if !ok {
		return
	}

	project, err := s.service.ProjectByID(r.Context(), projectID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if !s.authorize(w, r, authz.ActionRead, project, "project", projectID) {
		return
	}
	httputil.WriteSuccess(w, project)
}

// handleUpdateProject applies a partial update, author only
func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	projectID, ok := httputil.ParsePathInt64OrError(w, r, "projectID")
	if !ok {
		return
	}
	var req tracker.UpdateProjectRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !s.validateRequest(w, &req) {
		return
	}

	project, err := s.service.ProjectByID(r.Context(), projectID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if !s.authorize(w, r, authz.ActionUpdate, project, "project", projectID) {
		return
	}

	if req.Title != nil {
		project.Title = *req.Title
	}
	if req.Description != nil {
		project.Description = *req.Description
	}
	if req.Category != nil {
		project.Category = *req.Category
	}

	if err := s.service.UpdateProject(r.Context(), project); err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, project)
}

// handleDeleteProject deletes a project and everything under it, author only
func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	projectID, ok := httputil.ParsePathInt64OrError(w, r, "projectID")
	if !ok {
		return
	}

	project, err := s.service.ProjectByID(r.Context(), projectID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if !s.authorize(w, r, authz.ActionDelete, project, "project", projectID) {
		return
	}

	if err := s.service.DeleteProject(r.Context(), projectID); err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.logger.WithField("project_id", projectID).Info("project deleted")
	httputil.WriteNoContent(w)
}
