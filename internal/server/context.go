package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	sessiondomain "github.com/sitedock/sitedock/internal/session/domain"
)

type meResponse struct {
	UserID         string `json:"user_id"`
	Email          string `json:"email"`
	DisplayName    string `json:"display_name"`
	OrganizationID string `json:"organization_id,omitempty"`
	ProjectID      string `json:"project_id,omitempty"`
}

// Me returns the caller's profile plus the resolved active context. A user
// with no usable organization still gets a 200 with empty context fields;
// pointers are never repaired here.
func (s *Server) Me(c *gin.Context) {
	identity, ok := s.identityFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	user, err := s.userRepo.GetByID(c.Request.Context(), identity.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := meResponse{
		UserID:      user.ID.String(),
		Email:       user.Email,
		DisplayName: user.DisplayName,
	}

	active, err := s.sessionResolver.ResolveActiveContext(c.Request.Context(), identity.UserID)
	switch {
	case err == nil:
		resp.OrganizationID = active.OrganizationID.String()
		resp.ProjectID = active.ProjectID.String()
	case errors.Is(err, sessiondomain.ErrNoActiveProject):
		orgID, orgErr := s.sessionResolver.ResolveOrganization(c.Request.Context(), identity.UserID)
		if orgErr == nil {
			resp.OrganizationID = orgID.String()
		}
	case errors.Is(err, sessiondomain.ErrNoActiveOrganization):
		// no usable context; leave fields empty
	default:
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// UseOrganization switches the caller's current organization pointer. The
// target must hold an active membership for the caller.
func (s *Server) UseOrganization(c *gin.Context) {
	identity, ok := s.identityFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	orgID, err := snowflake.ParseString(strings.TrimSpace(c.Param("orgId")))
	if err != nil || orgID == 0 {
		AbortWithError(c, newValidationError("org_id", "invalid_org_id", "invalid org id"))
		return
	}

	if _, err := s.organizationSvc.ActiveMembership(c.Request.Context(), orgID, identity.UserID); err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.userRepo.SetCurrentOrganization(c.Request.Context(), identity.UserID, orgID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// UseProject switches the caller's current project pointer. The target must
// hold an active project membership for the caller.
func (s *Server) UseProject(c *gin.Context) {
	identity, ok := s.identityFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	projectID, err := snowflake.ParseString(strings.TrimSpace(c.Param("projectId")))
	if err != nil || projectID == 0 {
		AbortWithError(c, newValidationError("project_id", "invalid_project_id", "invalid project id"))
		return
	}

	if _, err := s.projectSvc.ActiveMembership(c.Request.Context(), projectID, identity.UserID); err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.userRepo.SetCurrentProject(c.Request.Context(), identity.UserID, projectID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
