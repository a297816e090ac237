package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	invitationdomain "github.com/sitedock/sitedock/internal/invitation/domain"
	orgdomain "github.com/sitedock/sitedock/internal/organization/domain"
)

type createInvitationRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (s *Server) CreateInvitation(c *gin.Context) {
	identity, ok := s.identityFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	orgID, ok := s.orgIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrForbidden)
		return
	}

	var req createInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.invitationSvc.Create(c.Request.Context(), invitationdomain.CreateRequest{
		OrgID:     orgID,
		InviterID: identity.UserID,
		Email:     req.Email,
		Role:      orgdomain.Role(strings.ToLower(strings.TrimSpace(req.Role))),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.metrics.ObserveWorkflowEvent("invitation", "created")
	status := http.StatusCreated
	if resp.Resent {
		status = http.StatusOK
	}
	c.JSON(status, resp)
}

// ResolveInvitation is the unauthenticated token lookup backing the invite
// landing page. It never mutates the invitation.
func (s *Server) ResolveInvitation(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		AbortWithError(c, invitationdomain.ErrNotFound)
		return
	}

	details, err := s.invitationSvc.Resolve(c.Request.Context(), token)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, details)
}

func (s *Server) AcceptInvitation(c *gin.Context) {
	identity, ok := s.identityFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		AbortWithError(c, invitationdomain.ErrNotFound)
		return
	}

	resp, err := s.invitationSvc.Accept(c.Request.Context(), token, invitationdomain.Actor{
		UserID: identity.UserID,
		Email:  identity.Email,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.metrics.ObserveWorkflowEvent("invitation", "accepted")
	c.JSON(http.StatusOK, resp)
}

func (s *Server) DeclineInvitation(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		AbortWithError(c, invitationdomain.ErrNotFound)
		return
	}

	if err := s.invitationSvc.Decline(c.Request.Context(), token); err != nil {
		AbortWithError(c, err)
		return
	}

	s.metrics.ObserveWorkflowEvent("invitation", "declined")
	c.Status(http.StatusNoContent)
}

func (s *Server) ListPendingInvitations(c *gin.Context) {
	identity, ok := s.identityFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	invites, err := s.invitationSvc.ListPendingForEmail(c.Request.Context(), identity.Email)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"invitations": invites})
}
