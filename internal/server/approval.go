package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	approvaldomain "github.com/sitedock/sitedock/internal/approval/domain"
	"github.com/sitedock/sitedock/pkg/db/pagination"
)

type createApprovalRequest struct {
	EntityType  string   `json:"entity_type"`
	EntityID    string   `json:"entity_id"`
	ApproverIDs []string `json:"approver_ids"`
}

type decideApprovalRequest struct {
	Decision string `json:"decision"`
}

func (s *Server) CreateApproval(c *gin.Context) {
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

	var req createApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	entityID, err := snowflake.ParseString(strings.TrimSpace(req.EntityID))
	if err != nil || entityID == 0 {
		AbortWithError(c, approvaldomain.ErrInvalidEntity)
		return
	}

	approverIDs := make([]snowflake.ID, 0, len(req.ApproverIDs))
	for _, raw := range req.ApproverIDs {
		id, err := snowflake.ParseString(strings.TrimSpace(raw))
		if err != nil || id == 0 {
			AbortWithError(c, newValidationError("approver_ids", "invalid_approver_id", "invalid approver id"))
			return
		}
		approverIDs = append(approverIDs, id)
	}

	resp, err := s.approvalSvc.Create(c.Request.Context(), approvaldomain.CreateRequest{
		OrgID:       orgID,
		EntityType:  req.EntityType,
		EntityID:    entityID,
		RequesterID: identity.UserID,
		ApproverIDs: approverIDs,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.metrics.ObserveWorkflowEvent("approval", "created")
	c.JSON(http.StatusCreated, resp)
}

func (s *Server) DecideApproval(c *gin.Context) {
	identity, ok := s.identityFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	approvalID, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil || approvalID == 0 {
		AbortWithError(c, approvaldomain.ErrNotFound)
		return
	}

	var req decideApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	decision := approvaldomain.Decision(strings.ToLower(strings.TrimSpace(req.Decision)))
	resp, err := s.approvalSvc.RecordDecision(c.Request.Context(), approvalID, identity.UserID, decision)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.metrics.ObserveWorkflowEvent("approval", string(resp.Status))
	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetApproval(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		AbortWithError(c, approvaldomain.ErrNotFound)
		return
	}

	resp, err := s.approvalSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ListApprovals returns approvals for the caller, either the ones awaiting
// their decision (scope=pending, the default) or the ones they requested
// (scope=requested).
func (s *Server) ListApprovals(c *gin.Context) {
	identity, ok := s.identityFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	scope := strings.ToLower(strings.TrimSpace(c.Query("scope")))
	var (
		resp *approvaldomain.ListResponse
		err  error
	)
	switch scope {
	case "", "pending":
		resp, err = s.approvalSvc.ListPendingForApprover(c.Request.Context(), identity.UserID, page)
	case "requested":
		resp, err = s.approvalSvc.ListByRequester(c.Request.Context(), identity.UserID, page)
	default:
		AbortWithError(c, newValidationError("scope", "invalid_scope", "invalid scope"))
		return
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
