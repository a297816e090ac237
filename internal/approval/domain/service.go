package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/sitedock/sitedock/pkg/db/pagination"
)

type Service interface {
	// Create opens an approval for an opaque entity with a non-empty,
	// duplicate-free approver set.
	Create(ctx context.Context, req CreateRequest) (*Response, error)

	// RecordDecision records one approver's immutable decision and recomputes
	// the aggregate atomically with the write.
	RecordDecision(ctx context.Context, approvalID, approverID snowflake.ID, decision Decision) (*Response, error)

	GetByID(ctx context.Context, id string) (*Response, error)
	ListPendingForApprover(ctx context.Context, approverID snowflake.ID, page pagination.Pagination) (*ListResponse, error)
	ListByRequester(ctx context.Context, requesterID snowflake.ID, page pagination.Pagination) (*ListResponse, error)
}

type CreateRequest struct {
	OrgID       snowflake.ID
	EntityType  string
	EntityID    snowflake.ID
	RequesterID snowflake.ID
	ApproverIDs []snowflake.ID
}

type ApproverView struct {
	ApproverID string     `json:"approver_id"`
	Decision   Decision   `json:"decision"`
	DecidedAt  *time.Time `json:"decided_at,omitempty"`
}

type ListResponse struct {
	Approvals []Response          `json:"approvals"`
	PageInfo  pagination.PageInfo `json:"page_info"`
}

type Response struct {
	ID          string         `json:"id"`
	OrgID       string         `json:"organization_id"`
	EntityType  string         `json:"entity_type"`
	EntityID    string         `json:"entity_id"`
	RequesterID string         `json:"requester_id"`
	Status      Status         `json:"status"`
	Approvers   []ApproverView `json:"approvers"`
	CreatedAt   time.Time      `json:"created_at"`
}

var (
	ErrNotFound          = errors.New("approval_not_found")
	ErrInvalidPageToken  = errors.New("invalid_page_token")
	ErrEmptyApproverSet  = errors.New("empty_approver_set")
	ErrDuplicateApprover = errors.New("duplicate_approver")
	ErrInvalidRequester  = errors.New("invalid_requester")
	ErrInvalidEntity     = errors.New("invalid_entity")
	ErrInvalidDecision   = errors.New("invalid_decision")
	ErrNotAnApprover     = errors.New("not_an_approver")
	ErrAlreadyDecided    = errors.New("already_decided")
	ErrApprovalTerminal  = errors.New("approval_already_terminal")
)
