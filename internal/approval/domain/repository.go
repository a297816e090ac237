package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/sitedock/sitedock/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateApproval(ctx context.Context, approval Approval, approvers []Approver) error
	GetApproval(ctx context.Context, id snowflake.ID) (*Approval, error)

	// GetApprovalForUpdate loads the approval row under a row-level lock so
	// concurrent decisions on the same approval are serialized.
	GetApprovalForUpdate(ctx context.Context, id snowflake.ID) (*Approval, error)

	ListApprovers(ctx context.Context, approvalID snowflake.ID) ([]Approver, error)
	GetApprover(ctx context.Context, approvalID, approverID snowflake.ID) (*Approver, error)

	// RecordDecision applies the decision-guard update: the approver row moves
	// from pending to the decision. Reports whether this writer won.
	RecordDecision(ctx context.Context, approvalID, approverID snowflake.ID, decision Decision, at time.Time) (bool, error)

	UpdateApprovalStatus(ctx context.Context, id snowflake.ID, status Status, at time.Time) error

	// List queries return up to limit rows strictly after cursor (nil for the
	// first page) in a stable (created_at, id) order.
	ListPendingForApprover(ctx context.Context, approverID snowflake.ID, cursor *pagination.Cursor, limit int) ([]Approval, error)
	ListByRequester(ctx context.Context, requesterID snowflake.ID, cursor *pagination.Cursor, limit int) ([]Approval, error)
}
