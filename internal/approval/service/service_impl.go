package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/sitedock/sitedock/internal/approval/domain"
	"github.com/sitedock/sitedock/internal/clock"
	"github.com/sitedock/sitedock/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 250
)

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clk   clock.Clock
	repo  domain.Repository
}

func NewService(p ServiceParam) domain.Service {
	return &service{
		db:    p.DB,
		log:   p.Log.Named("approval.service"),
		genID: p.GenID,
		clk:   p.Clock,
		repo:  p.Repo,
	}
}

func (s *service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Response, error) {
	if req.RequesterID == 0 {
		return nil, domain.ErrInvalidRequester
	}
	if strings.TrimSpace(req.EntityType) == "" || req.EntityID == 0 {
		return nil, domain.ErrInvalidEntity
	}
	if len(req.ApproverIDs) == 0 {
		return nil, domain.ErrEmptyApproverSet
	}

	seen := make(map[snowflake.ID]struct{}, len(req.ApproverIDs))
	for _, id := range req.ApproverIDs {
		if id == 0 {
			return nil, domain.ErrEmptyApproverSet
		}
		if _, dup := seen[id]; dup {
			return nil, domain.ErrDuplicateApprover
		}
		seen[id] = struct{}{}
	}

	now := s.clk.Now()
	approval := domain.Approval{
		ID:          s.genID.Generate(),
		OrgID:       req.OrgID,
		EntityType:  strings.TrimSpace(req.EntityType),
		EntityID:    req.EntityID,
		RequesterID: req.RequesterID,
		Status:      domain.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	approvers := make([]domain.Approver, 0, len(req.ApproverIDs))
	for _, approverID := range req.ApproverIDs {
		approvers = append(approvers, domain.Approver{
			ID:         s.genID.Generate(),
			ApprovalID: approval.ID,
			ApproverID: approverID,
			Decision:   domain.DecisionPending,
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).CreateApproval(ctx, approval, approvers)
	})
	if err != nil {
		return nil, err
	}

	return s.response(approval, approvers), nil
}

func (s *service) RecordDecision(ctx context.Context, approvalID, approverID snowflake.ID, decision domain.Decision) (*domain.Response, error) {
	if !domain.ValidDecision(decision) {
		return nil, domain.ErrInvalidDecision
	}
	if approvalID == 0 || approverID == 0 {
		return nil, domain.ErrNotFound
	}

	now := s.clk.Now()

	var (
		approval      *domain.Approval
		approvers     []domain.Approver
		afterTerminal bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		// Lock the aggregate first so the decision write and the status
		// recomputation are serialized per approval.
		locked, err := repo.GetApprovalForUpdate(ctx, approvalID)
		if err != nil {
			return err
		}

		approver, err := repo.GetApprover(ctx, approvalID, approverID)
		if err != nil {
			return err
		}
		if approver.Decision != domain.DecisionPending {
			return domain.ErrAlreadyDecided
		}

		won, err := repo.RecordDecision(ctx, approvalID, approverID, decision, now)
		if err != nil {
			return err
		}
		if !won {
			return domain.ErrAlreadyDecided
		}

		// A decision that lands after the aggregate turned terminal is still
		// recorded on the approver's own row, but the aggregate never moves
		// again. The write commits; only the outcome is an error.
		if locked.Status.Terminal() {
			afterTerminal = true
			return nil
		}

		approvers, err = repo.ListApprovers(ctx, approvalID)
		if err != nil {
			return err
		}

		decisions := make([]domain.Decision, 0, len(approvers))
		for _, a := range approvers {
			decisions = append(decisions, a.Decision)
		}

		aggregate := domain.Aggregate(decisions)
		if aggregate != locked.Status {
			if err := repo.UpdateApprovalStatus(ctx, approvalID, aggregate, now); err != nil {
				return err
			}
			locked.Status = aggregate
		}

		approval = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	if afterTerminal {
		return nil, domain.ErrApprovalTerminal
	}

	return s.response(*approval, approvers), nil
}

func (s *service) GetByID(ctx context.Context, id string) (*domain.Response, error) {
	approvalID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, domain.ErrNotFound
	}

	approval, err := s.repo.GetApproval(ctx, approvalID)
	if err != nil {
		return nil, err
	}
	approvers, err := s.repo.ListApprovers(ctx, approvalID)
	if err != nil {
		return nil, err
	}
	return s.response(*approval, approvers), nil
}

func (s *service) ListPendingForApprover(ctx context.Context, approverID snowflake.ID, page pagination.Pagination) (*domain.ListResponse, error) {
	return s.list(ctx, page, func(cursor *pagination.Cursor, limit int) ([]domain.Approval, error) {
		return s.repo.ListPendingForApprover(ctx, approverID, cursor, limit)
	})
}

func (s *service) ListByRequester(ctx context.Context, requesterID snowflake.ID, page pagination.Pagination) (*domain.ListResponse, error) {
	return s.list(ctx, page, func(cursor *pagination.Cursor, limit int) ([]domain.Approval, error) {
		return s.repo.ListByRequester(ctx, requesterID, cursor, limit)
	})
}

// list drives a cursor-paginated query: one extra row is fetched to decide
// whether a next page exists, and the cursor of the last returned row becomes
// the next page token.
func (s *service) list(
	ctx context.Context,
	page pagination.Pagination,
	query func(cursor *pagination.Cursor, limit int) ([]domain.Approval, error),
) (*domain.ListResponse, error) {
	size := page.PageSize
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	var cursor *pagination.Cursor
	if strings.TrimSpace(page.PageToken) != "" {
		decoded, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			return nil, domain.ErrInvalidPageToken
		}
		cursor = decoded
	}

	approvals, err := query(cursor, size+1)
	if err != nil {
		return nil, err
	}

	resp := &domain.ListResponse{}
	if len(approvals) > size {
		approvals = approvals[:size]
		last := approvals[len(approvals)-1]
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        last.ID.String(),
			CreatedAt: last.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return nil, err
		}
		resp.PageInfo = pagination.PageInfo{NextPageToken: token, HasMore: true}
	}

	resp.Approvals, err = s.responses(ctx, approvals)
	return resp, err
}

func (s *service) responses(ctx context.Context, approvals []domain.Approval) ([]domain.Response, error) {
	out := make([]domain.Response, 0, len(approvals))
	for _, approval := range approvals {
		approvers, err := s.repo.ListApprovers(ctx, approval.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, *s.response(approval, approvers))
	}
	return out, nil
}

func (s *service) response(approval domain.Approval, approvers []domain.Approver) *domain.Response {
	views := make([]domain.ApproverView, 0, len(approvers))
	for _, a := range approvers {
		views = append(views, domain.ApproverView{
			ApproverID: a.ApproverID.String(),
			Decision:   a.Decision,
			DecidedAt:  a.DecidedAt,
		})
	}

	return &domain.Response{
		ID:          approval.ID.String(),
		OrgID:       approval.OrgID.String(),
		EntityType:  approval.EntityType,
		EntityID:    approval.EntityID.String(),
		RequesterID: approval.RequesterID.String(),
		Status:      approval.Status,
		Approvers:   views,
		CreatedAt:   approval.CreatedAt,
	}
}
