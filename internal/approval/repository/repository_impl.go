package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/sitedock/sitedock/internal/approval/domain"
	"github.com/sitedock/sitedock/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) CreateApproval(ctx context.Context, approval domain.Approval, approvers []domain.Approver) error {
	if err := r.db.WithContext(ctx).Create(&approval).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(&approvers).Error
}

func (r *repository) GetApproval(ctx context.Context, id snowflake.ID) (*domain.Approval, error) {
	var approval domain.Approval
	err := r.db.WithContext(ctx).First(&approval, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &approval, nil
}

func (r *repository) GetApprovalForUpdate(ctx context.Context, id snowflake.ID) (*domain.Approval, error) {
	var approval domain.Approval
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&approval, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &approval, nil
}

func (r *repository) ListApprovers(ctx context.Context, approvalID snowflake.ID) ([]domain.Approver, error) {
	var approvers []domain.Approver
	err := r.db.WithContext(ctx).
		Where("approval_id = ?", approvalID).
		Order("id ASC").
		Find(&approvers).Error
	if err != nil {
		return nil, err
	}
	return approvers, nil
}

func (r *repository) GetApprover(ctx context.Context, approvalID, approverID snowflake.ID) (*domain.Approver, error) {
	var approver domain.Approver
	err := r.db.WithContext(ctx).
		Where("approval_id = ? AND approver_id = ?", approvalID, approverID).
		First(&approver).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotAnApprover
	}
	if err != nil {
		return nil, err
	}
	return &approver, nil
}

func (r *repository) RecordDecision(ctx context.Context, approvalID, approverID snowflake.ID, decision domain.Decision, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.Approver{}).
		Where("approval_id = ? AND approver_id = ? AND decision = ?",
			approvalID, approverID, domain.DecisionPending).
		Updates(map[string]any{
			"decision":   decision,
			"decided_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) UpdateApprovalStatus(ctx context.Context, id snowflake.ID, status domain.Status, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&domain.Approval{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     status,
			"updated_at": at,
		}).Error
}

// decodeCursor turns the opaque cursor fields back into typed values so the
// driver binds them with the same encoding the columns were written with.
func decodeCursor(cursor *pagination.Cursor) (time.Time, snowflake.ID, error) {
	at, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
	if err != nil {
		return time.Time{}, 0, domain.ErrInvalidPageToken
	}
	id, err := snowflake.ParseString(cursor.ID)
	if err != nil {
		return time.Time{}, 0, domain.ErrInvalidPageToken
	}
	return at, id, nil
}

func (r *repository) ListPendingForApprover(ctx context.Context, approverID snowflake.ID, cursor *pagination.Cursor, limit int) ([]domain.Approval, error) {
	query := `SELECT a.* FROM approvals a
		 JOIN approval_approvers aa ON aa.approval_id = a.id
		 WHERE aa.approver_id = ? AND aa.decision = ? AND a.status = ?`
	args := []any{approverID, domain.DecisionPending, domain.StatusPending}

	if cursor != nil {
		after, afterID, err := decodeCursor(cursor)
		if err != nil {
			return nil, err
		}
		query += ` AND (a.created_at, a.id) > (?, ?)`
		args = append(args, after, afterID)
	}
	query += ` ORDER BY a.created_at ASC, a.id ASC LIMIT ?`
	args = append(args, limit)

	var approvals []domain.Approval
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&approvals).Error; err != nil {
		return nil, err
	}
	return approvals, nil
}

func (r *repository) ListByRequester(ctx context.Context, requesterID snowflake.ID, cursor *pagination.Cursor, limit int) ([]domain.Approval, error) {
	tx := r.db.WithContext(ctx).
		Where("requester_id = ?", requesterID)
	if cursor != nil {
		before, beforeID, err := decodeCursor(cursor)
		if err != nil {
			return nil, err
		}
		tx = tx.Where("(created_at, id) < (?, ?)", before, beforeID)
	}

	var approvals []domain.Approval
	err := tx.Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&approvals).Error
	if err != nil {
		return nil, err
	}
	return approvals, nil
}
