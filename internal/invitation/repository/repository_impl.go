package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/sitedock/sitedock/internal/invitation/domain"
	"gorm.io/gorm"
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

func (r *repository) Create(ctx context.Context, inv domain.Invitation) error {
	return r.db.WithContext(ctx).Create(&inv).Error
}

func (r *repository) FindByToken(ctx context.Context, token string) (*domain.Invitation, error) {
	var inv domain.Invitation
	err := r.db.WithContext(ctx).
		Where("token = ?", token).
		First(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *repository) FindPendingByOrgEmail(ctx context.Context, orgID snowflake.ID, email string) (*domain.Invitation, error) {
	var inv domain.Invitation
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND LOWER(invited_email) = ? AND status = ?",
			orgID, strings.ToLower(strings.TrimSpace(email)), domain.StatusPending).
		First(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *repository) ListPendingByEmail(ctx context.Context, email string) ([]domain.Invitation, error) {
	var invs []domain.Invitation
	err := r.db.WithContext(ctx).
		Where("LOWER(invited_email) = ? AND status = ?",
			strings.ToLower(strings.TrimSpace(email)), domain.StatusPending).
		Order("invited_at ASC").
		Find(&invs).Error
	if err != nil {
		return nil, err
	}
	return invs, nil
}

func (r *repository) TransitionStatus(ctx context.Context, id snowflake.ID, from, to domain.Status, at time.Time) (bool, error) {
	if !from.CanTransition(to) {
		return false, nil
	}

	res := r.db.WithContext(ctx).
		Model(&domain.Invitation{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{
			"status":     to,
			"updated_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) RefreshResend(ctx context.Context, id snowflake.ID, expiresAt time.Time, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.Invitation{}).
		Where("id = ? AND status = ?", id, domain.StatusPending).
		Updates(map[string]any{
			"resend_count":   gorm.Expr("resend_count + 1"),
			"last_resend_at": at,
			"expires_at":     expiresAt,
			"updated_at":     at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
