package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/sitedock/sitedock/internal/auth/domain"
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

func (r *repository) GetByID(ctx context.Context, id snowflake.ID) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) SetDefaultOrganizationIfUnset(ctx context.Context, userID snowflake.ID, orgID snowflake.ID) error {
	return r.db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ? AND default_organization_id IS NULL", userID).
		Updates(map[string]any{
			"default_organization_id": orgID,
			"current_organization_id": orgID,
		}).Error
}

func (r *repository) SetCurrentOrganization(ctx context.Context, userID snowflake.ID, orgID snowflake.ID) error {
	return r.db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", userID).
		Update("current_organization_id", orgID).Error
}

func (r *repository) SetCurrentProject(ctx context.Context, userID snowflake.ID, projectID snowflake.ID) error {
	return r.db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", userID).
		Update("current_project_id", projectID).Error
}
