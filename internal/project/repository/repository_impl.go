package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/sitedock/sitedock/internal/project/domain"
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

func (r *repository) CreateProject(ctx context.Context, p domain.Project) error {
	return r.db.WithContext(ctx).Create(&p).Error
}

func (r *repository) GetProject(ctx context.Context, id snowflake.ID) (*domain.Project, error) {
	var p domain.Project
	err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrProjectNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repository) AddMembership(ctx context.Context, m domain.Membership) error {
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r *repository) GetActiveMembership(ctx context.Context, projectID, userID snowflake.ID) (*domain.Membership, error) {
	var m domain.Membership
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ? AND is_active = ?", projectID, userID, true).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrMembershipNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *repository) ListProjectsByUser(ctx context.Context, orgID, userID snowflake.ID) ([]domain.Project, error) {
	var projects []domain.Project
	err := r.db.WithContext(ctx).Raw(
		`SELECT p.* FROM projects p
		 JOIN project_memberships m ON m.project_id = p.id
		 WHERE p.org_id = ? AND m.user_id = ? AND m.is_active = ? AND p.is_active = ?
		 ORDER BY p.created_at ASC`,
		orgID, userID, true, true,
	).Scan(&projects).Error
	if err != nil {
		return nil, err
	}
	return projects, nil
}
