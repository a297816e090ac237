package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/sitedock/sitedock/internal/organization/domain"
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

func (r *repository) CreateOrganization(ctx context.Context, org domain.Organization) error {
	return r.db.WithContext(ctx).Create(&org).Error
}

func (r *repository) GetOrganization(ctx context.Context, id snowflake.ID) (*domain.Organization, error) {
	var org domain.Organization
	err := r.db.WithContext(ctx).First(&org, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrOrganizationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *repository) ListOrganizationsByUser(ctx context.Context, userID snowflake.ID) ([]domain.OrganizationListItem, error) {
	var items []domain.OrganizationListItem
	err := r.db.WithContext(ctx).Raw(
		`SELECT o.id, o.name, o.slug, m.role, o.created_at
		 FROM organizations o
		 JOIN organization_memberships m ON m.org_id = o.id
		 WHERE m.user_id = ? AND m.status = ?
		 ORDER BY o.created_at ASC`,
		userID, domain.MembershipActive,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}

	return items, nil
}

func (r *repository) AddMembership(ctx context.Context, m domain.Membership) error {
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r *repository) GetMembership(ctx context.Context, orgID, userID snowflake.ID) (*domain.Membership, error) {
	var m domain.Membership
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND user_id = ?", orgID, userID).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrMembershipNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *repository) GetActiveMembershipByEmail(ctx context.Context, orgID snowflake.ID, email string) (*domain.Membership, error) {
	var m domain.Membership
	err := r.db.WithContext(ctx).Raw(
		`SELECT m.* FROM organization_memberships m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.org_id = ? AND m.status = ? AND LOWER(u.email) = ?`,
		orgID, domain.MembershipActive, strings.ToLower(strings.TrimSpace(email)),
	).Scan(&m).Error
	if err != nil {
		return nil, err
	}
	if m.ID == 0 {
		return nil, domain.ErrMembershipNotFound
	}
	return &m, nil
}

func (r *repository) UpdateMembership(ctx context.Context, id snowflake.ID, role domain.Role, status domain.MembershipStatus) error {
	return r.db.WithContext(ctx).
		Model(&domain.Membership{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"role":   role,
			"status": status,
		}).Error
}

func (r *repository) CountActiveOwners(ctx context.Context, orgID snowflake.ID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Membership{}).
		Where("org_id = ? AND role = ? AND status = ?", orgID, domain.RoleOwner, domain.MembershipActive).
		Count(&count).Error
	return count, err
}

func (r *repository) TouchLastAccessed(ctx context.Context, orgID, userID snowflake.ID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&domain.Membership{}).
		Where("org_id = ? AND user_id = ?", orgID, userID).
		Update("last_accessed_at", at).Error
}
