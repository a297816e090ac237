package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type OrganizationListItem struct {
	ID        snowflake.ID
	Name      string
	Slug      string
	Role      Role
	CreatedAt time.Time
}

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrganization(ctx context.Context, org Organization) error
	GetOrganization(ctx context.Context, id snowflake.ID) (*Organization, error)
	ListOrganizationsByUser(ctx context.Context, userID snowflake.ID) ([]OrganizationListItem, error)

	AddMembership(ctx context.Context, m Membership) error
	GetMembership(ctx context.Context, orgID, userID snowflake.ID) (*Membership, error)
	GetActiveMembershipByEmail(ctx context.Context, orgID snowflake.ID, email string) (*Membership, error)
	UpdateMembership(ctx context.Context, id snowflake.ID, role Role, status MembershipStatus) error
	CountActiveOwners(ctx context.Context, orgID snowflake.ID) (int64, error)
	TouchLastAccessed(ctx context.Context, orgID, userID snowflake.ID, at time.Time) error
}
