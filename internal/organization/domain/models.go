// Package domain contains persistence models for the organization service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Organization represents a tenant. Organizations are owned collectively by
// their members; at least one active owner membership must remain at all times.
type Organization struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	Name        string            `gorm:"type:text;not null" json:"name"`
	Slug        string            `gorm:"type:text;not null;uniqueIndex:ux_organizations_slug" json:"slug"`
	Description string            `gorm:"type:text" json:"description"`
	IsActive    bool              `gorm:"not null" json:"is_active"`
	Metadata    datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata"`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Organization) TableName() string { return "organizations" }

// Membership binds a user to an organization. Exactly one row exists per
// (organization, user) pair; rows are deactivated, never deleted.
type Membership struct {
	ID                   snowflake.ID     `gorm:"primaryKey" json:"id"`
	OrgID                snowflake.ID     `gorm:"not null;index;uniqueIndex:ux_org_memberships,priority:1" json:"organization_id"`
	UserID               snowflake.ID     `gorm:"not null;index;uniqueIndex:ux_org_memberships,priority:2" json:"user_id"`
	Role                 Role             `gorm:"type:text;not null" json:"role"`
	Status               MembershipStatus `gorm:"type:text;not null" json:"status"`
	NotificationsEnabled bool             `gorm:"not null" json:"notifications_enabled"`
	JoinedAt             time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"joined_at"`
	LastAccessedAt       *time.Time       `gorm:"column:last_accessed_at" json:"last_accessed_at,omitempty"`
}

// TableName sets the database table name.
func (Membership) TableName() string { return "organization_memberships" }

type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleGuest  Role = "guest"
)

// ValidRole reports whether role is one of the membership roles.
func ValidRole(role Role) bool {
	switch role {
	case RoleOwner, RoleAdmin, RoleMember, RoleGuest:
		return true
	default:
		return false
	}
}

// CanInvite reports whether a membership role may create invitations.
func (r Role) CanInvite() bool {
	return r == RoleOwner || r == RoleAdmin
}

type MembershipStatus string

const (
	MembershipPending     MembershipStatus = "pending"
	MembershipActive      MembershipStatus = "active"
	MembershipSuspended   MembershipStatus = "suspended"
	MembershipDeactivated MembershipStatus = "deactivated"
)
