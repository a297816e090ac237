// Package domain contains core identity types.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// User represents a system user account. Authentication happens in an external
// collaborator; this service only consumes verified identities and the stored
// org/project context pointers.
type User struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	Email       string       `gorm:"type:text;not null;uniqueIndex:ux_users_email"`
	DisplayName string       `gorm:"type:text"`

	CurrentOrganizationID *snowflake.ID `gorm:"column:current_organization_id"`
	DefaultOrganizationID *snowflake.ID `gorm:"column:default_organization_id"`
	CurrentProjectID      *snowflake.ID `gorm:"column:current_project_id"`
	DefaultProjectID      *snowflake.ID `gorm:"column:default_project_id"`

	Metadata  datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

// Identity is the verified (user id, email) pair extracted at the auth boundary.
type Identity struct {
	UserID snowflake.ID
	Email  string
}
