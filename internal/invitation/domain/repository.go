package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, inv Invitation) error
	FindByToken(ctx context.Context, token string) (*Invitation, error)
	FindPendingByOrgEmail(ctx context.Context, orgID snowflake.ID, email string) (*Invitation, error)
	ListPendingByEmail(ctx context.Context, email string) ([]Invitation, error)

	// TransitionStatus performs the compare-and-swap status-guard update:
	// it moves the row identified by id from `from` to `to` and reports whether
	// this writer won the transition.
	TransitionStatus(ctx context.Context, id snowflake.ID, from, to Status, at time.Time) (bool, error)

	// RefreshResend updates a still-pending invitation in place for an
	// idempotent resend. Reports whether the row was still pending.
	RefreshResend(ctx context.Context, id snowflake.ID, expiresAt time.Time, at time.Time) (bool, error)
}
