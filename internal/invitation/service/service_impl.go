package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/sitedock/sitedock/internal/auth/domain"
	"github.com/sitedock/sitedock/internal/clock"
	"github.com/sitedock/sitedock/internal/config"
	"github.com/sitedock/sitedock/internal/invitation/domain"
	orgdomain "github.com/sitedock/sitedock/internal/organization/domain"
	"github.com/sitedock/sitedock/internal/providers/email"
	"github.com/sitedock/sitedock/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	OrgRepo  orgdomain.Repository
	UserRepo authdomain.Repository
	TokenGen domain.TokenGenerator
	Email    email.Provider
	Workflow *config.WorkflowConfigHolder
	Cfg      config.Config
}

type service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clk      clock.Clock
	repo     domain.Repository
	orgRepo  orgdomain.Repository
	userRepo authdomain.Repository
	tokenGen domain.TokenGenerator
	email    email.Provider
	workflow *config.WorkflowConfigHolder
	baseURL  string
}

func NewService(p ServiceParam) domain.Service {
	return &service{
		db:       p.DB,
		log:      p.Log.Named("invitation.service"),
		genID:    p.GenID,
		clk:      p.Clock,
		repo:     p.Repo,
		orgRepo:  p.OrgRepo,
		userRepo: p.UserRepo,
		tokenGen: p.TokenGen,
		email:    p.Email,
		workflow: p.Workflow,
		baseURL:  p.Cfg.Email.BaseURL,
	}
}

func (s *service) Create(ctx context.Context, req domain.CreateRequest) (*domain.CreateResponse, error) {
	if req.OrgID == 0 || req.InviterID == 0 {
		return nil, domain.ErrNotAllowed
	}

	invitedEmail, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidEmail
	}
	if !orgdomain.ValidRole(req.Role) {
		return nil, domain.ErrInvalidRole
	}

	inviter, err := s.orgRepo.GetMembership(ctx, req.OrgID, req.InviterID)
	if err != nil || inviter.Status != orgdomain.MembershipActive || !inviter.Role.CanInvite() {
		return nil, domain.ErrNotAllowed
	}

	if _, err := s.orgRepo.GetActiveMembershipByEmail(ctx, req.OrgID, invitedEmail); err == nil {
		return nil, domain.ErrAlreadyMember
	}

	now := s.clk.Now()
	wf := s.workflow.Current()
	expiresAt := now.Add(wf.InvitationTTL)

	// Resend path: a pending, unexpired invitation for the same pair is
	// refreshed in place rather than duplicated.
	existing, err := s.repo.FindPendingByOrgEmail(ctx, req.OrgID, invitedEmail)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if err == nil && !existing.IsExpired(now) {
		if wf.InvitationMaxResends > 0 && existing.ResendCount >= wf.InvitationMaxResends {
			return nil, domain.ErrResendLimit
		}
		refreshed, err := s.repo.RefreshResend(ctx, existing.ID, expiresAt, now)
		if err != nil {
			return nil, err
		}
		if refreshed {
			s.notify(ctx, *existing)
			return &domain.CreateResponse{
				ID:          existing.ID.String(),
				OrgID:       existing.OrgID.String(),
				Email:       existing.InvitedEmail,
				Role:        string(existing.Role),
				Status:      domain.StatusPending,
				ExpiresAt:   expiresAt,
				ResendCount: existing.ResendCount + 1,
				Resent:      true,
			}, nil
		}
		// Lost a race against accept/decline; fall through to a fresh row.
	}

	token, err := s.tokenGen.NewToken()
	if err != nil {
		return nil, err
	}

	inv := domain.Invitation{
		ID:           s.genID.Generate(),
		OrgID:        req.OrgID,
		InvitedEmail: invitedEmail,
		Role:         req.Role,
		Token:        token,
		Status:       domain.StatusPending,
		InvitedBy:    req.InviterID,
		InvitedAt:    now,
		ExpiresAt:    expiresAt,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, inv); err != nil {
		return nil, err
	}

	s.notify(ctx, inv)

	return &domain.CreateResponse{
		ID:        inv.ID.String(),
		OrgID:     inv.OrgID.String(),
		Email:     inv.InvitedEmail,
		Role:      string(inv.Role),
		Status:    inv.Status,
		ExpiresAt: inv.ExpiresAt,
	}, nil
}

func (s *service) Resolve(ctx context.Context, token string) (*domain.Details, error) {
	inv, err := s.findByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	return s.details(ctx, *inv)
}

func (s *service) Accept(ctx context.Context, token string, actor domain.Actor) (*domain.AcceptResponse, error) {
	if actor.UserID == 0 {
		return nil, domain.ErrNotAllowed
	}

	inv, err := s.findByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	now := s.clk.Now()
	if inv.Status.Terminal() {
		return nil, domain.ErrAlreadyProcessed
	}
	if inv.IsExpired(now) {
		// Mutating path observed expiry: converge stored state before failing.
		if _, err := s.repo.TransitionStatus(ctx, inv.ID, domain.StatusPending, domain.StatusExpired, now); err != nil {
			return nil, err
		}
		return nil, domain.ErrExpired
	}
	if !strings.EqualFold(strings.TrimSpace(actor.Email), inv.InvitedEmail) {
		return nil, domain.ErrEmailMismatch
	}

	var membershipID snowflake.ID
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		orgRepo := s.orgRepo.WithTx(tx)
		userRepo := s.userRepo.WithTx(tx)

		won, err := repo.TransitionStatus(ctx, inv.ID, domain.StatusPending, domain.StatusAccepted, now)
		if err != nil {
			return err
		}
		if !won {
			return domain.ErrAlreadyProcessed
		}

		membershipID, err = s.upsertMembership(ctx, orgRepo, inv.OrgID, actor.UserID, inv.Role, now)
		if err != nil {
			return err
		}

		// First accepted organization becomes the user's default.
		return userRepo.SetDefaultOrganizationIfUnset(ctx, actor.UserID, inv.OrgID)
	})
	if err != nil {
		return nil, err
	}

	return &domain.AcceptResponse{
		OrganizationID: inv.OrgID.String(),
		MembershipID:   membershipID.String(),
		Role:           string(inv.Role),
	}, nil
}

func (s *service) Decline(ctx context.Context, token string) error {
	inv, err := s.findByToken(ctx, token)
	if err != nil {
		return err
	}

	// Declining an expired link is allowed, so expiry is not checked here.
	won, err := s.repo.TransitionStatus(ctx, inv.ID, domain.StatusPending, domain.StatusDeclined, s.clk.Now())
	if err != nil {
		return err
	}
	if !won {
		return domain.ErrAlreadyProcessed
	}
	return nil
}

func (s *service) ListPendingForEmail(ctx context.Context, email string) ([]domain.Details, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil, domain.ErrInvalidEmail
	}

	invs, err := s.repo.ListPendingByEmail(ctx, normalized)
	if err != nil {
		return nil, err
	}

	now := s.clk.Now()
	out := make([]domain.Details, 0, len(invs))
	for _, inv := range invs {
		if inv.IsExpired(now) {
			continue
		}
		details, err := s.details(ctx, inv)
		if err != nil {
			return nil, err
		}
		out = append(out, *details)
	}
	return out, nil
}

func (s *service) findByToken(ctx context.Context, token string) (*domain.Invitation, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return nil, domain.ErrNotFound
	}
	return s.repo.FindByToken(ctx, trimmed)
}

func (s *service) details(ctx context.Context, inv domain.Invitation) (*domain.Details, error) {
	org, err := s.orgRepo.GetOrganization(ctx, inv.OrgID)
	if err != nil {
		return nil, err
	}

	var inviterEmail, inviterName string
	if inviter, err := s.userRepo.GetByID(ctx, inv.InvitedBy); err == nil {
		inviterEmail = inviter.Email
		inviterName = inviter.DisplayName
	}

	hasAccount := false
	if _, err := s.userRepo.GetByEmail(ctx, inv.InvitedEmail); err == nil {
		hasAccount = true
	}

	return &domain.Details{
		Token:            inv.Token,
		OrganizationID:   inv.OrgID.String(),
		OrganizationName: org.Name,
		Role:             inv.Role,
		InvitedEmail:     inv.InvitedEmail,
		InviterEmail:     inviterEmail,
		InviterName:      inviterName,
		Status:           inv.EffectiveStatus(s.clk.Now()),
		ExpiresAt:        inv.ExpiresAt,
		EmailHasAccount:  hasAccount,
	}, nil
}

// upsertMembership creates the membership row or reactivates the existing one,
// keyed on (org, user) so concurrent retries converge on a single row.
func (s *service) upsertMembership(
	ctx context.Context,
	orgRepo orgdomain.Repository,
	orgID, userID snowflake.ID,
	role orgdomain.Role,
	now time.Time,
) (snowflake.ID, error) {
	existing, err := orgRepo.GetMembership(ctx, orgID, userID)
	if err == nil {
		if err := orgRepo.UpdateMembership(ctx, existing.ID, role, orgdomain.MembershipActive); err != nil {
			return 0, err
		}
		return existing.ID, nil
	}
	if !errors.Is(err, orgdomain.ErrMembershipNotFound) {
		return 0, err
	}

	membership := orgdomain.Membership{
		ID:                   s.genID.Generate(),
		OrgID:                orgID,
		UserID:               userID,
		Role:                 role,
		Status:               orgdomain.MembershipActive,
		NotificationsEnabled: true,
		JoinedAt:             now,
	}
	if err := orgRepo.AddMembership(ctx, membership); err != nil {
		if db.IsDuplicateKeyErr(err) {
			// Lost the insert race; converge on the existing row.
			existing, getErr := orgRepo.GetMembership(ctx, orgID, userID)
			if getErr != nil {
				return 0, getErr
			}
			if err := orgRepo.UpdateMembership(ctx, existing.ID, role, orgdomain.MembershipActive); err != nil {
				return 0, err
			}
			return existing.ID, nil
		}
		return 0, err
	}
	return membership.ID, nil
}

func normalizeEmail(raw string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return "", domain.ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(trimmed)
	if err != nil {
		return "", domain.ErrInvalidEmail
	}
	return addr.Address, nil
}

func (s *service) notify(ctx context.Context, inv domain.Invitation) {
	link := fmt.Sprintf("%s/invitations/%s", strings.TrimRight(s.baseURL, "/"), inv.Token)
	subject := "You're invited to join a team on Sitedock"
	body := fmt.Sprintf(
		`<p>You have been invited to join an organization as %s.</p><p><a href=%q>Accept invitation</a></p>`,
		inv.Role, link,
	)
	if err := s.email.Send(ctx, []string{inv.InvitedEmail}, subject, body); err != nil {
		s.log.Warn("failed to hand off invitation email",
			zap.String("invitation_id", inv.ID.String()),
			zap.Error(err))
	}
}
