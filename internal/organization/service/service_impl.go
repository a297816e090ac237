package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/sitedock/sitedock/internal/clock"
	"github.com/sitedock/sitedock/internal/organization/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type service struct {
	db    *gorm.DB
	repo  domain.Repository
	genID *snowflake.Node
	clk   clock.Clock
	log   *zap.Logger
}

func NewService(db *gorm.DB, repo domain.Repository, genID *snowflake.Node, clk clock.Clock, log *zap.Logger) domain.Service {
	return &service{
		db:    db,
		repo:  repo,
		genID: genID,
		clk:   clk,
		log:   log.Named("organization.service"),
	}
}

func (s *service) Create(ctx context.Context, userID snowflake.ID, req domain.CreateOrganizationRequest) (*domain.OrganizationResponse, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	now := s.clk.Now()
	orgID := s.genID.Generate()
	org := domain.Organization{
		ID:          orgID,
		Name:        name,
		Slug:        slug.Make(name),
		Description: strings.TrimSpace(req.Description),
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateOrganization(ctx, org); err != nil {
			return err
		}

		membership := domain.Membership{
			ID:                   s.genID.Generate(),
			OrgID:                orgID,
			UserID:               userID,
			Role:                 domain.RoleOwner,
			Status:               domain.MembershipActive,
			NotificationsEnabled: true,
			JoinedAt:             now,
		}

		return repo.AddMembership(ctx, membership)
	})
	if err != nil {
		return nil, err
	}

	return &domain.OrganizationResponse{
		ID:          orgID.String(),
		Name:        org.Name,
		Slug:        org.Slug,
		Description: org.Description,
		IsActive:    org.IsActive,
	}, nil
}

func (s *service) GetByID(ctx context.Context, id string) (*domain.OrganizationResponse, error) {
	orgID, err := parseOrgID(id)
	if err != nil {
		return nil, err
	}

	org, err := s.repo.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}

	return &domain.OrganizationResponse{
		ID:          org.ID.String(),
		Name:        org.Name,
		Slug:        org.Slug,
		Description: org.Description,
		IsActive:    org.IsActive,
	}, nil
}

func (s *service) ListOrganizationsByUser(ctx context.Context, userID snowflake.ID) ([]domain.OrganizationListResponseItem, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}

	items, err := s.repo.ListOrganizationsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.OrganizationListResponseItem, 0, len(items))
	for _, item := range items {
		resp = append(resp, domain.OrganizationListResponseItem{
			ID:        item.ID.String(),
			Name:      item.Name,
			Slug:      item.Slug,
			Role:      item.Role,
			CreatedAt: item.CreatedAt,
		})
	}

	return resp, nil
}

func (s *service) ActiveMembership(ctx context.Context, orgID, userID snowflake.ID) (*domain.Membership, error) {
	m, err := s.repo.GetMembership(ctx, orgID, userID)
	if err != nil {
		return nil, err
	}
	if m.Status != domain.MembershipActive {
		return nil, domain.ErrNotMember
	}
	return m, nil
}

func (s *service) ChangeMemberRole(ctx context.Context, actorID snowflake.ID, orgID string, userID string, role domain.Role) error {
	if !domain.ValidRole(role) {
		return domain.ErrInvalidRole
	}
	return s.mutateMembership(ctx, actorID, orgID, userID, func(m *domain.Membership) (domain.Role, domain.MembershipStatus) {
		return role, m.Status
	})
}

func (s *service) RemoveMember(ctx context.Context, actorID snowflake.ID, orgID string, userID string) error {
	return s.mutateMembership(ctx, actorID, orgID, userID, func(m *domain.Membership) (domain.Role, domain.MembershipStatus) {
		return m.Role, domain.MembershipDeactivated
	})
}

func (s *service) SuspendMember(ctx context.Context, actorID snowflake.ID, orgID string, userID string) error {
	return s.mutateMembership(ctx, actorID, orgID, userID, func(m *domain.Membership) (domain.Role, domain.MembershipStatus) {
		return m.Role, domain.MembershipSuspended
	})
}

func (s *service) ReactivateMember(ctx context.Context, actorID snowflake.ID, orgID string, userID string) error {
	return s.mutateMembership(ctx, actorID, orgID, userID, func(m *domain.Membership) (domain.Role, domain.MembershipStatus) {
		return m.Role, domain.MembershipActive
	})
}

// mutateMembership applies a role/status change inside one transaction, holding
// the last-owner invariant: the final active owner of an organization cannot be
// demoted, suspended or removed.
func (s *service) mutateMembership(
	ctx context.Context,
	actorID snowflake.ID,
	rawOrgID string,
	rawUserID string,
	change func(m *domain.Membership) (domain.Role, domain.MembershipStatus),
) error {
	orgID, err := parseOrgID(rawOrgID)
	if err != nil {
		return err
	}
	userID, err := snowflake.ParseString(strings.TrimSpace(rawUserID))
	if err != nil {
		return domain.ErrInvalidUser
	}

	actor, err := s.ActiveMembership(ctx, orgID, actorID)
	if err != nil {
		return domain.ErrForbidden
	}
	if !actor.Role.CanInvite() {
		return domain.ErrForbidden
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		m, err := repo.GetMembership(ctx, orgID, userID)
		if err != nil {
			return err
		}

		role, status := change(m)

		demotesOwner := m.Role == domain.RoleOwner && m.Status == domain.MembershipActive &&
			(role != domain.RoleOwner || status != domain.MembershipActive)
		if demotesOwner {
			owners, err := repo.CountActiveOwners(ctx, orgID)
			if err != nil {
				return err
			}
			if owners <= 1 {
				return domain.ErrLastOwner
			}
		}

		return repo.UpdateMembership(ctx, m.ID, role, status)
	})
}

func parseOrgID(raw string) (snowflake.ID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, domain.ErrInvalidOrganization
	}
	id, err := snowflake.ParseString(trimmed)
	if err != nil {
		return 0, domain.ErrInvalidOrganization
	}
	return id, nil
}
