package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/sitedock/sitedock/internal/clock"
	orgdomain "github.com/sitedock/sitedock/internal/organization/domain"
	"github.com/sitedock/sitedock/internal/project/domain"
	"gorm.io/gorm"
)

type service struct {
	db     *gorm.DB
	repo   domain.Repository
	orgSvc orgdomain.Service
	genID  *snowflake.Node
	clk    clock.Clock
}

func NewService(db *gorm.DB, repo domain.Repository, orgSvc orgdomain.Service, genID *snowflake.Node, clk clock.Clock) domain.Service {
	return &service{
		db:     db,
		repo:   repo,
		orgSvc: orgSvc,
		genID:  genID,
		clk:    clk,
	}
}

func (s *service) Create(ctx context.Context, userID snowflake.ID, req domain.CreateProjectRequest) (*domain.ProjectResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	if req.OrgID == 0 {
		return nil, domain.ErrInvalidProject
	}

	membership, err := s.orgSvc.ActiveMembership(ctx, req.OrgID, userID)
	if err != nil {
		return nil, domain.ErrForbidden
	}
	if !membership.Role.CanInvite() {
		return nil, domain.ErrForbidden
	}

	now := s.clk.Now()
	project := domain.Project{
		ID:          s.genID.Generate(),
		OrgID:       req.OrgID,
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateProject(ctx, project); err != nil {
			return err
		}
		return repo.AddMembership(ctx, domain.Membership{
			ID:        s.genID.Generate(),
			ProjectID: project.ID,
			UserID:    userID,
			Role:      string(membership.Role),
			IsActive:  true,
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	return projectResponse(project), nil
}

func (s *service) ListByUser(ctx context.Context, orgID, userID snowflake.ID) ([]domain.ProjectResponse, error) {
	projects, err := s.repo.ListProjectsByUser(ctx, orgID, userID)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.ProjectResponse, 0, len(projects))
	for _, p := range projects {
		resp = append(resp, *projectResponse(p))
	}
	return resp, nil
}

func (s *service) ActiveMembership(ctx context.Context, projectID, userID snowflake.ID) (*domain.Membership, error) {
	return s.repo.GetActiveMembership(ctx, projectID, userID)
}

func projectResponse(p domain.Project) *domain.ProjectResponse {
	return &domain.ProjectResponse{
		ID:          p.ID.String(),
		OrgID:       p.OrgID.String(),
		Name:        p.Name,
		Description: p.Description,
		IsActive:    p.IsActive,
		CreatedAt:   p.CreatedAt,
	}
}
