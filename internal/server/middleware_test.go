package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	authdomain "github.com/sitedock/sitedock/internal/auth/domain"
	"github.com/sitedock/sitedock/internal/clock"
	orgdomain "github.com/sitedock/sitedock/internal/organization/domain"
	sessiondomain "github.com/sitedock/sitedock/internal/session/domain"
)

type fakeVerifier struct {
	identity authdomain.Identity
}

func (f *fakeVerifier) Verify(ctx context.Context, bearerToken string) (authdomain.Identity, error) {
	_ = ctx
	if bearerToken != "Bearer crew-token" {
		return authdomain.Identity{}, authdomain.ErrInvalidToken
	}
	return f.identity, nil
}

type fakeOrgService struct {
	membership *orgdomain.Membership
}

func (f *fakeOrgService) Create(ctx context.Context, userID snowflake.ID, req orgdomain.CreateOrganizationRequest) (*orgdomain.OrganizationResponse, error) {
	panic("unimplemented")
}

func (f *fakeOrgService) GetByID(ctx context.Context, id string) (*orgdomain.OrganizationResponse, error) {
	panic("unimplemented")
}

func (f *fakeOrgService) ListOrganizationsByUser(ctx context.Context, userID snowflake.ID) ([]orgdomain.OrganizationListResponseItem, error) {
	panic("unimplemented")
}

func (f *fakeOrgService) ActiveMembership(ctx context.Context, orgID, userID snowflake.ID) (*orgdomain.Membership, error) {
	_ = ctx
	if f.membership == nil || f.membership.OrgID != orgID || f.membership.UserID != userID {
		return nil, orgdomain.ErrNotMember
	}
	return f.membership, nil
}

func (f *fakeOrgService) ChangeMemberRole(ctx context.Context, actorID snowflake.ID, orgID string, userID string, role orgdomain.Role) error {
	panic("unimplemented")
}

func (f *fakeOrgService) RemoveMember(ctx context.Context, actorID snowflake.ID, orgID string, userID string) error {
	panic("unimplemented")
}

func (f *fakeOrgService) SuspendMember(ctx context.Context, actorID snowflake.ID, orgID string, userID string) error {
	panic("unimplemented")
}

func (f *fakeOrgService) ReactivateMember(ctx context.Context, actorID snowflake.ID, orgID string, userID string) error {
	panic("unimplemented")
}

type fakeOrgRepo struct {
	touchedOrg  snowflake.ID
	touchedUser snowflake.ID
	touchedAt   time.Time
	touchCalls  int
	touchErr    error
}

func (f *fakeOrgRepo) WithTx(tx *gorm.DB) orgdomain.Repository { return f }

func (f *fakeOrgRepo) CreateOrganization(ctx context.Context, org orgdomain.Organization) error {
	panic("unimplemented")
}

func (f *fakeOrgRepo) GetOrganization(ctx context.Context, id snowflake.ID) (*orgdomain.Organization, error) {
	panic("unimplemented")
}

func (f *fakeOrgRepo) ListOrganizationsByUser(ctx context.Context, userID snowflake.ID) ([]orgdomain.OrganizationListItem, error) {
	panic("unimplemented")
}

func (f *fakeOrgRepo) AddMembership(ctx context.Context, m orgdomain.Membership) error {
	panic("unimplemented")
}

func (f *fakeOrgRepo) GetMembership(ctx context.Context, orgID, userID snowflake.ID) (*orgdomain.Membership, error) {
	panic("unimplemented")
}

func (f *fakeOrgRepo) GetActiveMembershipByEmail(ctx context.Context, orgID snowflake.ID, email string) (*orgdomain.Membership, error) {
	panic("unimplemented")
}

func (f *fakeOrgRepo) UpdateMembership(ctx context.Context, id snowflake.ID, role orgdomain.Role, status orgdomain.MembershipStatus) error {
	panic("unimplemented")
}

func (f *fakeOrgRepo) CountActiveOwners(ctx context.Context, orgID snowflake.ID) (int64, error) {
	panic("unimplemented")
}

func (f *fakeOrgRepo) TouchLastAccessed(ctx context.Context, orgID, userID snowflake.ID, at time.Time) error {
	_ = ctx
	f.touchCalls++
	f.touchedOrg = orgID
	f.touchedUser = userID
	f.touchedAt = at
	return f.touchErr
}

type fakeResolver struct {
	orgID snowflake.ID
}

func (f *fakeResolver) ResolveOrganization(ctx context.Context, userID snowflake.ID) (snowflake.ID, error) {
	_ = ctx
	_ = userID
	if f.orgID == 0 {
		return 0, sessiondomain.ErrNoActiveOrganization
	}
	return f.orgID, nil
}

func (f *fakeResolver) ResolveActiveContext(ctx context.Context, userID snowflake.ID) (sessiondomain.ActiveContext, error) {
	panic("unimplemented")
}

func TestOrgContextMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	userID := snowflake.ID(4102)
	orgID := snowflake.ID(7001)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	newRig := func(orgRepo *fakeOrgRepo) (*Server, *gin.Engine) {
		srv := &Server{
			log: zap.NewNop(),
			clk: clock.NewFakeClock(now),
			verifier: &fakeVerifier{identity: authdomain.Identity{
				UserID: userID,
				Email:  "crew@northside.test",
			}},
			orgRepo: orgRepo,
			organizationSvc: &fakeOrgService{membership: &orgdomain.Membership{
				OrgID:  orgID,
				UserID: userID,
				Role:   orgdomain.RoleAdmin,
				Status: orgdomain.MembershipActive,
			}},
			sessionResolver: &fakeResolver{orgID: orgID},
		}

		router := gin.New()
		router.Use(ErrorHandlingMiddleware())
		router.GET("/api/org", srv.AuthRequired(), srv.OrgContext(), func(c *gin.Context) {
			resolved, _ := srv.orgIDFromContext(c)
			c.JSON(http.StatusOK, gin.H{"org_id": resolved.String()})
		})
		return srv, router
	}

	t.Run("touches last accessed with the server clock", func(t *testing.T) {
		orgRepo := &fakeOrgRepo{}
		_, router := newRig(orgRepo)

		req := httptest.NewRequest(http.MethodGet, "/api/org", nil)
		req.Header.Set("Authorization", "Bearer crew-token")
		req.Header.Set(HeaderOrg, orgID.String())
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)

		if resp.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
		}
		if orgRepo.touchCalls != 1 {
			t.Fatalf("expected one touch, got %d", orgRepo.touchCalls)
		}
		if orgRepo.touchedOrg != orgID || orgRepo.touchedUser != userID {
			t.Fatalf("touched (%v, %v), want (%v, %v)", orgRepo.touchedOrg, orgRepo.touchedUser, orgID, userID)
		}
		if !orgRepo.touchedAt.Equal(now) {
			t.Fatalf("touched at %v, want %v", orgRepo.touchedAt, now)
		}
	})

	t.Run("falls back to stored pointers without the org header", func(t *testing.T) {
		orgRepo := &fakeOrgRepo{}
		_, router := newRig(orgRepo)

		req := httptest.NewRequest(http.MethodGet, "/api/org", nil)
		req.Header.Set("Authorization", "Bearer crew-token")
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)

		if resp.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
		}
		if orgRepo.touchedOrg != orgID {
			t.Fatalf("touched org %v, want %v", orgRepo.touchedOrg, orgID)
		}
	})

	t.Run("touch failure does not fail the request", func(t *testing.T) {
		orgRepo := &fakeOrgRepo{touchErr: gorm.ErrInvalidDB}
		_, router := newRig(orgRepo)

		req := httptest.NewRequest(http.MethodGet, "/api/org", nil)
		req.Header.Set("Authorization", "Bearer crew-token")
		req.Header.Set(HeaderOrg, orgID.String())
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)

		if resp.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
		}
	})

	t.Run("missing authorization header yields 401", func(t *testing.T) {
		orgRepo := &fakeOrgRepo{}
		_, router := newRig(orgRepo)

		req := httptest.NewRequest(http.MethodGet, "/api/org", nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)

		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("expected status 401, got %d", resp.Code)
		}
		if orgRepo.touchCalls != 0 {
			t.Fatalf("expected no touch, got %d", orgRepo.touchCalls)
		}
	})

	t.Run("invalid org header yields 400", func(t *testing.T) {
		orgRepo := &fakeOrgRepo{}
		_, router := newRig(orgRepo)

		req := httptest.NewRequest(http.MethodGet, "/api/org", nil)
		req.Header.Set("Authorization", "Bearer crew-token")
		req.Header.Set(HeaderOrg, "not-an-id")
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)

		if resp.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", resp.Code)
		}
	})
}
