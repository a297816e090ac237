package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	authdomain "github.com/sitedock/sitedock/internal/auth/domain"
	orgdomain "github.com/sitedock/sitedock/internal/organization/domain"
	"github.com/sitedock/sitedock/internal/orgcontext"
)

const (
	HeaderOrg = "X-Org-ID"

	contextIdentityKey = "identity"
	contextOrgIDKey    = "org_id"
	contextOrgRoleKey  = "org_role"
)

// AuthRequired verifies the bearer token issued by the external auth
// collaborator and stores the verified identity on the request.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		identity, err := s.verifier.Verify(c.Request.Context(), header)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(contextIdentityKey, identity)
		c.Next()
	}
}

// OrgContext resolves the active organization for the request: an explicit
// X-Org-ID header wins, otherwise the user's stored pointers are consulted.
// The resolved org must carry an active membership for the caller.
func (s *Server) OrgContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := s.identityFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		orgID, err := s.resolveRequestOrg(c, identity.UserID)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		membership, err := s.organizationSvc.ActiveMembership(c.Request.Context(), orgID, identity.UserID)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		ctx := orgcontext.WithOrgID(c.Request.Context(), int64(orgID))
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextOrgIDKey, orgID)
		c.Set(contextOrgRoleKey, membership.Role)

		if err := s.orgRepo.TouchLastAccessed(ctx, orgID, identity.UserID, s.clk.Now()); err != nil {
			s.log.Warn("touch last accessed failed",
				zap.String("org_id", orgID.String()),
				zap.Error(err),
			)
		}

		c.Next()
	}
}

func (s *Server) resolveRequestOrg(c *gin.Context, userID snowflake.ID) (snowflake.ID, error) {
	if raw := strings.TrimSpace(c.GetHeader(HeaderOrg)); raw != "" {
		parsed, err := snowflake.ParseString(raw)
		if err != nil || parsed == 0 {
			return 0, newValidationError("org_id", "invalid_org_id", "invalid org id")
		}
		return parsed, nil
	}
	return s.sessionResolver.ResolveOrganization(c.Request.Context(), userID)
}

// RequireRole gates a route on the caller's membership role in the active org.
func (s *Server) RequireRole(roles ...orgdomain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := s.roleFromContext(c)
		if !ok {
			AbortWithError(c, ErrForbidden)
			return
		}
		for _, allowed := range roles {
			if role == allowed {
				c.Next()
				return
			}
		}
		AbortWithError(c, ErrForbidden)
	}
}

// authorizeOrgAction runs the policy check for the given object and action in
// the active organization.
func (s *Server) authorizeOrgAction(object, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := s.identityFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		orgID, ok := s.orgIDFromContext(c)
		if !ok {
			AbortWithError(c, ErrForbidden)
			return
		}

		actor := "user:" + identity.UserID.String()
		if err := s.authzSvc.Authorize(c.Request.Context(), actor, orgID.String(), object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// InvitationTokenRateLimit throttles the unauthenticated token endpoints per
// client address. A limiter backend failure fails open.
func (s *Server) InvitationTokenRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.inviteLimiter == nil || !s.inviteLimiter.Enabled() {
			c.Next()
			return
		}

		res, err := s.inviteLimiter.AllowClient(c.Request.Context(), c.ClientIP())
		if err != nil {
			s.log.Warn("invitation token rate limit check failed", zap.Error(err))
			c.Next()
			return
		}
		if !res.Allowed {
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}

func (s *Server) identityFromContext(c *gin.Context) (authdomain.Identity, bool) {
	value, exists := c.Get(contextIdentityKey)
	if !exists {
		return authdomain.Identity{}, false
	}
	identity, ok := value.(authdomain.Identity)
	if !ok || identity.UserID == 0 {
		return authdomain.Identity{}, false
	}
	return identity, true
}

func (s *Server) orgIDFromContext(c *gin.Context) (snowflake.ID, bool) {
	value, exists := c.Get(contextOrgIDKey)
	if !exists {
		return 0, false
	}
	orgID, ok := value.(snowflake.ID)
	return orgID, ok && orgID != 0
}

func (s *Server) roleFromContext(c *gin.Context) (orgdomain.Role, bool) {
	value, exists := c.Get(contextOrgRoleKey)
	if !exists {
		return "", false
	}
	role, ok := value.(orgdomain.Role)
	return role, ok
}
