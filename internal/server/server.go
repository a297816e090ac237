package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sitedock/sitedock/internal/approval"
	approvaldomain "github.com/sitedock/sitedock/internal/approval/domain"
	"github.com/sitedock/sitedock/internal/auth"
	authdomain "github.com/sitedock/sitedock/internal/auth/domain"
	"github.com/sitedock/sitedock/internal/authorization"
	"github.com/sitedock/sitedock/internal/clock"
	"github.com/sitedock/sitedock/internal/config"
	"github.com/sitedock/sitedock/internal/invitation"
	invitationdomain "github.com/sitedock/sitedock/internal/invitation/domain"
	"github.com/sitedock/sitedock/internal/logger"
	"github.com/sitedock/sitedock/internal/migration"
	"github.com/sitedock/sitedock/internal/observability"
	obslogger "github.com/sitedock/sitedock/internal/observability/logger"
	obsmetrics "github.com/sitedock/sitedock/internal/observability/metrics"
	obstracing "github.com/sitedock/sitedock/internal/observability/tracing"
	"github.com/sitedock/sitedock/internal/organization"
	orgdomain "github.com/sitedock/sitedock/internal/organization/domain"
	"github.com/sitedock/sitedock/internal/project"
	projectdomain "github.com/sitedock/sitedock/internal/project/domain"
	"github.com/sitedock/sitedock/internal/providers/email"
	"github.com/sitedock/sitedock/internal/ratelimit"
	"github.com/sitedock/sitedock/internal/session"
	sessiondomain "github.com/sitedock/sitedock/internal/session/domain"
	"github.com/sitedock/sitedock/pkg/db"
)

var Module = fx.Module("http.server",
	config.Module,
	logger.Module,
	clock.Module,
	db.Module,
	migration.Module,
	observability.Module,
	fx.Provide(registerGin),
	authorization.Module,
	auth.Module,
	email.Module,
	organization.Module,
	project.Module,
	invitation.Module,
	approval.Module,
	session.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(log.Named("http")))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(log, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	db              *gorm.DB
	log             *zap.Logger
	genID           *snowflake.Node
	clk             clock.Clock
	verifier        authdomain.Verifier
	userRepo        authdomain.Repository
	orgRepo         orgdomain.Repository
	authzSvc        authorization.Service
	organizationSvc orgdomain.Service
	projectSvc      projectdomain.Service
	invitationSvc   invitationdomain.Service
	approvalSvc     approvaldomain.Service
	sessionResolver sessiondomain.Resolver
	inviteLimiter   *ratelimit.InvitationLimiter
	metrics         *obsmetrics.HTTPMetrics
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	DB              *gorm.DB
	Log             *zap.Logger
	GenID           *snowflake.Node
	Clk             clock.Clock
	Verifier        authdomain.Verifier
	UserRepo        authdomain.Repository
	OrgRepo         orgdomain.Repository
	AuthzSvc        authorization.Service
	OrganizationSvc orgdomain.Service
	ProjectSvc      projectdomain.Service
	InvitationSvc   invitationdomain.Service
	ApprovalSvc     approvaldomain.Service
	SessionResolver sessiondomain.Resolver
	InviteLimiter   *ratelimit.InvitationLimiter `optional:"true"`
	Metrics         *obsmetrics.HTTPMetrics      `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		db:              p.DB,
		log:             p.Log.Named("server"),
		genID:           p.GenID,
		clk:             p.Clk,
		verifier:        p.Verifier,
		userRepo:        p.UserRepo,
		orgRepo:         p.OrgRepo,
		authzSvc:        p.AuthzSvc,
		organizationSvc: p.OrganizationSvc,
		projectSvc:      p.ProjectSvc,
		invitationSvc:   p.InvitationSvc,
		approvalSvc:     p.ApprovalSvc,
		sessionResolver: p.SessionResolver,
		inviteLimiter:   p.InviteLimiter,
		metrics:         p.Metrics,
	}

	svc.registerPublicRoutes()
	svc.registerUserRoutes()
	svc.registerOrgRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// registerPublicRoutes mounts the unauthenticated invitation token endpoints.
// The token itself is the only credential.
func (s *Server) registerPublicRoutes() {
	invites := s.engine.Group("/api/invitations", s.InvitationTokenRateLimit())

	invites.GET("/:token", s.ResolveInvitation)
	invites.POST("/:token/decline", s.DeclineInvitation)
}

// registerUserRoutes mounts endpoints scoped to the authenticated user, no
// organization context required.
func (s *Server) registerUserRoutes() {
	me := s.engine.Group("/api/me", s.AuthRequired())

	me.GET("", s.Me)
	me.GET("/organizations", s.ListUserOrganizations)
	me.GET("/invitations", s.ListPendingInvitations)
	me.POST("/using/:orgId", s.UseOrganization)
	me.POST("/using-project/:projectId", s.UseProject)

	api := s.engine.Group("/api", s.AuthRequired())
	api.POST("/organizations", s.CreateOrganization)
	api.POST("/invitations/:token/accept", s.AcceptInvitation)
}

// registerOrgRoutes mounts endpoints that operate inside the active
// organization.
func (s *Server) registerOrgRoutes() {
	org := s.engine.Group("/api/org", s.AuthRequired(), s.OrgContext())

	org.GET("", s.GetOrganization)

	org.PATCH("/members/:userId",
		s.RequireRole(orgdomain.RoleOwner, orgdomain.RoleAdmin),
		s.authorizeOrgAction(authorization.ObjectMember, authorization.ActionMemberUpdate),
		s.ChangeMemberRole,
	)
	org.DELETE("/members/:userId",
		s.RequireRole(orgdomain.RoleOwner, orgdomain.RoleAdmin),
		s.authorizeOrgAction(authorization.ObjectMember, authorization.ActionMemberRemove),
		s.RemoveMember,
	)
	org.POST("/members/:userId/suspend",
		s.RequireRole(orgdomain.RoleOwner, orgdomain.RoleAdmin),
		s.authorizeOrgAction(authorization.ObjectMember, authorization.ActionMemberUpdate),
		s.SuspendMember,
	)
	org.POST("/members/:userId/reactivate",
		s.RequireRole(orgdomain.RoleOwner, orgdomain.RoleAdmin),
		s.authorizeOrgAction(authorization.ObjectMember, authorization.ActionMemberUpdate),
		s.ReactivateMember,
	)

	org.POST("/invitations",
		s.RequireRole(orgdomain.RoleOwner, orgdomain.RoleAdmin),
		s.authorizeOrgAction(authorization.ObjectInvitation, authorization.ActionInvitationCreate),
		s.CreateInvitation,
	)

	org.GET("/projects", s.ListProjects)
	org.POST("/projects",
		s.RequireRole(orgdomain.RoleOwner, orgdomain.RoleAdmin),
		s.authorizeOrgAction(authorization.ObjectProject, authorization.ActionProjectCreate),
		s.CreateProject,
	)

	org.POST("/approvals",
		s.authorizeOrgAction(authorization.ObjectApproval, authorization.ActionApprovalCreate),
		s.CreateApproval,
	)
	org.GET("/approvals", s.ListApprovals)
	org.GET("/approvals/:id", s.GetApproval)
	org.POST("/approvals/:id/decisions",
		s.authorizeOrgAction(authorization.ObjectApproval, authorization.ActionApprovalDecide),
		s.DecideApproval,
	)
}
