// Package api wires together all HTTP routes for the ProjectHub backend.
//
// Route groups:
//   - /health and /api/health are public and unlimited so probes never see 429.
//   - /api/auth/register-organization and /api/auth/login are public and sit
//     behind the strict auth-tier limiter keyed by client IP.
//   - Everything else requires a bearer token and sits behind the general
//     limiter, which runs after authentication and is therefore keyed by user.
//
// Tenant scoping is not a router concern. Project and task routes carry no
// organization id; the services take it from the caller's token.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/projecthub/projecthub/internal/api/handlers"
	"github.com/projecthub/projecthub/internal/api/respond"
	"github.com/projecthub/projecthub/internal/apierr"
	"github.com/projecthub/projecthub/internal/audit"
	"github.com/projecthub/projecthub/internal/auth"
	"github.com/projecthub/projecthub/internal/config"
	"github.com/projecthub/projecthub/internal/db/repositories"
	"github.com/projecthub/projecthub/internal/middleware"
	"github.com/projecthub/projecthub/internal/services"
	"github.com/projecthub/projecthub/internal/validation"
)

// BackgroundServices holds the goroutines and buffered work started by
// NewRouter. The caller (cmd/server) calls Shutdown after the HTTP server has
// drained its in-flight requests.
type BackgroundServices struct {
	recorder *audit.Recorder
	limiters []*middleware.MemoryLimiter
}

// Shutdown stops the in-memory limiter sweepers and flushes pending audit
// writes until ctx is done.
func (bg *BackgroundServices) Shutdown(ctx context.Context) {
	slog.Info("stopping background services")
	for _, l := range bg.limiters {
		l.Stop()
	}
	if err := bg.recorder.Close(ctx); err != nil {
		slog.Warn("audit recorder did not close cleanly", "error", err)
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router. rdb is only used when the
// rate limiter backend is "redis" and may be nil otherwise.
func NewRouter(cfg *config.Config, db *sqlx.DB, rdb *redis.Client) (*gin.Engine, *BackgroundServices, error) {
	validation.Register()

	secret, err := auth.ResolveJWTSecret(cfg.Auth.JWTSecret)
	if err != nil {
		return nil, nil, fmt.Errorf("security configuration error: %w", err)
	}
	tokens := auth.NewTokenService(secret, cfg.Auth.TokenTTL)
	hasher := auth.NewPasswordHasher(cfg.Auth.BcryptCost)

	// Repositories
	orgRepo := repositories.NewOrganizationRepository(db)
	userRepo := repositories.NewUserRepository(db)
	projectRepo := repositories.NewProjectRepository(db)
	taskRepo := repositories.NewTaskRepository(db)
	auditRepo := repositories.NewAuditRepository(db)

	shippers, err := audit.NewMultiShipper(cfg.Audit.Shippers)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize audit shippers: %w", err)
	}
	var shipper audit.Shipper
	if shippers.Len() > 0 {
		shipper = shippers
	}
	recorder := audit.NewRecorder(auditRepo, shipper, cfg.Audit.Enabled)
	bg := &BackgroundServices{recorder: recorder}

	// Services
	authService := services.NewAuthService(orgRepo, userRepo, tokens, hasher, cfg.Tenancy, recorder)
	orgService := services.NewOrganizationService(orgRepo, recorder)
	userService := services.NewUserService(orgRepo, userRepo, hasher, recorder)
	projectService := services.NewProjectService(projectRepo, recorder)
	taskService := services.NewTaskService(projectRepo, taskRepo, userRepo, recorder)
	auditService := services.NewAuditService(auditRepo)

	// Handlers
	authHandlers := handlers.NewAuthHandlers(authService)
	orgHandlers := handlers.NewOrganizationHandlers(orgService, auditService)
	userHandlers := handlers.NewUserHandlers(userService)
	projectHandlers := handlers.NewProjectHandlers(projectService)
	taskHandlers := handlers.NewTaskHandlers(taskService)

	router := gin.New()
	router.Use(gin.CustomRecovery(recoveryHandler))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.LoggerMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.Security.CORS.AllowedOrigins, cfg.Security.CORS.AllowedMethods))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig(cfg.Security.TLS.Enabled)))

	router.NoRoute(func(c *gin.Context) {
		respond.Fail(c, http.StatusNotFound, "Route not found")
	})

	health := handlers.HealthHandler(db)
	router.GET("/health", health)
	router.GET("/api/health", health)

	rl := cfg.Security.RateLimiting
	authLimit := bg.rateLimit(rl, middleware.AuthRateLimitConfig(rl), rdb)
	generalLimit := bg.rateLimit(rl, middleware.GeneralRateLimitConfig(rl), rdb)
	requireToken := middleware.AuthMiddleware(tokens)
	adminOnly := middleware.RequireRoles(auth.RoleOrgAdmin, auth.RoleSuperAdmin)
	orgAccess := middleware.RequireOrganizationAccess("organizationId")

	apiGroup := router.Group("/api")
	{
		authPublic := apiGroup.Group("/auth", authLimit...)
		{
			authPublic.POST("/register-organization", authHandlers.RegisterOrganizationHandler())
			authPublic.POST("/login", authHandlers.LoginHandler())
		}

		authenticated := apiGroup.Group("", append([]gin.HandlerFunc{requireToken}, generalLimit...)...)
		{
			authenticated.GET("/auth/me", authHandlers.MeHandler())
			authenticated.POST("/auth/logout", authHandlers.LogoutHandler())

			orgs := authenticated.Group("/organizations")
			{
				orgs.GET("", middleware.RequireRoles(auth.RoleSuperAdmin), orgHandlers.ListOrganizationsHandler())

				// Projects of the caller's organization. The static segment takes
				// precedence over :organizationId.
				projects := orgs.Group("/projects")
				{
					projects.POST("", projectHandlers.CreateProjectHandler())
					projects.GET("", projectHandlers.ListProjectsHandler())
					projects.GET("/:projectId", projectHandlers.GetProjectHandler())
					projects.PUT("/:projectId", projectHandlers.UpdateProjectHandler())
					projects.DELETE("/:projectId", projectHandlers.DeleteProjectHandler())

					projects.POST("/:projectId/tasks", taskHandlers.CreateTaskHandler())
					projects.GET("/:projectId/tasks", taskHandlers.ListTasksHandler())
					projects.PUT("/:projectId/tasks/:taskId", taskHandlers.UpdateTaskHandler())
					projects.DELETE("/:projectId/tasks/:taskId", taskHandlers.DeleteTaskHandler())
				}

				org := orgs.Group("/:organizationId", orgAccess)
				{
					org.GET("", orgHandlers.GetOrganizationHandler())
					org.PUT("", adminOnly, orgHandlers.UpdateOrganizationHandler())
					org.POST("/users", adminOnly, userHandlers.CreateUserHandler())
					org.GET("/users", adminOnly, userHandlers.ListUsersHandler())
					org.GET("/audit-logs", adminOnly, orgHandlers.ListAuditLogsHandler())
				}
			}

			users := authenticated.Group("/users", adminOnly)
			{
				users.PUT("/:userId", userHandlers.UpdateUserHandler())
				users.DELETE("/:userId", userHandlers.DeleteUserHandler())
			}
		}
	}

	return router, bg, nil
}

// rateLimit builds the limiter chain for one tier. It is empty when rate
// limiting is disabled. In-memory limiters are kept on bg so Shutdown can stop
// their sweepers.
func (bg *BackgroundServices) rateLimit(rl config.RateLimitingConfig, tier middleware.RateLimitConfig, rdb *redis.Client) []gin.HandlerFunc {
	if !rl.Enabled {
		return nil
	}

	var limiter middleware.Limiter
	switch {
	case rl.Backend == "redis" && rdb != nil:
		limiter = middleware.NewRedisLimiter(rdb, tier)
	default:
		if rl.Backend == "redis" {
			slog.Warn("redis rate limiter requested without a redis client, using memory", "tier", tier.Tier)
		}
		mem := middleware.NewMemoryLimiter(tier)
		bg.limiters = append(bg.limiters, mem)
		limiter = mem
	}
	return []gin.HandlerFunc{middleware.RateLimitMiddleware(limiter, tier)}
}

func recoveryHandler(c *gin.Context, recovered any) {
	slog.ErrorContext(c.Request.Context(), "panic recovered",
		"error", recovered,
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"request_id", c.GetString(respond.RequestIDKey),
	)
	respond.Abort(c, http.StatusInternalServerError, apierr.InternalMessage)
}
