package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/civica-api/internal/handler"
	"github.com/noah-isme/civica-api/internal/middleware"
	"github.com/noah-isme/civica-api/internal/models"
	"github.com/noah-isme/civica-api/internal/repository"
	"github.com/noah-isme/civica-api/internal/service"
	"github.com/noah-isme/civica-api/internal/workflow"
	"github.com/noah-isme/civica-api/pkg/config"
	"github.com/noah-isme/civica-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/civica-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/civica-api/pkg/middleware/requestid"
)

type routeDeps struct {
	auth    *service.AuthService
	audit   *repository.UserRepository
	metrics *service.MetricsService

	authHandler   *handler.AuthHandler
	users         *handler.UserHandler
	directory     *handler.DirectoryHandler
	teams         *handler.TeamHandler
	templates     *handler.TemplateHandler
	inspections   *handler.InspectionHandler
	escalations   *handler.EscalationHandler
	notifications *handler.NotificationHandler
	analytics     *handler.AnalyticsHandler
	observability *handler.MetricsHandler
}

const (
	admin      = models.RoleAdmin
	headmaster = models.RoleHeadmaster
	student    = models.RoleStudent
	office     = models.RoleOffice
	responder  = models.RoleResponder
)

func newRouter(cfg *config.Config, logr *zap.Logger, d routeDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS))
	if cfg.Metrics.Enabled {
		r.Use(middleware.Metrics(d.metrics))
		r.GET("/metrics", d.observability.Prometheus)
	}

	r.GET("/health", d.observability.Health)
	r.GET("/ready", d.observability.Ready)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.WithResponseMeta())

	api.POST("/auth/login", d.authHandler.Login)
	api.POST("/auth/refresh", d.authHandler.Refresh)

	secured := api.Group("")
	secured.Use(middleware.JWT(d.auth))

	secured.POST("/auth/logout", d.authHandler.Logout)
	secured.POST("/auth/change-password", d.authHandler.ChangePassword)
	secured.GET("/auth/me", d.authHandler.Me)

	users := secured.Group("/users")
	users.GET("", middleware.RequireRoles(admin), d.users.List)
	users.GET("/:id", middleware.RBAC(string(admin), "SELF"), d.users.Get)
	users.POST("", middleware.RequireRoles(admin), d.users.Create)
	users.PUT("/:id", middleware.RequireRoles(admin), d.users.Update)
	users.DELETE("/:id", middleware.RequireRoles(admin), d.users.Delete)

	schools := secured.Group("/schools")
	schools.GET("", d.directory.ListSchools)
	schools.GET("/:id", d.directory.GetSchool)
	schools.POST("", middleware.RequireRoles(admin), middleware.Audit(d.audit, logr, "SCHOOL_CREATE", "school"), d.directory.CreateSchool)
	schools.PUT("/:id/active", middleware.RequireRoles(admin), middleware.Audit(d.audit, logr, "SCHOOL_ACTIVE", "school"), d.directory.SetSchoolActive)

	offices := secured.Group("/offices")
	offices.GET("", d.directory.ListOffices)
	offices.GET("/:id", d.directory.GetOffice)
	offices.POST("", middleware.RequireRoles(admin), middleware.Audit(d.audit, logr, "OFFICE_CREATE", "office"), d.directory.CreateOffice)
	offices.PUT("/:id/active", middleware.RequireRoles(admin), middleware.Audit(d.audit, logr, "OFFICE_ACTIVE", "office"), d.directory.SetOfficeActive)

	teams := secured.Group("/teams")
	teams.Use(middleware.RequireRoles(admin, headmaster, student))
	teams.GET("", d.teams.List)
	teams.GET("/workload", middleware.RequireRoles(admin, headmaster), d.teams.Workload)
	teams.GET("/:id", d.teams.Get)
	teams.POST("", middleware.RequireRoles(admin, headmaster), d.teams.Create)
	teams.PUT("/:id", middleware.RequireRoles(admin, headmaster), d.teams.Update)
	teams.DELETE("/:id", middleware.RequireRoles(admin, headmaster), d.teams.Deactivate)
	teams.POST("/:id/activate", middleware.RequireRoles(admin, headmaster), d.teams.Activate)

	templates := secured.Group("/templates")
	templates.GET("", d.templates.List)
	templates.GET("/:id", d.templates.Get)
	templates.POST("", middleware.RequireRoles(admin), d.templates.Create)
	templates.POST("/import", middleware.RequireRoles(admin), middleware.Audit(d.audit, logr, "TEMPLATE_IMPORT", "template"), d.templates.Import)
	templates.PUT("/:id", middleware.RequireRoles(admin), d.templates.Update)
	templates.POST("/:id/clone", middleware.RequireRoles(admin), d.templates.Clone)
	templates.DELETE("/:id", middleware.RequireRoles(admin), d.templates.Deactivate)
	templates.POST("/:id/activate", middleware.RequireRoles(admin), d.templates.Activate)

	inspections := secured.Group("/inspections")
	inspections.GET("", d.inspections.List)
	inspections.GET("/:id", d.inspections.Get)
	inspections.POST("", middleware.RequireRoles(admin, headmaster), d.inspections.Create)
	inspections.PATCH("/:id", middleware.RequireRoles(admin, headmaster), d.inspections.Update)
	inspections.DELETE("/:id", middleware.RequireRoles(admin), d.inspections.Delete)
	inspections.POST("/:id/report", middleware.RequireRoles(student), d.inspections.SubmitReport)
	inspections.POST("/:id/response", middleware.RequireRoles(office, admin), d.inspections.Respond)
	inspections.PUT("/:id/response", middleware.RequireRoles(office, admin), d.inspections.EditResponse)
	inspections.POST("/:id/approve", middleware.RequireRoles(headmaster, admin), d.inspections.Approve)
	inspections.POST("/:id/reject", middleware.RequireRoles(headmaster, admin), d.inspections.Reject)
	inspections.POST("/:id/review", middleware.RequireRoles(responder, admin), d.inspections.Review)
	inspections.PUT("/:id/status", middleware.RequireRoles(admin, responder), d.inspections.Override)
	inspections.PUT("/:id/team", middleware.RequireRoles(workflow.ReassignRoles...), d.inspections.Reassign)

	escalations := secured.Group("/escalations")
	escalations.Use(middleware.RequireRoles(admin, responder, office))
	escalations.GET("", d.escalations.List)
	escalations.GET("/:id", d.escalations.Get)
	escalations.POST("/:id/follow-ups", middleware.RequireRoles(admin, responder), d.escalations.FollowUp)
	escalations.POST("/:id/re-escalate", middleware.RequireRoles(admin, responder), d.escalations.ReEscalate)
	escalations.POST("/:id/resolve", middleware.RequireRoles(admin, responder), d.escalations.Resolve)

	notifications := secured.Group("/notifications")
	notifications.GET("", d.notifications.List)
	notifications.GET("/unread-count", d.notifications.UnreadCount)
	notifications.POST("/read-all", d.notifications.MarkAllRead)
	notifications.POST("/:id/read", d.notifications.MarkRead)

	analytics := secured.Group("/analytics")
	analytics.Use(middleware.RequireRoles(admin, responder))
	analytics.GET("/dashboard", d.analytics.Dashboard)
	analytics.GET("/priority", d.analytics.Priority)
	analytics.GET("/system", d.analytics.System)

	compliance := secured.Group("/compliance")
	compliance.GET("/offices", middleware.RequireRoles(admin, responder), d.analytics.Ranking)
	compliance.GET("/offices/:id", middleware.RequireRoles(admin, responder, office), d.analytics.OfficeCompliance)
	compliance.GET("/offices/:id/history", middleware.RequireRoles(admin, responder, office), d.analytics.History)
	compliance.GET("/violations", middleware.RequireRoles(admin, responder), d.analytics.Violations)
	compliance.GET("/export", middleware.RequireRoles(admin, responder), d.analytics.Export)

	secured.GET("/metrics/runtime", middleware.RequireRoles(admin), d.observability.Runtime)

	return r
}
