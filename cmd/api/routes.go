package main

import (
	"context"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/admission-leads-api/api/swagger"
	"github.com/noah-isme/admission-leads-api/internal/handler"
	"github.com/noah-isme/admission-leads-api/internal/middleware"
	"github.com/noah-isme/admission-leads-api/internal/models"
	"github.com/noah-isme/admission-leads-api/pkg/config"
	"github.com/noah-isme/admission-leads-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/admission-leads-api/pkg/middleware/cors"
	"github.com/noah-isme/admission-leads-api/pkg/middleware/ratelimit"
	reqidmiddleware "github.com/noah-isme/admission-leads-api/pkg/middleware/requestid"
)

func newRouter(cfg *config.Config, logr *zap.Logger, a *app) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(a.metrics))
	r.Use(middleware.WithResponseMeta())

	health := handler.NewHealthHandler(a.metrics, map[string]handler.ReadinessCheck{
		"postgres": func(ctx context.Context) error { return a.db.PingContext(ctx) },
		"redis":    func(ctx context.Context) error { return a.redis.Ping(ctx).Err() },
	})
	r.GET("/health", health.Health)
	r.GET("/ready", health.Ready)
	r.GET("/metrics", health.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(a.auth)
	staffHandler := handler.NewStaffHandler(a.staff)
	leadHandler := handler.NewLeadHandler(a.leads, a.stats, a.classify)
	distributionHandler := handler.NewDistributionHandler(a.distrib)
	callHandler := handler.NewCallHandler(a.calls)
	verificationHandler := handler.NewVerificationHandler(a.audits)
	exportHandler := handler.NewExportHandler(a.exports)
	systemLogHandler := handler.NewSystemLogHandler(a.logs)
	streamHandler := handler.NewStreamHandler(a.snapshots, a.calls, cfg.CORS.AllowedOrigins, logr)

	loginLimiter := ratelimit.New(cfg.RateLimit.LoginPerMinute, cfg.RateLimit.LoginBurst)

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", loginLimiter.Middleware(), authHandler.Login)
	api.POST("/staff/register", staffHandler.Register)
	api.GET("/exports/download/:token", exportHandler.Download)

	secured := api.Group("")
	secured.Use(middleware.JWT(a.auth))

	secured.GET("/auth/me", authHandler.Me)

	staff := secured.Group("/staff", middleware.Administrators())
	staff.GET("", staffHandler.List)
	staff.POST("", staffHandler.Create)
	staff.POST("/:id/approve", staffHandler.Approve)
	staff.POST("/:id/reject", staffHandler.Reject)
	staff.DELETE("/:id", staffHandler.Revoke)

	leads := secured.Group("/leads")
	leads.GET("", leadHandler.Board)
	leads.GET("/stats", leadHandler.Stats)
	leads.POST("", middleware.Administrators(), leadHandler.Create)
	leads.POST("/import", middleware.Administrators(), leadHandler.Import)
	leads.DELETE("", middleware.Administrators(), leadHandler.Purge)
	leads.POST("/:id/classify", middleware.LeadWorkers(), leadHandler.Classify)

	distribution := secured.Group("/distribution")
	distribution.POST("/heads", middleware.Administrators(), distributionHandler.AssignHead)
	distribution.POST("/heads/auto", middleware.Administrators(), distributionHandler.AutoHeads)
	distribution.POST("/smart-route", middleware.Administrators(), distributionHandler.SmartRoute)
	distribution.POST("/teachers", middleware.Supervisors(), distributionHandler.AssignTeacher)
	distribution.POST("/teachers/auto", middleware.Supervisors(), distributionHandler.AutoTeachers)

	calls := secured.Group("/calls")
	calls.POST("/start", middleware.LeadWorkers(), callHandler.Start)
	calls.POST("/end", callHandler.End)
	calls.GET("/session", callHandler.Status)
	calls.DELETE("/session", callHandler.Discard)

	verification := secured.Group("/verification")
	verification.POST("/evidence", middleware.RequireRoles(models.RoleTeacher), verificationHandler.UploadEvidence)
	verification.GET("/:teacherId", middleware.AuditorsOrSelf("teacherId"), verificationHandler.Challenge)
	verification.POST("/:teacherId/trigger", middleware.Supervisors(), verificationHandler.Trigger)
	verification.POST("/:teacherId/respond", middleware.RBAC(middleware.Self("teacherId")), verificationHandler.Respond)
	verification.POST("/:teacherId/decide", middleware.Supervisors(), verificationHandler.Decide)
	verification.GET("/:teacherId/evidence", middleware.Supervisors(), verificationHandler.EvidenceURL)

	exports := secured.Group("/exports", middleware.Administrators())
	exports.POST("/forwarded", exportHandler.Create)
	exports.GET("/jobs/:id", exportHandler.Status)

	secured.GET("/system-logs", middleware.Administrators(), systemLogHandler.List)
	secured.GET("/ws/snapshots", streamHandler.Snapshots)

	return r
}
