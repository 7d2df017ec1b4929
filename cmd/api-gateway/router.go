package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-substitution-api/api/swagger"
	"github.com/noah-isme/sma-substitution-api/internal/handler"
	"github.com/noah-isme/sma-substitution-api/internal/middleware"
	"github.com/noah-isme/sma-substitution-api/internal/models"
	"github.com/noah-isme/sma-substitution-api/internal/service"
	"github.com/noah-isme/sma-substitution-api/pkg/config"
	"github.com/noah-isme/sma-substitution-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-substitution-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-substitution-api/pkg/middleware/requestid"
)

type routes struct {
	teachers    *handler.TeacherHandler
	absences    *handler.AbsenceHandler
	coverage    *handler.CoverageHandler
	assignments *handler.AssignmentHandler
	metrics     *handler.MetricsHandler
}

type tokenValidator interface {
	ValidateToken(tokenString string) (*models.JWTClaims, error)
}

func newRouter(cfg *config.Config, logr *zap.Logger, metrics *service.MetricsService, auth tokenValidator, h routes) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", h.metrics.Health)
	r.GET("/ready", h.metrics.Ready)
	r.GET("/metrics", h.metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	editors := middleware.RequireRoles(models.RoleAdmin, models.RoleSecretary)

	api := r.Group(cfg.APIPrefix, middleware.JWT(auth))
	api.GET("/teachers", h.teachers.List)
	api.GET("/teachers/:id/timetable", h.teachers.Timetable)

	api.GET("/absences", h.absences.List)
	api.POST("/absences", editors, h.absences.Reconcile)
	api.DELETE("/absences/:id/hours/:hour", editors, h.absences.RemoveHour)

	api.GET("/coverage/:date", h.coverage.Day)
	api.GET("/coverage/:date/candidates", h.coverage.Candidates)

	api.GET("/assignments", h.assignments.List)
	api.POST("/assignments", editors, h.assignments.Assign)
	api.DELETE("/assignments/:id", editors, h.assignments.Delete)

	return r
}
