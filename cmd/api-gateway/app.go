package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitution-api/internal/repository"
	"github.com/noah-isme/sma-substitution-api/internal/service"
	"github.com/noah-isme/sma-substitution-api/pkg/cache"
	"github.com/noah-isme/sma-substitution-api/pkg/config"
	"github.com/noah-isme/sma-substitution-api/pkg/database"
)

// app holds the wired services shared by every subcommand.
type app struct {
	db         *sqlx.DB
	cacheRepo  *repository.CacheRepository
	metrics    *service.MetricsService
	auth       *service.AuthService
	teachers   *service.TeacherService
	absences   *service.AbsenceService
	coverage   *service.CoverageService
	assignment *service.AssignmentService
	importer   *service.TimetableImportService
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	a := &app{db: db, metrics: service.NewMetricsService()}

	var cacheRepo service.CacheRepository
	if cfg.Timetable.CacheEnabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logger.Warn("redis unavailable, timetable cache disabled", zap.Error(err))
		} else {
			a.cacheRepo = repository.NewCacheRepository(client, "substitution:", logger)
			cacheRepo = a.cacheRepo
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, a.metrics, cfg.Timetable.CacheTTL, logger, cacheRepo != nil)

	validate := validator.New()
	teacherRepo := repository.NewTeacherRepository(db)
	timetableRepo := repository.NewTimetableRepository(db)
	absenceRepo := repository.NewAbsenceRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)

	index := service.NewTimetableIndex(timetableRepo, cacheSvc, cfg.Timetable.CacheTTL, cfg.Timetable.OnCallSubject, logger)

	a.auth = service.NewAuthService(validate, logger, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.TokenTTL,
		Issuer:            cfg.JWT.Issuer,
	})
	a.teachers = service.NewTeacherService(teacherRepo, index, logger)
	a.absences = service.NewAbsenceService(db, absenceRepo, teacherRepo, index, a.metrics, validate, logger, service.AbsenceConfig{
		MaxRangeDays:   cfg.Absences.MaxRangeDays,
		NotesSeparator: cfg.Absences.NotesSeparator,
	})
	a.coverage = service.NewCoverageService(absenceRepo, assignmentRepo, index, teacherRepo, a.metrics, validate, logger)
	a.assignment = service.NewAssignmentService(db, assignmentRepo, teacherRepo, index, a.metrics, validate, logger)
	a.importer = service.NewTimetableImportService(db, timetableRepo, teacherRepo, index, a.metrics, logger)

	return a, nil
}

func (a *app) Close() error {
	var errs []error
	if a.cacheRepo != nil {
		errs = append(errs, a.cacheRepo.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}
