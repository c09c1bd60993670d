// Package bootstrap assembles the application graph from configuration.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/coursecap-api/internal/integration/cas"
	"github.com/noah-isme/coursecap-api/internal/integration/kaltura"
	"github.com/noah-isme/coursecap-api/internal/integration/ldap"
	"github.com/noah-isme/coursecap-api/internal/integration/mail"
	"github.com/noah-isme/coursecap-api/internal/repository"
	"github.com/noah-isme/coursecap-api/internal/service"
	"github.com/noah-isme/coursecap-api/pkg/cache"
	"github.com/noah-isme/coursecap-api/pkg/config"
	"github.com/noah-isme/coursecap-api/pkg/database"
)

// Repositories groups the data access layer.
type Repositories struct {
	Admins      *repository.AdminUserRepository
	Approvals   *repository.ApprovalRepository
	Preferences *repository.CoursePreferenceRepository
	Templates   *repository.EmailTemplateRepository
	Instructors *repository.InstructorRepository
	JobHistory  *repository.JobHistoryRepository
	Queued      *repository.QueuedEmailRepository
	Rooms       *repository.RoomRepository
	Scheduled   *repository.ScheduledRepository
	Sections    *repository.SectionRepository
	Sent        *repository.SentEmailRepository
	Warehouse   *repository.WarehouseRepository
}

// Services groups the business layer.
type Services struct {
	Metrics    *service.MetricsService
	Cache      *service.CacheService
	Courses    *service.CourseService
	Mailer     *service.Mailer
	Merge      *service.EmailMerge
	Approvals  *service.ApprovalService
	Queue      *service.EmailQueueService
	Templates  *service.EmailTemplateService
	Scheduling *service.SchedulingService
	Users      *service.UserService
	Auth       *service.AuthService
	Reports    *service.ReportService
	Runner     *service.JobRunner
	Scheduler  *service.JobScheduler
	Jobs       *service.JobService
}

// App owns every long-lived resource of the process.
type App struct {
	Config       *config.Config
	Logger       *zap.Logger
	DB           *sqlx.DB
	WarehouseDB  *sqlx.DB
	Redis        *redis.Client
	Repositories Repositories
	Services     Services
	// Registered holds every job by key, including jobs that only run on demand.
	Registered map[string]service.Job
}

// New connects to the databases and redis and wires the services. The warehouse
// and redis are optional: without them the refresh job is not registered and the
// cache stays disabled.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	app := &App{Config: cfg, Logger: logger, Registered: make(map[string]service.Job)}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	app.DB = db

	if warehouse, err := database.NewPostgres(ctx, cfg.Warehouse.Database); err != nil {
		logger.Warn("data warehouse unavailable, refresh job disabled", zap.Error(err))
	} else {
		app.WarehouseDB = warehouse
	}

	if cfg.Cache.Enabled {
		if client, err := cache.NewRedis(ctx, cfg.Redis); err != nil {
			logger.Warn("redis unavailable, cache disabled", zap.Error(err))
		} else {
			app.Redis = client
		}
	}

	if err := app.wireRepositories(); err != nil {
		app.Close()
		return nil, err
	}
	if err := app.wireServices(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) wireRepositories() error {
	a.Repositories = Repositories{
		Admins:      repository.NewAdminUserRepository(a.DB),
		Approvals:   repository.NewApprovalRepository(a.DB),
		Preferences: repository.NewCoursePreferenceRepository(a.DB),
		Templates:   repository.NewEmailTemplateRepository(a.DB),
		Instructors: repository.NewInstructorRepository(a.DB),
		JobHistory:  repository.NewJobHistoryRepository(a.DB),
		Queued:      repository.NewQueuedEmailRepository(a.DB),
		Rooms:       repository.NewRoomRepository(a.DB),
		Scheduled:   repository.NewScheduledRepository(a.DB),
		Sections:    repository.NewSectionRepository(a.DB),
		Sent:        repository.NewSentEmailRepository(a.DB),
	}
	if a.WarehouseDB != nil {
		warehouse, err := repository.NewWarehouseRepository(a.WarehouseDB, a.Config.Warehouse.SISSchema)
		if err != nil {
			return fmt.Errorf("warehouse repository: %w", err)
		}
		a.Repositories.Warehouse = warehouse
	}
	return nil
}

func (a *App) wireServices(ctx context.Context) error {
	cfg := a.Config
	repos := a.Repositories
	logger := a.Logger
	validate := validator.New()
	termID := cfg.Term.CurrentTermID

	metrics := service.NewMetricsService()
	var cacheRepo service.CacheRepository
	if a.Redis != nil {
		cacheRepo = repository.NewCacheRepository(a.Redis, logger.Named("cache"))
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.SectionTTL, logger.Named("cache"), cfg.Cache.Enabled)
	courses := service.NewCourseService(repos.Sections, cacheSvc, cfg.Cache.SectionTTL, logger.Named("courses"))

	transport, err := mail.New(ctx, mail.Options{
		Transport: cfg.Email.Transport,
		From:      cfg.SMTP.From,
		SMTP: mail.SMTPOptions{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
		},
		SESRegion: cfg.SES.Region,
		Logger:    logger.Named("mail"),
	})
	if err != nil {
		return fmt.Errorf("mail transport: %w", err)
	}
	redirect := ""
	if cfg.Env != config.EnvProduction {
		redirect = cfg.Email.RedirectOnTesting
	}
	mailer := service.NewMailer(transport, repos.Sent, metrics, logger.Named("mailer"), redirect)
	merge := service.NewEmailMerge(cfg.Email.SignupBaseURL, termID)
	dispatcher := service.NewNotificationDispatcher(repos.Templates, merge, mailer, logger.Named("notifications"))

	approvals := service.NewApprovalService(service.ApprovalDeps{
		Courses:     courses,
		Approvals:   repos.Approvals,
		Rooms:       repos.Rooms,
		Scheduled:   repos.Scheduled,
		Preferences: repos.Preferences,
		Eligible:    repos.Sections,
		Queued:      repos.Queued,
		Sent:        repos.Sent,
		Notifier:    dispatcher,
		Metrics:     metrics,
	}, termID, validate, logger.Named("approvals"))

	queue := service.NewEmailQueueService(service.EmailQueueDeps{
		Queue:       repos.Queued,
		Courses:     courses,
		Templates:   repos.Templates,
		Approvals:   repos.Approvals,
		Preferences: repos.Preferences,
		Merge:       merge,
		Mailer:      mailer,
	}, validate, logger.Named("email_queue"))

	templates := service.NewEmailTemplateService(repos.Templates, repos.Sent, courses, merge, mailer, service.EmailTemplateConfig{
		CurrentTermID: termID,
	}, validate, logger.Named("email_templates"))

	video := kaltura.New(kaltura.Config{
		Enabled:     cfg.Kaltura.Enabled,
		ServiceURL:  cfg.Kaltura.ServiceURL,
		PartnerID:   cfg.Kaltura.PartnerID,
		AdminSecret: cfg.Kaltura.AdminSecret,
		Organizer:   cfg.Email.AdminAddress,
		Timeout:     cfg.Kaltura.Timeout,
	}, cacheSvc, logger.Named("kaltura"))

	term, err := termDates(cfg)
	if err != nil {
		return err
	}
	scheduling := service.NewSchedulingService(service.SchedulingDeps{
		Courses:   courses,
		Approvals: repos.Approvals,
		Scheduled: repos.Scheduled,
		Rooms:     repos.Rooms,
		Video:     video,
		Queue:     queue,
	}, term, logger.Named("scheduling"))

	var users *service.UserService
	if cfg.LDAP.Bind != "" {
		directory := ldap.New(ldap.Config{
			Host:     cfg.LDAP.Host,
			Port:     cfg.LDAP.Port,
			Bind:     cfg.LDAP.Bind,
			Password: cfg.LDAP.Password,
			BaseDN:   cfg.LDAP.BaseDN,
			Timeout:  cfg.LDAP.Timeout,
		}, logger.Named("ldap"))
		users = service.NewUserService(directory, repos.Admins, courses, repos.Rooms, termID, logger.Named("users"))
	} else {
		logger.Warn("LDAP_BIND not set, user names come from the section feed")
		users = service.NewUserService(nil, repos.Admins, courses, repos.Rooms, termID, logger.Named("users"))
	}

	casClient := cas.New(cas.Config{ServerURL: cfg.CAS.ServerURL, ServiceURL: cfg.CAS.ServiceURL, Timeout: cfg.CAS.Timeout})
	auth := service.NewAuthService(users, casClient, validate, logger.Named("auth"), service.AuthConfig{
		AccessTokenSecret:   cfg.JWT.Secret,
		AccessTokenExpiry:   cfg.JWT.Expiration,
		Issuer:              cfg.JWT.Issuer,
		DevAuthEnabled:      cfg.DevAuth.Enabled,
		DevAuthPasswordHash: cfg.DevAuth.PasswordHash,
		LogoutRedirectURL:   cfg.Email.SignupBaseURL,
		SupportEmail:        cfg.Email.SupportAddress,
	})

	reports := service.NewReportService(approvals, nil, nil, logger.Named("reports"))

	scheduled := []service.ScheduledJob{
		{Job: &service.QueuedEmailsJob{Queue: queue, TermID: termID, Logger: logger.Named("job")}, Interval: cfg.Jobs.QueuedEmailsEvery},
		{Job: &service.AdminEmailsJob{
			Scheduled:    repos.Scheduled,
			Courses:      courses,
			Rooms:        repos.Rooms,
			Queue:        queue,
			Mailer:       mailer,
			TermID:       termID,
			AdminUID:     cfg.Email.AdminUID,
			AdminAddress: cfg.Email.AdminAddress,
			Logger:       logger.Named("job"),
		}, Interval: cfg.Jobs.AdminEmailsEvery},
	}
	if repos.Warehouse != nil {
		refresh := &service.RefreshWarehouseJob{
			Warehouse:   repos.Warehouse,
			Sections:    repos.Sections,
			Instructors: repos.Instructors,
			Cache:       courses,
			TermID:      termID,
			Logger:      logger.Named("job"),
		}
		if video.Enabled() {
			refresh.Rooms = scheduling
		}
		scheduled = append(scheduled, service.ScheduledJob{Job: refresh, Interval: cfg.Jobs.RefreshWarehouseEvery})
	}
	for _, entry := range scheduled {
		a.Registered[entry.Job.Key()] = entry.Job
	}

	runner := service.NewJobRunner(repos.JobHistory, metrics, logger.Named("jobs"))
	scheduler := service.NewJobScheduler(runner, scheduled, service.JobSchedulerConfig{
		Enabled:      cfg.Jobs.Enabled,
		PollInterval: cfg.Jobs.PollInterval,
		Workers:      cfg.Jobs.Workers,
	}, logger.Named("scheduler"))

	a.Services = Services{
		Metrics:    metrics,
		Cache:      cacheSvc,
		Courses:    courses,
		Mailer:     mailer,
		Merge:      merge,
		Approvals:  approvals,
		Queue:      queue,
		Templates:  templates,
		Scheduling: scheduling,
		Users:      users,
		Auth:       auth,
		Reports:    reports,
		Runner:     runner,
		Scheduler:  scheduler,
		Jobs:       service.NewJobService(scheduler, repos.JobHistory, logger.Named("jobs")),
	}
	return nil
}

// Close releases connections. It is safe to call on a partially built App.
func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Warn("close redis", zap.Error(err))
		}
	}
	if a.WarehouseDB != nil {
		if err := a.WarehouseDB.Close(); err != nil {
			a.Logger.Warn("close warehouse", zap.Error(err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Warn("close database", zap.Error(err))
		}
	}
}

func termDates(cfg *config.Config) (service.TermDates, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return service.TermDates{}, fmt.Errorf("timezone %q: %w", cfg.Timezone, err)
	}
	begin, err := time.ParseInLocation("2006-01-02", cfg.Term.Begin, loc)
	if err != nil {
		return service.TermDates{}, fmt.Errorf("CURRENT_TERM_BEGIN: %w", err)
	}
	end, err := time.ParseInLocation("2006-01-02", cfg.Term.End, loc)
	if err != nil {
		return service.TermDates{}, fmt.Errorf("CURRENT_TERM_END: %w", err)
	}
	if end.Before(begin) {
		return service.TermDates{}, fmt.Errorf("term ends %s before it begins %s", cfg.Term.End, cfg.Term.Begin)
	}
	return service.TermDates{Begin: begin, End: end}, nil
}
