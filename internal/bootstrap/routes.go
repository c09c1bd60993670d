package bootstrap

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/noah-isme/coursecap-api/internal/handler"
	"github.com/noah-isme/coursecap-api/internal/middleware"
	"github.com/noah-isme/coursecap-api/internal/models"
	"github.com/noah-isme/coursecap-api/pkg/config"
	"github.com/noah-isme/coursecap-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/coursecap-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/coursecap-api/pkg/middleware/requestid"
)

// NewRouter builds the gin engine with every route of the API.
func NewRouter(app *App) *gin.Engine {
	cfg := app.Config
	svc := app.Services

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(app.Logger))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(svc.Metrics))
	r.Use(middleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(svc.Metrics)
	authHandler := handler.NewAuthHandler(svc.Auth)
	userHandler := handler.NewUserHandler(svc.Users)
	courseHandler := handler.NewCourseHandler(svc.Approvals, svc.Scheduling, svc.Reports)
	emailHandler := handler.NewEmailHandler(svc.Templates, svc.Queue)
	jobHandler := handler.NewJobHandler(svc.Jobs)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if app.DB != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := app.DB.PingContext(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)
	r.GET("/cas/callback", authHandler.CASCallback)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.GET("/auth/cas_login_url", authHandler.CASLoginURL)
	api.POST("/auth/dev_auth_login", authHandler.DevLogin)

	secured := api.Group("")
	secured.Use(middleware.JWT(svc.Auth))
	secured.GET("/auth/logout", authHandler.Logout)
	secured.GET("/user/my_profile", userHandler.MyProfile)
	secured.POST("/course/approve", courseHandler.Approve)
	secured.GET("/course/approvals/:termId/:sectionId", courseHandler.Approvals)
	secured.GET("/emails/sent/:uid", middleware.RBAC(string(models.RoleAdmin), middleware.RoleSelf), emailHandler.SentTo)

	admin := secured.Group("")
	admin.Use(middleware.AdminOnly())
	admin.GET("/user/:uid", userHandler.Profile)
	admin.GET("/users/admins", userHandler.Admins)

	admin.POST("/courses", courseHandler.Courses)
	admin.GET("/courses/filters", courseHandler.Filters)
	admin.GET("/courses/report", courseHandler.Report)
	admin.POST("/course/opt_out/update", courseHandler.UpdateOptOut)
	admin.POST("/course/schedule", courseHandler.Schedule)

	admin.GET("/email/templates/all", emailHandler.ListTemplates)
	admin.GET("/email/templates/names", emailHandler.TemplateNames)
	admin.GET("/email/template/codes", emailHandler.TemplateCodes)
	admin.GET("/email/template/test/:templateId", emailHandler.TestTemplate)
	admin.GET("/email/template/:templateId", emailHandler.GetTemplate)
	admin.POST("/email/template/create", emailHandler.CreateTemplate)
	admin.POST("/email/template/update", emailHandler.UpdateTemplate)
	admin.DELETE("/email/template/delete/:templateId", emailHandler.DeleteTemplate)
	admin.POST("/emails/queue", emailHandler.Queue)
	admin.GET("/emails/queued/:termId", emailHandler.Queued)

	admin.GET("/jobs", jobHandler.List)
	admin.GET("/jobs/history", jobHandler.History)
	admin.GET("/job/:jobKey/start", jobHandler.Start)
	admin.GET("/metrics/summary", metricsHandler.Summary)

	return r
}
