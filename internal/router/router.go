package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/medcampus/sims-api/internal/handler"
	"github.com/medcampus/sims-api/internal/middleware"
	"github.com/medcampus/sims-api/internal/models"
	"github.com/medcampus/sims-api/internal/service"
	"github.com/medcampus/sims-api/pkg/config"
	"github.com/medcampus/sims-api/pkg/logger"
	corsmiddleware "github.com/medcampus/sims-api/pkg/middleware/cors"
	reqidmiddleware "github.com/medcampus/sims-api/pkg/middleware/requestid"
)

// Dependencies bundles everything the router wires together.
type Dependencies struct {
	Config  *config.Config
	Logger  *zap.Logger
	Auth    *service.AuthService
	Metrics *service.MetricsService
	Audit   *middleware.AuditRecorder

	AuthHandler         *handler.AuthHandler
	UserHandler         *handler.UserHandler
	ImportHandler       *handler.ImportHandler
	StudentHandler      *handler.StudentHandler
	TranscriptHandler   *handler.TranscriptHandler
	AttendanceHandler   *handler.AttendanceHandler
	ExamHandler         *handler.ExamHandler
	ResultHandler       *handler.ResultHandler
	FinanceHandler      *handler.FinanceHandler
	NotificationHandler *handler.NotificationHandler
	TimetableHandler    *handler.TimetableHandler
	AuditHandler        *handler.AuditHandler
	HealthHandler       *handler.HealthHandler
	MetricsHandler      *handler.MetricsHandler
}

// New assembles the gin engine with all middleware and routes.
func New(deps Dependencies) *gin.Engine {
	if deps.Config.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger))
	r.Use(corsmiddleware.New(deps.Config.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Metrics))

	r.GET("/health", deps.HealthHandler.Health)
	r.GET("/ready", deps.HealthHandler.Ready)
	r.GET("/metrics", deps.MetricsHandler.Prometheus)

	api := r.Group(deps.Config.APIPrefix)
	authRequired := middleware.JWT(deps.Auth)
	audit := deps.Audit

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleCoordinator, models.RoleFaculty, models.RoleOfficeAssistant)
	examiners := middleware.RequireRoles(models.RoleAdmin, models.RoleCoordinator, models.RoleFaculty)
	coordinators := middleware.RequireRoles(models.RoleAdmin, models.RoleCoordinator)
	admins := middleware.RequireRoles(models.RoleAdmin)
	importers := middleware.RequireRoles(models.RoleAdmin, models.RoleOfficeAssistant)
	finance := middleware.RequireRoles(models.RoleAdmin, models.RoleFinance)
	announcers := middleware.RequireRoles(models.RoleAdmin, models.RoleCoordinator, models.RoleOfficeAssistant)

	auth := api.Group("/auth")
	{
		auth.POST("/login", deps.AuthHandler.Login)
		auth.POST("/refresh", deps.AuthHandler.Refresh)
		auth.POST("/logout", authRequired, deps.AuthHandler.Logout)
		auth.GET("/me", authRequired, deps.AuthHandler.Me)
	}

	users := api.Group("/users", authRequired)
	{
		users.POST("", admins, audit.Write("user", models.AuditCreate), deps.UserHandler.Create)
		users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), middleware.AllowSelf), deps.UserHandler.Get)
		users.PUT("/:id/roles", admins, audit.Write("user", models.AuditUpdate), deps.UserHandler.ReplaceRoles)
		users.PUT("/:id/active", admins, audit.Write("user", models.AuditUpdate), deps.UserHandler.SetActive)
	}

	imports := api.Group("/imports", authRequired, importers)
	{
		imports.POST("/:kind/preview", audit.Write("import_job", models.AuditCreate), deps.ImportHandler.Preview)
		imports.POST("/jobs/:id/commit", audit.Write("import_job", models.AuditSpecialAction), deps.ImportHandler.Commit)
		imports.GET("/jobs/:id", deps.ImportHandler.GetJob)
		imports.GET("/jobs/:id/errors.csv", deps.ImportHandler.ErrorReport)
	}

	students := api.Group("/students", authRequired)
	{
		students.GET("", deps.StudentHandler.List)
		students.GET("/:id", deps.StudentHandler.Get)
		students.POST("", importers, audit.Write("student", models.AuditCreate), deps.StudentHandler.Create)
		students.GET("/:id/transcript", deps.StudentHandler.Transcript)
		students.GET("/:id/attendance-summary", deps.AttendanceHandler.Summary)
	}

	api.GET("/transcripts/verify/:token", deps.TranscriptHandler.Verify)

	sessions := api.Group("/sessions", authRequired)
	{
		sessions.POST("", examiners, audit.Write("session", models.AuditCreate), deps.AttendanceHandler.CreateSession)
		sessions.GET("", staff, deps.AttendanceHandler.ListSessions)
		sessions.GET("/:id/roster", staff, deps.AttendanceHandler.Roster)
		sessions.PUT("/:id/attendance", staff, audit.Write("attendance", models.AuditUpdate), deps.AttendanceHandler.MarkBulk)
		sessions.PATCH("/:id/attendance", staff, audit.Write("attendance", models.AuditUpdate), deps.AttendanceHandler.MarkOne)
		sessions.POST("/:id/attendance/csv/preview", staff, deps.AttendanceHandler.PreviewCSV)
		sessions.POST("/:id/attendance/csv", staff, audit.Write("attendance", models.AuditUpdate), deps.AttendanceHandler.CommitCSV)
		sessions.GET("/:id/attendance/scanned/template", staff, deps.AttendanceHandler.ScannedTemplate)
		sessions.POST("/:id/attendance/scanned", staff, audit.Write("attendance", models.AuditUpdate), deps.AttendanceHandler.SubmitScanned)
	}

	exams := api.Group("/exams", authRequired)
	{
		exams.GET("/:id", staff, deps.ExamHandler.Get)
		exams.POST("", coordinators, audit.Write("exam", models.AuditCreate), deps.ExamHandler.Create)
		exams.PUT("/:id", examiners, audit.Write("exam", models.AuditUpdate), deps.ExamHandler.Update)
		exams.POST("/:id/components", coordinators, audit.Write("exam_component", models.AuditCreate), deps.ExamHandler.AddComponent)
	}

	results := api.Group("/results", authRequired)
	{
		results.POST("", staff, audit.Write("result", models.AuditCreate), deps.ResultHandler.Create)
		results.GET("", deps.ResultHandler.List)
		results.GET("/:id", deps.ResultHandler.Get)
		results.PUT("/:id/entries", examiners, audit.Write("result", models.AuditUpdate), deps.ResultHandler.UpsertEntry)
		results.POST("/:id/transition", examiners, audit.Write("result", models.AuditStateTransition), deps.ResultHandler.Transition)
		results.POST("/:id/changes", examiners, audit.Write("pending_change", models.AuditCreate), deps.ResultHandler.RequestChange)
		results.GET("/:id/changes", coordinators, deps.ResultHandler.ListChanges)
		results.POST("/changes/:changeId/decision", coordinators, audit.Write("pending_change", models.AuditSpecialAction), deps.ResultHandler.DecideChange)
	}

	financeGroup := api.Group("/finance", authRequired)
	{
		financeGroup.POST("/templates", finance, audit.Write("charge_template", models.AuditCreate), deps.FinanceHandler.CreateTemplate)
		financeGroup.GET("/templates", finance, deps.FinanceHandler.ListTemplates)
		financeGroup.POST("/charges", finance, audit.Write("charge", models.AuditCreate), deps.FinanceHandler.CreateCharge)
		financeGroup.POST("/ledger/generate", finance, audit.Write("ledger_item", models.AuditCreate), deps.FinanceHandler.GenerateLedger)
		financeGroup.GET("/ledger", deps.FinanceHandler.ListLedger)
		financeGroup.PUT("/ledger/:id/status", admins, audit.Write("ledger_item", models.AuditStateTransition), deps.FinanceHandler.SetLedgerStatus)
		financeGroup.POST("/ledger/:id/challan", finance, audit.Write("challan", models.AuditCreate), deps.FinanceHandler.IssueChallan)
		financeGroup.POST("/challans/:id/payments", finance, audit.Write("payment", models.AuditCreate), deps.FinanceHandler.RecordPayment)
		financeGroup.GET("/challans/:id/pdf", deps.FinanceHandler.ChallanPDF)
	}

	notifications := api.Group("/notifications", authRequired)
	{
		notifications.POST("", announcers, audit.Write("notification", models.AuditCreate), deps.NotificationHandler.Create)
		notifications.POST("/:id/send", announcers, audit.Write("notification", models.AuditStateTransition), deps.NotificationHandler.Send)
		notifications.POST("/:id/cancel", announcers, audit.Write("notification", models.AuditStateTransition), deps.NotificationHandler.Cancel)
		notifications.GET("/inbox", deps.NotificationHandler.Inbox)
		notifications.POST("/inbox/:id/read", deps.NotificationHandler.MarkRead)
	}

	timetables := api.Group("/timetables", authRequired)
	{
		timetables.GET("/:id", deps.TimetableHandler.Get)
		timetables.POST("", coordinators, audit.Write("timetable", models.AuditCreate), deps.TimetableHandler.Create)
		timetables.PUT("/:id/cells", coordinators, audit.Write("timetable", models.AuditUpdate), deps.TimetableHandler.SetCell)
		timetables.POST("/:id/publish", coordinators, audit.Write("timetable", models.AuditStateTransition), deps.TimetableHandler.Publish)
	}

	api.GET("/audit-logs", authRequired, admins, deps.AuditHandler.List)

	// Read-only mirror kept alive for clients that still call the old paths.
	legacy := r.Group(deps.Config.Legacy.PathPrefix, middleware.LegacyWriteGuard(deps.Config.Legacy.WritesEnabled), authRequired)
	{
		legacy.GET("/students", deps.StudentHandler.List)
		legacy.GET("/students/:id", deps.StudentHandler.Get)
		legacy.GET("/sessions", staff, deps.AttendanceHandler.ListSessions)
		legacy.GET("/results", deps.ResultHandler.List)
	}

	return r
}
