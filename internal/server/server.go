package server

import (
	"log/slog"
	"strings"

	"hrportal-backend/internal/audit"
	"hrportal-backend/internal/auth"
	"hrportal-backend/internal/clients"
	"hrportal-backend/internal/config"
	"hrportal-backend/internal/employees"
	"hrportal-backend/internal/logging"
	"hrportal-backend/internal/models"
	"hrportal-backend/internal/ratelimit"
	"hrportal-backend/internal/teams"
	"hrportal-backend/internal/users"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"gorm.io/gorm"
)

// UserStore is the account storage used by both authentication and user
// administration.
type UserStore interface {
	auth.UserStore
	users.Store
}

type Deps struct {
	Config  *config.Config
	Logger  *slog.Logger
	DB      *gorm.DB
	Users   UserStore
	Limiter *ratelimit.Limiter
	Audit   audit.Writer
}

// NewApp builds the fiber application with every route mounted.
func NewApp(d Deps) *fiber.App {
	cfg := d.Config
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	hasher := auth.NewHasher(cfg.BcryptCost)
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)
	authSvc := auth.NewService(d.Users, hasher, tokens, d.Audit, cfg.PrimaryAdminEmail, logger)
	userSvc := users.NewService(d.Users, d.Audit, cfg.PrimaryAdminEmail, logger)

	app := fiber.New(fiber.Config{
		AppName:      "hrportal-backend",
		ErrorHandler: ErrorHandler(logger, cfg.IsDevelopment()),
	})

	app.Use(requestid.New())
	app.Use(logging.Middleware(logger))
	app.Use(recover.New(recover.Config{EnableStackTrace: cfg.IsDevelopment()}))

	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	allowOrigins := strings.Join(corsOrigins, ",")
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowCredentials: allowOrigins != "*",
	}))
	app.Use(audit.RemoteAddr())

	// Health check
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"message": "HR Portal Backend Running",
		})
	})

	requireAuth := auth.JWTMiddleware(d.Users, tokens)
	primaryAdmin := auth.RequirePrimaryAdmin(cfg.PrimaryAdminEmail)
	adminOnly := auth.RequireRole(models.RoleAdmin)

	// Auth
	authRoutes := app.Group("/auth")
	if cfg.AllowOpenRegistration {
		authRoutes.Post("/register", auth.OptionalJWTMiddleware(d.Users, tokens), auth.RegisterHandler(authSvc))
	} else {
		authRoutes.Post("/register", requireAuth, primaryAdmin, auth.RegisterHandler(authSvc))
	}
	authRoutes.Post("/login", ratelimit.Middleware(d.Limiter, ratelimit.LoginRule), auth.LoginHandler(authSvc))
	authRoutes.Get("/recovery-configured", auth.RecoveryConfiguredHandler(authSvc))
	authRoutes.Post("/reset-admin-password",
		ratelimit.Middleware(d.Limiter, ratelimit.ResetPasswordRule),
		auth.ResetAdminPasswordHandler(authSvc))
	authRoutes.Post("/set-recovery-answer",
		requireAuth, primaryAdmin,
		ratelimit.Middleware(d.Limiter, ratelimit.RecoveryAnswerRule),
		auth.SetRecoveryAnswerHandler(authSvc))
	authRoutes.Post("/update-recovery-answer",
		requireAuth, primaryAdmin,
		ratelimit.Middleware(d.Limiter, ratelimit.RecoveryAnswerRule),
		auth.UpdateRecoveryAnswerHandler(authSvc))
	authRoutes.Post("/change-password", requireAuth, primaryAdmin, auth.ChangePasswordHandler(authSvc))
	authRoutes.Get("/me", requireAuth, auth.MeHandler(authSvc))

	// User administration, primary admin only
	userRoutes := app.Group("/users", requireAuth, primaryAdmin)
	userRoutes.Get("/", users.ListUsersHandler(userSvc))
	userRoutes.Get("/:id", users.GetUserHandler(userSvc))
	userRoutes.Patch("/:id/status", users.UpdateUserStatusHandler(userSvc))
	userRoutes.Patch("/:id/role", users.UpdateUserRoleHandler(userSvc))
	userRoutes.Delete("/:id", users.DeleteUserHandler(userSvc))

	app.Get("/audit-events", requireAuth, primaryAdmin, audit.ListAuditEventsHandler(d.DB))

	// Clients
	clientRoutes := app.Group("/clients", requireAuth)
	clientRoutes.Get("/", clients.ListClientsHandler(d.DB))
	clientRoutes.Get("/:id/teams", clients.ListClientTeamsHandler(d.DB))
	clientRoutes.Get("/:id/employees", clients.ListClientEmployeesHandler(d.DB))
	clientRoutes.Get("/:id", clients.GetClientHandler(d.DB))
	clientRoutes.Post("/", adminOnly, clients.CreateClientHandler(d.DB, d.Audit))
	clientRoutes.Put("/:id", adminOnly, clients.UpdateClientHandler(d.DB, d.Audit))
	clientRoutes.Delete("/:id", adminOnly, clients.DeleteClientHandler(d.DB, d.Audit))

	// Teams
	teamRoutes := app.Group("/teams", requireAuth)
	teamRoutes.Get("/", teams.ListTeamsHandler(d.DB))
	teamRoutes.Get("/:id/employees", teams.ListTeamEmployeesHandler(d.DB))
	teamRoutes.Get("/:id", teams.GetTeamHandler(d.DB))
	teamRoutes.Post("/", adminOnly, teams.CreateTeamHandler(d.DB, d.Audit))
	teamRoutes.Put("/:id", adminOnly, teams.UpdateTeamHandler(d.DB, d.Audit))
	teamRoutes.Delete("/:id", adminOnly, teams.DeleteTeamHandler(d.DB, d.Audit))

	// Employees; /stats must be registered before /:id
	employeeRoutes := app.Group("/employees", requireAuth)
	employeeRoutes.Get("/", employees.ListEmployeesHandler(d.DB))
	employeeRoutes.Get("/stats", employees.EmployeeStatsHandler(d.DB))
	employeeRoutes.Get("/:id/notes", employees.ListNotesHandler(d.DB))
	employeeRoutes.Get("/:id", employees.GetEmployeeHandler(d.DB))
	employeeRoutes.Post("/", adminOnly, employees.CreateEmployeeHandler(d.DB, d.Audit))
	employeeRoutes.Post("/import", adminOnly, employees.ImportEmployeesHandler(d.DB, d.Audit))
	employeeRoutes.Put("/:id", adminOnly, employees.UpdateEmployeeHandler(d.DB, d.Audit))
	employeeRoutes.Delete("/:id", adminOnly, employees.DeleteEmployeeHandler(d.DB, d.Audit))
	employeeRoutes.Patch("/:id/toggle-status", adminOnly, employees.ToggleEmployeeStatusHandler(d.DB, d.Audit))
	employeeRoutes.Post("/:id/notes", adminOnly, employees.AddNoteHandler(d.DB, d.Audit))

	return app
}
