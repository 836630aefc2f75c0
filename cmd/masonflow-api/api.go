// Package main provides the Masonflow API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"go.opentelemetry.io/otel/trace"

	"github.com/stonebase/masonflow/pkg/persistence"
	"github.com/stonebase/masonflow/pkg/services"
	"github.com/stonebase/masonflow/pkg/users"
	"github.com/stonebase/masonflow/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	directory   users.Directory
	tracer      trace.Tracer
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	definitionService := services.NewDefinition(a.persistence)
	instanceService := services.NewInstance(a.persistence, a.directory)
	completionService := services.NewCompletion(a.persistence, a.tracer)
	templateService := services.NewTemplate(a.persistence, a.tracer)
	commentService := services.NewComment(a.persistence, a.directory)

	handlers := web.NewAPIHandlers(
		definitionService,
		instanceService,
		completionService,
		templateService,
		commentService,
		a.validate,
	)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Masonflow API")
	})

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Patch("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)

	// Step endpoints:
	w.Post("/:id/steps", handlers.CreateStep)
	w.Patch("/:id/steps/:stepId", handlers.UpdateStep)
	w.Delete("/:id/steps/:stepId", handlers.DeleteStep)

	i := app.Group("/instances")
	i.Get("/", handlers.GetInstances)
	i.Post("/", handlers.CreateInstance)
	i.Get("/:id", handlers.GetInstance)
	i.Patch("/:id/assign", handlers.ReassignInstance)
	i.Delete("/:id", handlers.DeleteInstance)

	// Comment endpoints:
	i.Get("/:id/comments", handlers.GetComments)
	i.Post("/:id/comments", handlers.CreateComment)

	app.Post("/step-instances/:id/complete", handlers.CompleteStepInstance)

	t := app.Group("/templates")
	t.Get("/", handlers.GetTemplates)
	t.Post("/", handlers.CreateTemplate)
	t.Get("/:id", handlers.GetTemplate)
	t.Post("/:id/instantiate", handlers.InstantiateTemplate)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
