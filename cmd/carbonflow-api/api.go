// Package main provides the CarbonFlow API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/carbonlens/carbonflow/pkg/config"
	"github.com/carbonlens/carbonflow/pkg/eventbus"
	"github.com/carbonlens/carbonflow/pkg/flow"
	"github.com/carbonlens/carbonflow/pkg/matcher"
	"github.com/carbonlens/carbonflow/pkg/persistence"
	"github.com/carbonlens/carbonflow/pkg/services"
	"github.com/carbonlens/carbonflow/pkg/web"
)

type API struct {
	logger          *slog.Logger
	cfg             config.Config
	store           persistence.GraphStore
	eventBus        eventbus.EventBus
	validate        *validator.Validate
	workflowService *services.Workflow
}

func NewAPI(
	logger *slog.Logger,
	cfg config.Config,
	store persistence.GraphStore,
	eventBus eventbus.EventBus,
) *API {
	matcherClient := matcher.NewClient(cfg.Matcher, logger)
	processor := flow.NewProcessor(cfg, matcherClient, logger)
	dispatcher := matcher.NewDispatcher(matcherClient, logger)

	return &API{
		logger:          logger,
		cfg:             cfg,
		store:           store,
		eventBus:        eventBus,
		validate:        validator.New(validator.WithRequiredStructEnabled()),
		workflowService: services.NewWorkflow(store, processor, dispatcher, eventBus, cfg, logger),
	}
}

// WorkflowService exposes the underlying service for the refresher.
func (a *API) WorkflowService() *services.Workflow {
	return a.workflowService
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.workflowService, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("CarbonFlow API")
	})

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Get("/:id", handlers.GetWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Post("/:id/actions", handlers.ApplyAction)
	w.Get("/:id/footprint", handlers.GetFootprint)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	return a.App().Listen(":" + strconv.Itoa(port))
}
