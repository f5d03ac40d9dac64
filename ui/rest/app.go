package rest

import (
	"fmt"
	"strings"
	"time"

	"github.com/AzielCF/az-publish/core/config"
	domainHealth "github.com/AzielCF/az-publish/domains/health"
	domainPublish "github.com/AzielCF/az-publish/domains/publish"
	"github.com/AzielCF/az-publish/pkg/metrics"
	"github.com/AzielCF/az-publish/pkg/utils"
	"github.com/AzielCF/az-publish/ui/rest/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

// Services are the usecases exposed over HTTP.
type Services struct {
	Publish domainPublish.IPublishUsecase
	Health  domainHealth.IHealthUsecase
	Metrics *metrics.Collector
}

// NewServer builds the fiber app with the security middleware and every route mounted.
// Routes under /api require basic auth when credentials are configured.
func NewServer(cfg config.AppConfig, services Services) (*fiber.App, error) {
	users, err := parseBasicAuth(cfg.BasicAuth)
	if err != nil {
		return nil, err
	}

	app := fiber.New(fiber.Config{
		AppName:               "Az-Publish Engine",
		Network:               "tcp",
		ServerHeader:          "Hidden",
		DisableStartupMessage: true,
	})

	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.CorsAllowedOrigins, ", "),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.Recovery())
	app.Use(helmet.New(helmet.Config{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		HSTSMaxAge:         31536000,
		ReferrerPolicy:     "no-referrer",
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        600,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
	}))
	if cfg.Debug {
		app.Use(logger.New())
	}

	if services.Metrics != nil {
		app.Get(cfg.BasePath+"/metrics", adaptor.HTTPHandler(services.Metrics.Handler()))
	}

	apiGroup := app.Group(cfg.BasePath + "/api")
	if len(users) > 0 {
		apiGroup.Use(basicauth.New(basicauth.Config{
			Users: users,
			Next: func(c *fiber.Ctx) bool {
				// Allow CORS preflight without credentials.
				return c.Method() == fiber.MethodOptions
			},
		}))
	}

	apiGroup.Get("/app/version", func(c *fiber.Ctx) error {
		return c.JSON(utils.ResponseData{
			Status:  200,
			Code:    "SUCCESS",
			Message: "Version",
			Results: fiber.Map{"version": cfg.Version},
		})
	})
	apiGroup.Get("/app/settings", func(c *fiber.Ctx) error {
		return c.JSON(utils.ResponseData{
			Status:  200,
			Code:    "SUCCESS",
			Message: "Active settings",
			Results: config.GetAllSettings(),
		})
	})

	if services.Publish != nil {
		InitRestPublish(apiGroup, services.Publish)
	}
	if services.Health != nil {
		InitRestHealth(apiGroup, services.Health)
	}

	apiGroup.All("/*", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(utils.ResponseData{
			Status:  fiber.StatusNotFound,
			Code:    "NOT_FOUND",
			Message: "API endpoint not found: " + c.Path(),
		})
	})

	return app, nil
}

func parseBasicAuth(credentials []string) (map[string]string, error) {
	users := make(map[string]string, len(credentials))
	for _, credential := range credentials {
		user, secret, ok := strings.Cut(credential, ":")
		if !ok || user == "" || secret == "" {
			return nil, fmt.Errorf("basic auth %q is not valid, use <user>:<secret>", credential)
		}
		users[user] = secret
	}
	return users, nil
}
