package app

import (
	"fmt"
	"strings"

	"smart-apply/internal/delivery/http/handler"
	"smart-apply/internal/delivery/http/middleware"
	"smart-apply/internal/delivery/http/routes"
	"smart-apply/internal/ws"

	"github.com/gofiber/fiber/v3"
)

type App struct {
	Fiber     *fiber.App
	Container *Container
}

// Bootstrap builds the fiber app on top of a wired container. The returned
// cleanup closes the database pool.
func Bootstrap(c *Container) (*App, func() error, error) {
	if c == nil {
		return nil, nil, fmt.Errorf("nil container")
	}

	f := fiber.New(fiber.Config{
		AppName: c.Config.App.AppName,
	})

	f.Use(middleware.NewAccessLogMiddleware(c.Logger).Middleware())
	f.Use(middleware.NewErrorMiddleware().Middleware())

	registry := &routes.Registry{
		Health:   handler.NewHealthHandler(c.DB),
		Auth:     handler.NewAuthHandler(c.AuthUC),
		User:     handler.NewUserHandler(c.UserSvc),
		Alert:    handler.NewAlertHandler(c.AlertUC),
		Pipeline: handler.NewPipelineHandler(c.PipelineUC),
		AuthMW:   middleware.NewAuthMiddleware(c.JWT),
		WS:       ws.NewHandler(c.Hub, c.Logger),
	}
	registry.Register(f)

	app := &App{Fiber: f, Container: c}
	return app, c.Close, nil
}

func ListenAddr(port string) (string, error) {
	p := strings.TrimSpace(port)
	if p == "" {
		return "", fmt.Errorf("empty HTTP port")
	}
	if strings.HasPrefix(p, ":") {
		return p, nil
	}
	return ":" + p, nil
}
