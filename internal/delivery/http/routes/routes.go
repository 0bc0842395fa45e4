package routes

import (
	"smart-apply/internal/delivery/http/handler"
	"smart-apply/internal/delivery/http/middleware"
	"smart-apply/internal/ws"

	"github.com/gofiber/fiber/v3"
)

type Registry struct {
	Health   *handler.HealthHandler
	Auth     *handler.AuthHandler
	User     *handler.UserHandler
	Alert    *handler.AlertHandler
	Pipeline *handler.PipelineHandler

	AuthMW *middleware.AuthMiddleware
	WS     *ws.Handler
}

func (r *Registry) Register(app *fiber.App) {
	if app == nil {
		return
	}

	if r.Health != nil {
		r.Health.RegisterRoutes(app)
	}
	if r.WS != nil {
		app.Get("/ws/runs", r.WS.HandleRunsWS)
	}

	api := app.Group("/api")
	r.registerV1(api.Group("/v1"))
}

func (r *Registry) registerV1(v1 fiber.Router) {
	if r.Auth != nil {
		r.Auth.RegisterRoutes(v1.Group("/auth"))
	}

	if r.AuthMW == nil {
		return
	}
	protected := v1.Group("", r.AuthMW.Middleware())

	if r.User != nil {
		r.User.RegisterRoutes(protected.Group("/users"))
	}
	if r.Alert != nil {
		r.Alert.RegisterRoutes(protected)
	}
	if r.Pipeline != nil {
		r.Pipeline.RegisterRoutes(protected)
	}
}
