package router

import "github.com/labstack/echo/v4"

// registerAdmin mounts the admin-only back office: clients, sessions and
// the dashboard.  Every route requires an admin token.
func registerAdmin(api *echo.Group, h Handlers, g guards) {
	clients := api.Group("/clients", g.auth, g.admin)
	clients.GET("", h.Clients.List)
	clients.GET("/:id", h.Clients.Get)
	clients.POST("", h.Clients.Create)
	clients.PUT("/:id", h.Clients.Update)
	clients.DELETE("/:id", h.Clients.Delete)

	sessions := api.Group("/sessions", g.auth, g.admin)
	sessions.GET("", h.Sessions.List)
	sessions.POST("/start", h.Sessions.Start)
	sessions.PUT("/:id/end", h.Sessions.End)
	sessions.DELETE("/:id", h.Sessions.Delete)

	api.GET("/dashboard/stats", h.Dashboard.Stats, g.auth, g.admin)
}
