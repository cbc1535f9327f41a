package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/gamezone-reservation/internal/handler"    // handlers implementing each endpoint
	"github.com/iliyamo/gamezone-reservation/internal/middleware" // JWT authentication, kind checks and caching
	"github.com/iliyamo/gamezone-reservation/internal/model"      // account kinds
	"github.com/iliyamo/gamezone-reservation/internal/repository" // account stores used by JWTAuth
)

// Handlers groups every handler the API exposes.
type Handlers struct {
	Auth         *handler.AuthHandler
	Stations     *handler.StationHandler
	Reservations *handler.ReservationHandler
	Sessions     *handler.SessionHandler
	Clients      *handler.ClientHandler
	Dashboard    *handler.DashboardHandler
}

// guards holds the middleware chains shared by the route groups.
type guards struct {
	auth   echo.MiddlewareFunc
	admin  echo.MiddlewareFunc
	client echo.MiddlewareFunc
	any    echo.MiddlewareFunc
	cache  echo.MiddlewareFunc
}

// Register mounts the whole API under /api.  Tokens are verified with
// jwtSecret and their principal is reloaded from the matching store.
// Public station browse endpoints go through the response cache.
func Register(e *echo.Echo, h Handlers, jwtSecret string, cache *middleware.ResponseCache, stores ...repository.AccountStore) {
	g := guards{
		auth:   middleware.JWTAuth(jwtSecret, stores...),
		admin:  middleware.RequireKind(model.KindAdmin),
		client: middleware.RequireKind(model.KindClient),
		any:    middleware.RequireKind(model.KindAdmin, model.KindClient),
		cache:  cache.Middleware(),
	}

	api := e.Group("/api")
	// Liveness probe for load balancers; does not touch the database.
	api.GET("/health", handler.Health)

	registerAuth(api, h.Auth, g)
	registerStations(api, h.Stations, g)
	registerReservations(api, h.Reservations, g)
	registerAdmin(api, h, g)
}

// registerAuth mounts login, registration and account self-service.
func registerAuth(api *echo.Group, a *handler.AuthHandler, g guards) {
	auth := api.Group("/auth")
	// Unauthenticated operations that hand out tokens.
	auth.POST("/login", a.Login)
	auth.POST("/client/login", a.ClientLogin)
	auth.POST("/register", a.Register)

	// Admin self-service.
	auth.GET("/verify", a.Verify, g.auth, g.admin)
	auth.PUT("/change-password", a.ChangePassword, g.auth, g.admin)
	auth.DELETE("/delete-account", a.DeleteAccount, g.auth, g.admin)

	// Client self-service.
	auth.GET("/client/verify", a.ClientVerify, g.auth, g.client)
	auth.PUT("/client/change-password", a.ChangePassword, g.auth, g.client)
	auth.DELETE("/client/delete-account", a.DeleteAccount, g.auth, g.client)

	// Either kind.
	auth.GET("/profile", a.Profile, g.auth, g.any)

	profile := api.Group("/client", g.auth, g.client)
	profile.GET("/profile", a.GetClientProfile)
	profile.PUT("/profile", a.UpdateClientProfile)
}

// registerStations mounts public browsing and admin station management.
// Static segments (/available, /refresh) are matched before /:id by echo's
// router, so registration order does not matter.
func registerStations(api *echo.Group, s *handler.StationHandler, g guards) {
	st := api.Group("/stations")
	st.GET("", s.List, g.cache)
	st.GET("/available", s.Available, g.cache)
	st.GET("/:id", s.Get, g.cache)
	st.GET("/:id/availability", s.Availability, g.cache)

	st.POST("", s.Create, g.auth, g.admin)
	st.POST("/refresh", s.Refresh, g.auth, g.admin)
	st.PUT("/:id", s.Update, g.auth, g.admin)
	st.DELETE("/:id", s.Delete, g.auth, g.admin)
}

// registerReservations mounts the unified reservation API and the
// client-only booking API.
func registerReservations(api *echo.Group, r *handler.ReservationHandler, g guards) {
	res := api.Group("/reservations", g.auth, g.any)
	res.GET("", r.List)
	res.GET("/my", r.My)
	res.GET("/:id", r.Get)
	res.POST("", r.Create)
	res.DELETE("/:id", r.Delete, g.admin)

	mine := api.Group("/client-reservations", g.auth, g.client)
	mine.GET("/my", r.My)
	mine.POST("", r.Create)
	mine.DELETE("/:id", r.Cancel)
}
