// Package router wires the HTTP routes: public browse endpoints, the
// authenticated API and the staff/admin surface. Rate limiting applies
// everywhere; the availability cache only fronts the two public browse
// listings.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/btick/btick/internal/config"
	"github.com/btick/btick/internal/handler"
	"github.com/btick/btick/internal/middleware"
	"github.com/btick/btick/internal/model"
)

// Deps bundles everything route registration needs.
type Deps struct {
	Cfg        config.Config
	Redis      *redis.Client
	Members    middleware.MembershipSource
	Auth       *handler.AuthHandler
	Orgs       *handler.OrganizationHandler
	Venues     *handler.VenueHandler
	Categories *handler.CategoryHandler
	Events     *handler.EventHandler
	Tiers      *handler.TierHandler
	Bookings   *handler.BookingHandler
}

// Register attaches every route to the Echo instance.
func Register(e *echo.Echo, d Deps) {
	rate := middleware.NewTokenBucket(config.LoadRateLimitConfig(), d.Redis)
	cache := middleware.AvailabilityCache(config.LoadCacheConfig(), d.Redis)
	e.Use(rate)

	e.GET("/healthz", handler.Health)

	// Session endpoints; no JWT required.
	ag := e.Group("/v1/auth")
	ag.POST("/register", d.Auth.Register)
	ag.POST("/login", d.Auth.Login)
	ag.POST("/refresh", d.Auth.Refresh)

	// Public browse endpoints. The two listings sit behind the
	// short-TTL availability cache.
	e.GET("/v1/events", d.Events.ListPublished, cache)
	e.GET("/v1/events/:id", d.Events.Get)
	e.GET("/v1/events/:id/available-tickets", d.Events.AvailableTickets, cache)

	// Everything below requires a valid access token. JWTAuth also
	// loads the caller's organization roles into the actor.
	auth := e.Group("/v1", middleware.JWTAuth(d.Cfg.JWTSecret, d.Members))
	auth.GET("/me", d.Auth.Me)
	auth.POST("/auth/logout", d.Auth.Logout)

	auth.GET("/organizations", d.Orgs.List)
	auth.GET("/organizations/:id", d.Orgs.Get)
	auth.PUT("/organizations/:id", d.Orgs.Update)
	auth.GET("/organizations/:id/events", d.Events.ListForOrganization)
	auth.GET("/organizations/:id/members", d.Orgs.ListMembers)
	auth.POST("/organizations/:id/members", d.Orgs.AddMember)
	auth.DELETE("/organizations/:id/members/:userID", d.Orgs.RemoveMember)

	auth.GET("/venues", d.Venues.List)
	auth.GET("/venues/:id", d.Venues.Get)
	auth.GET("/categories", d.Categories.List)

	// Event and tier management; per-organization permission checks
	// happen in the services against the actor's membership roles.
	auth.POST("/events", d.Events.Create)
	auth.PUT("/events/:id", d.Events.Update)
	auth.POST("/events/:id/publish", d.Events.Publish)
	auth.POST("/events/:id/cancel", d.Events.Cancel)
	auth.GET("/events/:id/tiers", d.Tiers.ListForEvent)
	auth.POST("/events/:id/tiers", d.Tiers.Create)
	auth.PUT("/tiers/:tierID", d.Tiers.Update)
	auth.DELETE("/tiers/:tierID", d.Tiers.Delete)

	// Booking lifecycle.
	auth.POST("/bookings", d.Bookings.Create)
	auth.GET("/my-bookings", d.Bookings.ListMine)
	auth.GET("/bookings/:id", d.Bookings.Get)
	auth.POST("/bookings/:id/confirm", d.Bookings.Confirm)
	auth.DELETE("/bookings/:id", d.Bookings.Cancel)

	// Staff surface: refunds and cross-user inspection.
	staff := auth.Group("", middleware.RequireRole(model.RoleSupport, model.RoleAdmin))
	staff.POST("/bookings/:id/refund", d.Bookings.Refund)
	staff.GET("/users/:id/bookings", d.Bookings.ListForUser)

	// Admin surface: platform reference data.
	admin := auth.Group("", middleware.RequireRole(model.RoleAdmin))
	admin.POST("/organizations", d.Orgs.Create)
	admin.DELETE("/organizations/:id", d.Orgs.Delete)
	admin.POST("/venues", d.Venues.Create)
	admin.PUT("/venues/:id", d.Venues.Update)
	admin.DELETE("/venues/:id", d.Venues.Delete)
	admin.POST("/categories", d.Categories.Create)
	admin.DELETE("/categories/:id", d.Categories.Delete)
}
