package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pedalhub/rental-service/internal/api/http/handlers"
	"github.com/pedalhub/rental-service/internal/auth"
	"github.com/pedalhub/rental-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Bikes          *handlers.BikesHandler
	Rentals        *handlers.RentalsHandler
	AuthMiddleware *auth.AuthMiddleware
	Authorizer     *auth.Authorizer
	// Gatherer serves /metrics when set.
	Gatherer prometheus.Gatherer
}

var (
	fleetManagers = auth.NewRoleSet(domain.UserRoleAdmin, domain.UserRoleStaff)
	adminsOnly    = auth.NewRoleSet(domain.UserRoleAdmin)
	renters       = auth.NewRoleSet(domain.UserRoleCustomer, domain.UserRoleAdmin)
)

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	authn := cfg.AuthMiddleware.Handle
	authz := cfg.Authorizer
	api := app.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)
	authGroup.Post("/logout", authn, cfg.Users.Logout)
	authGroup.Get("/me", authn, cfg.Users.Me)

	bikes := api.Group("/bikes")
	bikes.Get("/", cfg.Bikes.ListBikes)
	bikes.Get("/:id", cfg.Bikes.GetBike)
	bikes.Post("/", authn, authz.RequireRoles(fleetManagers), cfg.Bikes.CreateBike)
	bikes.Put("/:id", authn, authz.RequireRoles(fleetManagers), cfg.Bikes.UpdateBike)
	bikes.Delete("/:id", authn, authz.RequireRoles(adminsOnly), cfg.Bikes.DeleteBike)

	rentalOwner := authz.RequireOwnership(auth.OwnerResolverFunc(cfg.Rentals.RentalOwner))
	rentals := api.Group("/rentals", authn)
	rentals.Post("/", authz.RequireRoles(renters), cfg.Rentals.CreateRental)
	rentals.Get("/", authz.RequireRoles(fleetManagers), cfg.Rentals.ListRentals)
	rentals.Get("/mine", cfg.Rentals.ListMine)
	rentals.Get("/:id", rentalOwner, cfg.Rentals.GetRental)
	rentals.Post("/:id/return", rentalOwner, cfg.Rentals.ReturnRental)
	rentals.Post("/:id/cancel", rentalOwner, cfg.Rentals.CancelRental)

	users := api.Group("/users", authn)
	users.Get("/:id/rentals", authz.RequireOwnership(auth.OwnerResolverFunc(handlers.UserOwner)), cfg.Rentals.ListForUser)
}
