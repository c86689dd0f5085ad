// Package router contains routing and server setup for the HTTP delivery.
package router

import (
	"strconv"

	"phonebook/config"
	"phonebook/internal/delivery/api/middleware"
	"phonebook/internal/delivery/api/router/handler"
	"phonebook/internal/domain/entity"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"
)

// AvatarPath is registered with its own body limit.
const AvatarPath = "/api/users/avatar"

// Role gates for contact operations. Roles are not hierarchical, so each gate lists every admitted role.
var (
	ReadContactsGate   = entity.NewRoleGate(entity.RoleAdmin, entity.RoleModerator, entity.RoleUser)
	CreateContactsGate = entity.NewRoleGate(entity.RoleAdmin, entity.RoleModerator, entity.RoleUser)
	UpdateContactsGate = entity.NewRoleGate(entity.RoleAdmin, entity.RoleModerator)
	DeleteContactsGate = entity.NewRoleGate(entity.RoleAdmin)
)

type RouterParams struct {
	fx.In

	AuthHandler    *handler.AuthHandler
	UserHandler    *handler.UserHandler
	ContactHandler *handler.ContactHandler
	HealthHandler  *handler.HealthHandler
	AuthMiddleware *middleware.AuthMiddleware
	RateLimiter    *middleware.RateLimiter
	Config         *config.Config
}

// router holds all the handlers that need to be registered.
type router struct {
	authHandler    *handler.AuthHandler
	userHandler    *handler.UserHandler
	contactHandler *handler.ContactHandler
	healthHandler  *handler.HealthHandler
	authMiddleware *middleware.AuthMiddleware
	rateLimiter    *middleware.RateLimiter
	config         *config.Config
}

// NewRouter is the constructor for the Router.
// Fx will inject the required handlers here.
func NewRouter(params RouterParams) *router {
	return &router{
		authHandler:    params.AuthHandler,
		userHandler:    params.UserHandler,
		contactHandler: params.ContactHandler,
		healthHandler:  params.HealthHandler,
		authMiddleware: params.AuthMiddleware,
		rateLimiter:    params.RateLimiter,
		config:         params.Config,
	}
}

// RegisterRoutes sets up all the API routes for the application.
func (r *router) RegisterRoutes(e *echo.Echo) {
	api := e.Group("/api")

	api.GET("/healthchecker", r.healthHandler.Check)

	// Auth routes
	authGroup := api.Group("/auth")
	{
		authGroup.POST("/signup", r.authHandler.Signup)
		authGroup.POST("/login", r.authHandler.Login)
		authGroup.GET("/refresh_token", r.authHandler.RefreshToken)
		authGroup.GET("/confirmed_email/:token", r.authHandler.ConfirmEmail)
		authGroup.POST("/request_email", r.authHandler.RequestEmail)
		authGroup.POST("/logout", r.authHandler.Logout, r.authMiddleware.Authenticate)
	}

	// User routes that require authentication
	usersGroup := api.Group("/users")
	usersGroup.Use(r.authMiddleware.Authenticate)
	{
		usersGroup.GET("/me", r.userHandler.Me, r.rateLimiter.Handle)
		usersGroup.PATCH("/avatar", r.userHandler.UpdateAvatar, r.avatarBodyLimit())
	}

	contactsGroup := api.Group("/contacts")
	contactsGroup.Use(r.authMiddleware.Authenticate)
	{
		read := r.authMiddleware.RequireRoles(ReadContactsGate)

		contactsGroup.GET("", r.contactHandler.List, read, r.rateLimiter.Handle)
		contactsGroup.GET("/search_by_id/:id", r.contactHandler.GetByID, read)
		contactsGroup.GET("/search_by_first_name/:first_name", r.contactHandler.SearchByFirstName, read)
		contactsGroup.GET("/search_by_last_name/:last_name", r.contactHandler.SearchByLastName, read)
		contactsGroup.GET("/search_by_email/:email", r.contactHandler.SearchByEmail, read)
		contactsGroup.GET("/birthdays", r.contactHandler.Birthdays, read)

		contactsGroup.POST("", r.contactHandler.Create, r.authMiddleware.RequireRoles(CreateContactsGate))
		contactsGroup.PUT("/:id", r.contactHandler.Update, r.authMiddleware.RequireRoles(UpdateContactsGate))
		contactsGroup.DELETE("/:id", r.contactHandler.Delete, r.authMiddleware.RequireRoles(DeleteContactsGate))
	}
}

// multipartOverhead leaves room for the form envelope around the file.
const multipartOverhead = 64 * 1024

func (r *router) avatarBodyLimit() echo.MiddlewareFunc {
	var maxBytes int64 = config.DefaultAvatarMaxBytes
	if r.config.Avatar != nil && r.config.Avatar.MaxBytes > 0 {
		maxBytes = r.config.Avatar.MaxBytes
	}

	return echomiddleware.BodyLimit(strconv.FormatInt(maxBytes+multipartOverhead, 10) + "B")
}
