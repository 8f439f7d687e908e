package router

import (
	"github.com/cuongbtq/pickup-be/internal/api/auth"
	"github.com/cuongbtq/pickup-be/internal/api/domain"
	"github.com/cuongbtq/pickup-be/internal/api/handler"
	"github.com/gin-gonic/gin"
)

// Options carries router settings that come from configuration
type Options struct {
	ServiceName    string
	AllowedOrigins []string
}

// SetupRouter configures and returns the Gin router with all routes.
// authn verifies the caller and must install an identity for the handlers.
func SetupRouter(deps *handler.Dependencies, authn gin.HandlerFunc, opts Options) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware(opts.AllowedOrigins))

	healthHandler := handler.NewHealthHandler(deps, opts.ServiceName)
	authHandler := handler.NewAuthHandler(deps)
	jobHandler := handler.NewJobHandler(deps)
	orgHandler := handler.NewOrganisationHandler(deps)
	userHandler := handler.NewUserHandler(deps)

	adminOnly := auth.RequireRole(domain.RoleAdmin)

	r.GET("/health", healthHandler.Health)

	v1 := r.Group("/api/v1")
	{
		public := v1.Group("/auth")
		{
			public.POST("/register", authHandler.Register)
			public.POST("/login", authHandler.Login)
		}

		authed := v1.Group("", authn)
		authed.GET("/me", authHandler.Me)

		jobs := authed.Group("/jobs")
		{
			jobs.GET("/available", jobHandler.ListAvailable)
			jobs.GET("/ongoing", jobHandler.ListOngoing)
			jobs.GET("/completed", jobHandler.ListCompleted)
			jobs.GET("/:id", jobHandler.GetJob)
			jobs.GET("/:id/events", jobHandler.GetJobEvents)

			jobs.POST("/:id/reserve", jobHandler.ReserveJob)
			jobs.POST("/:id/advance", jobHandler.AdvanceJob)
			jobs.POST("/:id/cancel", jobHandler.CancelJob)

			jobs.POST("", adminOnly, jobHandler.CreateJob)
			jobs.GET("", adminOnly, jobHandler.ListJobs)
			jobs.PATCH("/:id", adminOnly, jobHandler.UpdateJob)
			jobs.DELETE("/:id", adminOnly, jobHandler.DeleteJob)
		}

		orgs := authed.Group("/organisations")
		{
			orgs.GET("", orgHandler.ListOrganisations)
			orgs.GET("/:id", orgHandler.GetOrganisation)
			orgs.POST("", adminOnly, orgHandler.CreateOrganisation)
			orgs.PATCH("/:id", adminOnly, orgHandler.UpdateOrganisation)
			orgs.DELETE("/:id", adminOnly, orgHandler.DeleteOrganisation)
		}

		users := authed.Group("/users", adminOnly)
		{
			users.GET("", userHandler.ListUsers)
			users.POST("", userHandler.CreateUser)
			users.GET("/:id", userHandler.GetUser)
			users.PATCH("/:id/role", userHandler.UpdateUserRole)
			users.DELETE("/:id", userHandler.DeleteUser)
		}
	}

	return r
}
