// Package server assembles the gin engine: middleware, routes and the
// services behind them.
package server

import (
	"log/slog"
	"sync"

	"github.com/JunoAX/familytasks-go/internal/auth"
	"github.com/JunoAX/familytasks-go/internal/graph"
	"github.com/JunoAX/familytasks-go/internal/handlers"
	"github.com/JunoAX/familytasks-go/internal/identity"
	"github.com/JunoAX/familytasks-go/internal/middleware"
	"github.com/JunoAX/familytasks-go/internal/observability"
	"github.com/JunoAX/familytasks-go/internal/store"
	"github.com/JunoAX/familytasks-go/internal/tasks"
	"github.com/JunoAX/familytasks-go/internal/users"
	"github.com/JunoAX/familytasks-go/internal/validation"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Deps are the collaborators the router needs. Store is required; the rest
// are optional.
type Deps struct {
	Store       store.Store
	Logger      *slog.Logger
	Metrics     *observability.Metrics
	JWT         *auth.JWTService
	RequireAuth bool
	DB          handlers.Pinger
	Version     string
	ServiceName string
	RateLimit   float64
	RateBurst   int
}

var registerOnce sync.Once

// NewRouter builds the engine with every API route registered.
func NewRouter(d Deps) (*gin.Engine, error) {
	var regErr error
	registerOnce.Do(func() { regErr = validation.RegisterGin() })
	if regErr != nil {
		return nil, regErr
	}

	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	serviceName := d.ServiceName
	if serviceName == "" {
		serviceName = "familytasks-api"
	}

	engineOpts := []graph.Option{graph.WithLogger(logger)}
	identityOpts := []identity.Option{identity.WithLogger(logger)}
	if d.Metrics != nil {
		engineOpts = append(engineOpts, graph.WithObserver(d.Metrics))
		identityOpts = append(identityOpts, identity.WithObserver(d.Metrics))
	}
	if d.JWT != nil {
		identityOpts = append(identityOpts, identity.WithTokenIssuer(d.JWT))
	}

	engine := graph.NewEngine(d.Store, engineOpts...)
	taskSvc := tasks.NewService(d.Store, logger)
	userSvc := users.NewService(d.Store, logger)
	identitySvc := identity.NewService(d.Store, identityOpts...)

	r := gin.Default()
	r.Use(otelgin.Middleware(serviceName))
	r.Use(middleware.RequestID(logger))
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware())
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	r.GET("/health", handlers.Health(d.Version, d.DB))
	r.GET("/", handlers.Root(d.Version))

	api := r.Group("/api")
	api.Use(middleware.RateLimit(d.RateLimit, d.RateBurst))

	// Identity sync is how clients obtain a token, so it is never behind auth
	api.POST("/auth/sync", handlers.SyncIdentity(identitySvc))

	protected := api.Group("")
	if d.RequireAuth && d.JWT != nil {
		protected.Use(middleware.RequireAuth(d.JWT))
	}

	userRoutes := protected.Group("/users")
	{
		userRoutes.GET("", handlers.ListUsers(userSvc))
		userRoutes.GET("/:id", handlers.GetUser(userSvc))
		userRoutes.POST("", handlers.CreateUser(userSvc))
		userRoutes.PUT("/:id", handlers.UpdateUser(userSvc))
		userRoutes.PATCH("/:id", handlers.UpdateUser(userSvc))
		userRoutes.DELETE("/:id", handlers.DeleteUser(userSvc))
	}

	taskRoutes := protected.Group("/tasks")
	{
		taskRoutes.GET("", handlers.ListTasks(taskSvc))
		taskRoutes.GET("/:id", handlers.GetTask(taskSvc))
		taskRoutes.POST("", handlers.CreateTask(taskSvc))
		taskRoutes.PUT("/:id", handlers.UpdateTask(taskSvc))
		taskRoutes.PATCH("/:id", handlers.UpdateTask(taskSvc))
		taskRoutes.DELETE("/:id", handlers.DeleteTask(taskSvc))

		taskRoutes.GET("/:id/subtasks", handlers.ListSubtasks(taskSvc))
		taskRoutes.POST("/:id/subtasks", handlers.CreateSubtask(taskSvc))
		taskRoutes.GET("/:id/links", handlers.ListLinks(taskSvc))
		taskRoutes.POST("/:id/links", handlers.CreateLink(taskSvc))
	}

	protected.PATCH("/subtasks/:id", handlers.UpdateSubtask(taskSvc))
	protected.DELETE("/subtasks/:id", handlers.DeleteSubtask(taskSvc))
	protected.DELETE("/links/:id", handlers.DeleteLink(taskSvc))

	depRoutes := protected.Group("/dependencies")
	{
		depRoutes.GET("", handlers.ListDependencies(engine))
		depRoutes.GET("/task/:taskId", handlers.ListTaskDependencies(engine))
		depRoutes.POST("", handlers.CreateDependency(engine))
		depRoutes.DELETE("/:id", handlers.DeleteDependency(engine))
	}

	return r, nil
}
