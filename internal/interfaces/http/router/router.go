package router

import (
	"github.com/gin-gonic/gin"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// group collects registrars sharing a path prefix and middleware
type group struct {
	prefix     string
	middleware []gin.HandlerFunc
	registrars []RouteRegistrar
}

// Router manages HTTP route registration under a versioned API prefix
type Router struct {
	engine     *gin.Engine
	apiVersion string
	middleware []gin.HandlerFunc
	groups     []group
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Use adds middleware applied to every route under the API prefix.
// Must be called before Setup.
func (r *Router) Use(middleware ...gin.HandlerFunc) *Router {
	r.middleware = append(r.middleware, middleware...)
	return r
}

// RegisterGroup mounts registrars under a shared prefix with optional
// group-level middleware
func (r *Router) RegisterGroup(prefix string, middleware []gin.HandlerFunc, registrars ...RouteRegistrar) *Router {
	r.groups = append(r.groups, group{
		prefix:     prefix,
		middleware: middleware,
		registrars: registrars,
	})
	return r
}

// Register mounts registrars directly under the API prefix
func (r *Router) Register(registrars ...RouteRegistrar) *Router {
	return r.RegisterGroup("", nil, registrars...)
}

// Setup registers all routes with the engine
func (r *Router) Setup() {
	api := r.engine.Group("/api/" + r.apiVersion)
	if len(r.middleware) > 0 {
		api.Use(r.middleware...)
	}

	for _, g := range r.groups {
		rg := api.Group(g.prefix)
		if len(g.middleware) > 0 {
			rg.Use(g.middleware...)
		}
		for _, registrar := range g.registrars {
			registrar.RegisterRoutes(rg)
		}
	}
}
