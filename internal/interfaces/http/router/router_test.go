package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type pingRegistrar struct{}

func (pingRegistrar) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
}

func TestRouter_Setup(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("mounts routes under versioned prefix", func(t *testing.T) {
		engine := gin.New()
		NewRouter(engine).Register(pingRegistrar{}).Setup()

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("custom api version", func(t *testing.T) {
		engine := gin.New()
		NewRouter(engine, WithAPIVersion("v2")).Register(pingRegistrar{}).Setup()

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v2/ping", nil))
		assert.Equal(t, http.StatusOK, w.Code)

		w = httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("group prefix and middleware apply", func(t *testing.T) {
		engine := gin.New()
		var touched bool
		mw := func(c *gin.Context) {
			touched = true
			c.Next()
		}
		NewRouter(engine).RegisterGroup("/bank", []gin.HandlerFunc{mw}, pingRegistrar{}).Setup()

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/bank/ping", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, touched)
	})

	t.Run("router middleware runs before group routes", func(t *testing.T) {
		engine := gin.New()
		NewRouter(engine).
			Use(func(c *gin.Context) {
				c.Header("X-From-Router", "1")
				c.Next()
			}).
			Register(pingRegistrar{}).
			Setup()

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))
		assert.Equal(t, "1", w.Header().Get("X-From-Router"))
	})
}
