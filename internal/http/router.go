package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/DionathaGoulart/pets-auth/internal/config"
	"github.com/DionathaGoulart/pets-auth/internal/http/handler"
	httpmiddleware "github.com/DionathaGoulart/pets-auth/internal/http/middleware"
	"github.com/DionathaGoulart/pets-auth/internal/middleware"
)

// NewRouter wires Gin routes and middleware.
func NewRouter(cfg config.Config, authHandler *handler.AuthHandler, authMiddleware *httpmiddleware.Auth, rateLimiter *middleware.RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(nil))
	if rateLimiter != nil {
		r.Use(rateLimiter.Handler())
	}
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/registration", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/token/refresh", authHandler.Refresh)
			auth.POST("/logout", authHandler.Logout)
			auth.POST("/google/callback", authHandler.GoogleCallback)
		}

		api.GET("/profile", authMiddleware.ValidateJWT, authHandler.Profile)
		api.PUT("/profile/update", authMiddleware.ValidateJWT, authHandler.UpdateProfile)
		api.PATCH("/profile/update", authMiddleware.ValidateJWT, authHandler.UpdateProfile)
		api.GET("/dashboard", authMiddleware.ValidateJWT, authHandler.Dashboard)
	}

	return r
}
