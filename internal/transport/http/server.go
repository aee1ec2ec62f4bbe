package http

import (
	"github.com/gin-gonic/gin"

	"docpipe/internal/app"
	"docpipe/internal/bootstrap"
	"docpipe/internal/repository"
	"docpipe/internal/transport/http/handler"
	"docpipe/internal/transport/http/middleware"
)

func NewRouter(boot *bootstrap.App) *gin.Engine {
	gin.SetMode(boot.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(boot)
	router.GET("/healthz", healthHandler.Check)

	userRepo := repository.NewUserRepository(boot.MySQL)
	authService := app.NewAuthService(
		userRepo,
		boot.Config.Auth.JWTSecret,
		boot.Config.JWTExpiration(),
	)
	authHandler := handler.NewAuthHandler(authService)
	documentHandler := handler.NewDocumentHandler(boot.IngestService, boot.StatusService)
	retrieveHandler := handler.NewRetrieveHandler(boot.RetrievalService)

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", middleware.AuthJWT(boot.Config.Auth.JWTSecret), authHandler.Me)

	docGroup := v1.Group("/documents")
	docGroup.Use(middleware.AuthJWT(boot.Config.Auth.JWTSecret))
	docGroup.POST("", documentHandler.Upload)
	docGroup.GET("", documentHandler.List)
	docGroup.GET("/:id/status", documentHandler.Status)
	docGroup.GET("/:id/jobs", documentHandler.Jobs)
	docGroup.POST("/:id/cancel", documentHandler.Cancel)

	v1.POST("/retrieve", middleware.AuthJWT(boot.Config.Auth.JWTSecret), retrieveHandler.Retrieve)

	return router
}
