package routes

import (
	"catalog-storefront/internal/gateway"
	"catalog-storefront/internal/handlers"
	"catalog-storefront/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Handlers groups everything RegisterRoutes mounts.
type Handlers struct {
	Products *handlers.ProductHandler
	Admin    *handlers.AdminHandler
	Auth     *handlers.AuthHandler
}

func RegisterRoutes(router *gin.Engine, h Handlers, auth gateway.Auth) {
	router.GET("/healthz", h.Products.Health)
	router.GET("/assets/*key", h.Products.Asset)

	v1 := router.Group("/v1")
	{
		v1.GET("/products", h.Products.ListProducts)
		v1.GET("/products/:slug", h.Products.GetProduct)
		v1.GET("/products/:slug/buy/:option", h.Products.Buy)
		v1.POST("/clicks", h.Products.TrackClick)

		v1.POST("/auth/login", h.Auth.Login)
		v1.POST("/auth/logout", h.Auth.Logout)
		v1.GET("/auth/session", h.Auth.Session)
	}

	admin := v1.Group("/admin", middleware.RequireSession(auth))
	{
		admin.GET("/products", h.Admin.ListProducts)
		admin.GET("/products/new", h.Admin.NewDraft)
		admin.GET("/products/:id", h.Admin.GetDraft)
		admin.POST("/products", h.Admin.CreateProduct)
		admin.PUT("/products/:id", h.Admin.ReplaceProduct)
		admin.PATCH("/products/:id", h.Admin.UpdateProduct)
		admin.POST("/products/:id/toggle", h.Admin.ToggleProduct)
		admin.DELETE("/products/:id", h.Admin.DeleteProduct)
		admin.POST("/products/:id/gallery", h.Admin.UploadGallery)
		admin.POST("/assets", h.Admin.UploadAssets)
	}
}
