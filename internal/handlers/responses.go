package handlers

import (
	"context"
	"io"

	"catalog-storefront/internal/apperr"
	"catalog-storefront/internal/models"

	"github.com/gin-gonic/gin"
)

// ConnectivityMessage is shown when the public listing cannot be loaded.
const ConnectivityMessage = "Ocorreu um problema ao conectar com o catálogo. Tente atualizar a página."

// Catalog is the repository surface used by the HTTP layer.
type Catalog interface {
	IsDemo() bool
	ListActiveProducts(ctx context.Context) ([]models.Product, error)
	ListAllProductsForAdmin(ctx context.Context) ([]models.Product, error)
	FindActiveBySlug(ctx context.Context, slug string) (models.Product, bool, error)
	SaveProduct(ctx context.Context, patch models.ProductPatch, id string) (string, error)
	SetActive(ctx context.Context, id string, active bool) error
	DeleteProduct(ctx context.Context, id string) error
	TrackClick(ctx context.Context, productID, marketplace, userAgent string)
	UploadAsset(ctx context.Context, data []byte, fileName string) (string, error)
	OpenAsset(ctx context.Context, key string) (io.ReadCloser, error)
}

// Response bodies
type ErrorResponse struct {
	Error string `json:"error"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}

type IDResponse struct {
	ID string `json:"id"`
}

// abortWithError writes the normalized message of err with the given status.
func abortWithError(c *gin.Context, status int, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, ErrorResponse{Error: apperr.Message(err)})
}
