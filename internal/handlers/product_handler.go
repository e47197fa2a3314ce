package handlers

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"catalog-storefront/internal/catalog"
	"catalog-storefront/internal/listing"
	"catalog-storefront/internal/models"

	"github.com/gin-gonic/gin"
)

// ProductHandler serves the public storefront.
type ProductHandler struct {
	catalog Catalog
}

func NewProductHandler(c Catalog) *ProductHandler {
	return &ProductHandler{catalog: c}
}

type ListResponse struct {
	listing.View
	Selected *ProductDetail `json:"selected,omitempty"`
	Demo     bool           `json:"demo"`
}

// VideoDetail is a video together with the URL a player should load.
type VideoDetail struct {
	models.Video
	PlayerURL string `json:"embed_url"`
}

// ProductDetail is a product as rendered in detail views: buy options in
// priority order and playable video URLs.
type ProductDetail struct {
	models.Product
	Videos []VideoDetail `json:"videos"`
}

type ClickRequest struct {
	ProductID   string `json:"product_id" binding:"required"`
	Marketplace string `json:"marketplace" binding:"required"`
}

// GET /v1/products?q=&category=&sort=&p=
func (h *ProductHandler) ListProducts(c *gin.Context) {
	products, err := h.catalog.ListActiveProducts(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: ConnectivityMessage})
		return
	}

	view := listing.Build(products, listing.Query{
		Text:     c.Query("q"),
		Category: c.DefaultQuery("category", listing.AllCategories),
		Sort:     listing.ParseSort(c.Query("sort")),
		Slug:     c.Query("p"),
	})
	resp := ListResponse{View: view, Demo: h.catalog.IsDemo()}
	if view.Selected != nil {
		detail := productDetail(*view.Selected)
		resp.Selected = &detail
	}
	c.JSON(http.StatusOK, resp)
}

// GET /v1/products/:slug
func (h *ProductHandler) GetProduct(c *gin.Context) {
	product, ok, err := h.catalog.FindActiveBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: ConnectivityMessage})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "product not found"})
		return
	}

	c.JSON(http.StatusOK, productDetail(product))
}

// GET /v1/products/:slug/buy/:option records the click and redirects to the
// marketplace.
func (h *ProductHandler) Buy(c *gin.Context) {
	product, ok, err := h.catalog.FindActiveBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: ConnectivityMessage})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "product not found"})
		return
	}
	option, ok := product.FindBuyOption(c.Param("option"))
	if !ok || option.URL == "" {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "buy option not found"})
		return
	}

	h.catalog.TrackClick(c.Request.Context(), product.ID, option.MarketplaceName, c.Request.UserAgent())
	c.Redirect(http.StatusFound, option.URL)
}

// POST /v1/clicks
func (h *ProductHandler) TrackClick(c *gin.Context) {
	var req ClickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	h.catalog.TrackClick(c.Request.Context(), req.ProductID, req.Marketplace, c.Request.UserAgent())
	c.Status(http.StatusAccepted)
}

// GET /assets/*key
func (h *ProductHandler) Asset(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if key == "" || strings.Contains(key, "..") {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "asset not found"})
		return
	}

	rc, err := h.catalog.OpenAsset(c.Request.Context(), key)
	if errors.Is(err, catalog.ErrAssetNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "asset not found"})
		return
	}
	if err != nil {
		abortWithError(c, http.StatusBadGateway, err)
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Cache-Control", "public, max-age=300")
	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		_ = c.Error(err)
	}
}

// GET /healthz
func (h *ProductHandler) Health(c *gin.Context) {
	mode := "live"
	if h.catalog.IsDemo() {
		mode = "demo"
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "mode": mode})
}

func productDetail(p models.Product) ProductDetail {
	p.BuyOptions = p.SortedBuyOptions()
	videos := make([]VideoDetail, len(p.Videos))
	for i, v := range p.Videos {
		videos[i] = VideoDetail{Video: v, PlayerURL: v.EmbedURL()}
	}
	return ProductDetail{Product: p, Videos: videos}
}
