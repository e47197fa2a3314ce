package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"catalog-storefront/internal/editor"
	"catalog-storefront/internal/gateway"
	"catalog-storefront/internal/models"

	"github.com/gin-gonic/gin"
)

const maxUploadSize = 10 << 20

// AdminHandler serves the authenticated catalog management API. Failures
// are reported with their normalized message.
type AdminHandler struct {
	catalog   Catalog
	newEditor func() *editor.Editor
}

func NewAdminHandler(c Catalog, newEditor func() *editor.Editor) *AdminHandler {
	return &AdminHandler{catalog: c, newEditor: newEditor}
}

type DraftResponse struct {
	ID    string         `json:"id,omitempty"`
	Draft models.Product `json:"draft"`
}

type ToggleRequest struct {
	Active *bool `json:"active" binding:"required"`
}

type UploadResponse struct {
	URLs  []string `json:"urls"`
	Error string   `json:"error,omitempty"`
}

func statusFor(err error) int {
	var vErr *models.ValidationError
	switch {
	case errors.As(err, &vErr):
		return http.StatusBadRequest
	case errors.Is(err, gateway.ErrNoRows):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// GET /v1/admin/products
func (h *AdminHandler) ListProducts(c *gin.Context) {
	products, err := h.catalog.ListAllProductsForAdmin(c.Request.Context())
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products, "demo": h.catalog.IsDemo()})
}

// GET /v1/admin/products/new
func (h *AdminHandler) NewDraft(c *gin.Context) {
	c.JSON(http.StatusOK, DraftResponse{Draft: editor.InitialDraft()})
}

// GET /v1/admin/products/:id
func (h *AdminHandler) GetDraft(c *gin.Context) {
	ed := h.newEditor()
	if err := ed.Load(c.Request.Context(), c.Param("id")); err != nil {
		abortWithError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, DraftResponse{ID: ed.ID(), Draft: ed.Draft()})
}

// POST /v1/admin/products
func (h *AdminHandler) CreateProduct(c *gin.Context) {
	var product models.Product
	if err := c.ShouldBindJSON(&product); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	ed := h.newEditor()
	ed.Apply(models.PatchFromProduct(product))
	id, err := ed.Submit(c.Request.Context())
	if err != nil {
		abortWithError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusCreated, IDResponse{ID: id})
}

// PUT /v1/admin/products/:id replaces every editable field.
func (h *AdminHandler) ReplaceProduct(c *gin.Context) {
	var product models.Product
	if err := c.ShouldBindJSON(&product); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	ed := h.newEditor()
	if err := ed.Load(c.Request.Context(), c.Param("id")); err != nil {
		abortWithError(c, http.StatusInternalServerError, err)
		return
	}
	ed.Apply(models.PatchFromProduct(product))
	id, err := ed.Submit(c.Request.Context())
	if err != nil {
		abortWithError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, IDResponse{ID: id})
}

// PATCH /v1/admin/products/:id applies a partial update
func (h *AdminHandler) UpdateProduct(c *gin.Context) {
	var patch models.ProductPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	if patch.IsEmpty() {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "no valid fields to update"})
		return
	}

	id, err := h.catalog.SaveProduct(c.Request.Context(), patch, c.Param("id"))
	if err != nil {
		abortWithError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, IDResponse{ID: id})
}

// POST /v1/admin/products/:id/toggle
func (h *AdminHandler) ToggleProduct(c *gin.Context) {
	var req ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	if err := h.catalog.SetActive(c.Request.Context(), c.Param("id"), *req.Active); err != nil {
		abortWithError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "active": *req.Active})
}

// DELETE /v1/admin/products/:id
func (h *AdminHandler) DeleteProduct(c *gin.Context) {
	if err := h.catalog.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		abortWithError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "product deleted"})
}

// POST /v1/admin/assets uploads each file of the "files" field on its own.
// Files uploaded before a failure keep their URLs.
func (h *AdminHandler) UploadAssets(c *gin.Context) {
	files, err := formFiles(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	urls := make([]string, 0, len(files))
	for _, f := range files {
		url, err := h.catalog.UploadAsset(c.Request.Context(), f.Data, f.Name)
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusBadGateway, UploadResponse{URLs: urls, Error: err.Error()})
			return
		}
		urls = append(urls, url)
	}
	c.JSON(http.StatusOK, UploadResponse{URLs: urls})
}

// POST /v1/admin/products/:id/gallery uploads files into the gallery and
// saves the product. Successful uploads are saved even when another file
// fails.
func (h *AdminHandler) UploadGallery(c *gin.Context) {
	files, err := formFiles(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	ctx := c.Request.Context()
	ed := h.newEditor()
	if err := ed.Load(ctx, c.Param("id")); err != nil {
		abortWithError(c, http.StatusInternalServerError, err)
		return
	}

	uploadErr := ed.UploadGallery(ctx, files)
	if _, err := ed.Submit(ctx); err != nil {
		abortWithError(c, statusFor(err), err)
		return
	}

	draft := ed.Draft()
	if uploadErr != nil {
		_ = c.Error(uploadErr)
		c.JSON(http.StatusBadGateway, gin.H{"error": uploadErr.Error(), "gallery": draft.Gallery})
		return
	}
	c.JSON(http.StatusOK, gin.H{"gallery": draft.Gallery})
}

func formFiles(c *gin.Context) ([]editor.File, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, fmt.Errorf("invalid multipart form: %w", err)
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		return nil, errors.New("no files uploaded")
	}

	files := make([]editor.File, 0, len(headers))
	for _, fh := range headers {
		if fh.Size > maxUploadSize {
			return nil, fmt.Errorf("%s exceeds the %d MB limit", fh.Filename, maxUploadSize>>20)
		}
		data, err := readFile(fh)
		if err != nil {
			return nil, err
		}
		files = append(files, editor.File{Name: fh.Filename, Data: data})
	}
	return files, nil
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
