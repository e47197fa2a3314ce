package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"catalog-storefront/internal/apperr"
	"catalog-storefront/internal/cache"
	"catalog-storefront/internal/catalog"
	"catalog-storefront/internal/editor"
	"catalog-storefront/internal/gateway"
	"catalog-storefront/internal/handlers"
	"catalog-storefront/internal/models"
	"catalog-storefront/internal/routes"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const validToken = "valid-token"

// stubAuth accepts validToken and the password "s3cret".
type stubAuth struct {
	signedOut []string
}

func (a *stubAuth) Session(_ context.Context, token string) gateway.Session {
	if token != validToken {
		return gateway.LoggedOut{}
	}
	return gateway.LoggedIn{User: gateway.User{ID: "u1", Email: "admin@store.com"}, Token: token}
}

func (a *stubAuth) SignIn(_ context.Context, email, password string) (gateway.LoggedIn, error) {
	if password != "s3cret" {
		return gateway.LoggedIn{}, gateway.ErrInvalidCredentials
	}
	return gateway.LoggedIn{User: gateway.User{ID: "u1", Email: email}, Token: validToken}, nil
}

func (a *stubAuth) SignOut(_ context.Context, token string) error {
	a.signedOut = append(a.signedOut, token)
	return nil
}

func (a *stubAuth) Subscribe() (<-chan gateway.SessionEvent, func()) {
	ch := make(chan gateway.SessionEvent)
	return ch, func() { close(ch) }
}

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) IsDemo() bool { return false }

func (m *mockCatalog) ListActiveProducts(ctx context.Context) ([]models.Product, error) {
	args := m.Called()
	products, _ := args.Get(0).([]models.Product)
	return products, args.Error(1)
}

func (m *mockCatalog) ListAllProductsForAdmin(ctx context.Context) ([]models.Product, error) {
	args := m.Called()
	products, _ := args.Get(0).([]models.Product)
	return products, args.Error(1)
}

func (m *mockCatalog) FindActiveBySlug(ctx context.Context, slug string) (models.Product, bool, error) {
	args := m.Called(slug)
	return args.Get(0).(models.Product), args.Bool(1), args.Error(2)
}

func (m *mockCatalog) SaveProduct(ctx context.Context, patch models.ProductPatch, id string) (string, error) {
	args := m.Called(patch, id)
	return args.String(0), args.Error(1)
}

func (m *mockCatalog) SetActive(ctx context.Context, id string, active bool) error {
	return m.Called(id, active).Error(0)
}

func (m *mockCatalog) DeleteProduct(ctx context.Context, id string) error {
	return m.Called(id).Error(0)
}

func (m *mockCatalog) TrackClick(ctx context.Context, productID, marketplace, userAgent string) {
	m.Called(productID, marketplace, userAgent)
}

func (m *mockCatalog) UploadAsset(ctx context.Context, data []byte, fileName string) (string, error) {
	args := m.Called(fileName)
	return args.String(0), args.Error(1)
}

func (m *mockCatalog) OpenAsset(ctx context.Context, key string) (io.ReadCloser, error) {
	args := m.Called(key)
	rc, _ := args.Get(0).(io.ReadCloser)
	return rc, args.Error(1)
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(c handlers.Catalog, auth gateway.Auth, products gateway.Table) *gin.Engine {
	router := gin.New()
	newEditor := func() *editor.Editor { return editor.New(c, products) }
	routes.RegisterRoutes(router, routes.Handlers{
		Products: handlers.NewProductHandler(c),
		Admin:    handlers.NewAdminHandler(c, newEditor),
		Auth:     handlers.NewAuthHandler(auth),
	}, auth)
	return router
}

func newDemoRouter(t *testing.T) (*gin.Engine, *catalog.ProductRepository) {
	t.Helper()
	store := cache.New(time.Minute)
	t.Cleanup(store.Close)
	gw := gateway.Compose(false, nil, nil, nil)
	repo := catalog.NewProductRepository(gw, store, time.Minute, nil)
	return newRouter(repo, &stubAuth{}, gw.Table(gateway.TableProducts)), repo
}

func do(router http.Handler, method, target string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

var authHeader = map[string]string{"Authorization": "Bearer " + validToken}

type listBody struct {
	Products []struct {
		Slug string `json:"slug"`
	} `json:"products"`
	Categories []string `json:"categories"`
	Selected   *struct {
		ID         string `json:"id"`
		BuyOptions []struct {
			ID string `json:"id"`
		} `json:"buy_options"`
	} `json:"selected"`
	Demo bool `json:"demo"`
}

func TestListProductsDemo(t *testing.T) {
	router, _ := newDemoRouter(t)

	w := do(router, http.MethodGet, "/v1/products?q=rgb&category=Todas&sort=alpha", nil, nil)

	require.Equal(t, http.StatusOK, w.Code)
	var body listBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Products, 1)
	assert.Equal(t, "mechanical-keyboard-rgb", body.Products[0].Slug)
	assert.Equal(t, []string{"Todas", "Tecnologia", "Periféricos"}, body.Categories)
	assert.True(t, body.Demo)
	assert.Nil(t, body.Selected)
}

func TestListProductsDeepLink(t *testing.T) {
	router, _ := newDemoRouter(t)

	w := do(router, http.MethodGet, "/v1/products?sort=popular&p=iphone-15-pro-max", nil, nil)

	require.Equal(t, http.StatusOK, w.Code)
	var body listBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Products, 3)
	assert.Equal(t, "iphone-15-pro-max", body.Products[0].Slug)
	require.NotNil(t, body.Selected)
	assert.Equal(t, "mock-1", body.Selected.ID)
	assert.Equal(t, "b1", body.Selected.BuyOptions[0].ID)
}

func TestListProductsFailureShowsConnectivityMessage(t *testing.T) {
	c := &mockCatalog{}
	c.On("ListActiveProducts").Return(nil, apperr.New("permission denied for table products"))
	router := newRouter(c, &stubAuth{}, nil)

	w := do(router, http.MethodGet, "/v1/products", nil, nil)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"error":"`+handlers.ConnectivityMessage+`"}`, w.Body.String())
}

func TestGetProduct(t *testing.T) {
	router, _ := newDemoRouter(t)

	w := do(router, http.MethodGet, "/v1/products/monitor-ultrawide-34", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"mock-3"`)

	w = do(router, http.MethodGet, "/v1/products/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetProductRendersPlayerURLs(t *testing.T) {
	c := &mockCatalog{}
	product := catalog.DemoProducts()[0]
	product.Videos = []models.Video{
		{ID: "v1", Kind: models.VideoYouTube, URL: "https://www.youtube.com/watch?v=abc123&t=5"},
		{ID: "v2", Kind: models.VideoRawFile, URL: "https://cdn.store.test/demo.mp4"},
	}
	c.On("FindActiveBySlug", "iphone-15-pro-max").Return(product, true, nil)
	router := newRouter(c, &stubAuth{}, nil)

	w := do(router, http.MethodGet, "/v1/products/iphone-15-pro-max", nil, nil)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Videos []struct {
			ID       string `json:"id"`
			URL      string `json:"url"`
			EmbedURL string `json:"embed_url"`
		} `json:"videos"`
		BuyOptions []struct {
			ID string `json:"id"`
		} `json:"buy_options"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Videos, 2)
	assert.Equal(t, "https://www.youtube.com/embed/abc123", body.Videos[0].EmbedURL)
	assert.Equal(t, "https://www.youtube.com/watch?v=abc123&t=5", body.Videos[0].URL)
	assert.Equal(t, "https://cdn.store.test/demo.mp4", body.Videos[1].EmbedURL)
	assert.Equal(t, "b1", body.BuyOptions[0].ID)
}

func TestBuyTracksAndRedirects(t *testing.T) {
	c := &mockCatalog{}
	product := catalog.DemoProducts()[0]
	c.On("FindActiveBySlug", "iphone-15-pro-max").Return(product, true, nil)
	c.On("TrackClick", "mock-1", "Mercado Livre", "test-agent").Return()
	router := newRouter(c, &stubAuth{}, nil)

	w := do(router, http.MethodGet, "/v1/products/iphone-15-pro-max/buy/b2", nil, map[string]string{"User-Agent": "test-agent"})

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://mercadolivre.com.br", w.Header().Get("Location"))
	c.AssertExpectations(t)

	w = do(router, http.MethodGet, "/v1/products/iphone-15-pro-max/buy/unknown", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTrackClickEndpoint(t *testing.T) {
	c := &mockCatalog{}
	c.On("TrackClick", "p1", "Amazon", mock.Anything).Return()
	router := newRouter(c, &stubAuth{}, nil)

	w := do(router, http.MethodPost, "/v1/clicks", strings.NewReader(`{"product_id":"p1","marketplace":"Amazon"}`), nil)
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = do(router, http.MethodPost, "/v1/clicks", strings.NewReader(`{"product_id":"p1"}`), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	c.AssertNumberOfCalls(t, "TrackClick", 1)
}

func TestHealth(t *testing.T) {
	router, _ := newDemoRouter(t)

	w := do(router, http.MethodGet, "/healthz", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","mode":"demo"}`, w.Body.String())
}

func TestAdminRequiresSession(t *testing.T) {
	router, _ := newDemoRouter(t)

	for _, headers := range []map[string]string{nil, {"Authorization": "Bearer revoked"}, {"Authorization": validToken}} {
		w := do(router, http.MethodGet, "/v1/admin/products", nil, headers)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}

	w := do(router, http.MethodGet, "/v1/admin/products", nil, authHeader)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminListSurfacesRawMessage(t *testing.T) {
	c := &mockCatalog{}
	c.On("ListAllProductsForAdmin").Return(nil, apperr.New("connection reset"))
	router := newRouter(c, &stubAuth{}, nil)

	w := do(router, http.MethodGet, "/v1/admin/products", nil, authHeader)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"connection reset"}`, w.Body.String())
}

func TestAdminNewDraft(t *testing.T) {
	router, _ := newDemoRouter(t)

	w := do(router, http.MethodGet, "/v1/admin/products/new", nil, authHeader)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"category":"Tecnologia"`)
	assert.Contains(t, w.Body.String(), `"active":true`)
	assert.Contains(t, w.Body.String(), `"starting_price":null`)
}

func TestAdminCreateProductDemo(t *testing.T) {
	router, repo := newDemoRouter(t)

	body := `{"id":"client-id","title":"Fone Bluetooth","starting_price":"199.90","created_at":"2024-01-01T00:00:00Z"}`
	w := do(router, http.MethodPost, "/v1/admin/products", strings.NewReader(body), authHeader)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"id":"new-id"}`, w.Body.String())

	products, err := repo.ListAllProductsForAdmin(context.Background())
	require.NoError(t, err)
	assert.Len(t, products, 3)
}

func TestAdminCreateProductValidation(t *testing.T) {
	router, _ := newDemoRouter(t)

	w := do(router, http.MethodPost, "/v1/admin/products", strings.NewReader(`{"slug":"x"}`), authHeader)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"title is required"}`, w.Body.String())
}

func TestAdminPatchProduct(t *testing.T) {
	c := &mockCatalog{}
	c.On("SaveProduct", mock.MatchedBy(func(p models.ProductPatch) bool {
		return p.Title != nil && *p.Title == "X" && p.Payload()["title"] == "X" && len(p.Payload()) == 1
	}), "existing-id").Return("existing-id", nil)
	router := newRouter(c, &stubAuth{}, nil)

	w := do(router, http.MethodPatch, "/v1/admin/products/existing-id",
		strings.NewReader(`{"id":"other","title":"X","created_at":"2024-01-01T00:00:00Z"}`), authHeader)
	assert.Equal(t, http.StatusOK, w.Code)
	c.AssertExpectations(t)

	w = do(router, http.MethodPatch, "/v1/admin/products/existing-id", strings.NewReader(`{"id":"other"}`), authHeader)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminPatchMissingProduct(t *testing.T) {
	c := &mockCatalog{}
	c.On("SaveProduct", mock.Anything, "missing").Return("", apperr.Normalize(gateway.ErrNoRows))
	router := newRouter(c, &stubAuth{}, nil)

	w := do(router, http.MethodPatch, "/v1/admin/products/missing", strings.NewReader(`{"title":"X"}`), authHeader)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminToggleAndDelete(t *testing.T) {
	c := &mockCatalog{}
	c.On("SetActive", "p1", false).Return(nil)
	c.On("DeleteProduct", "p1").Return(nil)
	c.On("DeleteProduct", "p2").Return(apperr.New("foreign key violation"))
	router := newRouter(c, &stubAuth{}, nil)

	w := do(router, http.MethodPost, "/v1/admin/products/p1/toggle", strings.NewReader(`{"active":false}`), authHeader)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"p1","active":false}`, w.Body.String())

	w = do(router, http.MethodPost, "/v1/admin/products/p1/toggle", strings.NewReader(`{}`), authHeader)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(router, http.MethodDelete, "/v1/admin/products/p1", nil, authHeader)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(router, http.MethodDelete, "/v1/admin/products/p2", nil, authHeader)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"foreign key violation"}`, w.Body.String())
	c.AssertExpectations(t)
}

func multipartBody(t *testing.T, names ...string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, name := range names {
		part, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte("data-" + name))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadAssetsDemoAndServe(t *testing.T) {
	router, _ := newDemoRouter(t)
	body, contentType := multipartBody(t, "a.png", "b.png")

	w := do(router, http.MethodPost, "/v1/admin/assets", body, map[string]string{
		"Authorization": "Bearer " + validToken,
		"Content-Type":  contentType,
	})

	require.Equal(t, http.StatusOK, w.Code)
	var resp handlers.UploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.URLs, 2)
	assert.True(t, strings.HasSuffix(resp.URLs[0], "-a.png"))

	w = do(router, http.MethodGet, resp.URLs[1], nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "data-b.png", w.Body.String())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	w = do(router, http.MethodGet, "/assets/ephemeral/unknown.png", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUploadAssetsWithSpacesServeBack(t *testing.T) {
	router, _ := newDemoRouter(t)
	body, contentType := multipartBody(t, "my photo.png")

	w := do(router, http.MethodPost, "/v1/admin/assets", body, map[string]string{
		"Authorization": "Bearer " + validToken,
		"Content-Type":  contentType,
	})

	require.Equal(t, http.StatusOK, w.Code)
	var resp handlers.UploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.URLs, 1)
	assert.True(t, strings.HasSuffix(resp.URLs[0], "-my%20photo.png"), resp.URLs[0])

	w = do(router, http.MethodGet, resp.URLs[0], nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "data-my photo.png", w.Body.String())
}

func TestUploadAssetsPartialFailure(t *testing.T) {
	c := &mockCatalog{}
	c.On("UploadAsset", "a.png").Return("https://cdn.test/a.png", nil)
	c.On("UploadAsset", "b.png").Return("", apperr.New("quota exceeded"))
	router := newRouter(c, &stubAuth{}, nil)
	body, contentType := multipartBody(t, "a.png", "b.png")

	w := do(router, http.MethodPost, "/v1/admin/assets", body, map[string]string{
		"Authorization": "Bearer " + validToken,
		"Content-Type":  contentType,
	})

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.JSONEq(t, `{"urls":["https://cdn.test/a.png"],"error":"quota exceeded"}`, w.Body.String())
}

func TestUploadAssetsRequiresFiles(t *testing.T) {
	router, _ := newDemoRouter(t)
	body, contentType := multipartBody(t)

	w := do(router, http.MethodPost, "/v1/admin/assets", body, map[string]string{
		"Authorization": "Bearer " + validToken,
		"Content-Type":  contentType,
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthFlow(t *testing.T) {
	auth := &stubAuth{}
	router := newRouter(&mockCatalog{}, auth, nil)

	w := do(router, http.MethodPost, "/v1/auth/login", strings.NewReader(`{"email":"admin@store.com","password":"wrong"}`), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(router, http.MethodPost, "/v1/auth/login", strings.NewReader(`{"email":"not-an-email","password":"x"}`), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(router, http.MethodPost, "/v1/auth/login", strings.NewReader(`{"email":"admin@store.com","password":"s3cret"}`), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), validToken)

	w = do(router, http.MethodGet, "/v1/auth/session", nil, authHeader)
	assert.Contains(t, w.Body.String(), `"authenticated":true`)

	w = do(router, http.MethodGet, "/v1/auth/session", nil, nil)
	assert.JSONEq(t, `{"authenticated":false}`, w.Body.String())

	w = do(router, http.MethodPost, "/v1/auth/logout", nil, authHeader)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{validToken}, auth.signedOut)
}

func TestLoginInDemoMode(t *testing.T) {
	gw := gateway.Compose(false, nil, nil, nil)
	router := newRouter(&mockCatalog{}, gw.Auth(), nil)

	w := do(router, http.MethodPost, "/v1/auth/login", strings.NewReader(`{"email":"admin@store.com","password":"s3cret"}`), nil)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAssetBackendFailure(t *testing.T) {
	c := &mockCatalog{}
	c.On("OpenAsset", "images/1-a.png").Return(nil, apperr.New("gridfs unavailable"))
	router := newRouter(c, &stubAuth{}, nil)

	w := do(router, http.MethodGet, "/assets/images/1-a.png", nil, nil)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.JSONEq(t, `{"error":"gridfs unavailable"}`, w.Body.String())
}
