// Package catalog exposes typed, normalized operations over products and
// click events. Every failure it returns is an *apperr.Error.
package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"catalog-storefront/internal/apperr"
	"catalog-storefront/internal/cache"
	"catalog-storefront/internal/gateway"
	"catalog-storefront/internal/logger"
	"catalog-storefront/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
)

const (
	// EphemeralPrefix marks demo-mode uploads held in process memory.
	EphemeralPrefix = "ephemeral/"
	imagesPrefix    = "images/"
)

// ErrAssetNotFound is returned by OpenAsset for unknown or expired keys.
var ErrAssetNotFound = apperr.New("asset not found")

var fieldKeyReplacer = strings.NewReplacer(".", "_", "$", "_")

type ProductRepository struct {
	gw           *gateway.Gateway
	store        *cache.Cache
	ephemeralTTL time.Duration
	log          *logrus.Logger
	now          func() time.Time
}

// NewProductRepository wires the repository to the gateway. store holds
// demo-mode uploads for ephemeralTTL.
func NewProductRepository(gw *gateway.Gateway, store *cache.Cache, ephemeralTTL time.Duration, log *logrus.Logger) *ProductRepository {
	if log == nil {
		log = logger.Discard()
	}
	return &ProductRepository{
		gw:           gw,
		store:        store,
		ephemeralTTL: ephemeralTTL,
		log:          log,
		now:          time.Now,
	}
}

// IsDemo reports whether the repository serves the demo dataset.
func (r *ProductRepository) IsDemo() bool {
	return !r.gw.IsConfigured()
}

func (r *ProductRepository) products() gateway.Table {
	return r.gw.Table(gateway.TableProducts)
}

func (r *ProductRepository) fail(op string, err error) error {
	normalized := apperr.Normalize(err)
	r.log.WithField("op", op).WithError(normalized).Error("catalog operation failed")
	return normalized
}

// ListActiveProducts returns the active products, newest first.
// Transport failures fall back to the demo dataset.
func (r *ProductRepository) ListActiveProducts(ctx context.Context) ([]models.Product, error) {
	if r.IsDemo() {
		return DemoProducts(), nil
	}

	products := []models.Product{}
	q := gateway.Query{Eq: bson.M{"active": true}, OrderBy: "created_at", Desc: true}
	if err := r.products().Select(ctx, q, &products); err != nil {
		if apperr.IsTransport(err) {
			r.log.WithError(err).Warn("catalog backend unreachable, serving demo products")
			return DemoProducts(), nil
		}
		return nil, r.fail("list_active", err)
	}
	return products, nil
}

// ListAllProductsForAdmin returns every product, active or not. Failures
// are never masked.
func (r *ProductRepository) ListAllProductsForAdmin(ctx context.Context) ([]models.Product, error) {
	if r.IsDemo() {
		return DemoProducts(), nil
	}

	products := []models.Product{}
	q := gateway.Query{OrderBy: "created_at", Desc: true}
	if err := r.products().Select(ctx, q, &products); err != nil {
		return nil, r.fail("list_all", err)
	}
	return products, nil
}

// FindActiveBySlug resolves a deep link. The boolean is false when no active
// product has that slug.
func (r *ProductRepository) FindActiveBySlug(ctx context.Context, slug string) (models.Product, bool, error) {
	products, err := r.ListActiveProducts(ctx)
	if err != nil {
		return models.Product{}, false, err
	}
	for _, p := range products {
		if p.Slug == slug {
			return p, true, nil
		}
	}
	return models.Product{}, false, nil
}

// SaveProduct updates the product with the given id, or inserts a new one
// when id is empty, and returns the product id. Only the fields present in
// the patch are written.
func (r *ProductRepository) SaveProduct(ctx context.Context, patch models.ProductPatch, id string) (string, error) {
	if r.IsDemo() {
		r.log.Warn("demo mode: changes are not persisted")
		if id != "" {
			return id, nil
		}
		return DemoProductID, nil
	}

	payload := patch.Payload()
	if id != "" {
		savedID, err := r.products().Update(ctx, id, payload)
		if err != nil {
			return "", r.fail("update", err)
		}
		return savedID, nil
	}

	newID, err := r.products().Insert(ctx, payload)
	if err != nil {
		return "", r.fail("insert", err)
	}
	return newID, nil
}

// SetActive toggles public visibility.
func (r *ProductRepository) SetActive(ctx context.Context, id string, active bool) error {
	_, err := r.SaveProduct(ctx, models.ProductPatch{Active: &active}, id)
	return err
}

// DeleteProduct removes a product. Deleting a missing product succeeds.
func (r *ProductRepository) DeleteProduct(ctx context.Context, id string) error {
	if r.IsDemo() {
		return nil
	}
	err := r.products().Delete(ctx, id)
	if err != nil && !errors.Is(err, gateway.ErrNoRows) {
		return r.fail("delete", err)
	}
	return nil
}

// TrackClick records an outbound click. It never fails: errors are logged
// and dropped.
func (r *ProductRepository) TrackClick(ctx context.Context, productID, marketplace, userAgent string) {
	entry := r.log.WithFields(logrus.Fields{"product_id": productID, "marketplace": marketplace})
	if r.IsDemo() {
		entry.Info("demo click")
		return
	}

	event := models.ClickEvent{ProductID: productID, MarketplaceName: marketplace, UserAgent: userAgent}
	if _, err := r.gw.Table(gateway.TableClicks).Insert(ctx, event.Row()); err != nil {
		entry.WithError(apperr.Normalize(err)).Warn("click tracking failed")
		return
	}

	inc := bson.M{"stats.total_clicks": 1}
	if marketplace != "" {
		inc["stats.clicks_by_marketplace."+fieldKeyReplacer.Replace(marketplace)] = 1
	}
	if err := r.products().Increment(ctx, productID, inc); err != nil {
		entry.WithError(apperr.Normalize(err)).Warn("click counter update failed")
	}
}

// UploadAsset stores a file and returns its public URL. In demo mode the
// bytes live in process memory and the URL is relative to this server.
func (r *ProductRepository) UploadAsset(ctx context.Context, data []byte, fileName string) (string, error) {
	if r.IsDemo() {
		key := EphemeralPrefix + uuid.NewString() + "-" + fileName
		r.store.Set(key, data, r.ephemeralTTL)
		return gateway.AssetURL("", key), nil
	}

	key := fmt.Sprintf("%s%d-%s", imagesPrefix, r.now().UnixMilli(), fileName)
	url, err := r.gw.Objects().Upload(ctx, key, data)
	if err != nil {
		return "", r.fail("upload", err)
	}
	return url, nil
}

// OpenAsset returns the bytes behind an /assets/ URL, for stores that keep
// them locally.
func (r *ProductRepository) OpenAsset(ctx context.Context, key string) (io.ReadCloser, error) {
	if strings.HasPrefix(key, EphemeralPrefix) {
		value, ok := r.store.GetValue(key)
		if !ok {
			return nil, ErrAssetNotFound
		}
		data, _ := value.([]byte)
		return io.NopCloser(bytes.NewReader(data)), nil
	}

	reader, ok := r.gw.Objects().(gateway.ObjectReader)
	if !ok {
		return nil, ErrAssetNotFound
	}
	rc, err := reader.Open(ctx, key)
	if errors.Is(err, gateway.ErrNoRows) {
		return nil, ErrAssetNotFound
	}
	if err != nil {
		return nil, r.fail("open_asset", err)
	}
	return rc, nil
}
