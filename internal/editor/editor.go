// Package editor holds one in-progress product draft. It talks to the
// backend only when loading an existing product and when submitting.
package editor

import (
	"context"
	"errors"
	"strings"
	"sync"

	"catalog-storefront/internal/apperr"
	"catalog-storefront/internal/gateway"
	"catalog-storefront/internal/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"golang.org/x/sync/errgroup"
)

// DefaultCategory is the category of a new draft.
const DefaultCategory = "Tecnologia"

const (
	defaultMarketplace = "Shopee"
	defaultBuyLabel    = "Comprar na Shopee"
	defaultBuyLogo     = "https://upload.wikimedia.org/wikipedia/commons/4/4f/Shopee_logo.svg"
)

// ErrItemNotFound is returned when a list item id is not in the draft.
var ErrItemNotFound = errors.New("item not found in draft")

// Store is the part of the catalog repository the editor writes through.
type Store interface {
	SaveProduct(ctx context.Context, patch models.ProductPatch, id string) (string, error)
	UploadAsset(ctx context.Context, data []byte, fileName string) (string, error)
}

// File is one selected upload.
type File struct {
	Name string
	Data []byte
}

// Editor is safe for concurrent use; uploads append to the draft as they
// complete.
type Editor struct {
	store    Store
	products gateway.Table

	mu      sync.Mutex
	id      string
	draft   models.Product
	savedID string
}

// InitialDraft is the empty product a create form starts from.
func InitialDraft() models.Product {
	return models.Product{
		Category:      DefaultCategory,
		Tags:          []string{},
		StartingPrice: models.NoPrice(),
		Active:        true,
		Gallery:       []models.GalleryImage{},
		Videos:        []models.Video{},
		BuyOptions:    []models.BuyOption{},
	}
}

// New starts an editor in create mode. products is read directly when an
// existing product is loaded.
func New(store Store, products gateway.Table) *Editor {
	return &Editor{
		store:    store,
		products: products,
		draft:    InitialDraft(),
	}
}

// Load switches to edit mode for id and replaces the draft with the stored
// row. A missing row leaves the draft as it is and is not an error.
func (e *Editor) Load(ctx context.Context, id string) error {
	var p models.Product
	err := e.products.SelectOne(ctx, gateway.ByID(id), &p)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.id = id

	switch {
	case err == nil:
		e.draft = p
		return nil
	case errors.Is(err, gateway.ErrNoRows), errors.Is(err, gateway.ErrNotConfigured):
		return nil
	default:
		return apperr.Normalize(err)
	}
}

// ID is the product being edited; empty in create mode.
func (e *Editor) ID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.id
}

// SavedID is the id returned by the last successful Submit.
func (e *Editor) SavedID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.savedID
}

// Draft returns a copy of the current draft.
func (e *Editor) Draft() models.Product {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.draft.Clone()
}

func (e *Editor) update(fn func(d *models.Product)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.draft)
}

func (e *Editor) SetTitle(v string) { e.update(func(d *models.Product) { d.Title = v }) }
func (e *Editor) SetSlug(v string) { e.update(func(d *models.Product) { d.Slug = v }) }
func (e *Editor) SetDescription(v string) { e.update(func(d *models.Product) { d.Description = v }) }
func (e *Editor) SetCategory(v string) { e.update(func(d *models.Product) { d.Category = v }) }
func (e *Editor) SetActive(v bool) { e.update(func(d *models.Product) { d.Active = v }) }
func (e *Editor) SetCoverImage(url string) {
	e.update(func(d *models.Product) { d.CoverImageURL = url })
}

func (e *Editor) SetStartingPrice(p models.Price) {
	e.update(func(d *models.Product) { d.StartingPrice = p })
}

func (e *Editor) SetTags(tags []string) {
	tags = append([]string{}, tags...)
	e.update(func(d *models.Product) { d.Tags = tags })
}

// SetTagsInput parses a comma separated tag field. Blank entries are dropped.
func (e *Editor) SetTagsInput(input string) {
	tags := []string{}
	for _, t := range strings.Split(input, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	e.SetTags(tags)
}

// Apply replaces every field the patch sets. Server-owned fields are
// ignored.
func (e *Editor) Apply(patch models.ProductPatch) {
	e.update(func(d *models.Product) { patch.Apply(d) })
}

func (e *Editor) AddGalleryImage(url, altText string) models.GalleryImage {
	img := models.GalleryImage{ID: uuid.NewString(), URL: url, AltText: altText}
	e.update(func(d *models.Product) { d.Gallery = append(d.Gallery, img) })
	return img
}

func (e *Editor) ReplaceGalleryImage(img models.GalleryImage) error {
	return e.replace(func(d *models.Product) bool {
		return replaceByID(d.Gallery, img, func(g models.GalleryImage) string { return g.ID })
	})
}

// AddVideo appends an empty YouTube video.
func (e *Editor) AddVideo() models.Video {
	v := models.Video{ID: uuid.NewString(), Kind: models.VideoYouTube}
	e.update(func(d *models.Product) { d.Videos = append(d.Videos, v) })
	return v
}

func (e *Editor) ReplaceVideo(v models.Video) error {
	return e.replace(func(d *models.Product) bool {
		return replaceByID(d.Videos, v, func(x models.Video) string { return x.ID })
	})
}

// AddBuyOption appends a Shopee link placeholder ranked after the existing
// options.
func (e *Editor) AddBuyOption() models.BuyOption {
	var opt models.BuyOption
	e.update(func(d *models.Product) {
		opt = models.BuyOption{
			ID:              uuid.NewString(),
			MarketplaceName: defaultMarketplace,
			Label:           defaultBuyLabel,
			LogoURL:         defaultBuyLogo,
			Priority:        len(d.BuyOptions) + 1,
		}
		d.BuyOptions = append(d.BuyOptions, opt)
	})
	return opt
}

func (e *Editor) ReplaceBuyOption(opt models.BuyOption) error {
	return e.replace(func(d *models.Product) bool {
		return replaceByID(d.BuyOptions, opt, func(b models.BuyOption) string { return b.ID })
	})
}

func (e *Editor) replace(fn func(d *models.Product) bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !fn(&e.draft) {
		return ErrItemNotFound
	}
	return nil
}

func replaceByID[T any](items []T, item T, id func(T) string) bool {
	want := id(item)
	for i := range items {
		if id(items[i]) == want {
			items[i] = item
			return true
		}
	}
	return false
}

// UploadGallery uploads every file concurrently and appends each image as
// its upload completes. It returns the first failure once all uploads are
// done; images uploaded before or after it stay in the gallery.
func (e *Editor) UploadGallery(ctx context.Context, files []File) error {
	alt := e.Draft().Title

	var g errgroup.Group
	for _, f := range files {
		g.Go(func() error {
			url, err := e.store.UploadAsset(ctx, f.Data, f.Name)
			if err != nil {
				return err
			}
			e.AddGalleryImage(url, alt)
			return nil
		})
	}
	return g.Wait()
}

// UploadCover uploads the files and uses the first one, in selection order,
// that succeeded as the cover image.
func (e *Editor) UploadCover(ctx context.Context, files []File) error {
	urls := make([]string, len(files))

	var g errgroup.Group
	for i, f := range files {
		g.Go(func() error {
			url, err := e.store.UploadAsset(ctx, f.Data, f.Name)
			if err != nil {
				return err
			}
			urls[i] = url
			return nil
		})
	}
	err := g.Wait()

	for _, url := range urls {
		if url != "" {
			e.SetCoverImage(url)
			break
		}
	}
	return err
}

// Submit validates the draft and saves it. On failure the draft is left
// exactly as it was.
func (e *Editor) Submit(ctx context.Context) (string, error) {
	e.mu.Lock()
	draft := e.draft.Clone()
	id := e.id
	e.mu.Unlock()

	if draft.Slug == "" && draft.Title != "" {
		draft.Slug = slug.Make(draft.Title)
	}
	if err := draft.Validate(); err != nil {
		return "", apperr.Normalize(err)
	}

	patch := models.PatchFromProduct(draft)
	patch.ID, patch.CreatedAt, patch.UpdatedAt = nil, nil, nil

	savedID, err := e.store.SaveProduct(ctx, patch, id)
	if err != nil {
		return "", apperr.Normalize(err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.draft.Slug = draft.Slug
	e.savedID = savedID
	return savedID, nil
}
