package models

import (
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// VideoKind identifies how a product video is embedded.
type VideoKind string

const (
	VideoYouTube   VideoKind = "youtube"
	VideoTikTok    VideoKind = "tiktok"
	VideoInstagram VideoKind = "instagram"
	VideoRawFile   VideoKind = "mp4"
)

// GalleryImage is an additional product picture.
type GalleryImage struct {
	ID      string `json:"id" bson:"id"`
	URL     string `json:"url" bson:"url" validate:"required"`
	AltText string `json:"alt_text" bson:"alt_text"`
}

// Video is an embedded product video.
type Video struct {
	ID   string    `json:"id" bson:"id"`
	Kind VideoKind `json:"kind" bson:"kind" validate:"required,oneof=youtube tiktok instagram mp4"`
	URL  string    `json:"url" bson:"url"`
}

// EmbedURL returns the URL a player should load. YouTube watch and short
// links are turned into embed links; other kinds are played as-is.
func (v Video) EmbedURL() string {
	if v.Kind != VideoYouTube || v.URL == "" {
		return v.URL
	}
	var id string
	if _, after, found := strings.Cut(v.URL, "v="); found {
		id = after
	} else {
		parts := strings.Split(strings.TrimRight(v.URL, "/"), "/")
		id = parts[len(parts)-1]
	}
	if i := strings.IndexAny(id, "&?#"); i >= 0 {
		id = id[:i]
	}
	return "https://www.youtube.com/embed/" + id
}

// BuyOption links to the product on an external marketplace.
type BuyOption struct {
	ID              string `json:"id" bson:"id"`
	MarketplaceName string `json:"marketplace" bson:"marketplace" validate:"required"`
	Label           string `json:"label" bson:"label"`
	URL             string `json:"url" bson:"url" validate:"omitempty,url"`
	LogoURL         string `json:"logo_url,omitempty" bson:"logo_url,omitempty"`
	Priority        int    `json:"priority" bson:"priority" validate:"gte=1"`
}

// Stats holds click telemetry. It is derived data and never written by the
// editor.
type Stats struct {
	TotalClicks         int64            `json:"total_clicks" bson:"total_clicks"`
	ClicksByMarketplace map[string]int64 `json:"clicks_by_marketplace" bson:"clicks_by_marketplace"`
}

// Product is a catalog entry.
type Product struct {
	ID            string         `json:"id" bson:"_id,omitempty"`
	Slug          string         `json:"slug" bson:"slug" validate:"required"`
	Title         string         `json:"title" bson:"title" validate:"required"`
	Description   string         `json:"description" bson:"description"`
	Category      string         `json:"category" bson:"category"`
	Tags          []string       `json:"tags" bson:"tags"`
	StartingPrice Price          `json:"starting_price" bson:"starting_price"`
	Active        bool           `json:"active" bson:"active"`
	CoverImageURL string         `json:"cover_image_url" bson:"cover_image_url"`
	Gallery       []GalleryImage `json:"gallery" bson:"gallery" validate:"dive"`
	Videos        []Video        `json:"videos" bson:"videos" validate:"dive"`
	BuyOptions    []BuyOption    `json:"buy_options" bson:"buy_options" validate:"dive"`
	Stats         *Stats         `json:"stats,omitempty" bson:"stats,omitempty"`
	CreatedAt     *time.Time     `json:"created_at,omitempty" bson:"created_at,omitempty"`
	UpdatedAt     *time.Time     `json:"updated_at,omitempty" bson:"updated_at,omitempty"`
}

// TotalClicks returns the click count, treating missing stats as zero.
func (p Product) TotalClicks() int64 {
	if p.Stats == nil {
		return 0
	}
	return p.Stats.TotalClicks
}

// SortedBuyOptions returns the buy options in ascending priority. Equal
// priorities keep their stored order. The product is not modified.
func (p Product) SortedBuyOptions() []BuyOption {
	out := make([]BuyOption, len(p.BuyOptions))
	copy(out, p.BuyOptions)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority < out[j].Priority
	})
	return out
}

// FindBuyOption looks a buy option up by its id.
func (p Product) FindBuyOption(id string) (BuyOption, bool) {
	for _, opt := range p.BuyOptions {
		if opt.ID == id {
			return opt, true
		}
	}
	return BuyOption{}, false
}

// Clone returns a deep copy so callers can mutate the result freely.
func (p Product) Clone() Product {
	out := p
	if p.Tags != nil {
		out.Tags = append(make([]string, 0, len(p.Tags)), p.Tags...)
	}
	if p.Gallery != nil {
		out.Gallery = append(make([]GalleryImage, 0, len(p.Gallery)), p.Gallery...)
	}
	if p.Videos != nil {
		out.Videos = append(make([]Video, 0, len(p.Videos)), p.Videos...)
	}
	if p.BuyOptions != nil {
		out.BuyOptions = append(make([]BuyOption, 0, len(p.BuyOptions)), p.BuyOptions...)
	}
	if p.Stats != nil {
		stats := Stats{TotalClicks: p.Stats.TotalClicks}
		if p.Stats.ClicksByMarketplace != nil {
			stats.ClicksByMarketplace = make(map[string]int64, len(p.Stats.ClicksByMarketplace))
			for k, v := range p.Stats.ClicksByMarketplace {
				stats.ClicksByMarketplace[k] = v
			}
		}
		out.Stats = &stats
	}
	if p.CreatedAt != nil {
		t := *p.CreatedAt
		out.CreatedAt = &t
	}
	if p.UpdatedAt != nil {
		t := *p.UpdatedAt
		out.UpdatedAt = &t
	}
	return out
}

// CloneAll deep-copies a product list.
func CloneAll(products []Product) []Product {
	out := make([]Product, len(products))
	for i, p := range products {
		out[i] = p.Clone()
	}
	return out
}

// ProductPatch holds the updatable fields of a product.
// Nil fields are left untouched on update. ID, CreatedAt and UpdatedAt may
// be present when the patch was built from a full product, but they are
// server-owned and never reach the write payload.
type ProductPatch struct {
	ID            *string         `json:"id,omitempty"`
	Slug          *string         `json:"slug,omitempty"`
	Title         *string         `json:"title,omitempty"`
	Description   *string         `json:"description,omitempty"`
	Category      *string         `json:"category,omitempty"`
	Tags          *[]string       `json:"tags,omitempty"`
	StartingPrice *Price          `json:"starting_price,omitempty"`
	Active        *bool           `json:"active,omitempty"`
	CoverImageURL *string         `json:"cover_image_url,omitempty"`
	Gallery       *[]GalleryImage `json:"gallery,omitempty"`
	Videos        *[]Video        `json:"videos,omitempty"`
	BuyOptions    *[]BuyOption    `json:"buy_options,omitempty"`
	CreatedAt     *time.Time      `json:"created_at,omitempty"`
	UpdatedAt     *time.Time      `json:"updated_at,omitempty"`
}

// protectedFields are assigned by the backend and stripped from every write.
var protectedFields = []string{"_id", "id", "created_at", "updated_at", "stats"}

// PatchFromProduct builds a patch that sets every editable field of p.
func PatchFromProduct(p Product) ProductPatch {
	p = p.Clone()
	patch := ProductPatch{
		Slug:          &p.Slug,
		Title:         &p.Title,
		Description:   &p.Description,
		Category:      &p.Category,
		Tags:          nonNil(&p.Tags),
		StartingPrice: &p.StartingPrice,
		Active:        &p.Active,
		CoverImageURL: &p.CoverImageURL,
		Gallery:       nonNil(&p.Gallery),
		Videos:        nonNil(&p.Videos),
		BuyOptions:    nonNil(&p.BuyOptions),
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
	if p.ID != "" {
		patch.ID = &p.ID
	}
	return patch
}

func nonNil[T any](s *[]T) *[]T {
	if *s == nil {
		*s = []T{}
	}
	return s
}

// IsEmpty reports whether the patch changes no editable field.
func (p ProductPatch) IsEmpty() bool {
	return len(p.Payload()) == 0
}

// Payload returns the document sent to the backend. Server-owned fields are
// never included.
func (p ProductPatch) Payload() bson.M {
	payload := bson.M{}
	if p.Slug != nil {
		payload["slug"] = *p.Slug
	}
	if p.Title != nil {
		payload["title"] = *p.Title
	}
	if p.Description != nil {
		payload["description"] = *p.Description
	}
	if p.Category != nil {
		payload["category"] = *p.Category
	}
	if p.Tags != nil {
		payload["tags"] = *p.Tags
	}
	if p.StartingPrice != nil {
		payload["starting_price"] = *p.StartingPrice
	}
	if p.Active != nil {
		payload["active"] = *p.Active
	}
	if p.CoverImageURL != nil {
		payload["cover_image_url"] = *p.CoverImageURL
	}
	if p.Gallery != nil {
		payload["gallery"] = *p.Gallery
	}
	if p.Videos != nil {
		payload["videos"] = *p.Videos
	}
	if p.BuyOptions != nil {
		payload["buy_options"] = *p.BuyOptions
	}
	SanitizePayload(payload)
	return payload
}

// SanitizePayload removes server-owned keys from a write document.
func SanitizePayload(payload bson.M) {
	for _, field := range protectedFields {
		delete(payload, field)
	}
}

// Apply copies the non-nil fields of the patch onto p, replacing each field
// as a whole.
func (p ProductPatch) Apply(dst *Product) {
	if p.Slug != nil {
		dst.Slug = *p.Slug
	}
	if p.Title != nil {
		dst.Title = *p.Title
	}
	if p.Description != nil {
		dst.Description = *p.Description
	}
	if p.Category != nil {
		dst.Category = *p.Category
	}
	if p.Tags != nil {
		dst.Tags = append([]string{}, (*p.Tags)...)
	}
	if p.StartingPrice != nil {
		dst.StartingPrice = *p.StartingPrice
	}
	if p.Active != nil {
		dst.Active = *p.Active
	}
	if p.CoverImageURL != nil {
		dst.CoverImageURL = *p.CoverImageURL
	}
	if p.Gallery != nil {
		dst.Gallery = append([]GalleryImage{}, (*p.Gallery)...)
	}
	if p.Videos != nil {
		dst.Videos = append([]Video{}, (*p.Videos)...)
	}
	if p.BuyOptions != nil {
		dst.BuyOptions = append([]BuyOption{}, (*p.BuyOptions)...)
	}
}
