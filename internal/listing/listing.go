// Package listing turns the product collection into the view rendered by
// the public listing. It does no I/O.
package listing

import (
	"sort"
	"strings"
	"sync"

	"catalog-storefront/internal/models"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// AllCategories is the category sentinel that disables category filtering.
const AllCategories = "Todas"

// Sort is a listing order.
type Sort string

const (
	SortRecent  Sort = "recent"
	SortPopular Sort = "popular"
	SortAlpha   Sort = "alpha"
)

// ParseSort maps a query value to a Sort. Unknown values mean SortRecent.
func ParseSort(s string) Sort {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "popular":
		return SortPopular
	case "alpha", "alphabetical":
		return SortAlpha
	default:
		return SortRecent
	}
}

// Query holds the listing controls.
type Query struct {
	Text     string
	Category string
	Sort     Sort
	Slug     string
}

// View is everything the listing page needs.
type View struct {
	Products   []models.Product `json:"products"`
	Categories []string         `json:"categories"`
	Selected   *models.Product  `json:"selected,omitempty"`
}

var (
	collatorMu sync.Mutex
	collator   = collate.New(language.BrazilianPortuguese, collate.IgnoreCase)
)

func compareTitles(a, b string) int {
	collatorMu.Lock()
	defer collatorMu.Unlock()
	return collator.CompareString(a, b)
}

// Matches reports whether p passes the text and category filters.
func Matches(p models.Product, text, category string) bool {
	if category != "" && category != AllCategories && p.Category != category {
		return false
	}
	if text == "" {
		return true
	}
	needle := strings.ToLower(text)
	if strings.Contains(strings.ToLower(p.Title), needle) {
		return true
	}
	for _, tag := range p.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

// Apply filters and sorts products. The input slice is left untouched and
// ties keep their input order.
func Apply(products []models.Product, q Query) []models.Product {
	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		if Matches(p, q.Text, q.Category) {
			out = append(out, p)
		}
	}

	switch q.Sort {
	case SortPopular:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].TotalClicks() > out[j].TotalClicks()
		})
	case SortAlpha:
		sort.SliceStable(out, func(i, j int) bool {
			return compareTitles(out[i].Title, out[j].Title) < 0
		})
	default:
		sort.SliceStable(out, func(i, j int) bool {
			return newer(out[i], out[j])
		})
	}
	return out
}

// newer orders by created_at descending; a missing timestamp is the oldest.
func newer(a, b models.Product) bool {
	if a.CreatedAt == nil {
		return false
	}
	if b.CreatedAt == nil {
		return true
	}
	return a.CreatedAt.After(*b.CreatedAt)
}

// Categories returns AllCategories followed by every distinct category of
// products, the empty one included, in first-seen order.
func Categories(products []models.Product) []string {
	out := []string{AllCategories}
	seen := make(map[string]struct{}, len(products))
	for _, p := range products {
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		out = append(out, p.Category)
	}
	return out
}

// Build assembles the listing view. Categories come from the unfiltered
// collection; Selected is the product whose slug equals q.Slug, if any.
func Build(products []models.Product, q Query) View {
	view := View{
		Products:   Apply(products, q),
		Categories: Categories(products),
	}
	if q.Slug != "" {
		for i := range products {
			if products[i].Slug == q.Slug {
				selected := products[i].Clone()
				view.Selected = &selected
				break
			}
		}
	}
	return view
}
