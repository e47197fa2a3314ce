package catalog

import (
	"sync"
	"time"

	"catalog-storefront/internal/models"
)

// DemoProductID is returned by SaveProduct in demo mode when no id is given.
const DemoProductID = "new-id"

var (
	demoOnce     sync.Once
	demoProducts []models.Product
)

// DemoProducts returns a private copy of the demo catalog, newest first.
// The underlying set is built once and never changes.
func DemoProducts() []models.Product {
	demoOnce.Do(func() {
		demoProducts = buildDemo(time.Now().UTC())
	})
	return models.CloneAll(demoProducts)
}

func buildDemo(now time.Time) []models.Product {
	at := func(offset time.Duration) *time.Time {
		t := now.Add(-offset)
		return &t
	}

	return []models.Product{
		{
			ID:            "mock-1",
			Slug:          "iphone-15-pro-max",
			Title:         "iPhone 15 Pro Max - Titanium",
			Description:   "O chip A17 Pro é uma fera. A câmera teleobjetiva de 5x é impressionante. O design em titânio é leve e resistente.",
			Category:      "Tecnologia",
			Tags:          []string{"apple", "iphone", "setup"},
			StartingPrice: models.MustPrice("9499.00"),
			Active:        true,
			CoverImageURL: "https://images.unsplash.com/photo-1696446701796-da61225697cc?auto=format&fit=crop&q=80&w=800",
			Gallery:       []models.GalleryImage{},
			Videos:        []models.Video{},
			BuyOptions: []models.BuyOption{
				{ID: "b1", MarketplaceName: "Amazon", Label: "Ver na Amazon", URL: "https://amazon.com.br", Priority: 1},
				{ID: "b2", MarketplaceName: "Mercado Livre", Label: "Melhor Preço ML", URL: "https://mercadolivre.com.br", Priority: 2},
			},
			Stats: &models.Stats{
				TotalClicks:         154,
				ClicksByMarketplace: map[string]int64{"Amazon": 90, "Mercado Livre": 64},
			},
			CreatedAt: at(0),
		},
		{
			ID:            "mock-2",
			Slug:          "mechanical-keyboard-rgb",
			Title:         "Teclado Mecânico Custom RGB",
			Description:   "Switches Gateron Yellow pré-lubrificados, Keycaps PBT Double-shot e conexão Tri-mode (Wireless/BT/Cabo).",
			Category:      "Periféricos",
			Tags:          []string{"keyboard", "rgb", "gaming"},
			StartingPrice: models.MustPrice("450.00"),
			Active:        true,
			CoverImageURL: "https://images.unsplash.com/photo-1595225476474-87563907a212?auto=format&fit=crop&q=80&w=800",
			Gallery:       []models.GalleryImage{},
			Videos:        []models.Video{},
			BuyOptions: []models.BuyOption{
				{ID: "b3", MarketplaceName: "Shopee", Label: "Comprar na Shopee", URL: "https://shopee.com.br", Priority: 1},
			},
			Stats: &models.Stats{
				TotalClicks:         89,
				ClicksByMarketplace: map[string]int64{"Shopee": 89},
			},
			CreatedAt: at(time.Hour),
		},
		{
			ID:            "mock-3",
			Slug:          "monitor-ultrawide-34",
			Title:         `Monitor Ultrawide 34" Curvo 144Hz`,
			Description:   "Produtividade e imersão total com resolução WQHD e 99% sRGB.",
			Category:      "Tecnologia",
			Tags:          []string{"monitor", "productivity", "setup"},
			StartingPrice: models.MustPrice("2890.00"),
			Active:        true,
			CoverImageURL: "https://images.unsplash.com/photo-1527443224154-c4a3942d3acf?auto=format&fit=crop&q=80&w=800",
			Gallery:       []models.GalleryImage{},
			Videos:        []models.Video{},
			BuyOptions: []models.BuyOption{
				{ID: "b4", MarketplaceName: "Amazon", Label: "Oferta Amazon", URL: "https://amazon.com.br", Priority: 1},
			},
			Stats: &models.Stats{
				TotalClicks:         42,
				ClicksByMarketplace: map[string]int64{"Amazon": 42},
			},
			CreatedAt: at(2 * time.Hour),
		},
	}
}
