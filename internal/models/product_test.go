package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestSortedBuyOptionsAscendingPriority(t *testing.T) {
	p := Product{BuyOptions: []BuyOption{
		{ID: "c", MarketplaceName: "Shopee", Priority: 3},
		{ID: "a", MarketplaceName: "Amazon", Priority: 1},
		{ID: "b2", MarketplaceName: "Magalu", Priority: 2},
		{ID: "b1", MarketplaceName: "Mercado Livre", Priority: 2},
	}}

	sorted := p.SortedBuyOptions()

	ids := make([]string, len(sorted))
	for i, opt := range sorted {
		ids[i] = opt.ID
	}
	assert.Equal(t, []string{"a", "b2", "b1", "c"}, ids)
	assert.Equal(t, "c", p.BuyOptions[0].ID, "stored order must not change")
}

func TestSortedBuyOptionsEmpty(t *testing.T) {
	assert.Empty(t, Product{}.SortedBuyOptions())
}

func TestVideoEmbedURL(t *testing.T) {
	cases := []struct {
		video Video
		want  string
	}{
		{Video{Kind: VideoYouTube, URL: "https://www.youtube.com/watch?v=abc123&t=10"}, "https://www.youtube.com/embed/abc123"},
		{Video{Kind: VideoYouTube, URL: "https://youtu.be/xyz789"}, "https://www.youtube.com/embed/xyz789"},
		{Video{Kind: VideoRawFile, URL: "https://cdn.example.org/demo.mp4"}, "https://cdn.example.org/demo.mp4"},
		{Video{Kind: VideoTikTok, URL: "https://www.tiktok.com/@store/video/1"}, "https://www.tiktok.com/@store/video/1"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.video.EmbedURL())
	}
}

func TestCloneIsDeep(t *testing.T) {
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	original := Product{
		Tags:       []string{"apple"},
		BuyOptions: []BuyOption{{ID: "b1", Priority: 1}},
		Stats:      &Stats{TotalClicks: 1, ClicksByMarketplace: map[string]int64{"Amazon": 1}},
		CreatedAt:  &created,
	}

	clone := original.Clone()
	clone.Tags[0] = "changed"
	clone.BuyOptions[0].Priority = 9
	clone.Stats.ClicksByMarketplace["Amazon"] = 99
	*clone.CreatedAt = created.Add(time.Hour)

	assert.Equal(t, "apple", original.Tags[0])
	assert.Equal(t, 1, original.BuyOptions[0].Priority)
	assert.Equal(t, int64(1), original.Stats.ClicksByMarketplace["Amazon"])
	assert.Equal(t, created, *original.CreatedAt)
}

func TestPatchPayloadNeverCarriesServerFields(t *testing.T) {
	id := "existing-id"
	now := time.Now()
	title := "X"
	patch := ProductPatch{ID: &id, Title: &title, CreatedAt: &now, UpdatedAt: &now}

	payload := patch.Payload()

	assert.Equal(t, bson.M{"title": "X"}, payload)
	for _, key := range []string{"_id", "id", "created_at", "updated_at"} {
		assert.NotContains(t, payload, key)
	}
}

func TestPatchFromProductSetsEveryEditableField(t *testing.T) {
	created := time.Now()
	p := Product{ID: "abc", Slug: "s", Title: "T", Active: true, CreatedAt: &created}

	patch := PatchFromProduct(p)
	payload := patch.Payload()

	assert.Equal(t, "abc", *patch.ID)
	assert.Len(t, payload, 11)
	assert.Equal(t, []string{}, payload["tags"])
	assert.Equal(t, true, payload["active"])
	assert.False(t, patch.IsEmpty())
	assert.True(t, ProductPatch{ID: patch.ID}.IsEmpty())
}

func TestPatchApplyReplacesWholeFields(t *testing.T) {
	p := Product{Title: "old", Tags: []string{"a", "b"}}
	tags := []string{"c"}
	title := "new"

	ProductPatch{Title: &title, Tags: &tags}.Apply(&p)
	tags[0] = "mutated"

	assert.Equal(t, "new", p.Title)
	assert.Equal(t, []string{"c"}, p.Tags)
}

func TestPriceEncoding(t *testing.T) {
	type row struct {
		Price Price `json:"price" bson:"price"`
	}

	data, err := json.Marshal(row{Price: MustPrice("9499.00")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"price":"9499"}`, string(data))

	data, err = json.Marshal(row{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"price":null}`, string(data))

	raw, err := bson.Marshal(row{Price: MustPrice("450.50")})
	require.NoError(t, err)
	var decoded row
	require.NoError(t, bson.Unmarshal(raw, &decoded))
	assert.Equal(t, "450.50", decoded.Price.String())

	raw, err = bson.Marshal(bson.M{"price": 2890.0})
	require.NoError(t, err)
	require.NoError(t, bson.Unmarshal(raw, &decoded))
	assert.Equal(t, "2890.00", decoded.Price.String())

	raw, err = bson.Marshal(bson.M{"price": nil})
	require.NoError(t, err)
	require.NoError(t, bson.Unmarshal(raw, &decoded))
	assert.False(t, decoded.Price.Valid)
}

func TestValidate(t *testing.T) {
	valid := Product{Slug: "teclado", Title: "Teclado"}
	assert.NoError(t, valid.Validate())

	missingTitle := Product{Slug: "teclado"}
	err := missingTitle.Validate()
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "title", vErr.Field)

	negative := Product{Slug: "s", Title: "t", StartingPrice: MustPrice("-1")}
	require.ErrorAs(t, negative.Validate(), &vErr)
	assert.Equal(t, "starting_price", vErr.Field)

	badLink := Product{Slug: "s", Title: "t", BuyOptions: []BuyOption{{MarketplaceName: "Amazon", URL: "not a url", Priority: 1}}}
	require.ErrorAs(t, badLink.Validate(), &vErr)
	assert.Equal(t, "url", vErr.Field)
}
