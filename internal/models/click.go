package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// ClickEvent records one activation of an outbound buy link. Events are
// append-only.
type ClickEvent struct {
	ID              string    `json:"id,omitempty" bson:"_id,omitempty"`
	ProductID       string    `json:"product_id" bson:"product_id"`
	MarketplaceName string    `json:"marketplace" bson:"marketplace"`
	UserAgent       string    `json:"user_agent" bson:"user_agent"`
	CreatedAt       time.Time `json:"created_at" bson:"created_at"`
}

// Row is the insert document. id and created_at are assigned by the store.
func (e ClickEvent) Row() bson.M {
	return bson.M{
		"product_id":  e.ProductID,
		"marketplace": e.MarketplaceName,
		"user_agent":  e.UserAgent,
	}
}
