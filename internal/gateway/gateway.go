// Package gateway is the single access point to the hosted backend: row
// tables, object storage and auth sessions. When the backend is not
// configured every capability is a placeholder that fails with
// ErrNotConfigured, so callers never need nil checks.
package gateway

import (
	"context"

	"catalog-storefront/internal/cache"
	"catalog-storefront/internal/config"
	"catalog-storefront/internal/database"
	"catalog-storefront/internal/logger"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
)

// Table names.
const (
	TableProducts = "products"
	TableClicks   = "clicks"
	TableUsers    = "users"
)

// Gateway holds the backend capabilities. It is read-only after
// construction and safe for concurrent use.
type Gateway struct {
	configured bool
	client     *mongo.Client
	tables     map[string]Table
	objects    ObjectStore
	auth       Auth
}

// New builds the gateway from configuration. It never fails: a missing
// configuration, or a client that cannot be constructed, yields an
// unconfigured gateway.
func New(ctx context.Context, cfg *config.Config, store *cache.Cache, log *logrus.Logger) *Gateway {
	if log == nil {
		log = logger.Discard()
	}
	if !cfg.Configured() {
		log.Warn("catalog backend not configured, running in demo mode")
		return placeholder()
	}

	client, err := database.Connect(ctx, database.Settings{
		URI:      cfg.Endpoint,
		User:     cfg.User,
		Key:      cfg.Key,
		Database: cfg.MongoDB,
	})
	if err != nil {
		log.WithError(err).Warn("could not create backend client, running in demo mode")
		return placeholder()
	}

	db := client.Database(cfg.MongoDB)
	users := NewMongoTable(db.Collection(TableUsers), false)
	tables := map[string]Table{
		TableProducts: NewMongoTable(db.Collection(TableProducts), true),
		TableClicks:   NewMongoTable(db.Collection(TableClicks), false),
		TableUsers:    users,
	}

	objects := NewGridFSStore(db, cfg.PublicBaseURL)
	if cfg.CloudinaryURL != "" {
		cld, err := NewCloudinaryStore(cfg.CloudinaryURL)
		if err != nil {
			log.WithError(err).Warn("invalid CLOUDINARY_URL, storing assets in GridFS")
		} else {
			objects = cld
		}
	}

	g := Compose(true, tables, objects, NewTokenAuth(users, cfg.SessionSecret, cfg.SessionTTL, store))
	g.client = client
	log.WithField("database", cfg.MongoDB).Info("catalog backend configured")
	return g
}

func placeholder() *Gateway {
	return &Gateway{
		tables:  map[string]Table{},
		objects: placeholderObjects{},
		auth:    placeholderAuth{hub: newHub()},
	}
}

// Compose assembles a gateway from explicit capabilities. Missing pieces
// are replaced by placeholders.
func Compose(configured bool, tables map[string]Table, objects ObjectStore, auth Auth) *Gateway {
	g := placeholder()
	g.configured = configured
	for name, t := range tables {
		g.tables[name] = t
	}
	if objects != nil {
		g.objects = objects
	}
	if auth != nil {
		g.auth = auth
	}
	return g
}

// IsConfigured is fixed at construction.
func (g *Gateway) IsConfigured() bool {
	return g.configured
}

// Table returns the named table, or a placeholder when it is unknown or
// the gateway is unconfigured.
func (g *Gateway) Table(name string) Table {
	if t, ok := g.tables[name]; ok {
		return t
	}
	return placeholderTable{}
}

func (g *Gateway) Objects() ObjectStore {
	return g.objects
}

func (g *Gateway) Auth() Auth {
	return g.auth
}

// Ping checks the backend connection. Unconfigured gateways report
// ErrNotConfigured.
func (g *Gateway) Ping(ctx context.Context) error {
	if g.client == nil {
		return ErrNotConfigured
	}
	return database.Ping(ctx, g.client)
}

// Close disconnects the backend client, if any.
func (g *Gateway) Close(ctx context.Context) error {
	if g.client == nil {
		return nil
	}
	return g.client.Disconnect(ctx)
}
