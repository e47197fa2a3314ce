package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	connectTimeout         = 10 * time.Second
	serverSelectionTimeout = 5 * time.Second
)

// Settings describes how to reach the catalog database.
type Settings struct {
	URI      string
	User     string
	Key      string
	Database string
}

// ClientOptions builds the driver options. The access key is used as the
// credential password unless the URI already carries credentials.
func ClientOptions(s Settings) *options.ClientOptions {
	opts := options.Client().
		ApplyURI(s.URI).
		SetConnectTimeout(connectTimeout).
		SetServerSelectionTimeout(serverSelectionTimeout)

	if opts.Auth == nil && s.Key != "" {
		opts.SetAuth(options.Credential{
			Username:   s.User,
			Password:   s.Key,
			AuthSource: s.Database,
		})
	}
	return opts
}

// Connect creates the client. The driver connects lazily, so a failing
// server shows up on first use rather than here.
func Connect(ctx context.Context, s Settings) (*mongo.Client, error) {
	opts := ClientOptions(s)
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mongo options: %w", err)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	return client, nil
}

// Ping checks that the primary is reachable.
func Ping(ctx context.Context, client *mongo.Client) error {
	ctx, cancel := context.WithTimeout(ctx, serverSelectionTimeout)
	defer cancel()
	return client.Ping(ctx, readpref.Primary())
}
