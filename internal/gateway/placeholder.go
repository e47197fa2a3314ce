package gateway

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
)

var (
	// ErrNotConfigured is returned by every capability of an unconfigured
	// gateway.
	ErrNotConfigured = errors.New("backend is not configured")
	// ErrNoRows means a single-row operation matched nothing.
	ErrNoRows = errors.New("no rows matched")
)

// placeholderTable lets code call table methods safely in demo mode.
type placeholderTable struct{}

func (placeholderTable) Select(context.Context, Query, any) error { return ErrNotConfigured }

func (placeholderTable) SelectOne(context.Context, bson.M, any) error { return ErrNotConfigured }

func (placeholderTable) Insert(context.Context, bson.M) (string, error) {
	return "", ErrNotConfigured
}

func (placeholderTable) Update(context.Context, string, bson.M) (string, error) {
	return "", ErrNotConfigured
}

func (placeholderTable) Increment(context.Context, string, bson.M) error { return ErrNotConfigured }

func (placeholderTable) Delete(context.Context, string) error { return ErrNotConfigured }

type placeholderObjects struct{}

func (placeholderObjects) Upload(context.Context, string, []byte) (string, error) {
	return "", ErrNotConfigured
}

// placeholderAuth never authenticates anyone.
type placeholderAuth struct {
	hub *hub
}

func (placeholderAuth) Session(context.Context, string) Session { return LoggedOut{} }

func (placeholderAuth) SignIn(context.Context, string, string) (LoggedIn, error) {
	return LoggedIn{}, ErrNotConfigured
}

func (placeholderAuth) SignOut(context.Context, string) error { return nil }

func (a placeholderAuth) Subscribe() (<-chan SessionEvent, func()) {
	return a.hub.subscribe()
}
