package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"catalog-storefront/internal/cache"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned by SignIn for an unknown email or a
// wrong password.
var ErrInvalidCredentials = errors.New("invalid email or password")

const revokedPrefix = "revoked:"

// User is the authenticated principal.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is either LoggedIn or LoggedOut.
type Session interface {
	isSession()
	Authenticated() bool
}

// LoggedIn carries the signed-in user and the bearer token proving it.
type LoggedIn struct {
	User      User      `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LoggedOut is the absence of a session.
type LoggedOut struct{}

func (LoggedIn) isSession() {}
func (LoggedIn) Authenticated() bool { return true }
func (LoggedOut) isSession() {}
func (LoggedOut) Authenticated() bool { return false }

// SessionEventKind names a session transition.
type SessionEventKind string

const (
	SignedIn  SessionEventKind = "signed_in"
	SignedOut SessionEventKind = "signed_out"
)

// SessionEvent is published on every sign-in and sign-out.
type SessionEvent struct {
	Kind    SessionEventKind
	Session Session
}

// Auth is the session capability of the gateway.
type Auth interface {
	// Session decodes a bearer token. Anything invalid is LoggedOut.
	Session(ctx context.Context, token string) Session
	SignIn(ctx context.Context, email, password string) (LoggedIn, error)
	SignOut(ctx context.Context, token string) error
	// Subscribe returns a channel of session events and a function that
	// releases it. The channel is closed on release.
	Subscribe() (<-chan SessionEvent, func())
}

type userRow struct {
	ID           string `bson:"_id"`
	Email        string `bson:"email"`
	PasswordHash string `bson:"password_hash"`
}

type sessionClaims struct {
	Email string `json:"email"`
	jwt.StandardClaims
}

type tokenAuth struct {
	users   Table
	secret  []byte
	ttl     time.Duration
	revoked *cache.Cache
	hub     *hub
	now     func() time.Time
}

// ErrNoSigningSecret is returned by SignIn when the token auth was built
// without a secret. Such an auth never accepts a token either.
var ErrNoSigningSecret = errors.New("session signing secret is not set")

// NewTokenAuth authenticates against the users table and issues HS256
// tokens valid for ttl. Revoked token ids are remembered in revoked.
func NewTokenAuth(users Table, secret string, ttl time.Duration, revoked *cache.Cache) Auth {
	return &tokenAuth{
		users:   users,
		secret:  []byte(secret),
		ttl:     ttl,
		revoked: revoked,
		hub:     newHub(),
		now:     time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (a *tokenAuth) SignIn(ctx context.Context, email, password string) (LoggedIn, error) {
	if len(a.secret) == 0 {
		return LoggedIn{}, ErrNoSigningSecret
	}
	var row userRow
	err := a.users.SelectOne(ctx, bson.M{"email": normalizeEmail(email)}, &row)
	if errors.Is(err, ErrNoRows) {
		return LoggedIn{}, ErrInvalidCredentials
	}
	if err != nil {
		return LoggedIn{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(row.PasswordHash), []byte(password)) != nil {
		return LoggedIn{}, ErrInvalidCredentials
	}

	now := a.now()
	expires := now.Add(a.ttl)
	claims := sessionClaims{
		Email: row.Email,
		StandardClaims: jwt.StandardClaims{
			Id:        uuid.NewString(),
			Subject:   row.ID,
			IssuedAt:  now.Unix(),
			ExpiresAt: expires.Unix(),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return LoggedIn{}, fmt.Errorf("sign session token: %w", err)
	}

	session := LoggedIn{
		User:      User{ID: row.ID, Email: row.Email},
		Token:     token,
		ExpiresAt: time.Unix(expires.Unix(), 0).UTC(),
	}
	a.hub.publish(SessionEvent{Kind: SignedIn, Session: session})
	return session, nil
}

func (a *tokenAuth) parse(token string) (*sessionClaims, bool) {
	if len(a.secret) == 0 {
		return nil, false
	}
	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, false
	}
	return claims, true
}

func (a *tokenAuth) Session(_ context.Context, token string) Session {
	if token == "" {
		return LoggedOut{}
	}
	claims, ok := a.parse(token)
	if !ok {
		return LoggedOut{}
	}
	if _, revoked := a.revoked.GetValue(revokedPrefix + claims.Id); revoked {
		return LoggedOut{}
	}
	return LoggedIn{
		User:      User{ID: claims.Subject, Email: claims.Email},
		Token:     token,
		ExpiresAt: time.Unix(claims.ExpiresAt, 0).UTC(),
	}
}

func (a *tokenAuth) SignOut(_ context.Context, token string) error {
	claims, ok := a.parse(token)
	if !ok {
		return nil
	}
	remaining := time.Unix(claims.ExpiresAt, 0).Sub(a.now())
	if remaining > 0 {
		a.revoked.Set(revokedPrefix+claims.Id, true, remaining)
	}
	a.hub.publish(SessionEvent{
		Kind:    SignedOut,
		Session: LoggedIn{User: User{ID: claims.Subject, Email: claims.Email}, Token: token},
	})
	return nil
}

func (a *tokenAuth) Subscribe() (<-chan SessionEvent, func()) {
	return a.hub.subscribe()
}

// EnsureUser creates the user with the given password when no row with
// that email exists yet. Existing users are left alone.
func EnsureUser(ctx context.Context, users Table, email, password string) (bool, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return false, nil
	}

	var existing userRow
	err := users.SelectOne(ctx, bson.M{"email": email}, &existing)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrNoRows) {
		return false, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return false, err
	}
	if _, err := users.Insert(ctx, bson.M{"email": email, "password_hash": string(hash)}); err != nil {
		return false, err
	}
	return true, nil
}

const subscriberBuffer = 16

// hub fans session events out to subscribers. A slow subscriber misses
// events instead of blocking sign-in.
type hub struct {
	mu   sync.Mutex
	subs map[int]chan SessionEvent
	next int
}

func newHub() *hub {
	return &hub{subs: make(map[int]chan SessionEvent)}
}

func (h *hub) subscribe() (<-chan SessionEvent, func()) {
	h.mu.Lock()
	id := h.next
	h.next++
	ch := make(chan SessionEvent, subscriberBuffer)
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *hub) publish(ev SessionEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (h *hub) size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
