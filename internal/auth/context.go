// internal/auth/context.go

// Package auth is the delegated auth collaborator: bearer-token
// verification plus an explicit auth-state subscription handle. The engine
// only consumes identities; the authentication protocol itself lives in the
// hosted provider.
package auth

import (
	"fmt"
	"strings"
	"sync"

	apperrors "inspection-notifications/internal/common/errors"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the verified caller.
type Identity struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

// IsAdmin reports whether the identity may use privileged operations.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == "admin"
}

// Subscription is an auth-state change handle. Unsubscribe is idempotent.
type Subscription interface {
	Unsubscribe()
}

// Context verifies callers and announces auth-state changes.
type Context interface {
	// Verify parses a bearer token into an identity. Any parse or
	// signature failure maps to NOT_AUTHENTICATED.
	Verify(token string) (*Identity, error)
	// Subscribe registers onChange for login/logout transitions; a nil
	// identity means logged out.
	Subscribe(onChange func(*Identity)) Subscription
}

type claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// JWTContext is the HS256 implementation of Context.
type JWTContext struct {
	secret []byte

	mu          sync.Mutex
	nextID      int
	subscribers map[int]func(*Identity)
}

func NewJWTContext(secret string) *JWTContext {
	return &JWTContext{
		secret:      []byte(secret),
		subscribers: make(map[int]func(*Identity)),
	}
}

// Verify implements Context.
func (j *JWTContext) Verify(token string) (*Identity, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return nil, apperrors.NewNotAuthenticatedError("empty bearer token")
	}

	parsed := &claims{}
	tok, err := jwt.ParseWithClaims(token, parsed, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return j.secret, nil
	})
	if err != nil || !tok.Valid {
		return nil, apperrors.NewNotAuthenticatedError("invalid token")
	}
	if parsed.UserID == "" {
		return nil, apperrors.NewNotAuthenticatedError("token has no user id")
	}

	return &Identity{UserID: parsed.UserID, Role: parsed.Role}, nil
}

// Subscribe implements Context.
func (j *JWTContext) Subscribe(onChange func(*Identity)) Subscription {
	j.mu.Lock()
	defer j.mu.Unlock()

	id := j.nextID
	j.nextID++
	j.subscribers[id] = onChange

	return &authSubscription{ctx: j, id: id}
}

// Announce notifies subscribers of a login (non-nil) or logout (nil).
// Called by whatever owns the session lifecycle.
func (j *JWTContext) Announce(identity *Identity) {
	j.mu.Lock()
	subs := make([]func(*Identity), 0, len(j.subscribers))
	for _, fn := range j.subscribers {
		subs = append(subs, fn)
	}
	j.mu.Unlock()

	for _, fn := range subs {
		fn(identity)
	}
}

type authSubscription struct {
	ctx  *JWTContext
	id   int
	once sync.Once
}

func (s *authSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.ctx.mu.Lock()
		delete(s.ctx.subscribers, s.id)
		s.ctx.mu.Unlock()
	})
}

// GenerateToken mints an HS256 token for the identity. Used by tests and
// local tooling; production tokens come from the hosted auth provider.
func (j *JWTContext) GenerateToken(identity Identity) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims{
		UserID: identity.UserID,
		Role:   identity.Role,
	})
	signed, err := tok.SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
