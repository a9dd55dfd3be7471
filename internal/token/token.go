// Package token issues and verifies the stateless RSVP link tokens. A token
// is a signed capability scoped to exactly one (event, invitee, action)
// triple; validity lives entirely in the HMAC signature and exp claim, so
// verification needs no database lookup. The link is clicked from an email
// client with no session, so the token must carry everything itself.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/inviteq/inviteq/internal/engine"
)

// DefaultTTL is how long an RSVP link stays valid unless the caller asks
// for something else.
const DefaultTTL = 7 * 24 * time.Hour

// ErrLinkInvalid is returned for every verification failure. Signature and
// expiry failures are deliberately indistinguishable to callers.
var ErrLinkInvalid = errors.New("rsvp link is no longer valid")

// Payload is the verified content of an RSVP token.
type Payload struct {
	EventID   string
	Identity  string
	Action    engine.Action
	ExpiresAt time.Time
}

type rsvpClaims struct {
	jwt.RegisteredClaims
	EventID  string `json:"event_id"`
	Identity string `json:"identity"`
	Action   string `json:"action"`
}

// Service signs and verifies RSVP tokens with a server-held secret.
type Service struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewService creates a token service. ttl <= 0 falls back to DefaultTTL and
// a nil now falls back to time.Now.
func NewService(secret []byte, ttl time.Duration, now func() time.Time) (*Service, error) {
	if len(secret) == 0 {
		return nil, errors.New("token secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Service{secret: secret, ttl: ttl, now: now}, nil
}

// Issue mints a token authorizing one action by one invitee on one event.
// ttl <= 0 uses the service default.
func (s *Service) Issue(eventID, identity string, action engine.Action, ttl time.Duration) (string, error) {
	if eventID == "" || strings.TrimSpace(identity) == "" {
		return "", errors.New("event id and identity are required")
	}
	if !action.Valid() {
		return "", fmt.Errorf("unknown action %q", action)
	}
	if ttl <= 0 {
		ttl = s.ttl
	}

	now := s.now().UTC()
	claims := rsvpClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		EventID:  eventID,
		Identity: strings.TrimSpace(identity),
		Action:   string(action),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign rsvp token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry and returns the payload the token
// was minted with. Every failure maps to ErrLinkInvalid.
func (s *Service) Verify(tokenString string) (Payload, error) {
	var claims rsvpClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims,
		func(t *jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return Payload{}, ErrLinkInvalid
	}

	action := engine.Action(claims.Action)
	if claims.EventID == "" || claims.Identity == "" || !action.Valid() {
		return Payload{}, ErrLinkInvalid
	}

	return Payload{
		EventID:   claims.EventID,
		Identity:  claims.Identity,
		Action:    action,
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}, nil
}
