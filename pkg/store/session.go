package store

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Slots in the credential store.
const (
	UsernameKey = "kestra.authentication.username"
	TokenKey    = "kestra.authentication.token"
)

// SchemaKey is the session-state slot holding the downloaded flow schema.
const SchemaKey = "kestra.yaml.schema"

// Session is the remembered credential state. Either field may be empty.
type Session struct {
	Username string
	Token    string
}

// LoadSession reads the remembered username and token.
func LoadSession(s Store) (Session, error) {
	username, err := s.Get(UsernameKey)
	if err != nil {
		return Session{}, err
	}
	token, err := s.Get(TokenKey)
	if err != nil {
		return Session{}, err
	}
	return Session{Username: username, Token: token}, nil
}

// ClearSession forgets both credential slots.
func ClearSession(s Store) error {
	return errors.Join(s.Delete(UsernameKey), s.Delete(TokenKey))
}

// TokenInfo is what can be read from a token without verifying it.
type TokenInfo struct {
	Subject   string
	Issuer    string
	ExpiresAt time.Time
}

// IsExpired reports whether the token carries an expiry that has passed.
func (t TokenInfo) IsExpired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}

// InspectToken decodes the claims of a JWT without checking its signature.
// Only the server can validate the token; this is for display.
func InspectToken(token string) (TokenInfo, error) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return TokenInfo{}, err
	}

	info := TokenInfo{Subject: claims.Subject, Issuer: claims.Issuer}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info, nil
}
