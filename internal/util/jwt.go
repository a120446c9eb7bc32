package util

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"tarot/internal/model"
)

const RoleAdmin = "admin"

// Claims is the payload of application tokens. The user fields mirror the
// users row at issue time; membership_expires_at is a cache and is always
// re-read from the database for quota decisions.
type Claims struct {
	ID                  string     `json:"id"`
	Email               string     `json:"email"`
	Name                string     `json:"name"`
	Avatar              string     `json:"avatar"`
	MembershipExpiresAt *time.Time `json:"membership_expires_at"`
	Role                string     `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and validates HS256 tokens for one issuer.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret, issuer string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}
}

// WithClock returns a copy that reads time from now.
func (t *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	c := *t
	c.now = now
	return &c
}

func (t *TokenIssuer) TTL() time.Duration {
	return t.ttl
}

// IssueUser signs a token for an application user.
func (t *TokenIssuer) IssueUser(u *model.User) (string, error) {
	return t.sign(Claims{
		ID:                  u.ID,
		Email:               u.Email,
		Name:                u.Name,
		Avatar:              u.Avatar,
		MembershipExpiresAt: u.MembershipExpiresAt,
	}, u.ID, t.ttl)
}

// IssueAdmin signs a token carrying the admin role.
func (t *TokenIssuer) IssueAdmin(a *model.AdminUser, ttl time.Duration) (string, error) {
	return t.sign(Claims{ID: a.ID, Name: a.Username, Role: RoleAdmin}, a.ID, ttl)
}

func (t *TokenIssuer) sign(claims Claims, subject string, ttl time.Duration) (string, error) {
	now := t.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    t.issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// ValidateJWT parses tokenString and checks signature, expiry and issuer.
func (t *TokenIssuer) ValidateJWT(tokenString string) (*Claims, error) {
	claims := &Claims{}
	keyFunc := func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v (expected HMAC)", token.Header["alg"])
		}
		return t.secret, nil
	}
	token, err := jwt.ParseWithClaims(tokenString, claims, keyFunc,
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to validate token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.ID == "" {
		claims.ID = claims.Subject
	}
	return claims, nil
}
