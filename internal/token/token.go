// Package token issues and verifies short-lived access tokens.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/observetask/identity/internal/clock"
	"github.com/observetask/identity/internal/config"
	"github.com/observetask/identity/internal/role"
)

const accessTokenTTL = 15 * time.Minute

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Claims is the decoded identity carried by an access token.
type Claims struct {
	UserID snowflake.ID
	OrgID  snowflake.ID
	Role   role.Role
	Email  string
}

// Issuer mints and verifies HMAC-signed access tokens.
type Issuer struct {
	secret []byte
	issuer string
	clock  clock.Clock
}

func NewIssuer(cfg config.Config, clk clock.Clock) (*Issuer, error) {
	if cfg.AuthJWTSecret == "" {
		return nil, errors.New("AUTH_JWT_SECRET is required")
	}
	return &Issuer{
		secret: []byte(cfg.AuthJWTSecret),
		issuer: cfg.AppName,
		clock:  clk,
	}, nil
}

// Issue signs an access token binding the user to one organization and role.
func (i *Issuer) Issue(c Claims) (string, error) {
	now := i.clock.Now()
	claims := jwtlib.MapClaims{
		"iss":   i.issuer,
		"sub":   c.UserID.String(),
		"org":   c.OrgID.String(),
		"role":  c.Role.Code,
		"email": c.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(accessTokenTTL).Unix(),
		"jti":   uuid.NewString(),
	}

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// Verify parses a signed token and returns its claims.
func (i *Issuer) Verify(raw string) (*Claims, error) {
	parsed, err := jwtlib.Parse(raw, func(t *jwtlib.Token) (any, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Header["alg"])
		}
		return i.secret, nil
	}, jwtlib.WithTimeFunc(i.clock.Now))
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	userID, err := parseID(claims, "sub")
	if err != nil {
		return nil, ErrInvalidToken
	}
	orgID, err := parseID(claims, "org")
	if err != nil {
		return nil, ErrInvalidToken
	}
	code, _ := claims["role"].(string)
	r, err := role.Parse(code)
	if err != nil {
		return nil, ErrInvalidToken
	}
	email, _ := claims["email"].(string)

	return &Claims{UserID: userID, OrgID: orgID, Role: r, Email: email}, nil
}

func parseID(claims jwtlib.MapClaims, key string) (snowflake.ID, error) {
	raw, ok := claims[key].(string)
	if !ok {
		return 0, fmt.Errorf("claim %q missing", key)
	}
	return snowflake.ParseString(raw)
}
