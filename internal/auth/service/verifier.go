package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sitedock/sitedock/internal/auth/domain"
	"github.com/sitedock/sitedock/internal/config"
)

const bearerScheme = "Bearer "

type jwtVerifier struct {
	secret []byte
	issuer string
}

// NewVerifier builds the auth-boundary verifier. Tokens are minted by the
// external identity provider; we only check the signature, issuer and expiry
// and extract the (sub, email) pair.
func NewVerifier(cfg config.Config) domain.Verifier {
	return &jwtVerifier{
		secret: []byte(cfg.AuthJWTSecret),
		issuer: cfg.AuthJWTIssuer,
	}
}

type identityClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func (v *jwtVerifier) Verify(ctx context.Context, bearerToken string) (domain.Identity, error) {
	_ = ctx

	raw := strings.TrimSpace(bearerToken)
	// Accept both a bare token and the standard "Bearer <token>" header form.
	if len(raw) > len(bearerScheme) && strings.EqualFold(raw[:len(bearerScheme)], bearerScheme) {
		raw = strings.TrimSpace(raw[len(bearerScheme):])
	}
	if raw == "" || len(v.secret) == 0 {
		return domain.Identity{}, domain.ErrInvalidToken
	}

	var claims identityClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrInvalidToken
		}
		return v.secret, nil
	}, jwt.WithIssuer(v.issuer), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return domain.Identity{}, domain.ErrInvalidToken
	}

	userID, err := snowflake.ParseString(strings.TrimSpace(claims.Subject))
	if err != nil || userID == 0 {
		return domain.Identity{}, domain.ErrInvalidToken
	}

	email := strings.ToLower(strings.TrimSpace(claims.Email))
	if email == "" {
		return domain.Identity{}, domain.ErrInvalidToken
	}

	return domain.Identity{UserID: userID, Email: email}, nil
}
