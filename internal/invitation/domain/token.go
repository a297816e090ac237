package domain

import (
	"crypto/rand"
	"encoding/base64"
)

// TokenGenerator mints opaque, unguessable invitation tokens.
type TokenGenerator interface {
	NewToken() (string, error)
}

type defaultTokenGenerator struct{}

func NewTokenGenerator() TokenGenerator {
	return defaultTokenGenerator{}
}

func (defaultTokenGenerator) NewToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
