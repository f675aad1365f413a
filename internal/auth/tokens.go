package auth

import (
	"fmt"

	"github.com/redmonkez12/scitech-admin-api/internal/config"
)

// NewTokenService returns the TokenService for the configured format.
func NewTokenService(format string, key []byte) (TokenService, error) {
	switch format {
	case config.TokenFormatPaseto:
		return NewPasetoService(key)
	case config.TokenFormatJWT:
		return NewJWTService(key)
	default:
		return nil, fmt.Errorf("unsupported token format %q", format)
	}
}
