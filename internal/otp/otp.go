// Package otp issues short numeric password-reset codes.
package otp

import (
	"crypto/rand"
	"math/big"
	mrand "math/rand/v2"
	"strconv"
	"time"
)

// Codes are drawn uniformly from [MinCode, MaxCode].
const (
	MinCode = 1000
	MaxCode = 9999

	DefaultTTL = 5 * time.Minute
)

// Generator produces a reset code.
type Generator interface {
	Generate() (string, error)
}

// MathGenerator uses math/rand. Reset codes are short-lived usability codes;
// use CryptoGenerator where a stronger source is wanted.
type MathGenerator struct{}

func (MathGenerator) Generate() (string, error) {
	return strconv.Itoa(MinCode + mrand.IntN(MaxCode-MinCode+1)), nil
}

// CryptoGenerator draws from crypto/rand.
type CryptoGenerator struct{}

func (CryptoGenerator) Generate() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(MaxCode-MinCode+1))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(MinCode+n.Int64(), 10), nil
}

// NewGenerator picks the generator for the configured source.
func NewGenerator(secure bool) Generator {
	if secure {
		return CryptoGenerator{}
	}
	return MathGenerator{}
}

// Code is an issued reset code with its expiry.
type Code struct {
	Value     string
	ExpiresAt time.Time
}

// Issuer combines a generator, a clock and a validity window.
type Issuer struct {
	gen Generator
	ttl time.Duration
	now func() time.Time
}

func NewIssuer(gen Generator, ttl time.Duration, now func() time.Time) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Issuer{gen: gen, ttl: ttl, now: now}
}

// Issue returns a fresh code valid until now+ttl.
func (i *Issuer) Issue() (Code, error) {
	v, err := i.gen.Generate()
	if err != nil {
		return Code{}, err
	}
	return Code{Value: v, ExpiresAt: i.now().Add(i.ttl)}, nil
}
