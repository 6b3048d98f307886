// Package jwtx implements the RS256 token codec: signing with a private
// key held only by this process, verification with the public half. Any
// service holding just the public key can verify tokens without being
// trusted to mint them.
package jwtx

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrExpired reports a token whose signature verified but whose
	// validity window has elapsed.
	ErrExpired = errors.New("jwtx: token expired")

	// ErrMalformed covers every other verification failure: bad signature,
	// corrupt structure, wrong algorithm.
	ErrMalformed = errors.New("jwtx: malformed token")

	// ErrSigning reports unavailable or unusable signing key material.
	ErrSigning = errors.New("jwtx: token signing failure")
)

// Codec encodes and verifies signed token payloads. It is stateless: a pure
// function of the key material captured at construction and its inputs.
type Codec struct {
	priv *rsa.PrivateKey
	pub  *rsa.PublicKey
}

// NewCodec builds a Codec from PEM-encoded RSA private key bytes. Handles
// both PKCS1 and PKCS8 containers.
func NewCodec(privatePEM []byte) (*Codec, error) {
	block, _ := pem.Decode(privatePEM)
	if block == nil {
		return nil, errors.New("jwtx: invalid PEM for RSA key")
	}

	var key *rsa.PrivateKey
	switch block.Type {
	case "RSA PRIVATE KEY":
		k, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("jwtx: parse PKCS1 key: %w", err)
		}
		key = k
	case "PRIVATE KEY":
		priv, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("jwtx: parse PKCS8 key: %w", err)
		}
		k, ok := priv.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("jwtx: not an RSA private key")
		}
		key = k
	default:
		return nil, fmt.Errorf("jwtx: unsupported PEM type %q", block.Type)
	}

	return &Codec{priv: key, pub: &key.PublicKey}, nil
}

// NewVerifyOnlyCodec builds a Codec that can Validate and Decode but not
// Encode, from a PEM-encoded public key.
func NewVerifyOnlyCodec(publicPEM []byte) (*Codec, error) {
	block, _ := pem.Decode(publicPEM)
	if block == nil {
		return nil, errors.New("jwtx: invalid PEM for RSA public key")
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("jwtx: parse public key: %w", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("jwtx: not an RSA public key")
	}

	return &Codec{pub: rsaPub}, nil
}

// Encode signs the claims and returns the compact token string.
func (c *Codec) Encode(claims Claims) (string, error) {
	if c.priv == nil {
		return "", ErrSigning
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(c.priv)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSigning, err)
	}
	return signed, nil
}

// Validate verifies the token signature and expiry and returns the decoded
// claims. An elapsed validity window on an otherwise-good token yields
// ErrExpired; any other failure yields ErrMalformed.
func (c *Codec) Validate(token string) (Claims, error) {
	return c.parse(token, false)
}

// Decode verifies the signature but ignores expiry. Use it only for payload
// inspection, never for authorization decisions.
func (c *Codec) Decode(token string) (Claims, error) {
	return c.parse(token, true)
}

func (c *Codec) parse(token string, ignoreExpiry bool) (Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
	}
	if ignoreExpiry {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	parsed, err := jwt.NewParser(opts...).ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return c.pub, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpired
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, ErrMalformed
	}

	return *claims, nil
}
