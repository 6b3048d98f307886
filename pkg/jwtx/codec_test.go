package jwtx

import (
	"strings"
	"testing"
	"time"

	"github.com/quillworks/inkwell/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()

	pemKey, err := cryptox.GenerateRSAKey(2048)
	require.NoError(t, err)

	codec, err := NewCodec(pemKey)
	require.NoError(t, err)
	return codec
}

func TestEncodeValidateRoundTrip(t *testing.T) {
	t.Parallel()
	codec := newTestCodec(t)

	claims := NewClaims("issuer", "audience", "user-1", "secret-prm", time.Minute, time.Now())
	token, err := codec.Encode(claims)
	require.NoError(t, err)

	got, err := codec.Validate(token)
	require.NoError(t, err)
	require.Equal(t, "issuer", got.Issuer)
	require.True(t, got.HasAudience("audience"))
	require.Equal(t, "user-1", got.Subject)
	require.Equal(t, "secret-prm", got.Prm)
}

func TestValidateDistinguishesExpiredFromMalformed(t *testing.T) {
	t.Parallel()
	codec := newTestCodec(t)

	t.Run("elapsed window is ErrExpired", func(t *testing.T) {
		claims := NewClaims("iss", "aud", "sub", "prm", -time.Minute, time.Now())
		token, err := codec.Encode(claims)
		require.NoError(t, err)

		_, err = codec.Validate(token)
		require.ErrorIs(t, err, ErrExpired)
	})

	t.Run("tampered token is ErrMalformed", func(t *testing.T) {
		claims := NewClaims("iss", "aud", "sub", "prm", time.Minute, time.Now())
		token, err := codec.Encode(claims)
		require.NoError(t, err)

		parts := strings.Split(token, ".")
		require.Len(t, parts, 3)
		tampered := parts[0] + "." + parts[1] + "x." + parts[2]

		_, err = codec.Validate(tampered)
		require.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("foreign signature is ErrMalformed", func(t *testing.T) {
		other := newTestCodec(t)
		token, err := other.Encode(NewClaims("iss", "aud", "sub", "prm", time.Minute, time.Now()))
		require.NoError(t, err)

		_, err = codec.Validate(token)
		require.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("garbage is ErrMalformed", func(t *testing.T) {
		_, err := codec.Validate("definitely.not.a-token")
		require.ErrorIs(t, err, ErrMalformed)
	})
}

func TestDecodeIgnoresExpiry(t *testing.T) {
	t.Parallel()
	codec := newTestCodec(t)

	claims := NewClaims("iss", "aud", "sub", "prm", -time.Hour, time.Now())
	token, err := codec.Encode(claims)
	require.NoError(t, err)

	got, err := codec.Decode(token)
	require.NoError(t, err)
	require.Equal(t, "prm", got.Prm)

	// Signature is still enforced.
	_, err = codec.Decode(token + "x")
	require.ErrorIs(t, err, ErrMalformed)
}

func TestVerifyOnlyCodecCannotSign(t *testing.T) {
	t.Parallel()

	pemKey, err := cryptox.GenerateRSAKey(2048)
	require.NoError(t, err)
	pubPEM, err := cryptox.PublicKeyPEM(pemKey)
	require.NoError(t, err)

	signer, err := NewCodec(pemKey)
	require.NoError(t, err)
	verifier, err := NewVerifyOnlyCodec(pubPEM)
	require.NoError(t, err)

	token, err := signer.Encode(NewClaims("iss", "aud", "sub", "prm", time.Minute, time.Now()))
	require.NoError(t, err)

	_, err = verifier.Validate(token)
	require.NoError(t, err)

	_, err = verifier.Encode(NewClaims("iss", "aud", "sub", "prm", time.Minute, time.Now()))
	require.ErrorIs(t, err, ErrSigning)
}
