package token_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-oauth2-framework/token"
	"github.com/stretchr/testify/require"
)

func TestKeyRing_RotationKeepsOldTokensValid(t *testing.T) {
	ring := token.NewKeyRing("k1", "secret-one")
	codec := token.NewCodec(ring)

	oldToken, err := codec.Encode(token.KindAccess, token.Claims{ClientID: "c1", Username: "demo"}, time.Hour)
	require.NoError(t, err)

	ring.Rotate("k2", "secret-two")
	require.Equal(t, "k2", ring.ActiveKeyID())

	newToken, err := codec.Encode(token.KindAccess, token.Claims{ClientID: "c1", Username: "demo"}, time.Hour)
	require.NoError(t, err)

	require.NotNil(t, codec.Decode(oldToken))
	require.NotNil(t, codec.Decode(newToken))

	// Only the new secret verifies new tokens
	require.Nil(t, token.NewCodec(token.NewHMACSigner("secret-one")).Decode(newToken))
}

func TestKeyRing_RetiredKeyStopsVerifying(t *testing.T) {
	ring := token.NewKeyRing("k1", "secret-one")
	codec := token.NewCodec(ring)

	oldToken, err := codec.Encode(token.KindCode, token.Claims{ClientID: "c1"}, time.Hour)
	require.NoError(t, err)

	ring.Rotate("k2", "secret-two")
	require.Error(t, ring.Retire("k2"), "the active key cannot be retired")
	require.NoError(t, ring.Retire("k1"))

	require.Nil(t, codec.Decode(oldToken))
}

func TestKeyRing_VerificationOnlyKey(t *testing.T) {
	previous := token.NewCodec(token.NewKeyRing("old", "previous-secret"))
	raw, err := previous.Encode(token.KindAccess, token.Claims{ClientID: "c1"}, time.Hour)
	require.NoError(t, err)

	ring := token.NewKeyRing("new", "current-secret")
	codec := token.NewCodec(ring)
	require.Nil(t, codec.Decode(raw))

	ring.AddVerificationKey("old", "previous-secret")
	require.NotNil(t, codec.Decode(raw))
	require.Equal(t, "new", ring.ActiveKeyID())
}

func TestKeyRing_RejectsUnknownKeyID(t *testing.T) {
	// HMACSigner tokens carry no kid header
	raw, err := token.NewCodec(token.NewHMACSigner("secret")).Encode(token.KindAccess, token.Claims{}, time.Hour)
	require.NoError(t, err)

	require.Nil(t, token.NewCodec(token.NewKeyRing("k1", "secret")).Decode(raw))
}
