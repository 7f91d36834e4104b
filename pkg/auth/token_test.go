package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storepos-backend/pkg/config"
	"github.com/angelmondragon/storepos-backend/pkg/enums"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "storepos", ExpirationMinutes: 30}

func TestMintAndParseAccessToken(t *testing.T) {
	now := time.Now().UTC()
	actor := Actor{UserID: 2, Username: "cashier1", Role: enums.UserRoleCashier}

	token, expiresAt, err := MintAccessToken(testJWT, now, actor)
	require.NoError(t, err)
	assert.WithinDuration(t, now.Add(30*time.Minute), expiresAt, time.Second)

	claims, err := ParseAccessToken(testJWT, token)
	require.NoError(t, err)
	assert.Equal(t, actor, claims.Actor())
	assert.Equal(t, "2", claims.Subject)
	assert.NotEmpty(t, claims.ID)
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	past := time.Now().Add(-2 * time.Hour)
	token, _, err := MintAccessToken(testJWT, past, Actor{UserID: 1, Role: enums.UserRoleAdmin})
	require.NoError(t, err)

	_, err = ParseAccessToken(testJWT, token)
	require.Error(t, err)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestParseAccessTokenRejectsWrongSecretOrIssuer(t *testing.T) {
	token, _, err := MintAccessToken(testJWT, time.Now(), Actor{UserID: 1, Role: enums.UserRoleAdmin})
	require.NoError(t, err)

	other := testJWT
	other.Secret = "different"
	_, err = ParseAccessToken(other, token)
	assert.Error(t, err)

	other = testJWT
	other.Issuer = "someone-else"
	_, err = ParseAccessToken(other, token)
	assert.Error(t, err)
}

func TestMintAccessTokenValidatesActor(t *testing.T) {
	_, _, err := MintAccessToken(testJWT, time.Now(), Actor{UserID: 0, Role: enums.UserRoleAdmin})
	assert.Error(t, err)

	_, _, err = MintAccessToken(testJWT, time.Now(), Actor{UserID: 1, Role: "owner"})
	assert.Error(t, err)

	_, _, err = MintAccessToken(config.JWTConfig{}, time.Now(), Actor{UserID: 1, Role: enums.UserRoleAdmin})
	assert.Error(t, err)
}
