package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringArrayValue(t *testing.T) {
	arr := StringArray{"https://a.example/cb", "https://b.example/cb"}
	v, err := arr.Value()
	require.NoError(t, err)
	assert.Equal(t, `["https://a.example/cb","https://b.example/cb"]`, v)

	var nilArr StringArray
	v, err = nilArr.Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)
}

func TestStringArrayScan(t *testing.T) {
	var arr StringArray
	require.NoError(t, arr.Scan([]byte(`["x","y"]`)))
	assert.Equal(t, StringArray{"x", "y"}, arr)

	var fromString StringArray
	require.NoError(t, fromString.Scan(`["z"]`))
	assert.Equal(t, StringArray{"z"}, fromString)

	var fromNil StringArray
	require.NoError(t, fromNil.Scan(nil))
	assert.Nil(t, fromNil)

	assert.Error(t, arr.Scan(42))
}

func TestAllowsRedirectURI(t *testing.T) {
	client := &OAuthClient{
		RedirectURIs: StringArray{"https://app.example/callback"},
	}

	assert.True(t, client.AllowsRedirectURI("https://app.example/callback"))
	assert.False(t, client.AllowsRedirectURI("https://app.example/callback/"))
	assert.False(t, client.AllowsRedirectURI("https://app.example"))
}

func TestAuthorizationCodeState(t *testing.T) {
	code := &AuthorizationCode{ExpiresAt: time.Now().Add(time.Minute)}
	assert.False(t, code.IsExpired())
	assert.False(t, code.IsUsed())

	code.ExpiresAt = time.Now().Add(-time.Second)
	now := time.Now()
	code.UsedAt = &now
	assert.True(t, code.IsExpired())
	assert.True(t, code.IsUsed())
}

func TestOAuthTokenExpiry(t *testing.T) {
	token := &OAuthToken{
		ExpiresAt:        time.Now().Add(-time.Minute),
		RefreshExpiresAt: time.Now().Add(time.Hour),
	}
	assert.True(t, token.IsAccessExpired())
	assert.False(t, token.IsRefreshExpired())
}
