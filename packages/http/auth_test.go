package http

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAuth(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    *AuthConfig
		wantErr bool
	}{
		{name: "empty", input: "", want: nil},
		{name: "basic", input: "basic:alice:secret", want: &AuthConfig{Type: AuthBasic, Params: []string{"alice", "secret"}}},
		{name: "basic password with colon", input: "basic:alice:se:cret", want: &AuthConfig{Type: AuthBasic, Params: []string{"alice", "se:cret"}}},
		{name: "bearer keeps colons", input: "bearer:a:b", want: &AuthConfig{Type: AuthBearer, Params: []string{"a:b"}}},
		{name: "api key", input: "apikey:X-API-Key:abc", want: &AuthConfig{Type: AuthAPIKey, Params: []string{"X-API-Key", "abc"}}},
		{name: "api key query", input: "api-key-query:token:abc", want: &AuthConfig{Type: AuthAPIKeyQuery, Params: []string{"token", "abc"}}},
		{name: "digest", input: "Digest:u:p", want: &AuthConfig{Type: AuthDigest, Params: []string{"u", "p"}}},
		{name: "aws", input: "aws:AK:SK:us-east-1:s3", want: &AuthConfig{Type: AuthAWS, Params: []string{"AK", "SK", "us-east-1", "s3"}}},
		{name: "oauth2 token url keeps colons", input: "oauth2:cid:csecret:https://auth.example.com:8443/token", want: &AuthConfig{Type: AuthOAuth2, Params: []string{"cid", "csecret", "https://auth.example.com:8443/token"}}},
		{name: "unknown type", input: "ntlm:u:p", wantErr: true},
		{name: "missing params", input: "basic:alice", wantErr: true},
		{name: "no params", input: "bearer", wantErr: true},
		{name: "aws short", input: "aws:AK:SK", wantErr: true},
		{name: "jwt secret only", input: "jwt:s3cret", want: &AuthConfig{Type: AuthJWT, Params: []string{"s3cret"}}},
		{name: "jwt with subject", input: "jwt:s3cret:uploader", want: &AuthConfig{Type: AuthJWT, Params: []string{"s3cret", "uploader"}}},
		{name: "jwt empty secret", input: "jwt::uploader", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAuth(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyAuth(t *testing.T) {
	t.Run("basic", func(t *testing.T) {
		req := NewRequest("POST", "http://example.com")
		req.Auth = &AuthConfig{Type: AuthBasic, Params: []string{"Aladdin", "open sesame"}}
		req.ApplyAuth()
		assert.Equal(t, "Basic QWxhZGRpbjpvcGVuIHNlc2FtZQ==", req.Headers["Authorization"])
	})

	t.Run("bearer", func(t *testing.T) {
		req := NewRequest("POST", "http://example.com")
		req.Auth = &AuthConfig{Type: AuthBearer, Params: []string{"tok"}}
		req.ApplyAuth()
		assert.Equal(t, "Bearer tok", req.Headers["Authorization"])
	})

	t.Run("api key header", func(t *testing.T) {
		req := NewRequest("POST", "http://example.com")
		req.Auth = &AuthConfig{Type: AuthAPIKey, Params: []string{"X-Key", "v"}}
		req.ApplyAuth()
		assert.Equal(t, "v", req.Headers["X-Key"])
	})

	t.Run("api key query", func(t *testing.T) {
		req := &Request{Method: "POST", URL: "http://example.com/up?a=1"}
		req.Auth = &AuthConfig{Type: AuthAPIKeyQuery, Params: []string{"key", "v"}}
		req.ApplyAuth()
		assert.Equal(t, "http://example.com/up?a=1&key=v", req.BuildURL())
	})

	t.Run("digest and aws set credentials", func(t *testing.T) {
		req := NewRequest("POST", "http://example.com")
		req.Auth = &AuthConfig{Type: AuthDigest, Params: []string{"u", "p"}}
		req.ApplyAuth()
		require.NotNil(t, req.DigestAuth)
		assert.Equal(t, "u", req.DigestAuth.Username)

		req = NewRequest("POST", "http://example.com")
		req.Auth = &AuthConfig{Type: AuthAWS, Params: []string{"a", "s", "r", "svc"}}
		req.ApplyAuth()
		require.NotNil(t, req.AWSAuth)
		assert.Equal(t, "svc", req.AWSAuth.Service)
	})

	t.Run("jwt", func(t *testing.T) {
		req := NewRequest("POST", "http://example.com")
		req.Auth = &AuthConfig{Type: AuthJWT, Params: []string{"s3cret", "uploader"}}
		req.ApplyAuth()

		header := req.Headers["Authorization"]
		require.True(t, strings.HasPrefix(header, "Bearer "))

		claims := &jwt.RegisteredClaims{}
		_, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "Bearer "), claims, func(*jwt.Token) (any, error) {
			return []byte("s3cret"), nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		require.NoError(t, err)
		assert.Equal(t, "uploader", claims.Subject)
		assert.Equal(t, JWTIssuer, claims.Issuer)
	})

	t.Run("nil auth is a no-op", func(t *testing.T) {
		req := &Request{}
		req.ApplyAuth()
		assert.Nil(t, req.Headers)
	})
}

func TestAuthType_String(t *testing.T) {
	assert.Equal(t, "basic", AuthBasic.String())
	assert.Equal(t, "aws", AuthAWS.String())
	assert.Equal(t, "jwt", AuthJWT.String())
	assert.Equal(t, "none", AuthNone.String())
}

func TestSignJWT(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	signed, err := SignJWT("key", DefaultJWTSubject, now)
	require.NoError(t, err)

	claims := &jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(signed, claims, func(*jwt.Token) (any, error) {
		return []byte("key"), nil
	}, jwt.WithTimeFunc(func() time.Time { return now.Add(time.Minute) }))
	require.NoError(t, err)
	assert.Equal(t, DefaultJWTSubject, claims.Subject)
	assert.Equal(t, now.Add(JWTTTL).Unix(), claims.ExpiresAt.Unix())

	_, err = jwt.ParseWithClaims(signed, &jwt.RegisteredClaims{}, func(*jwt.Token) (any, error) {
		return []byte("key"), nil
	}, jwt.WithTimeFunc(func() time.Time { return now.Add(JWTTTL + time.Minute) }))
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}
