package http

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

type AuthType int

const (
	AuthNone AuthType = iota
	AuthBasic
	AuthBearer
	AuthAPIKey
	AuthAPIKeyQuery
	AuthDigest
	AuthAWS
	AuthJWT
	AuthOAuth2
)

func (t AuthType) String() string {
	switch t {
	case AuthBasic:
		return "basic"
	case AuthBearer:
		return "bearer"
	case AuthAPIKey:
		return "apikey"
	case AuthAPIKeyQuery:
		return "apikeyquery"
	case AuthDigest:
		return "digest"
	case AuthAWS:
		return "aws"
	case AuthJWT:
		return "jwt"
	case AuthOAuth2:
		return "oauth2"
	}
	return "none"
}

type AuthConfig struct {
	Type   AuthType
	Params []string
}

// ParseAuth reads the "<type>:<param>[:<param>...]" form used on the command
// line and in config files, for example "basic:alice:secret" or
// "aws:AKID:SECRET:us-east-1:s3". The last parameter keeps any colons, so
// "oauth2:<client-id>:<client-secret>:<token-url>" works as written. The
// exception is "jwt:<secret>[:<subject>]" whose subject is optional.
func ParseAuth(s string) (*AuthConfig, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	kind, rest, _ := strings.Cut(s, ":")
	var (
		t     AuthType
		count int
	)
	switch strings.ToLower(kind) {
	case "basic":
		t, count = AuthBasic, 2
	case "bearer":
		t, count = AuthBearer, 1
	case "apikey", "api-key":
		t, count = AuthAPIKey, 2
	case "apikeyquery", "api-key-query":
		t, count = AuthAPIKeyQuery, 2
	case "digest":
		t, count = AuthDigest, 2
	case "aws":
		t, count = AuthAWS, 4
	case "oauth2":
		t, count = AuthOAuth2, 3
	case "jwt":
		secret, subject, _ := strings.Cut(rest, ":")
		if secret == "" {
			return nil, fmt.Errorf("jwt auth needs a secret")
		}
		params := []string{secret}
		if subject != "" {
			params = append(params, subject)
		}
		return &AuthConfig{Type: AuthJWT, Params: params}, nil
	default:
		return nil, fmt.Errorf("unknown auth type %q (basic, bearer, apikey, apikeyquery, digest, aws, jwt, oauth2)", kind)
	}

	params := strings.SplitN(rest, ":", count)
	if rest == "" || len(params) != count {
		return nil, fmt.Errorf("%s auth needs %d parameter(s), got %q", t, count, rest)
	}
	return &AuthConfig{Type: t, Params: params}, nil
}

// ApplyAuth turns r.Auth into headers, query parameters or the credentials
// the challenge based schemes need.
func (r *Request) ApplyAuth() {
	if r.Auth == nil {
		return
	}
	if r.Headers == nil {
		r.Headers = make(map[string]string)
	}
	if r.QueryParams == nil {
		r.QueryParams = make(map[string]string)
	}

	switch r.Auth.Type {
	case AuthBasic:
		if len(r.Auth.Params) >= 2 {
			creds := r.Auth.Params[0] + ":" + r.Auth.Params[1]
			encoded := base64.StdEncoding.EncodeToString([]byte(creds))
			r.Headers["Authorization"] = "Basic " + encoded
		}
	case AuthBearer:
		if len(r.Auth.Params) >= 1 {
			r.Headers["Authorization"] = "Bearer " + r.Auth.Params[0]
		}
	case AuthAPIKey:
		if len(r.Auth.Params) >= 2 {
			r.Headers[r.Auth.Params[0]] = r.Auth.Params[1]
		}
	case AuthAPIKeyQuery:
		if len(r.Auth.Params) >= 2 {
			r.QueryParams[r.Auth.Params[0]] = r.Auth.Params[1]
		}
	case AuthDigest:
		if len(r.Auth.Params) >= 2 {
			r.DigestAuth = &DigestAuthCredentials{
				Username: r.Auth.Params[0],
				Password: r.Auth.Params[1],
			}
		}
	case AuthAWS:
		if len(r.Auth.Params) >= 4 {
			r.AWSAuth = &AWSAuthCredentials{
				AccessKey: r.Auth.Params[0],
				SecretKey: r.Auth.Params[1],
				Region:    r.Auth.Params[2],
				Service:   r.Auth.Params[3],
			}
		}
	case AuthOAuth2:
		if len(r.Auth.Params) >= 3 {
			r.OAuth2 = &OAuth2Credentials{
				ClientID:     r.Auth.Params[0],
				ClientSecret: r.Auth.Params[1],
				TokenURL:     r.Auth.Params[2],
			}
		}
	case AuthJWT:
		subject := DefaultJWTSubject
		if len(r.Auth.Params) >= 2 {
			subject = r.Auth.Params[1]
		}
		// HS256 signing only fails on an empty key, which ParseAuth rejects.
		if token, err := SignJWT(r.Auth.Params[0], subject, time.Now()); err == nil {
			r.Headers["Authorization"] = "Bearer " + token
		}
	}
}
