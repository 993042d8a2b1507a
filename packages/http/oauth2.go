package http

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	neturl "net/url"
	"sync"
	"time"
)

// tokenExpirySkew treats tokens as expired slightly early to absorb clock
// drift between us and the token endpoint.
const tokenExpirySkew = 30 * time.Second

// OAuth2Credentials configure the client_credentials grant.
type OAuth2Credentials struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
}

func (c *OAuth2Credentials) cacheKey() string {
	return c.TokenURL + "|" + c.ClientID
}

// OAuth2Token is an access token from the token endpoint.
type OAuth2Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int       `json:"expires_in"`
	Scope       string    `json:"scope,omitempty"`
	ExpiresAt   time.Time `json:"-"`
}

// Expired reports whether the token should be refreshed at now.
func (t *OAuth2Token) Expired(now time.Time) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return now.Add(tokenExpirySkew).After(t.ExpiresAt)
}

// tokenCache holds tokens per token URL and client so retries and bench
// workers share one token until it expires.
type tokenCache struct {
	mu     sync.Mutex
	tokens map[string]*OAuth2Token
}

func (c *tokenCache) get(key string, now time.Time) *OAuth2Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t := c.tokens[key]; t != nil && !t.Expired(now) {
		return t
	}
	return nil
}

func (c *tokenCache) set(key string, t *OAuth2Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tokens == nil {
		c.tokens = make(map[string]*OAuth2Token)
	}
	c.tokens[key] = t
}

func (c *Client) doWithOAuth2(ctx context.Context, req *Request) (*Response, error) {
	token, err := c.OAuth2Token(ctx, req.OAuth2)
	if err != nil {
		return nil, err
	}
	return c.doRequest(ctx, req, "Bearer "+token.AccessToken)
}

// OAuth2Token returns a cached token for creds or fetches a new one. The
// token request goes through this client, so proxy, tunnel and TLS settings
// apply to it too.
func (c *Client) OAuth2Token(ctx context.Context, creds *OAuth2Credentials) (*OAuth2Token, error) {
	now := time.Now()
	if t := c.tokens.get(creds.cacheKey(), now); t != nil {
		return t, nil
	}

	form := neturl.Values{}
	form.Set("grant_type", "client_credentials")

	tokenReq := NewRequest(http.MethodPost, creds.TokenURL)
	tokenReq.Body = []byte(form.Encode())
	tokenReq.Headers["Content-Type"] = "application/x-www-form-urlencoded"
	tokenReq.Headers["Accept"] = "application/json"
	basic := base64.StdEncoding.EncodeToString([]byte(creds.ClientID + ":" + creds.ClientSecret))

	resp, err := c.doRequest(ctx, tokenReq, "Basic "+basic)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		if json.Unmarshal(resp.Body, &errResp) == nil && errResp.Error != "" {
			return nil, fmt.Errorf("token request failed: %s - %s", errResp.Error, errResp.ErrorDescription)
		}
		return nil, fmt.Errorf("token request failed with status %d: %s", resp.StatusCode, string(resp.Body))
	}

	var token OAuth2Token
	if err := json.Unmarshal(resp.Body, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("token response has no access_token")
	}
	if token.ExpiresIn > 0 {
		token.ExpiresAt = now.Add(time.Duration(token.ExpiresIn) * time.Second)
	}

	c.tokens.set(creds.cacheKey(), &token)
	return &token, nil
}
