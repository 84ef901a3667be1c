package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/DionathaGoulart/pets-auth/internal/domain/oauth"
)

// Provider is the provider name recorded on identity links.
const Provider = "google"

// Client encapsulates the outbound calls to Google: the authorization code
// exchange and the userinfo profile fetch.
type Client interface {
	ExchangeCode(ctx context.Context, code, redirectURI string) (*oauth.TokenResponse, error)
	FetchProfile(ctx context.Context, accessToken string) (*oauth.Profile, error)
}

// Config carries the provider endpoints and client credentials.
type Config struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	UserInfoURL  string
	Timeout      time.Duration
}

// HTTPClient is the default Client implementation.
type HTTPClient struct {
	cfg        Config
	httpClient *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient constructs the default Client. The HTTP client timeout
// bounds both outbound calls so a hung provider cannot block a worker.
func NewHTTPClient(cfg Config, client *http.Client) *HTTPClient {
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPClient{cfg: cfg, httpClient: client}
}

// ExchangeCode redeems the authorization code at the token endpoint.
// A provider 4xx means the code was rejected (expired, reused, or
// mismatched redirect URI) and maps to ErrInvalidGrant; transport errors
// and 5xx map to ErrProviderUnavailable.
func (c *HTTPClient) ExchangeCode(ctx context.Context, code, redirectURI string) (*oauth.TokenResponse, error) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("redirect_uri", redirectURI)
	data.Set("client_id", c.cfg.ClientID)
	data.Set("client_secret", c.cfg.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token exchange request: %w", oauth.ErrProviderUnavailable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read token response: %w", oauth.ErrProviderUnavailable)
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("token exchange status=%d: %w", resp.StatusCode, oauth.ErrProviderUnavailable)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("token exchange status=%d: %w", resp.StatusCode, oauth.ErrInvalidGrant)
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode token response: %w", oauth.ErrProviderUnavailable)
	}

	token := &oauth.TokenResponse{
		AccessToken:  stringValue(raw["access_token"]),
		RefreshToken: stringValue(raw["refresh_token"]),
		TokenType:    stringValue(raw["token_type"]),
		IDToken:      stringValue(raw["id_token"]),
		Scope:        stringValue(raw["scope"]),
		Raw:          raw,
	}
	if exp := raw["expires_in"]; exp != nil {
		token.ExpiresIn = int64Value(exp)
	}
	if strings.TrimSpace(token.AccessToken) == "" {
		return nil, fmt.Errorf("token response missing access_token: %w", oauth.ErrInvalidGrant)
	}
	return token, nil
}

// FetchProfile loads the userinfo endpoint and normalizes the payload.
// Missing subject or email makes reconciliation impossible and maps to
// ErrIncompleteProfile.
func (c *HTTPClient) FetchProfile(ctx context.Context, accessToken string) (*oauth.Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo request: %w", oauth.ErrProviderUnavailable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read userinfo: %w", oauth.ErrProviderUnavailable)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("userinfo status=%d: %w", resp.StatusCode, oauth.ErrProviderUnavailable)
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", oauth.ErrProviderUnavailable)
	}

	profile := &oauth.Profile{
		Subject:    stringValue(raw["sub"]),
		Email:      stringValue(raw["email"]),
		GivenName:  stringValue(raw["given_name"]),
		FamilyName: stringValue(raw["family_name"]),
		Raw:        raw,
	}
	if strings.TrimSpace(profile.Subject) == "" || strings.TrimSpace(profile.Email) == "" {
		return nil, fmt.Errorf("userinfo missing sub or email: %w", oauth.ErrIncompleteProfile)
	}
	return profile, nil
}

func stringValue(input any) string {
	switch v := input.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

func int64Value(input any) int64 {
	switch v := input.(type) {
	case float64:
		return int64(v)
	case float32:
		return int64(v)
	case int64:
		return v
	case int32:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return 0
}
