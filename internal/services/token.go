package services

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// A consumer must never see a token with less remaining lifetime than this.
const tokenExpiryMargin = 10 * time.Second

// AuthToken caches one bearer token and refreshes it synchronously when the
// cached one is expired or inside the safety margin. With a client secret it
// requests a client_credentials grant, without one an implicit grant; the
// two kinds live in separate caches because they have different
// capabilities and lifetimes.
type AuthToken struct {
	authURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client

	mu        sync.Mutex
	token     string
	expiresAt time.Time

	now func() time.Time
}

// NewAuthToken creates a token cache for the given credentials. Pass an
// empty secret for an implicit-grant token.
func NewAuthToken(authURL, clientID, clientSecret string) *AuthToken {
	return &AuthToken{
		authURL:      authURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		now:          time.Now,
	}
}

// Token returns a bearer token valid for at least the safety margin. The
// cached token is returned without any network call while it stays outside
// the margin; otherwise the cache refreshes before returning.
func (a *AuthToken) Token() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.expiresAt.Sub(a.now()) > tokenExpiryMargin {
		return a.token, nil
	}

	if err := a.refresh(); err != nil {
		return "", fmt.Errorf("fetch auth token: %w", err)
	}
	return a.token, nil
}

func (a *AuthToken) refresh() error {
	form := url.Values{"client_id": {a.clientID}}
	if a.clientSecret != "" {
		form.Set("client_secret", a.clientSecret)
		form.Set("grant_type", "client_credentials")
	} else {
		form.Set("grant_type", "implicit")
	}

	resp, err := a.httpClient.Post(
		a.authURL,
		"application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{URL: a.authURL, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		Expires     int64  `json:"expires"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("decode token response: %w", err)
	}

	a.token = payload.AccessToken
	a.expiresAt = time.Unix(payload.Expires, 0)
	return nil
}
