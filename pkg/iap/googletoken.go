package iap

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/Jeffail/gabs/v2"
	"github.com/calmisland/go-errors"
	"github.com/golang-jwt/jwt/v4"
)

const (
	googleTokenURL       = "https://accounts.google.com/o/oauth2/token"
	googlePublisherScope = "https://www.googleapis.com/auth/androidpublisher"
	googleJWTGrantType   = "urn:ietf:params:oauth:grant-type:jwt-bearer"

	googleTokenLifetime = time.Hour

	// Tokens are treated as expired one minute before Google says they are,
	// so a cached token cannot run out mid-flight.
	googleTokenExpiryMargin = time.Minute
)

type cachedToken struct {
	token  string
	expiry time.Time
}

// tokenCache holds one bearer token per service-account issuer. Entries are
// replaced whole on refresh and readers re-check expiry, so the worst a race
// can cause is a redundant token fetch.
type tokenCache struct {
	mu      sync.RWMutex
	entries map[string]cachedToken
}

func newTokenCache() *tokenCache {
	return &tokenCache{entries: make(map[string]cachedToken)}
}

func (c *tokenCache) get(issuer string, now time.Time) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[issuer]
	if !ok || !now.Before(entry.expiry) {
		return "", false
	}
	return entry.token, true
}

func (c *tokenCache) put(issuer, token string, expiry time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[issuer] = cachedToken{token: token, expiry: expiry}
}

// bearerToken returns a cached access token for the key's issuer, or
// exchanges a signed JWT assertion for a fresh one.
func (g *GoogleAdapter) bearerToken(ctx context.Context, key *ServiceAccountKey) (string, error) {
	now := time.Now()
	if token, ok := g.tokens.get(key.ClientEmail, now); ok {
		return token, nil
	}

	assertion, err := signGoogleAssertion(key, g.TokenURL, now)
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("grant_type", googleJWTGrantType)
	form.Set("assertion", assertion)

	headers := map[string]string{"Content-Type": "application/x-www-form-urlencoded"}
	status, raw, err := g.Transport.Request(ctx, http.MethodPost, g.TokenURL, headers, []byte(form.Encode()))
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", &UnexpectedStatusError{StatusCode: status, Body: string(raw)}
	}

	response, err := gabs.ParseJSON(raw)
	if err != nil {
		return "", errors.Errorf("failed to parse OAuth token response: %v", err)
	}

	token := stringValue(fieldData(response, "access_token"))
	if token == "" {
		return "", errors.Errorf("OAuth token response carries no access_token")
	}

	lifetime := googleTokenLifetime
	if expiresIn := parseMillis(fieldData(response, "expires_in")); expiresIn != nil {
		lifetime = time.Duration(*expiresIn) * time.Second
	}

	g.tokens.put(key.ClientEmail, token, now.Add(lifetime-googleTokenExpiryMargin))
	return token, nil
}

// signGoogleAssertion builds the RS256 JWT assertion for the OAuth jwt-bearer
// grant, scoped to the Android Publisher API and valid for one hour.
func signGoogleAssertion(key *ServiceAccountKey, audience string, now time.Time) (string, error) {
	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(key.PrivateKey))
	if err != nil {
		return "", &InvalidArgumentError{Field: "keyObject", Message: "Google API private_key is not a valid RSA key: " + err.Error()}
	}

	claims := jwt.MapClaims{
		"iss":   key.ClientEmail,
		"scope": googlePublisherScope,
		"aud":   audience,
		"exp":   now.Add(googleTokenLifetime).Unix(),
		"iat":   now.Unix(),
	}

	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(privateKey)
}
