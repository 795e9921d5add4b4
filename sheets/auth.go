/*
auth.go - Service-account authentication for the Sheets API

PURPOSE:
  The engine authenticates as a Google service account: a signed JWT
  assertion is exchanged for a short-lived bearer token, which is
  cached until shortly before expiry. The service-account key arrives
  as the standard JSON file (or the same JSON in an environment
  variable when running under CI).

  The grant is RS256 over a fixed claim set against a fixed token
  endpoint, so it is implemented directly on crypto/rsa rather than
  through an OAuth dependency.
*/
package sheets

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// scope is the only OAuth scope the engine needs.
const scope = "https://www.googleapis.com/auth/spreadsheets"

// TokenSource supplies bearer tokens for API calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed token, for tests and short-lived local runs.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }

// =============================================================================
// SERVICE ACCOUNT
// =============================================================================

// ServiceAccount exchanges signed JWT assertions for access tokens.
type ServiceAccount struct {
	Email    string
	TokenURL string
	HTTP     *http.Client

	key *rsa.PrivateKey

	mu     sync.Mutex
	token  string
	expiry time.Time

	// now is swapped out in tests.
	now func() time.Time
}

// ParseServiceAccount reads a service-account key JSON blob.
func ParseServiceAccount(data []byte) (*ServiceAccount, error) {
	var raw struct {
		ClientEmail string `json:"client_email"`
		PrivateKey  string `json:"private_key"`
		TokenURI    string `json:"token_uri"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("service account json: %w", err)
	}
	if raw.ClientEmail == "" || raw.PrivateKey == "" {
		return nil, fmt.Errorf("service account json: missing client_email or private_key")
	}

	block, _ := pem.Decode([]byte(raw.PrivateKey))
	if block == nil {
		return nil, fmt.Errorf("service account key: no PEM block")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("service account key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("service account key: not an RSA key")
	}

	tokenURL := raw.TokenURI
	if tokenURL == "" {
		tokenURL = "https://oauth2.googleapis.com/token"
	}
	return &ServiceAccount{
		Email:    raw.ClientEmail,
		TokenURL: tokenURL,
		HTTP:     http.DefaultClient,
		key:      key,
		now:      time.Now,
	}, nil
}

// Token returns a cached access token, refreshing when less than a
// minute of validity remains.
func (sa *ServiceAccount) Token(ctx context.Context) (string, error) {
	sa.mu.Lock()
	defer sa.mu.Unlock()

	if sa.token != "" && sa.now().Add(time.Minute).Before(sa.expiry) {
		return sa.token, nil
	}

	assertion, err := sa.assertion()
	if err != nil {
		return "", err
	}

	form := url.Values{
		"grant_type": {"urn:ietf:params:oauth:grant-type:jwt-bearer"},
		"assertion":  {assertion},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sa.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := sa.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token exchange: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("token exchange: %w", err)
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("token exchange: empty access_token")
	}

	sa.token = out.AccessToken
	sa.expiry = sa.now().Add(time.Duration(out.ExpiresIn) * time.Second)
	return sa.token, nil
}

// assertion builds and signs the RS256 JWT grant.
func (sa *ServiceAccount) assertion() (string, error) {
	now := sa.now()
	header := map[string]string{"alg": "RS256", "typ": "JWT"}
	claims := map[string]any{
		"iss":   sa.Email,
		"scope": scope,
		"aud":   sa.TokenURL,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}

	h, err := json.Marshal(header)
	if err != nil {
		return "", err
	}
	c, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	signing := base64.RawURLEncoding.EncodeToString(h) + "." + base64.RawURLEncoding.EncodeToString(c)

	digest := sha256.Sum256([]byte(signing))
	sig, err := rsa.SignPKCS1v15(rand.Reader, sa.key, crypto.SHA256, digest[:])
	if err != nil {
		return "", fmt.Errorf("sign assertion: %w", err)
	}
	return signing + "." + base64.RawURLEncoding.EncodeToString(sig), nil
}
