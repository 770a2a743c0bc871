// Package auth verifies agent tokens against an external identity
// service. An arena is open by default; operators hosting a public one
// point the gateway at a verifier endpoint, and agents present a token
// in their hello frame. A verified identity outranks whatever name and
// wallet the agent declared for itself.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var (
	// ErrInvalidToken means the verifier definitively rejected the token.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrUnavailable means the verifier could not be reached or answered
	// with a transient failure. The gateway rejects the connection but
	// tells the agent to retry.
	ErrUnavailable = errors.New("auth: verifier unavailable")
)

const (
	defaultTimeout = 2 * time.Second
	maxBodyBytes   = 1 << 20
)

// Identity is what the verifier vouches for.
type Identity struct {
	Name    string `json:"name,omitempty"`
	Wallet  string `json:"wallet,omitempty"`
	OwnerID string `json:"ownerId,omitempty"`
}

// Validator checks agent tokens. Implementations return the verified
// identity, ErrInvalidToken for a definitive rejection, or
// ErrUnavailable when no verdict could be obtained.
type Validator interface {
	Validate(ctx context.Context, token string) (Identity, error)
}

// HTTPValidator asks an external verifier endpoint for a verdict on
// each token.
type HTTPValidator struct {
	url     string
	secret  string
	timeout time.Duration
	client  *http.Client
}

// ValidatorOption adjusts an HTTPValidator.
type ValidatorOption func(*HTTPValidator)

// WithSecret sets a shared secret forwarded in the X-Arena-Secret
// header so the verifier can tell arenas apart.
func WithSecret(secret string) ValidatorOption {
	return func(v *HTTPValidator) { v.secret = secret }
}

// WithTimeout bounds each verification call.
func WithTimeout(d time.Duration) ValidatorOption {
	return func(v *HTTPValidator) { v.timeout = d }
}

// WithHTTPClient substitutes the HTTP client, mostly for tests.
func WithHTTPClient(client *http.Client) ValidatorOption {
	return func(v *HTTPValidator) { v.client = client }
}

// NewHTTPValidator creates a validator posting to the given URL.
func NewHTTPValidator(url string, opts ...ValidatorOption) *HTTPValidator {
	v := &HTTPValidator{
		url:     url,
		timeout: defaultTimeout,
		client:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

type verifyRequest struct {
	Token string `json:"token"`
}

type verifyResponse struct {
	Valid   bool   `json:"valid"`
	Name    string `json:"name,omitempty"`
	Wallet  string `json:"wallet,omitempty"`
	OwnerID string `json:"ownerId,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Validate posts the token to the verifier. An empty token is rejected
// without a round trip.
func (v *HTTPValidator) Validate(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrInvalidToken
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	body, err := json.Marshal(verifyRequest{Token: token})
	if err != nil {
		return Identity{}, fmt.Errorf("encode verify request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, bytes.NewReader(body))
	if err != nil {
		return Identity{}, fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if v.secret != "" {
		req.Header.Set("X-Arena-Secret", v.secret)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return Identity{}, ErrInvalidToken
	default:
		return Identity{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var verdict verifyResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&verdict); err != nil {
		return Identity{}, fmt.Errorf("%w: decode verdict: %v", ErrUnavailable, err)
	}
	if !verdict.Valid {
		if verdict.Error != "" {
			return Identity{}, fmt.Errorf("%w: %s", ErrInvalidToken, verdict.Error)
		}
		return Identity{}, ErrInvalidToken
	}
	return Identity{Name: verdict.Name, Wallet: verdict.Wallet, OwnerID: verdict.OwnerID}, nil
}
