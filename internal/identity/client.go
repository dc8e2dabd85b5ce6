package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TokenSource returns the access token to present, or "" when signed out.
type TokenSource interface {
	Token() string
}

// AuthClient asks the auth server who the current token belongs to.
type AuthClient struct {
	baseURL string
	tokens  TokenSource
	client  *http.Client
}

func NewAuthClient(baseURL string, tokens TokenSource, client *http.Client) *AuthClient {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &AuthClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		tokens:  tokens,
		client:  client,
	}
}

type authUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// CurrentUser returns nil without error when there is no token or the
// server rejects it.
func (c *AuthClient) CurrentUser(ctx context.Context) (*uuid.UUID, error) {
	token := c.tokens.Token()
	if token == "" {
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build auth request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		io.Copy(io.Discard, resp.Body)
		return nil, nil
	case resp.StatusCode != http.StatusOK:
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: status %d", ErrAuthUnavailable, resp.StatusCode)
	}

	var user authUser
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode auth user: %w", err)
	}
	id, err := uuid.Parse(user.ID)
	if err != nil || id == uuid.Nil {
		return nil, ErrInvalidSubject
	}
	return &id, nil
}
