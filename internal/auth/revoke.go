package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// RevokeURL is Google's token revocation endpoint.
const RevokeURL = "https://oauth2.googleapis.com/revoke"

// Revoker invalidates an access token at the authorization server.
type Revoker interface {
	Revoke(ctx context.Context, accessToken string) error
}

// HTTPRevoker posts the token to an RFC 7009 style revocation endpoint.
type HTTPRevoker struct {
	client   *http.Client
	endpoint string
}

func NewHTTPRevoker(client *http.Client, endpoint string) *HTTPRevoker {
	if client == nil {
		client = http.DefaultClient
	}
	if endpoint == "" {
		endpoint = RevokeURL
	}
	return &HTTPRevoker{client: client, endpoint: endpoint}
}

func (r *HTTPRevoker) Revoke(ctx context.Context, accessToken string) error {
	form := url.Values{"token": {accessToken}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("revoke request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("revoke failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
