package googledrive

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"github.com/jun/policydraft/internal/adapter"
)

// Provider implements adapter.StorageProvider for Google Drive.
type Provider struct {
	opts []option.ClientOption
}

// NewProvider creates a new Google Drive provider. The options are passed to
// every Drive service it builds.
func NewProvider(opts ...option.ClientOption) *Provider {
	return &Provider{opts: opts}
}

// GetAdapter returns a DriveAdapter acting with the grant's access token.
func (p *Provider) GetAdapter(ctx context.Context, grant adapter.Grant) (adapter.StorageAdapter, error) {
	if grant.Token == nil || grant.Token.AccessToken == "" {
		return nil, errors.New("missing access token")
	}

	// The access token is never refreshed here; an expired token ends the session.
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(grant.Token))

	storage, err := NewDriveAdapter(ctx, client, p.opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive adapter: %w", err)
	}

	return storage, nil
}
