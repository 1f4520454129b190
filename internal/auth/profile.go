package auth

import (
	"context"
	"fmt"

	"github.com/jun/policydraft/internal/model"
	"golang.org/x/oauth2"
	googleoauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// ProfileFetcher resolves the account behind a freshly granted token.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, token *oauth2.Token) (*model.User, error)
}

// GoogleProfileFetcher reads the userinfo endpoint.
type GoogleProfileFetcher struct {
	opts []option.ClientOption
}

// NewGoogleProfileFetcher creates a GoogleProfileFetcher. Extra options are
// appended after the token source (tests point the endpoint at a fake).
func NewGoogleProfileFetcher(opts ...option.ClientOption) *GoogleProfileFetcher {
	return &GoogleProfileFetcher{opts: opts}
}

func (g *GoogleProfileFetcher) FetchProfile(ctx context.Context, token *oauth2.Token) (*model.User, error) {
	opts := append([]option.ClientOption{option.WithTokenSource(oauth2.StaticTokenSource(token))}, g.opts...)
	svc, err := googleoauth2.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth2 service: %w", err)
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}

	return &model.User{
		ID:          info.Id,
		DisplayName: displayName(info.GivenName, info.Name, info.Email),
		Email:       info.Email,
	}, nil
}

// displayName returns the first non-empty candidate.
func displayName(candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return ""
}
