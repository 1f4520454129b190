package auth

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jun/policydraft/internal/model"
	"golang.org/x/oauth2"
)

// DEV_MODE stand-ins for the Google authorization server. They let the whole
// sign-in flow run locally against the memory file store.

const demoCodePrefix = "demo-"

// DemoGranter "authorizes" by redirecting straight back to the callback with
// a generated code.
type DemoGranter struct {
	RedirectURL string
	TTL         time.Duration
}

func (g DemoGranter) AuthCodeURL(state string, _ ...oauth2.AuthCodeOption) string {
	q := url.Values{
		"code":  {demoCodePrefix + uuid.New().String()},
		"state": {state},
	}
	return g.RedirectURL + "?" + q.Encode()
}

func (g DemoGranter) Exchange(_ context.Context, code string, _ ...oauth2.AuthCodeOption) (*oauth2.Token, error) {
	if !strings.HasPrefix(code, demoCodePrefix) {
		return nil, &oauth2.RetrieveError{ErrorCode: "invalid_grant", ErrorDescription: "not a demo code"}
	}
	ttl := g.TTL
	if ttl == 0 {
		ttl = time.Hour
	}
	return &oauth2.Token{
		AccessToken: code,
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(ttl),
	}, nil
}

// DemoProfile is the fixed profile of demo sessions. Every demo sign-in maps
// to the same account so saved files survive sign-out.
type DemoProfile struct{}

func (DemoProfile) FetchProfile(context.Context, *oauth2.Token) (*model.User, error) {
	return &model.User{
		ID:          "demo-user",
		DisplayName: "Demo User",
		Email:       "demo@policydraft.local",
	}, nil
}

// NoopRevoker is used for demo tokens, which no server knows about.
type NoopRevoker struct{}

func (NoopRevoker) Revoke(context.Context, string) error { return nil }
