package adapter

import (
	"context"

	"golang.org/x/oauth2"
)

// Grant identifies whose storage an adapter acts on.
type Grant struct {
	// Owner is a stable account identifier (the profile id).
	Owner string
	// Token is the OAuth access token of the signed-in session.
	Token *oauth2.Token
}

// StorageProvider builds a StorageAdapter for one signed-in session.
type StorageProvider interface {
	GetAdapter(ctx context.Context, grant Grant) (StorageAdapter, error)
}
