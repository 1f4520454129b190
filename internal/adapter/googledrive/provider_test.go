package googledrive

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"github.com/jun/policydraft/internal/adapter"
)

func TestProvider_GetAdapter_MissingToken(t *testing.T) {
	p := NewProvider()
	for _, grant := range []adapter.Grant{{}, {Token: &oauth2.Token{}}} {
		if _, err := p.GetAdapter(context.Background(), grant); err == nil {
			t.Errorf("expected error for grant %+v", grant)
		}
	}
}

func TestProvider_GetAdapter_SendsAccessToken(t *testing.T) {
	var (
		mu   sync.Mutex
		auth string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		auth = r.Header.Get("Authorization")
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"files":[]}`))
	}))
	t.Cleanup(srv.Close)

	p := NewProvider(option.WithEndpoint(srv.URL + "/"))
	storage, err := p.GetAdapter(context.Background(), adapter.Grant{
		Owner: "u1",
		Token: &oauth2.Token{AccessToken: "tok-123", TokenType: "Bearer"},
	})
	if err != nil {
		t.Fatalf("GetAdapter failed: %v", err)
	}
	if _, err := storage.ListFiles(context.Background(), "folder123"); err != nil {
		t.Fatalf("ListFiles failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if auth != "Bearer tok-123" {
		t.Errorf("Authorization = %q, want %q", auth, "Bearer tok-123")
	}
}
