package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jun/policydraft/internal/adapter"
	"github.com/jun/policydraft/internal/adapter/memory"
	"github.com/jun/policydraft/internal/crypto"
	"github.com/jun/policydraft/internal/domain"
	"github.com/jun/policydraft/internal/model"
	"golang.org/x/oauth2"
)

const testFolderURL = "https://drive.google.com/drive/folders/folder123?usp=drive_link"

type fakeGranter struct {
	token *oauth2.Token
	err   error
}

func (f *fakeGranter) AuthCodeURL(state string, _ ...oauth2.AuthCodeOption) string {
	return "https://accounts.example/auth?state=" + state
}

func (f *fakeGranter) Exchange(_ context.Context, code string, _ ...oauth2.AuthCodeOption) (*oauth2.Token, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.token != nil {
		return f.token, nil
	}
	return &oauth2.Token{AccessToken: "tok-" + code, TokenType: "Bearer", Expiry: time.Now().Add(time.Hour)}, nil
}

type fakeProfiles struct {
	err error
}

func (f *fakeProfiles) FetchProfile(context.Context, *oauth2.Token) (*model.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.User{ID: "u1", DisplayName: "Ada", Email: "ada@example.com"}, nil
}

type fakeRevoker struct {
	mu      sync.Mutex
	revoked []string
	err     error
}

func (f *fakeRevoker) Revoke(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, token)
	return f.err
}

type recordingObserver struct {
	mu     sync.Mutex
	events []*model.User
}

func (r *recordingObserver) SessionChanged(_ string, user *model.User) {
	r.mu.Lock()
	r.events = append(r.events, user)
	r.mu.Unlock()
}

func (r *recordingObserver) last() *model.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return nil
	}
	return r.events[len(r.events)-1]
}

type testEnv struct {
	m        *Manager
	granter  *fakeGranter
	profiles *fakeProfiles
	revoker  *fakeRevoker
	store    *SessionStore
	observer *recordingObserver
}

func newTestEnv(t *testing.T, folderURL string) *testEnv {
	t.Helper()
	env := &testEnv{
		granter:  &fakeGranter{},
		profiles: &fakeProfiles{},
		revoker:  &fakeRevoker{},
		store:    NewSessionStore(nil, "", crypto.NewDevSealer()),
		observer: &recordingObserver{},
	}
	env.m = NewManager(Options{
		Granter:          env.granter,
		Profiles:         env.profiles,
		Revoker:          env.revoker,
		Storage:          memory.NewProvider(nil, ""),
		Store:            env.store,
		StorageFolderURL: folderURL,
	})
	env.m.Subscribe(env.observer)
	return env
}

func (e *testEnv) initAndSignIn(t *testing.T, sessionID string) {
	t.Helper()
	if err := e.m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if _, err := e.m.CompleteSignIn(context.Background(), sessionID, "code"); err != nil {
		t.Fatalf("CompleteSignIn failed: %v", err)
	}
}

func TestManager_OperationsBeforeInitialize(t *testing.T) {
	env := newTestEnv(t, testFolderURL)
	ctx := context.Background()

	if _, err := env.m.SignIn("s1", "state"); !errors.Is(err, domain.ErrInitialization) {
		t.Errorf("SignIn: expected InitializationError, got %v", err)
	}
	if err := env.m.SignOut(ctx, "s1"); !errors.Is(err, domain.ErrInitialization) {
		t.Errorf("SignOut: expected InitializationError, got %v", err)
	}
	if _, err := env.m.ListFiles(ctx, "s1"); !errors.Is(err, domain.ErrInitialization) {
		t.Errorf("ListFiles: expected InitializationError, got %v", err)
	}
	if env.m.State() != StateUninitialized {
		t.Errorf("State = %v, want uninitialized", env.m.State())
	}
}

func TestManager_Initialize_Once(t *testing.T) {
	env := newTestEnv(t, testFolderURL)
	ctx := context.Background()

	if err := env.m.Initialize(ctx); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	select {
	case <-env.m.Ready():
	default:
		t.Fatal("Ready channel not closed after Initialize")
	}
	if err := env.m.Initialize(ctx); err != nil {
		t.Errorf("second Initialize returned %v", err)
	}
	if env.m.State() != StateReady {
		t.Errorf("State = %v, want ready", env.m.State())
	}
}

func TestManager_Initialize_MissingClients(t *testing.T) {
	m := NewManager(Options{StorageFolderURL: testFolderURL})
	err := m.Initialize(context.Background())
	if !errors.Is(err, domain.ErrInitialization) {
		t.Fatalf("expected InitializationError, got %v", err)
	}
	if _, err := m.SignIn("s1", "x"); !errors.Is(err, domain.ErrInitialization) {
		t.Errorf("SignIn after failed init: got %v", err)
	}
}

func TestManager_SignIn_ReturnsConsentURL(t *testing.T) {
	env := newTestEnv(t, testFolderURL)
	_ = env.m.Initialize(context.Background())

	url, err := env.m.SignIn("s1", "st4te")
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if !strings.Contains(url, "state=st4te") {
		t.Errorf("consent URL %q does not carry state", url)
	}
}

func TestManager_CompleteSignIn(t *testing.T) {
	env := newTestEnv(t, testFolderURL)
	env.initAndSignIn(t, "s1")

	sess := env.m.Session(context.Background(), "s1")
	if !sess.SignedIn || sess.DisplayName != "Ada" || sess.AccessToken != "tok-code" {
		t.Errorf("unexpected session: %+v", sess)
	}
	if u := env.observer.last(); u == nil || u.DisplayName != "Ada" {
		t.Errorf("observer not notified with user, got %+v", u)
	}
}

func TestManager_CompleteSignIn_ProfileFailureFailsClosed(t *testing.T) {
	env := newTestEnv(t, testFolderURL)
	_ = env.m.Initialize(context.Background())
	env.profiles.err = errors.New("userinfo 500")

	_, err := env.m.CompleteSignIn(context.Background(), "s1", "code")
	if !errors.Is(err, domain.ErrBackend) {
		t.Fatalf("expected BackendError, got %v", err)
	}
	if env.m.Session(context.Background(), "s1").SignedIn {
		t.Error("session must stay signed out when profile fetch fails")
	}
	if len(env.observer.events) != 1 || env.observer.last() != nil {
		t.Errorf("expected a single nil notification, got %v", env.observer.events)
	}
}

func TestManager_CompleteSignIn_ExchangeFailure(t *testing.T) {
	env := newTestEnv(t, testFolderURL)
	_ = env.m.Initialize(context.Background())
	env.granter.err = errors.New("invalid_grant")

	if _, err := env.m.CompleteSignIn(context.Background(), "s1", "bad"); !errors.Is(err, domain.ErrBackend) {
		t.Fatalf("expected BackendError, got %v", err)
	}
	if env.m.Session(context.Background(), "s1").SignedIn {
		t.Error("session must stay signed out")
	}
}

func TestManager_SignOut(t *testing.T) {
	env := newTestEnv(t, testFolderURL)
	env.initAndSignIn(t, "s1")
	ctx := context.Background()

	if err := env.m.SignOut(ctx, "s1"); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}
	if env.m.Session(ctx, "s1").SignedIn {
		t.Error("expected signed out")
	}
	if len(env.revoker.revoked) != 1 || env.revoker.revoked[0] != "tok-code" {
		t.Errorf("token not revoked: %v", env.revoker.revoked)
	}
	if env.observer.last() != nil {
		t.Error("observer should see nil after sign-out")
	}

	// Repeated sign-out is a no-op.
	if err := env.m.SignOut(ctx, "s1"); err != nil {
		t.Errorf("second SignOut returned %v", err)
	}
	if len(env.revoker.revoked) != 1 {
		t.Errorf("second SignOut revoked again: %v", env.revoker.revoked)
	}
}

func TestManager_SignOut_RevokeFailureStillSignsOut(t *testing.T) {
	env := newTestEnv(t, testFolderURL)
	env.initAndSignIn(t, "s1")
	env.revoker.err = errors.New("revoke 400")
	ctx := context.Background()

	err := env.m.SignOut(ctx, "s1")
	if !errors.Is(err, domain.ErrBackend) {
		t.Fatalf("expected BackendError, got %v", err)
	}
	if env.m.Session(ctx, "s1").SignedIn {
		t.Error("expected signed out even though revoke failed")
	}
}

// flakyStore fails the first deletes it is asked for.
type flakyStore struct {
	*SessionStore
	mu        sync.Mutex
	failLeft  int
	deletions int
}

func (s *flakyStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	s.deletions++
	if s.failLeft > 0 {
		s.failLeft--
		s.mu.Unlock()
		return errors.New("table unavailable")
	}
	s.mu.Unlock()
	return s.SessionStore.Delete(ctx, sessionID)
}

func TestManager_SignOut_DeleteFailure(t *testing.T) {
	tests := []struct {
		name     string
		failures int
		wantErr  bool
	}{
		{"retry succeeds", 1, false},
		{"delete keeps failing", 2, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, testFolderURL)
			store := &flakyStore{SessionStore: env.store, failLeft: tt.failures}
			env.m.store = store
			env.initAndSignIn(t, "s1")
			ctx := context.Background()

			err := env.m.SignOut(ctx, "s1")
			if tt.wantErr && !errors.Is(err, domain.ErrBackend) {
				t.Fatalf("expected BackendError, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("SignOut failed: %v", err)
			}
			if env.m.Session(ctx, "s1").SignedIn {
				t.Error("expected signed out")
			}
			if env.observer.last() != nil {
				t.Error("observer should see nil after sign-out")
			}
			if _, err := env.m.ListFiles(ctx, "s1"); !errors.Is(err, domain.ErrNotSignedIn) {
				t.Errorf("ListFiles after sign-out: got %v, want NotSignedIn", err)
			}
		})
	}
}

func TestManager_SignOut_RetryClearsStoredToken(t *testing.T) {
	env := newTestEnv(t, testFolderURL)
	store := &flakyStore{SessionStore: env.store, failLeft: 2}
	env.m.store = store
	env.initAndSignIn(t, "s1")
	ctx := context.Background()

	_ = env.m.SignOut(ctx, "s1")
	if err := env.m.SignOut(ctx, "s1"); err != nil {
		t.Fatalf("second SignOut failed: %v", err)
	}
	if len(env.revoker.revoked) != 1 {
		t.Errorf("token revoked %d times, want 1", len(env.revoker.revoked))
	}
	if _, err := env.store.Load(ctx, "s1"); !errors.Is(err, ErrNoSession) {
		t.Errorf("stored token still present: %v", err)
	}

	// Signing in again lifts the local sign-out.
	if _, err := env.m.CompleteSignIn(ctx, "s1", "code"); err != nil {
		t.Fatalf("CompleteSignIn failed: %v", err)
	}
	if !env.m.Session(ctx, "s1").SignedIn {
		t.Error("expected signed in after a new sign-in")
	}
}

func TestManager_StorageOps_Preconditions(t *testing.T) {
	ctx := context.Background()

	t.Run("signed out", func(t *testing.T) {
		env := newTestEnv(t, testFolderURL)
		_ = env.m.Initialize(ctx)

		if _, err := env.m.ListFiles(ctx, "s1"); !errors.Is(err, domain.ErrNotSignedIn) {
			t.Errorf("ListFiles: %v", err)
		}
		if _, err := env.m.GetFileContent(ctx, "s1", "f"); !errors.Is(err, domain.ErrNotSignedIn) {
			t.Errorf("GetFileContent: %v", err)
		}
		if _, err := env.m.SaveFile(ctx, "s1", "n", "c"); !errors.Is(err, domain.ErrNotSignedIn) {
			t.Errorf("SaveFile: %v", err)
		}
		if _, err := env.m.UpdateFile(ctx, "s1", "f", "c"); !errors.Is(err, domain.ErrNotSignedIn) {
			t.Errorf("UpdateFile: %v", err)
		}
	})

	t.Run("misconfigured folder", func(t *testing.T) {
		env := newTestEnv(t, "https://drive.google.com/file/d/nope")
		env.initAndSignIn(t, "s1")

		files, err := env.m.ListFiles(ctx, "s1")
		if !errors.Is(err, domain.ErrConfiguration) {
			t.Fatalf("expected ConfigurationError, got %v", err)
		}
		if files != nil {
			t.Errorf("expected no files, got %v", files)
		}
	})

	t.Run("expired token", func(t *testing.T) {
		env := newTestEnv(t, testFolderURL)
		env.granter.token = &oauth2.Token{AccessToken: "old", Expiry: time.Now().Add(-time.Minute)}
		env.initAndSignIn(t, "s1")

		if _, err := env.m.ListFiles(ctx, "s1"); !errors.Is(err, domain.ErrNotSignedIn) {
			t.Errorf("expected NotSignedInError for expired token, got %v", err)
		}
		if env.m.Session(ctx, "s1").SignedIn {
			t.Error("expired token should read as signed out")
		}
	})
}

func TestManager_FileRoundTrip(t *testing.T) {
	env := newTestEnv(t, testFolderURL)
	env.initAndSignIn(t, "s1")
	ctx := context.Background()

	files, err := env.m.ListFiles(ctx, "s1")
	if err != nil {
		t.Fatalf("ListFiles failed: %v", err)
	}
	if files == nil || len(files) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", files)
	}

	saved, err := env.m.SaveFile(ctx, "s1", "  remote work ", "v1")
	if err != nil {
		t.Fatalf("SaveFile failed: %v", err)
	}
	if saved.Name != "remote work.txt" {
		t.Errorf("Name = %q, want %q", saved.Name, "remote work.txt")
	}

	kept, err := env.m.SaveFile(ctx, "s1", "already.txt", "x")
	if err != nil {
		t.Fatalf("SaveFile failed: %v", err)
	}
	if kept.Name != "already.txt" {
		t.Errorf("Name = %q, want already.txt", kept.Name)
	}

	updated, err := env.m.UpdateFile(ctx, "s1", saved.ID, "v2")
	if err != nil {
		t.Fatalf("UpdateFile failed: %v", err)
	}
	if updated.ID != saved.ID || updated.Name != saved.Name {
		t.Errorf("UpdateFile changed identity: %+v", updated)
	}

	text, err := env.m.GetFileContent(ctx, "s1", saved.ID)
	if err != nil {
		t.Fatalf("GetFileContent failed: %v", err)
	}
	if text != "v2" {
		t.Errorf("content = %q, want v2", text)
	}

	files, _ = env.m.ListFiles(ctx, "s1")
	if len(files) != 2 {
		t.Errorf("expected 2 files, got %d", len(files))
	}
}

func TestManager_SaveFile_BlankName(t *testing.T) {
	env := newTestEnv(t, testFolderURL)
	env.initAndSignIn(t, "s1")

	_, err := env.m.SaveFile(context.Background(), "s1", "   ", "x")
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}

// foreignProvider returns files that live outside the configured folder.
type foreignProvider struct{}

func (foreignProvider) GetAdapter(context.Context, adapter.Grant) (adapter.StorageAdapter, error) {
	return foreignStorage{}, nil
}

type foreignStorage struct{ adapter.StorageAdapter }

func (foreignStorage) GetFile(_ context.Context, id string) (*adapter.File, error) {
	mime := adapter.PlainTextMIME
	parents := []string{"folder123"}
	switch id {
	case "elsewhere":
		parents = []string{"other"}
	case "doc":
		mime = "application/vnd.google-apps.document"
	}
	return &adapter.File{
		FileMetadata: adapter.FileMetadata{ID: id, Name: id, MIMEType: mime, Parents: parents},
		Content:      []byte("secret"),
	}, nil
}

func TestManager_GetFileContent_OnlyFolderPlainText(t *testing.T) {
	env := newTestEnv(t, testFolderURL)
	env.m.storage = foreignProvider{}
	env.initAndSignIn(t, "s1")
	ctx := context.Background()

	for _, id := range []string{"elsewhere", "doc"} {
		if _, err := env.m.GetFileContent(ctx, "s1", id); !errors.Is(err, adapter.ErrNotFound) {
			t.Errorf("GetFileContent(%q): expected ErrNotFound, got %v", id, err)
		}
	}
	if text, err := env.m.GetFileContent(ctx, "s1", "ok"); err != nil || text != "secret" {
		t.Errorf("GetFileContent(ok) = %q, %v", text, err)
	}
}

func TestManager_SessionsAreIndependent(t *testing.T) {
	env := newTestEnv(t, testFolderURL)
	env.initAndSignIn(t, "s1")
	ctx := context.Background()

	if env.m.Session(ctx, "s2").SignedIn {
		t.Error("s2 should not share s1's session")
	}
	if _, err := env.m.ListFiles(ctx, "s2"); !errors.Is(err, domain.ErrNotSignedIn) {
		t.Errorf("expected NotSignedInError for s2, got %v", err)
	}
}
