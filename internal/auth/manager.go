// Package auth is the cloud session manager: it owns the sign-in lifecycle
// of each workspace and the file operations against the configured folder.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/jun/policydraft/internal/adapter"
	"github.com/jun/policydraft/internal/config"
	"github.com/jun/policydraft/internal/domain"
	"github.com/jun/policydraft/internal/model"
	"golang.org/x/oauth2"
)

const (
	msgNotReady      = "GAPI client is not ready."
	msgNotSignedIn   = "Not signed in."
	msgBadFolderURL  = "Could not determine Google Drive folder ID from URL."
	maxFileNameRunes = 255
)

// State is the lifecycle state of a Manager.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	default:
		return "uninitialized"
	}
}

// SessionObserver is notified whenever a workspace signs in or out.
// user is nil on sign-out and on a failed sign-in.
type SessionObserver interface {
	SessionChanged(sessionID string, user *model.User)
}

// TokenGranter runs the authorization-code grant. *oauth2.Config satisfies it.
type TokenGranter interface {
	AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string
	Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error)
}

// Options wires a Manager.
type Options struct {
	Granter          TokenGranter
	Profiles         ProfileFetcher
	Revoker          Revoker
	Storage          adapter.StorageProvider
	Store            TokenStore
	StorageFolderURL string
	Logger           *slog.Logger
}

// Manager implements the session lifecycle. All workspaces share one
// Manager; per-workspace state lives in the TokenStore.
type Manager struct {
	granter   TokenGranter
	profiles  ProfileFetcher
	revoker   Revoker
	storage   adapter.StorageProvider
	store     TokenStore
	folderURL string
	logger    *slog.Logger

	mu        sync.Mutex
	state     State
	ready     chan struct{}
	initErr   error
	folderID  string
	folderOK  bool
	observers []SessionObserver
	// signedOut holds workspaces whose token survived a failed delete.
	signedOut map[string]struct{}
}

func NewManager(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		granter:   opts.Granter,
		profiles:  opts.Profiles,
		revoker:   opts.Revoker,
		storage:   opts.Storage,
		store:     opts.Store,
		folderURL: opts.StorageFolderURL,
		logger:    logger,
		ready:     make(chan struct{}),
		signedOut: make(map[string]struct{}),
	}
}

// Initialize establishes the clients and resolves the storage folder. It runs
// once; later calls wait for the first and return its result.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateUninitialized {
		m.mu.Unlock()
		select {
		case <-m.ready:
			return m.initErr
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.state = StateInitializing
	m.mu.Unlock()

	var err error
	switch {
	case m.granter == nil, m.profiles == nil, m.revoker == nil:
		err = &domain.InitializationError{Message: "authorization client is not configured"}
	case m.storage == nil, m.store == nil:
		err = &domain.InitializationError{Message: "storage client is not configured"}
	}

	folderID, ok := config.FolderIDFromURL(m.folderURL)
	if !ok {
		// Not fatal: storage operations report it as a configuration error.
		m.logger.Warn("storage folder URL not parsable", "url", m.folderURL)
	}

	m.mu.Lock()
	m.folderID, m.folderOK = folderID, ok
	m.initErr = err
	m.state = StateReady
	m.mu.Unlock()
	close(m.ready)

	if err != nil {
		m.logger.Error("session manager initialization failed", "error", err)
		return err
	}
	m.logger.Info("session manager ready", "folder_id", folderID)
	return nil
}

// Ready is closed once Initialize has completed.
func (m *Manager) Ready() <-chan struct{} {
	return m.ready
}

// State reports the lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers an observer for session changes.
func (m *Manager) Subscribe(o SessionObserver) {
	m.mu.Lock()
	m.observers = append(m.observers, o)
	m.mu.Unlock()
}

func (m *Manager) notify(sessionID string, user *model.User) {
	m.mu.Lock()
	observers := append([]SessionObserver(nil), m.observers...)
	m.mu.Unlock()
	for _, o := range observers {
		o.SessionChanged(sessionID, user)
	}
}

func (m *Manager) checkReady() error {
	select {
	case <-m.ready:
		return m.initErr
	default:
		return &domain.InitializationError{Message: msgNotReady}
	}
}

// SignIn returns the consent URL the browser must visit. state is echoed back
// to the callback untouched.
func (m *Manager) SignIn(sessionID, state string) (string, error) {
	if err := m.checkReady(); err != nil {
		return "", err
	}
	m.logger.Debug("sign-in requested", "session_id", sessionID)
	return m.granter.AuthCodeURL(state, oauth2.AccessTypeOnline), nil
}

// CompleteSignIn exchanges the authorization code and fetches the profile.
// The workspace is signed in only if both succeed.
func (m *Manager) CompleteSignIn(ctx context.Context, sessionID, code string) (*model.User, error) {
	if err := m.checkReady(); err != nil {
		return nil, err
	}

	token, err := m.granter.Exchange(ctx, code)
	if err != nil {
		m.notify(sessionID, nil)
		return nil, &domain.BackendError{Message: "Failed to sign in: " + err.Error(), Err: err}
	}

	user, err := m.profiles.FetchProfile(ctx, token)
	if err != nil {
		m.logger.Warn("profile fetch failed, treating session as signed out", "session_id", sessionID, "error", err)
		m.notify(sessionID, nil)
		return nil, &domain.BackendError{Message: "Failed to fetch user profile: " + err.Error(), Err: err}
	}

	if err := m.store.Save(ctx, sessionID, Credentials{User: *user, Token: token}); err != nil {
		m.notify(sessionID, nil)
		return nil, &domain.BackendError{Message: "Failed to store session: " + err.Error(), Err: err}
	}

	m.forget(sessionID)
	m.logger.Info("signed in", "session_id", sessionID, "user_id", user.ID)
	m.notify(sessionID, user)
	return user, nil
}

// SignOut revokes the token and forgets it. Signing out a signed-out
// workspace does nothing. The token is forgotten even if revocation fails.
func (m *Manager) SignOut(ctx context.Context, sessionID string) error {
	if err := m.checkReady(); err != nil {
		return err
	}

	creds, err := m.store.Load(ctx, sessionID)
	if errors.Is(err, ErrNoSession) {
		m.forget(sessionID)
		return nil
	}

	var revokeErr error
	switch {
	case m.isSignedOut(sessionID):
		// Revoked by the earlier attempt; only the delete is left.
	case err == nil:
		revokeErr = m.revoker.Revoke(ctx, creds.Token.AccessToken)
	default:
		m.logger.Warn("stored session unreadable, clearing", "session_id", sessionID, "error", err)
	}

	delErr := m.store.Delete(ctx, sessionID)
	if delErr != nil {
		delErr = m.store.Delete(ctx, sessionID)
	}
	if delErr != nil {
		m.mu.Lock()
		m.signedOut[sessionID] = struct{}{}
		m.mu.Unlock()
		m.notify(sessionID, nil)
		m.logger.Error("stored token not deleted, session cleared locally", "session_id", sessionID, "error", delErr)
		return &domain.BackendError{Message: "Failed to sign out: " + delErr.Error(), Err: delErr}
	}
	m.forget(sessionID)
	m.notify(sessionID, nil)

	if revokeErr != nil {
		m.logger.Warn("token revocation failed", "session_id", sessionID, "error", revokeErr)
		return &domain.BackendError{Message: "Failed to revoke token: " + revokeErr.Error(), Err: revokeErr}
	}
	m.logger.Info("signed out", "session_id", sessionID)
	return nil
}

// load reads the stored credentials. A workspace that signed out while its
// token could not be deleted has none.
func (m *Manager) load(ctx context.Context, sessionID string) (*Credentials, error) {
	if m.isSignedOut(sessionID) {
		return nil, ErrNoSession
	}
	return m.store.Load(ctx, sessionID)
}

func (m *Manager) isSignedOut(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.signedOut[sessionID]
	return ok
}

func (m *Manager) forget(sessionID string) {
	m.mu.Lock()
	delete(m.signedOut, sessionID)
	m.mu.Unlock()
}

// Session returns the workspace's session. Missing, unreadable or expired
// tokens all read as signed out.
func (m *Manager) Session(ctx context.Context, sessionID string) model.Session {
	if m.checkReady() != nil {
		return model.SignedOut
	}
	creds, err := m.load(ctx, sessionID)
	if err != nil || !creds.Token.Valid() {
		return model.SignedOut
	}
	return model.Session{
		SignedIn:    true,
		DisplayName: creds.User.DisplayName,
		AccessToken: creds.Token.AccessToken,
	}
}

// storageFor checks the preconditions of every storage operation in order:
// initialized, folder configured, signed in with a live token.
func (m *Manager) storageFor(ctx context.Context, sessionID string) (adapter.StorageAdapter, string, error) {
	if err := m.checkReady(); err != nil {
		return nil, "", err
	}
	if !m.folderOK {
		return nil, "", &domain.ConfigurationError{Message: msgBadFolderURL}
	}

	creds, err := m.load(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, ErrNoSession) {
			m.logger.Warn("stored session unreadable", "session_id", sessionID, "error", err)
		}
		return nil, "", &domain.NotSignedInError{Message: msgNotSignedIn}
	}
	if !creds.Token.Valid() {
		return nil, "", &domain.NotSignedInError{Message: msgNotSignedIn}
	}

	storage, err := m.storage.GetAdapter(ctx, adapter.Grant{Owner: creds.User.ID, Token: creds.Token})
	if err != nil {
		return nil, "", backendError(err)
	}
	return storage, m.folderID, nil
}

// ListFiles lists the plain-text files of the configured folder.
func (m *Manager) ListFiles(ctx context.Context, sessionID string) ([]model.RemoteFile, error) {
	storage, folderID, err := m.storageFor(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	metas, err := storage.ListFiles(ctx, folderID)
	if err != nil {
		return nil, backendError(err)
	}

	files := make([]model.RemoteFile, 0, len(metas))
	for _, f := range metas {
		files = append(files, model.RemoteFile{ID: f.ID, Name: f.Name})
	}
	return files, nil
}

// GetFileContent returns the text of one file of the configured folder.
func (m *Manager) GetFileContent(ctx context.Context, sessionID, fileID string) (string, error) {
	storage, folderID, err := m.storageFor(ctx, sessionID)
	if err != nil {
		return "", err
	}

	f, err := addressable(ctx, storage, folderID, fileID)
	if err != nil {
		return "", err
	}
	return string(f.Content), nil
}

// SaveFile creates a new file in the configured folder. A ".txt" suffix is
// added unless the name already has one.
func (m *Manager) SaveFile(ctx context.Context, sessionID, name, content string) (*model.RemoteFile, error) {
	storage, folderID, err := m.storageFor(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if err := validation.Validate(name,
		validation.Required,
		validation.RuneLength(1, maxFileNameRunes),
	); err != nil {
		return nil, &domain.ValidationError{Message: "file name " + err.Error()}
	}

	meta, err := storage.CreateFile(ctx, adapter.TextFileName(name), []byte(content), folderID)
	if err != nil {
		return nil, backendError(err)
	}
	m.logger.Info("file created", "session_id", sessionID, "file_id", meta.ID)
	return &model.RemoteFile{ID: meta.ID, Name: meta.Name}, nil
}

// UpdateFile overwrites the body of an existing file. Its id and name stay.
func (m *Manager) UpdateFile(ctx context.Context, sessionID, fileID, content string) (*model.RemoteFile, error) {
	storage, folderID, err := m.storageFor(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if _, err := addressable(ctx, storage, folderID, fileID); err != nil {
		return nil, err
	}

	meta, err := storage.UpdateFile(ctx, fileID, []byte(content))
	if err != nil {
		return nil, backendError(err)
	}
	m.logger.Info("file updated", "session_id", sessionID, "file_id", meta.ID)
	return &model.RemoteFile{ID: meta.ID, Name: meta.Name}, nil
}

// addressable fetches fileID and rejects anything that is not a plain-text
// file directly inside folderID.
func addressable(ctx context.Context, storage adapter.StorageAdapter, folderID, fileID string) (*adapter.File, error) {
	f, err := storage.GetFile(ctx, fileID)
	if err != nil {
		return nil, backendError(err)
	}
	if !f.InFolder(folderID) || !isPlainText(f.MIMEType) {
		return nil, backendError(adapter.ErrNotFound)
	}
	return f, nil
}

func isPlainText(mimeType string) bool {
	base, _, _ := strings.Cut(mimeType, ";")
	return strings.TrimSpace(base) == adapter.PlainTextMIME
}

func backendError(err error) error {
	return &domain.BackendError{Message: err.Error(), Err: err}
}

