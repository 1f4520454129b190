// Package controller routes UI intents to the session manager and the
// assistant, and merges their results into per-workspace state.
package controller

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jun/policydraft/internal/domain"
	"github.com/jun/policydraft/internal/model"
	"github.com/jun/policydraft/internal/pending"
)

// Error slot prefixes, one per async intent.
const (
	prefixGenerate = "Failed to generate content: "
	prefixAsk      = "Failed to get answer: "
	prefixList     = "Failed to list Google Drive files: "
	prefixLoad     = "Failed to load file content: "
	prefixSaveNew  = "Failed to save new file: "
	prefixUpdate   = "Failed to update file: "

	msgEmptyFileName = "Please enter a file name."
	msgEmptyDocument = "The document is empty."
)

// ErrWorkspaceClosed is returned when a result arrives for a torn-down workspace.
// The result has been discarded.
var ErrWorkspaceClosed = errors.New("workspace closed")

// SessionManager is the cloud session manager as seen by the controller.
type SessionManager interface {
	SignIn(sessionID, state string) (string, error)
	CompleteSignIn(ctx context.Context, sessionID, code string) (*model.User, error)
	SignOut(ctx context.Context, sessionID string) error
	Session(ctx context.Context, sessionID string) model.Session

	ListFiles(ctx context.Context, sessionID string) ([]model.RemoteFile, error)
	GetFileContent(ctx context.Context, sessionID, fileID string) (string, error)
	SaveFile(ctx context.Context, sessionID, name, content string) (*model.RemoteFile, error)
	UpdateFile(ctx context.Context, sessionID, fileID, content string) (*model.RemoteFile, error)
}

// Assistant is the generative assistant client.
type Assistant interface {
	DraftSection(ctx context.Context, topic, document string) (string, error)
	AnswerQuestion(ctx context.Context, question string) (string, error)
}

// Controller owns every open workspace.
type Controller struct {
	sessions  SessionManager
	assistant Assistant
	guard     pending.Guard
	logger    *slog.Logger

	idleTimeout time.Duration
	now         func() time.Time

	mu         sync.Mutex
	workspaces map[string]*workspace
	lastSweep  time.Time
}

// DefaultIdleTimeout matches the lifetime of the workspace cookie.
const DefaultIdleTimeout = 24 * time.Hour

// Option configures a Controller.
type Option func(*Controller)

// WithIdleTimeout sets how long an untouched workspace is kept.
func WithIdleTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.idleTimeout = d
		}
	}
}

func New(sessions SessionManager, assistant Assistant, guard pending.Guard, logger *slog.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		sessions:    sessions,
		assistant:   assistant,
		guard:       guard,
		logger:      logger,
		idleTimeout: DefaultIdleTimeout,
		now:         time.Now,
		workspaces:  make(map[string]*workspace),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.lastSweep = c.now()
	return c
}

// workspace returns the live workspace for sessionID, creating it on first use.
func (c *Controller) workspace(sessionID string) *workspace {
	c.mu.Lock()
	now := c.now()
	evicted := c.sweepLocked(now)
	w, ok := c.workspaces[sessionID]
	if !ok {
		w = newWorkspace(sessionID)
		c.workspaces[sessionID] = w
	}
	w.lastSeen = now
	c.mu.Unlock()

	c.closeAll(evicted)
	return w
}

// lookup returns an existing workspace without creating one.
func (c *Controller) lookup(sessionID string) (*workspace, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.workspaces[sessionID]
	if ok {
		w.lastSeen = c.now()
	}
	return w, ok
}

// sweepLocked drops workspaces idle for longer than idleTimeout. It runs at
// most every tenth of the timeout. c.mu must be held.
func (c *Controller) sweepLocked(now time.Time) []*workspace {
	if now.Sub(c.lastSweep) < c.idleTimeout/10 {
		return nil
	}
	c.lastSweep = now

	var evicted []*workspace
	for id, w := range c.workspaces {
		if now.Sub(w.lastSeen) >= c.idleTimeout {
			delete(c.workspaces, id)
			evicted = append(evicted, w)
		}
	}
	return evicted
}

func (c *Controller) closeAll(evicted []*workspace) {
	for _, w := range evicted {
		w.close()
		c.logger.Debug("idle workspace evicted", "session_id", w.id)
	}
}

// Close tears the workspace down. Calls still in flight for it will have
// their results dropped.
func (c *Controller) Close(sessionID string) {
	c.mu.Lock()
	w, ok := c.workspaces[sessionID]
	delete(c.workspaces, sessionID)
	c.mu.Unlock()
	if ok {
		w.close()
		c.logger.Debug("workspace closed", "session_id", sessionID)
	}
}

// SessionChanged implements auth.SessionObserver.
func (c *Controller) SessionChanged(sessionID string, user *model.User) {
	w, ok := c.lookup(sessionID)
	if !ok {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if user == nil {
		w.signedIn = false
		w.displayName = ""
		return
	}
	w.signedIn = true
	w.displayName = user.DisplayName
}

// View snapshots the workspace for rendering. Viewing a workspace that does
// not exist yet shows an empty one without keeping it.
func (c *Controller) View(ctx context.Context, sessionID string) View {
	w, ok := c.lookup(sessionID)
	if !ok {
		w = newWorkspace(sessionID)
	}

	sess := c.sessions.Session(ctx, sessionID)
	w.mu.Lock()
	w.signedIn = sess.SignedIn
	w.displayName = sess.DisplayName
	w.mu.Unlock()

	v := w.view()
	for _, kind := range allKinds {
		op, err := c.guard.Status(ctx, sessionID, kind)
		if err != nil {
			c.logger.Warn("busy flag lookup failed", "session_id", sessionID, "kind", kind, "error", err)
			continue
		}
		if op != nil {
			v.Busy = append(v.Busy, kind)
		}
	}
	return v
}

// ClearError empties the error slot.
func (c *Controller) ClearError(sessionID string) {
	c.workspace(sessionID).setError("")
}

// Edit replaces the document with the user's text.
func (c *Controller) Edit(sessionID, text string) {
	c.workspace(sessionID).doc.Replace(text)
}

// InsertDraft appends the last generated draft to the document.
func (c *Controller) InsertDraft(sessionID string) error {
	w := c.workspace(sessionID)
	w.mu.Lock()
	draft := w.draft
	w.mu.Unlock()
	if draft == "" {
		return &domain.ValidationError{Message: "There is no generated content to insert."}
	}
	w.doc.Append(draft)
	return nil
}

// Download returns the export file name and body.
func (c *Controller) Download(sessionID string) (string, []byte, error) {
	w := c.workspace(sessionID)
	if w.doc.IsEmpty() {
		return "", nil, &domain.ValidationError{Message: msgEmptyDocument}
	}
	name, body := w.doc.Export()
	return name, body, nil
}

// CloseSaveDialog hides the save/load dialog.
func (c *Controller) CloseSaveDialog(sessionID string) {
	w := c.workspace(sessionID)
	w.mu.Lock()
	w.dialogOpen = false
	w.mu.Unlock()
}

// SignIn returns the consent URL for the workspace.
func (c *Controller) SignIn(sessionID, state string) (string, error) {
	w := c.workspace(sessionID)
	w.setError("")
	url, err := c.sessions.SignIn(sessionID, state)
	if err != nil {
		w.setError(err.Error())
	}
	return url, err
}

// CompleteSignIn finishes the authorization redirect.
func (c *Controller) CompleteSignIn(ctx context.Context, sessionID, code string) (*model.User, error) {
	w := c.workspace(sessionID)
	w.setError("")
	user, err := c.sessions.CompleteSignIn(ctx, sessionID, code)
	if err != nil {
		w.setError(err.Error())
		return nil, err
	}
	return user, nil
}

// SignOut revokes and forgets the workspace's token.
func (c *Controller) SignOut(ctx context.Context, sessionID string) error {
	w := c.workspace(sessionID)
	w.setError("")
	if err := c.sessions.SignOut(ctx, sessionID); err != nil {
		w.setError(err.Error())
		return err
	}
	return nil
}

// Generate drafts a section on topic. The draft is shown, not inserted.
func (c *Controller) Generate(ctx context.Context, sessionID, topic string) (View, error) {
	return c.run(ctx, sessionID, model.OpGenerate, prefixGenerate,
		func(w *workspace) { w.draft = "" },
		func(ctx context.Context, w *workspace) (func(*workspace), error) {
			text, err := c.assistant.DraftSection(ctx, topic, w.doc.Text())
			return func(w *workspace) { w.draft = text }, err
		})
}

// Ask answers a policy question.
func (c *Controller) Ask(ctx context.Context, sessionID, question string) (View, error) {
	return c.run(ctx, sessionID, model.OpAsk, prefixAsk,
		func(w *workspace) { w.answer = "" },
		func(ctx context.Context, w *workspace) (func(*workspace), error) {
			text, err := c.assistant.AnswerQuestion(ctx, question)
			return func(w *workspace) { w.answer = text }, err
		})
}

// OpenSaveDialog opens the save/load dialog and lists the folder. An empty
// folder is not an error.
func (c *Controller) OpenSaveDialog(ctx context.Context, sessionID string) (View, error) {
	return c.run(ctx, sessionID, model.OpList, prefixList,
		func(w *workspace) {
			w.dialogOpen = true
			w.files = nil
		},
		func(ctx context.Context, w *workspace) (func(*workspace), error) {
			files, err := c.sessions.ListFiles(ctx, sessionID)
			return func(w *workspace) { w.files = files }, err
		})
}

// LoadFile replaces the document with a stored file and closes the dialog.
func (c *Controller) LoadFile(ctx context.Context, sessionID, fileID string) (View, error) {
	return c.run(ctx, sessionID, model.OpLoad, prefixLoad, nil,
		func(ctx context.Context, w *workspace) (func(*workspace), error) {
			text, err := c.sessions.GetFileContent(ctx, sessionID, fileID)
			return func(w *workspace) {
				w.doc.Replace(text)
				w.dialogOpen = false
			}, err
		})
}

// SaveNew stores the document as a new file and closes the dialog.
func (c *Controller) SaveNew(ctx context.Context, sessionID, name string) (View, error) {
	if strings.TrimSpace(name) == "" {
		w := c.workspace(sessionID)
		w.setError(msgEmptyFileName)
		return w.view(), &domain.ValidationError{Message: msgEmptyFileName}
	}
	return c.run(ctx, sessionID, model.OpSaveNew, prefixSaveNew, nil,
		func(ctx context.Context, w *workspace) (func(*workspace), error) {
			_, err := c.sessions.SaveFile(ctx, sessionID, name, w.doc.Text())
			return func(w *workspace) { w.dialogOpen = false }, err
		})
}

// UpdateExisting overwrites a stored file with the document and closes the dialog.
func (c *Controller) UpdateExisting(ctx context.Context, sessionID, fileID string) (View, error) {
	return c.run(ctx, sessionID, model.OpUpdateExisting, prefixUpdate, nil,
		func(ctx context.Context, w *workspace) (func(*workspace), error) {
			_, err := c.sessions.UpdateFile(ctx, sessionID, fileID, w.doc.Text())
			return func(w *workspace) { w.dialogOpen = false }, err
		})
}

// run executes one async intent: it takes the busy flag, clears the error
// slot, performs the call, and applies the result only if the call succeeded
// and the workspace is still open.
func (c *Controller) run(
	ctx context.Context,
	sessionID string,
	kind model.OperationKind,
	prefix string,
	start func(*workspace),
	call func(context.Context, *workspace) (func(*workspace), error),
) (View, error) {
	w := c.workspace(sessionID)

	op, err := c.guard.Begin(ctx, sessionID, kind)
	if err != nil {
		if errors.Is(err, pending.ErrBusy) {
			c.logger.Debug("intent ignored, already in flight", "session_id", sessionID, "kind", kind)
			return w.view(), err
		}
		return w.view(), &domain.BackendError{Message: "Failed to start operation: " + err.Error(), Err: err}
	}
	defer func() {
		if err := c.guard.End(context.WithoutCancel(ctx), op); err != nil {
			c.logger.Warn("failed to clear busy flag", "session_id", sessionID, "kind", kind, "error", err)
		}
	}()

	// The call must settle before its flag can lapse.
	callCtx, cancel := context.WithTimeout(ctx, callTimeout(c.guard.TTL()))
	defer cancel()

	w.mu.Lock()
	w.errMsg = ""
	if start != nil {
		start(w)
	}
	w.mu.Unlock()

	apply, err := call(callCtx, w)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		c.logger.Debug("result discarded, workspace closed", "session_id", sessionID, "kind", kind)
		return View{}, ErrWorkspaceClosed
	}
	if err != nil {
		w.errMsg = prefix + err.Error()
		c.logger.Info("intent failed", "session_id", sessionID, "kind", kind, "error", err)
		return w.viewLocked(), err
	}
	apply(w)
	return w.viewLocked(), nil
}

// callTimeout leaves a margin between the end of a call and the expiry of its
// busy flag.
func callTimeout(ttl time.Duration) time.Duration {
	margin := ttl / 10
	if margin > 5*time.Second {
		margin = 5 * time.Second
	}
	return ttl - margin
}
