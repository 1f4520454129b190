package controller

import (
	"sync"
	"time"

	"github.com/jun/policydraft/internal/document"
	"github.com/jun/policydraft/internal/model"
)

var allKinds = []model.OperationKind{
	model.OpGenerate,
	model.OpAsk,
	model.OpList,
	model.OpLoad,
	model.OpSaveNew,
	model.OpUpdateExisting,
}

// View is a snapshot of one workspace.
type View struct {
	SessionID      string                `json:"sessionId"`
	Document       string                `json:"document"`
	IsEmpty        bool                  `json:"isEmpty"`
	SignedIn       bool                  `json:"signedIn"`
	DisplayName    string                `json:"displayName,omitempty"`
	Draft          string                `json:"draft,omitempty"`
	Answer         string                `json:"answer,omitempty"`
	Files          []model.RemoteFile    `json:"files"`
	SaveDialogOpen bool                  `json:"saveDialogOpen"`
	Error          string                `json:"error,omitempty"`
	Busy           []model.OperationKind `json:"busy,omitempty"`
}

// workspace is the state behind one browser tab.
type workspace struct {
	id  string
	doc *document.Document

	// lastSeen is guarded by Controller.mu.
	lastSeen time.Time

	mu          sync.Mutex
	signedIn    bool
	displayName string
	draft       string
	answer      string
	files       []model.RemoteFile
	dialogOpen  bool
	errMsg      string
	closed      bool
}

func newWorkspace(id string) *workspace {
	return &workspace{id: id, doc: document.New()}
}

func (w *workspace) setError(msg string) {
	w.mu.Lock()
	w.errMsg = msg
	w.mu.Unlock()
}

func (w *workspace) close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
}

func (w *workspace) view() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.viewLocked()
}

func (w *workspace) viewLocked() View {
	files := make([]model.RemoteFile, len(w.files))
	copy(files, w.files)
	return View{
		SessionID:      w.id,
		Document:       w.doc.Text(),
		IsEmpty:        w.doc.IsEmpty(),
		SignedIn:       w.signedIn,
		DisplayName:    w.displayName,
		Draft:          w.draft,
		Answer:         w.answer,
		Files:          files,
		SaveDialogOpen: w.dialogOpen,
		Error:          w.errMsg,
	}
}
