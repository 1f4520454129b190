package adapter

import (
	"context"
	"strings"
)

// PlainTextMIME is the only MIME type the editor lists or writes.
const PlainTextMIME = "text/plain"

// FileMetadata identifies a file in remote storage.
type FileMetadata struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	MIMEType string   `json:"mimeType,omitempty"`
	Parents  []string `json:"parents,omitempty"`
}

// File is a file together with its body.
type File struct {
	FileMetadata
	Content []byte `json:"content"`
}

// InFolder reports whether the file has folderID among its parents.
func (m FileMetadata) InFolder(folderID string) bool {
	for _, p := range m.Parents {
		if p == folderID {
			return true
		}
	}
	return false
}

// StorageAdapter is the file-storage backend contract. Create and update
// each write metadata and body in a single call.
type StorageAdapter interface {
	// ListFiles lists plain-text files directly inside folderID.
	ListFiles(ctx context.Context, folderID string) ([]FileMetadata, error)

	// GetFile retrieves a file's metadata and raw content.
	GetFile(ctx context.Context, fileID string) (*File, error)

	// CreateFile creates a plain-text file named name inside folderID.
	CreateFile(ctx context.Context, name string, content []byte, folderID string) (*FileMetadata, error)

	// UpdateFile overwrites the body of an existing file. Name and id are unchanged.
	UpdateFile(ctx context.Context, fileID string, content []byte) (*FileMetadata, error)
}

// TextExt is appended to names that do not already carry it.
const TextExt = ".txt"

// TextFileName returns name with exactly one trailing .txt.
func TextFileName(name string) string {
	if strings.HasSuffix(name, TextExt) {
		return name
	}
	return name + TextExt
}
