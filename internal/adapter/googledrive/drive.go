package googledrive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jun/policydraft/internal/adapter"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const fileFields = "id, name, mimeType, parents"

// DriveAdapter implements adapter.StorageAdapter for Google Drive.
type DriveAdapter struct {
	service *drive.Service
}

// NewDriveAdapter creates a new DriveAdapter.
// client should be an http.Client authorized with the session's access token.
func NewDriveAdapter(ctx context.Context, client *http.Client, opts ...option.ClientOption) (*DriveAdapter, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)
	srv, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Drive client: %w", err)
	}
	return &DriveAdapter{service: srv}, nil
}

// listQuery selects non-trashed plain-text files directly under folderID.
func listQuery(folderID string) string {
	return fmt.Sprintf("'%s' in parents and mimeType='%s' and trashed=false", folderID, adapter.PlainTextMIME)
}

// ListFiles lists plain-text files in folderID, following pagination.
func (d *DriveAdapter) ListFiles(ctx context.Context, folderID string) ([]adapter.FileMetadata, error) {
	files := []adapter.FileMetadata{}
	pageToken := ""
	for {
		call := d.service.Files.List().
			Q(listQuery(folderID)).
			Fields("nextPageToken, files(id, name)").
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		r, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("unable to list files: %w", err)
		}
		for _, f := range r.Files {
			files = append(files, adapter.FileMetadata{
				ID:       f.Id,
				Name:     f.Name,
				MIMEType: adapter.PlainTextMIME,
				Parents:  []string{folderID},
			})
		}

		if r.NextPageToken == "" {
			return files, nil
		}
		pageToken = r.NextPageToken
	}
}

// GetFile retrieves metadata, then the raw body via alt=media.
func (d *DriveAdapter) GetFile(ctx context.Context, fileID string) (*adapter.File, error) {
	f, err := d.service.Files.Get(fileID).
		Fields(fileFields).
		Context(ctx).
		Do()
	if err != nil {
		if isNotFound(err) {
			return nil, adapter.ErrNotFound
		}
		return nil, fmt.Errorf("unable to get file metadata: %w", err)
	}

	resp, err := d.service.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		if isNotFound(err) {
			return nil, adapter.ErrNotFound
		}
		return nil, fmt.Errorf("unable to download file: %w", err)
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("unable to read file content: %w", err)
	}

	return &adapter.File{
		FileMetadata: toMetadata(f),
		Content:      content,
	}, nil
}

// CreateFile uploads metadata and body together as one multipart request.
func (d *DriveAdapter) CreateFile(ctx context.Context, name string, content []byte, folderID string) (*adapter.FileMetadata, error) {
	f := &drive.File{
		Name:     adapter.TextFileName(name),
		MimeType: adapter.PlainTextMIME,
		Parents:  []string{folderID},
	}

	res, err := d.service.Files.Create(f).
		Media(bytes.NewReader(content), googleapi.ContentType(adapter.PlainTextMIME+"; charset=UTF-8")).
		Fields(fileFields).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("unable to create file: %w", err)
	}

	meta := toMetadata(res)
	return &meta, nil
}

// UpdateFile replaces the body of fileID; empty metadata leaves the name untouched.
func (d *DriveAdapter) UpdateFile(ctx context.Context, fileID string, content []byte) (*adapter.FileMetadata, error) {
	res, err := d.service.Files.Update(fileID, &drive.File{}).
		Media(bytes.NewReader(content), googleapi.ContentType(adapter.PlainTextMIME+"; charset=UTF-8")).
		Fields(fileFields).
		Context(ctx).
		Do()
	if err != nil {
		if isNotFound(err) {
			return nil, adapter.ErrNotFound
		}
		return nil, fmt.Errorf("unable to update file: %w", err)
	}

	meta := toMetadata(res)
	return &meta, nil
}

func toMetadata(f *drive.File) adapter.FileMetadata {
	return adapter.FileMetadata{
		ID:       f.Id,
		Name:     f.Name,
		MIMEType: f.MimeType,
		Parents:  f.Parents,
	}
}

func isNotFound(err error) bool {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return gErr.Code == http.StatusNotFound
	}
	return false
}
