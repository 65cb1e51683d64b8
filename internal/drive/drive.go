package drive

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/lehigh-university-libraries/scanfolders/internal/providers"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	folderMimeType = "application/vnd.google-apps.folder"
	rootFolderID   = "root"
)

// Client implements providers.Storage on Google Drive.
// A Drive service is built per identity from the identity's token source.
type Client struct {
	opts []option.ClientOption
}

// New returns a Drive client. Extra options are applied to every service it builds,
// which is how tests point it at a fake endpoint.
func New(opts ...option.ClientOption) *Client {
	return &Client{opts: opts}
}

func (c *Client) service(ctx context.Context, id providers.Identity) (*drive.Service, error) {
	opts := []option.ClientOption{}
	if id.TokenSource != nil {
		opts = append(opts, option.WithTokenSource(id.TokenSource))
	}
	opts = append(opts, c.opts...)

	srv, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create drive service: %w", providers.ErrRemoteOperationFailed, err)
	}
	return srv, nil
}

// GetOrCreateFolder finds a folder called name under the folder called parentName (or My Drive
// when parentName is empty), creating whichever is missing. When Drive holds several folders of
// the same name the oldest one wins.
func (c *Client) GetOrCreateFolder(ctx context.Context, id providers.Identity, name, parentName string) (string, error) {
	srv, err := c.service(ctx, id)
	if err != nil {
		return "", err
	}

	parentID := rootFolderID
	if parentName != "" {
		parentID, err = findOrCreateFolder(ctx, srv, parentName, rootFolderID)
		if err != nil {
			return "", err
		}
	}
	return findOrCreateFolder(ctx, srv, name, parentID)
}

func findOrCreateFolder(ctx context.Context, srv *drive.Service, name, parentID string) (string, error) {
	existing, err := findFolder(ctx, srv, name, parentID)
	if err != nil {
		return "", err
	}
	if existing != "" {
		slog.Debug("Reusing drive folder", "name", name, "id", existing, "parent", parentID)
		return existing, nil
	}

	folder, err := srv.Files.Create(&drive.File{
		Name:     name,
		MimeType: folderMimeType,
		Parents:  []string{parentID},
	}).Fields("id, name").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("%w: failed to create folder %s: %w", providers.ErrRemoteOperationFailed, name, err)
	}
	slog.Info("Created drive folder", "name", folder.Name, "id", folder.Id, "parent", parentID)
	return folder.Id, nil
}

// findFolder returns the ID of the oldest matching folder, or "" when none exists
func findFolder(ctx context.Context, srv *drive.Service, name, parentID string) (string, error) {
	q := folderQuery(name, parentID)
	list, err := srv.Files.List().
		Q(q).
		OrderBy("createdTime").
		PageSize(10).
		Fields("files(id, name)").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("%w: failed to look up folder %s: %w", providers.ErrRemoteOperationFailed, name, err)
	}
	if len(list.Files) == 0 {
		return "", nil
	}
	if len(list.Files) > 1 {
		slog.Warn("Multiple drive folders share a name, using the oldest", "name", name, "matches", len(list.Files))
	}
	return list.Files[0].Id, nil
}

func folderQuery(name, parentID string) string {
	q := fmt.Sprintf("mimeType='%s' and name='%s' and trashed=false", folderMimeType, escapeQuery(name))
	if parentID != "" {
		q += fmt.Sprintf(" and '%s' in parents", escapeQuery(parentID))
	}
	return q
}

var queryEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func escapeQuery(s string) string {
	return queryEscaper.Replace(s)
}

// Upload sends the body to Drive in resumable chunks. Progress is reported as bytes sent over
// the request size; when the size is unknown only the completion event is emitted.
func (c *Client) Upload(ctx context.Context, id providers.Identity, req providers.UploadRequest) (<-chan providers.UploadEvent, error) {
	srv, err := c.service(ctx, id)
	if err != nil {
		return nil, err
	}

	events := make(chan providers.UploadEvent)
	go func() {
		defer close(events)

		var (
			mu   sync.Mutex
			last float64
		)
		send := func(ev providers.UploadEvent) bool {
			ev.Key = req.FileName
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		call := srv.Files.Create(&drive.File{
			Name:     req.FileName,
			MimeType: req.MimeType,
			Parents:  []string{req.FolderID},
		}).
			Media(req.Body,
				googleapi.ContentType(req.MimeType),
				googleapi.ChunkSize(googleapi.MinUploadChunkSize),
			).
			ProgressUpdater(func(current, _ int64) {
				if req.Size <= 0 {
					return
				}
				fraction := float64(current) / float64(req.Size)
				mu.Lock()
				defer mu.Unlock()
				// 1.0 is reserved for the completion event
				if fraction <= last || fraction >= 1.0 {
					return
				}
				last = fraction
				send(providers.UploadEvent{Fraction: fraction})
			}).
			Fields("id, name, parents").
			Context(ctx)

		file, err := call.Do()
		if ctx.Err() != nil {
			slog.Debug("Drive upload cancelled", "file", req.FileName)
			return
		}
		if err != nil {
			send(providers.UploadEvent{Err: fmt.Errorf("%w: failed to upload %s: %w", providers.ErrRemoteOperationFailed, req.FileName, err)})
			return
		}
		slog.Info("Drive upload complete", "file", file.Name, "id", file.Id, "folder", req.FolderID)
		send(providers.UploadEvent{Fraction: 1.0, Complete: true})
	}()
	return events, nil
}

// SearchFolderImages lists the images inside the oldest folder named folderName anywhere in Drive
func (c *Client) SearchFolderImages(ctx context.Context, id providers.Identity, folderName string) ([]providers.RemoteFile, error) {
	srv, err := c.service(ctx, id)
	if err != nil {
		return nil, err
	}

	folderID, err := findFolder(ctx, srv, folderName, "")
	if err != nil {
		return nil, err
	}
	if folderID == "" {
		return []providers.RemoteFile{}, nil
	}

	files := []providers.RemoteFile{}
	q := fmt.Sprintf("'%s' in parents and mimeType contains 'image/' and trashed=false", escapeQuery(folderID))
	err = srv.Files.List().
		Q(q).
		OrderBy("name").
		Fields("nextPageToken, files(id, name, mimeType, size, webContentLink)").
		Context(ctx).
		Pages(ctx, func(page *drive.FileList) error {
			for _, f := range page.Files {
				files = append(files, providers.RemoteFile{
					ID:       f.Id,
					Name:     f.Name,
					MimeType: f.MimeType,
					Size:     f.Size,
					URL:      f.WebContentLink,
				})
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list images in %s: %w", providers.ErrRemoteOperationFailed, folderName, err)
	}
	return files, nil
}

// AccountEmail returns the email address Drive reports for the identity's token.
// It is used after an OAuth code exchange to label the signed-in account.
func (c *Client) AccountEmail(ctx context.Context, id providers.Identity) (string, string, error) {
	srv, err := c.service(ctx, id)
	if err != nil {
		return "", "", err
	}
	about, err := srv.About.Get().Fields("user(emailAddress, displayName)").Context(ctx).Do()
	if err != nil {
		return "", "", fmt.Errorf("%w: failed to read account: %w", providers.ErrRemoteOperationFailed, err)
	}
	if about.User == nil {
		return "", "", fmt.Errorf("%w: drive returned no user", providers.ErrRemoteOperationFailed)
	}
	return about.User.EmailAddress, about.User.DisplayName, nil
}
