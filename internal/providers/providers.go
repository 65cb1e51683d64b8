package providers

import (
	"context"
	"errors"
	"io"

	"golang.org/x/oauth2"
)

var (
	// ErrAuthenticationRequired means no signed-in identity is available
	ErrAuthenticationRequired = errors.New("authentication required")
	// ErrRemoteOperationFailed covers folder creation, upload and search failures
	ErrRemoteOperationFailed = errors.New("remote operation failed")
	// ErrLocalResourceUnavailable means an image's content could not be opened
	ErrLocalResourceUnavailable = errors.New("local resource unavailable")
)

// Identity is the signed-in principal used to authorize remote operations
type Identity struct {
	Email       string
	DisplayName string
	TokenSource oauth2.TokenSource
}

// Auth resolves the currently signed-in identity
type Auth interface {
	CurrentIdentity(ctx context.Context) (Identity, error)
	SignOut(ctx context.Context) error
}

// UploadRequest describes one image transfer into a remote folder
type UploadRequest struct {
	Body     io.Reader
	Size     int64 // -1 when unknown
	MimeType string
	FileName string
	FolderID string
}

// UploadEvent is a single progress echo from an in-flight upload.
// Exactly one event per upload has Complete set or Err non-nil.
type UploadEvent struct {
	Key      string
	Fraction float64
	Complete bool
	Err      error
}

// Terminal reports whether the event ends its upload stream
func (e UploadEvent) Terminal() bool {
	return e.Complete || e.Err != nil
}

// RemoteFile is a file found in remote storage
type RemoteFile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
	URL      string `json:"url,omitempty"`
}

// Storage is the remote backend images are uploaded to.
//
// GetOrCreateFolder must reuse an existing folder of the same name under the same parent;
// when several match, the first one wins. Upload returns a channel of non-decreasing
// fractions ending with exactly one terminal event, after which the channel is closed.
// Cancelling ctx stops the transfer and closes the channel without further events.
type Storage interface {
	GetOrCreateFolder(ctx context.Context, id Identity, name, parentName string) (string, error)
	Upload(ctx context.Context, id Identity, req UploadRequest) (<-chan UploadEvent, error)
	SearchFolderImages(ctx context.Context, id Identity, folderName string) ([]RemoteFile, error)
}

// Config represents the configuration for a vision model provider
type Config struct {
	Model       string
	Temperature float64
	Prompt      string
}

// Decoder reads a barcode out of an image with a vision model
type Decoder interface {
	ExtractText(ctx context.Context, config Config, image []byte, mimeType string) (string, error)
}
