package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/lehigh-university-libraries/scanfolders/internal/models"
	"github.com/lehigh-university-libraries/scanfolders/internal/providers"
	"github.com/lehigh-university-libraries/scanfolders/internal/storage"
	"github.com/lehigh-university-libraries/scanfolders/internal/upload"
)

var (
	ErrNotUploading = errors.New("folder is not uploading")
	ErrNoScanner    = errors.New("barcode scanning is not configured")
	ErrFolderAbsent = errors.New("folder does not exist")
)

// Uploader is the subset of the upload orchestrator the controller drives
type Uploader interface {
	UploadFolder(ctx context.Context, name string) (upload.Result, error)
	UploadAll(ctx context.Context) (upload.Result, error)
	Cancel(name string) bool
	Uploading(name string) bool
	Signals() <-chan upload.Signal
}

// Scanner decodes the barcode in an image
type Scanner interface {
	DecodeBarcode(ctx context.Context, image []byte, mimeType string) (string, error)
}

// Preferences holds the default parent folder
type Preferences interface {
	ParentFolder() (string, error)
	SetParentFolder(name string) error
}

// UIState is everything a view needs to render
type UIState struct {
	Catalog          models.Catalog `json:"catalog"`
	NeedToLogin      bool           `json:"need_to_login"`
	ConfirmDeleteAll bool           `json:"confirm_delete_all"`
	ParentFolder     string         `json:"parent_folder"`
	Uploading        []string       `json:"uploading"`
}

// Reply carries what an action produced, if anything
type Reply struct {
	Folder string        `json:"folder,omitempty"`
	Image  *models.Image `json:"image,omitempty"`
}

// Controller turns user actions into repository and upload calls and keeps the
// view flags that are not part of the catalog.
type Controller struct {
	base     context.Context
	repo     *storage.Repository
	uploader Uploader
	auth     providers.Auth
	scanner  Scanner
	prefs    Preferences

	wg sync.WaitGroup

	mu               sync.Mutex
	needToLogin      bool
	confirmDeleteAll bool

	pubMu       sync.Mutex
	subscribers map[chan UIState]struct{}
}

// New creates a controller. Uploads started by actions run under base, not under the
// context of the request that dispatched them. scanner and prefs may be nil.
func New(base context.Context, repo *storage.Repository, uploader Uploader, auth providers.Auth, scanner Scanner, prefs Preferences) *Controller {
	return &Controller{
		base:        base,
		repo:        repo,
		uploader:    uploader,
		auth:        auth,
		scanner:     scanner,
		prefs:       prefs,
		subscribers: make(map[chan UIState]struct{}),
	}
}

// Run relays orchestrator signals and catalog changes to state subscribers until ctx ends
func (c *Controller) Run(ctx context.Context) {
	catalog := c.repo.Subscribe(ctx)
	signals := c.uploader.Signals()
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-signals:
			if sig == upload.SignalNeedsAuthentication {
				c.mu.Lock()
				c.needToLogin = true
				c.mu.Unlock()
			}
			c.publish()
		case _, ok := <-catalog:
			if !ok {
				return
			}
			c.publish()
		}
	}
}

// Wait blocks until every upload started through the controller has finished
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Dispatch applies one action
func (c *Controller) Dispatch(ctx context.Context, a Action) (Reply, error) {
	slog.Debug("Dispatching action", "action", fmt.Sprintf("%T", a))

	switch a := a.(type) {
	case AddFolder:
		if err := c.repo.AddFolder(a.Name); err != nil {
			return Reply{}, err
		}
		return Reply{Folder: strings.TrimSpace(a.Name)}, nil

	case DeleteFolder:
		c.uploader.Cancel(a.Name)
		c.repo.RemoveFolder(a.Name)
		return Reply{}, nil

	case AddImage:
		img, ok := c.repo.AddImage(a.Folder, a.Locator, a.MimeType)
		if !ok {
			return Reply{}, fmt.Errorf("%w: %s", ErrFolderAbsent, a.Folder)
		}
		return Reply{Folder: a.Folder, Image: &img}, nil

	case DeleteImage:
		c.repo.RemoveImage(a.Folder, a.Locator)
		return Reply{}, nil

	case DeleteAllClicked:
		if c.repo.HasPendingImages() {
			c.setConfirmDeleteAll(true)
			return Reply{}, nil
		}
		c.clearAll()
		return Reply{}, nil

	case DeleteAll:
		c.clearAll()
		return Reply{}, nil

	case DismissDeleteAll:
		c.setConfirmDeleteAll(false)
		return Reply{}, nil

	case UploadFolder:
		if _, ok := c.repo.Folder(a.Name); !ok {
			return Reply{}, fmt.Errorf("%w: %s", upload.ErrFolderNotFound, a.Name)
		}
		c.background("upload folder", func(ctx context.Context) (upload.Result, error) {
			return c.uploader.UploadFolder(ctx, a.Name)
		})
		return Reply{Folder: a.Name}, nil

	case UploadAll:
		c.background("upload all", c.uploader.UploadAll)
		return Reply{}, nil

	case CancelUpload:
		if !c.uploader.Cancel(a.Name) {
			return Reply{}, fmt.Errorf("%w: %s", ErrNotUploading, a.Name)
		}
		return Reply{Folder: a.Name}, nil

	case SignOut:
		if err := c.auth.SignOut(ctx); err != nil {
			return Reply{}, fmt.Errorf("failed to sign out: %w", err)
		}
		c.publish()
		return Reply{}, nil

	case DismissLogin:
		c.mu.Lock()
		c.needToLogin = false
		c.mu.Unlock()
		c.publish()
		return Reply{}, nil

	case ScanBarcode:
		if c.scanner == nil {
			return Reply{}, ErrNoScanner
		}
		name, err := c.scanner.DecodeBarcode(ctx, a.Image, a.MimeType)
		if err != nil {
			return Reply{}, err
		}
		if err := c.repo.AddFolder(name); err != nil && !errors.Is(err, storage.ErrFolderExists) {
			return Reply{}, err
		}
		return Reply{Folder: name}, nil

	case SetParentFolder:
		if c.prefs == nil {
			return Reply{}, fmt.Errorf("settings are not configured")
		}
		if err := c.prefs.SetParentFolder(a.Name); err != nil {
			return Reply{}, err
		}
		c.publish()
		return Reply{}, nil

	default:
		return Reply{}, fmt.Errorf("unknown action %T", a)
	}
}

// State returns the current view state
func (c *Controller) State() UIState {
	st := UIState{
		Catalog:   c.repo.Snapshot(),
		Uploading: []string{},
	}
	for _, f := range st.Catalog.Folders {
		if c.uploader.Uploading(f.Name) {
			st.Uploading = append(st.Uploading, f.Name)
		}
	}
	if c.prefs != nil {
		if name, err := c.prefs.ParentFolder(); err == nil {
			st.ParentFolder = name
		}
	}

	c.mu.Lock()
	st.NeedToLogin = c.needToLogin
	st.ConfirmDeleteAll = c.confirmDeleteAll
	c.mu.Unlock()
	return st
}

// Subscribe delivers the current state and then every change. Only the newest
// state is kept for a slow reader. The channel closes when ctx ends.
func (c *Controller) Subscribe(ctx context.Context) <-chan UIState {
	ch := make(chan UIState, 1)

	c.pubMu.Lock()
	ch <- c.State()
	c.subscribers[ch] = struct{}{}
	c.pubMu.Unlock()

	go func() {
		<-ctx.Done()
		c.pubMu.Lock()
		delete(c.subscribers, ch)
		close(ch)
		c.pubMu.Unlock()
	}()
	return ch
}

func (c *Controller) publish() {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()
	if len(c.subscribers) == 0 {
		return
	}
	st := c.State()
	for ch := range c.subscribers {
		select {
		case <-ch:
		default:
		}
		ch <- st
	}
}

func (c *Controller) clearAll() {
	c.repo.ClearAll()
	c.setConfirmDeleteAll(false)
}

func (c *Controller) setConfirmDeleteAll(v bool) {
	c.mu.Lock()
	c.confirmDeleteAll = v
	c.mu.Unlock()
	c.publish()
}

func (c *Controller) background(name string, run func(context.Context) (upload.Result, error)) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.publish()
		result, err := run(c.base)
		if err != nil {
			slog.Warn("Upload did not run to completion", "action", name, "error", err)
			return
		}
		slog.Info("Upload finished", "action", name, "uploaded", result.Uploaded(), "failed", result.Failed())
	}()
	c.publish()
}
