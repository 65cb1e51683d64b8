package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lehigh-university-libraries/scanfolders/internal/images"
	"github.com/lehigh-university-libraries/scanfolders/internal/models"
	"github.com/lehigh-university-libraries/scanfolders/internal/providers"
	"github.com/lehigh-university-libraries/scanfolders/internal/storage"
	"golang.org/x/sync/errgroup"
)

var ErrFolderNotFound = errors.New("folder not found")

const defaultMimeType = "image/jpeg"

// Signal is a batch-level notification for the presentation layer
type Signal int

const (
	// SignalNeedsAuthentication is sent once per upload attempt that found nobody signed in
	SignalNeedsAuthentication Signal = iota + 1
)

func (s Signal) String() string {
	switch s {
	case SignalNeedsAuthentication:
		return "needs_authentication"
	default:
		return fmt.Sprintf("signal(%d)", int(s))
	}
}

// Opener opens an image locator for reading
type Opener interface {
	Open(ctx context.Context, locator string) (*images.Content, error)
}

// ParentSource supplies the default parent folder name
type ParentSource interface {
	ParentFolder() (string, error)
}

// Options tune an Orchestrator
type Options struct {
	// Concurrency caps simultaneous image uploads per folder; 0 means one task per image
	Concurrency int
	// DefaultMimeType is used when neither the image nor its content reveal a type
	DefaultMimeType string
}

// Orchestrator drives per-image uploads for catalog folders and merges progress back
// into the repository. It never changes folder membership, except for clearing the
// catalog once an upload-all run has uploaded everything.
type Orchestrator struct {
	repo   *storage.Repository
	auth   providers.Auth
	remote providers.Storage
	opener Opener
	parent ParentSource
	opts   Options

	signals chan Signal

	mu       sync.Mutex
	runs     map[string]map[uint64]context.CancelFunc
	nextRun  uint64
	// inflight holds the merge keys being uploaded, per folder
	inflight map[string]map[string]struct{}
}

func New(repo *storage.Repository, auth providers.Auth, remote providers.Storage, opener Opener, parent ParentSource, opts Options) *Orchestrator {
	if opts.DefaultMimeType == "" {
		opts.DefaultMimeType = defaultMimeType
	}
	return &Orchestrator{
		repo:     repo,
		auth:     auth,
		remote:   remote,
		opener:   opener,
		parent:   parent,
		opts:     opts,
		signals:  make(chan Signal, 16),
		runs:     make(map[string]map[uint64]context.CancelFunc),
		inflight: make(map[string]map[string]struct{}),
	}
}

// Signals delivers batch-level signals. Signals are dropped if nobody keeps up.
func (o *Orchestrator) Signals() <-chan Signal {
	return o.signals
}

// UploadFolder uploads every pending image of one folder. Per-image failures are recorded in
// the result and leave the image pending; only a missing folder, a missing identity or a
// failed remote folder lookup are returned as errors. Images another run is already
// uploading are left out of the result.
func (o *Orchestrator) UploadFolder(ctx context.Context, name string) (Result, error) {
	folder, ok := o.repo.Folder(name)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrFolderNotFound, name)
	}

	id, err := o.identity(ctx)
	if err != nil {
		return Result{}, err
	}

	outcomes, err := o.uploadFolder(ctx, id, folder, false)
	result := Result{Outcomes: outcomes}
	if err != nil {
		result.FolderErrors = map[string]error{folder.Name: err}
	}
	return result, err
}

// UploadAll uploads every folder concurrently under one identity. Folder failures do not
// fail the batch. Whenever an image completes and the whole catalog is uploaded, the
// catalog is cleared.
func (o *Orchestrator) UploadAll(ctx context.Context) (Result, error) {
	catalog := o.repo.Snapshot()

	id, err := o.identity(ctx)
	if err != nil {
		return Result{}, err
	}

	slog.Info("Uploading all folders", "folders", len(catalog.Folders), "account", id.Email)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		result Result
	)
	for _, folder := range catalog.Folders {
		wg.Add(1)
		go func(folder models.Folder) {
			defer wg.Done()
			outcomes, err := o.uploadFolder(ctx, id, folder, true)

			mu.Lock()
			defer mu.Unlock()
			result.Outcomes = append(result.Outcomes, outcomes...)
			if err != nil {
				if result.FolderErrors == nil {
					result.FolderErrors = make(map[string]error)
				}
				result.FolderErrors[folder.Name] = err
			}
		}(folder)
	}
	wg.Wait()

	slog.Info("Upload all finished", "uploaded", result.Uploaded(), "failed", result.Failed(), "folder_errors", len(result.FolderErrors))
	return result, nil
}

// Cancel stops every in-flight upload of the named folder. Other folders are unaffected.
func (o *Orchestrator) Cancel(name string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	runs := o.runs[name]
	for _, cancel := range runs {
		cancel()
	}
	return len(runs) > 0
}

// Uploading reports whether the named folder has an upload in flight
func (o *Orchestrator) Uploading(name string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.runs[name]) > 0
}

// claim marks the folder's pending images as in flight and returns them. Images another
// run is already uploading are left to that run. The catalog is read under o.mu so an
// image released after completing is seen as uploaded.
func (o *Orchestrator) claim(name string) []models.Image {
	o.mu.Lock()
	defer o.mu.Unlock()

	folder, ok := o.repo.Folder(name)
	if !ok {
		return nil
	}
	keys := o.inflight[name]
	if keys == nil {
		keys = make(map[string]struct{})
	}
	var claimed []models.Image
	for _, img := range folder.Pending() {
		if _, busy := keys[img.Key]; busy {
			slog.Debug("Image already uploading", "folder", name, "file", img.Key)
			continue
		}
		keys[img.Key] = struct{}{}
		claimed = append(claimed, img)
	}
	if len(keys) > 0 {
		o.inflight[name] = keys
	}
	return claimed
}

func (o *Orchestrator) release(name string, imgs ...models.Image) {
	o.mu.Lock()
	defer o.mu.Unlock()
	keys := o.inflight[name]
	for _, img := range imgs {
		delete(keys, img.Key)
	}
	if len(keys) == 0 {
		delete(o.inflight, name)
	}
}

func (o *Orchestrator) identity(ctx context.Context) (providers.Identity, error) {
	id, err := o.auth.CurrentIdentity(ctx)
	if err == nil {
		return id, nil
	}

	slog.Warn("No signed in account, upload aborted", "error", err)
	select {
	case o.signals <- SignalNeedsAuthentication:
	default:
		slog.Debug("Dropping signal, nobody is listening", "signal", SignalNeedsAuthentication)
	}
	if !errors.Is(err, providers.ErrAuthenticationRequired) {
		err = fmt.Errorf("%w: %w", providers.ErrAuthenticationRequired, err)
	}
	return providers.Identity{}, err
}

// track registers a cancellable context for one upload run of a folder
func (o *Orchestrator) track(ctx context.Context, name string) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)

	o.mu.Lock()
	o.nextRun++
	run := o.nextRun
	if o.runs[name] == nil {
		o.runs[name] = make(map[uint64]context.CancelFunc)
	}
	o.runs[name][run] = cancel
	o.mu.Unlock()

	return ctx, func() {
		cancel()
		o.mu.Lock()
		delete(o.runs[name], run)
		if len(o.runs[name]) == 0 {
			delete(o.runs, name)
		}
		o.mu.Unlock()
	}
}

func (o *Orchestrator) parentFolder() string {
	if o.parent == nil {
		return ""
	}
	name, err := o.parent.ParentFolder()
	if err != nil {
		slog.Warn("Unable to read parent folder setting, using drive root", "error", err)
		return ""
	}
	return name
}

func (o *Orchestrator) uploadFolder(ctx context.Context, id providers.Identity, folder models.Folder, drain bool) ([]Outcome, error) {
	ctx, done := o.track(ctx, folder.Name)
	defer done()

	pending := o.claim(folder.Name)
	if len(pending) == 0 {
		slog.Debug("Nothing to upload", "folder", folder.Name)
		return nil, nil
	}

	parent := o.parentFolder()
	folderID, err := o.remote.GetOrCreateFolder(ctx, id, folder.Name, parent)
	if err != nil {
		slog.Error("Failed to create remote folder", "folder", folder.Name, "parent", parent, "error", err)
		o.release(folder.Name, pending...)
		if !errors.Is(err, providers.ErrRemoteOperationFailed) {
			err = fmt.Errorf("%w: %w", providers.ErrRemoteOperationFailed, err)
		}
		return nil, err
	}

	slog.Info("Uploading folder", "folder", folder.Name, "folder_id", folderID, "images", len(pending))

	outcomes := make([]Outcome, len(pending))
	var g errgroup.Group
	if o.opts.Concurrency > 0 {
		g.SetLimit(o.opts.Concurrency)
	}
	for i, img := range pending {
		g.Go(func() error {
			defer o.release(folder.Name, img)
			outcomes[i] = o.uploadImage(ctx, id, folder.Name, folderID, img, drain)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes, nil
}

func (o *Orchestrator) uploadImage(ctx context.Context, id providers.Identity, folderName, folderID string, img models.Image, drain bool) Outcome {
	start := time.Now()
	out := Outcome{
		Folder:   folderName,
		FileName: img.FileName,
		Key:      img.Key,
		Locator:  img.Locator,
		Progress: img.Progress,
	}
	defer func() { out.Duration = time.Since(start) }()

	content, err := o.opener.Open(ctx, img.Locator)
	if err != nil {
		slog.Warn("Unable to open image", "folder", folderName, "locator", img.Locator, "error", err)
		out.Err = err
		return out
	}
	defer content.Close()

	mimeType := img.MimeType
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = content.MimeType
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = o.opts.DefaultMimeType
	}

	body := &countingReader{r: content}
	events, err := o.remote.Upload(ctx, id, providers.UploadRequest{
		Body:     body,
		Size:     content.Size,
		MimeType: mimeType,
		FileName: img.Key,
		FolderID: folderID,
	})
	if err != nil {
		slog.Warn("Upload failed to start", "folder", folderName, "file", img.Key, "error", err)
		out.Err = err
		return out
	}

	for ev := range events {
		key := ev.Key
		if key == "" {
			key = img.Key
		}
		switch {
		case ev.Err != nil:
			slog.Warn("Upload failed", "folder", folderName, "file", key, "error", ev.Err)
			out.Err = ev.Err
		case ev.Complete:
			out.Uploaded = true
			out.Progress = 1.0
			if o.repo.ApplyProgress(folderName, key, 1.0) {
				slog.Info("Upload complete", "folder", folderName, "file", key)
			} else {
				out.Removed = true
				slog.Info("Upload complete for an image no longer in the catalog", "folder", folderName, "file", key)
			}
			if drain && o.repo.ClearIfAllUploaded() {
				slog.Info("Every folder is uploaded, catalog cleared")
			}
		default:
			o.repo.ApplyProgress(folderName, key, ev.Fraction)
			if ev.Fraction > out.Progress {
				out.Progress = ev.Fraction
			}
			slog.Debug("Upload progress", "folder", folderName, "file", key, "fraction", ev.Fraction)
		}
	}
	out.Bytes = body.n.Load()

	if !out.Uploaded && out.Err == nil {
		if err := ctx.Err(); err != nil {
			out.Err = err
		} else {
			out.Err = fmt.Errorf("%w: upload of %s ended without completing", providers.ErrRemoteOperationFailed, img.Key)
		}
	}
	return out
}

type countingReader struct {
	r io.Reader
	n atomic.Int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}
