package storage

import (
	"context"
	"errors"
	"math"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/lehigh-university-libraries/scanfolders/internal/models"
)

var (
	ErrFolderExists      = errors.New("folder exists")
	ErrInvalidFolderName = errors.New("folder name is empty")
)

// Repository owns the session catalog. All writes go through its methods and every
// mutation publishes a fresh snapshot to subscribers.
type Repository struct {
	mu          sync.Mutex
	catalog     models.Catalog
	subscribers map[chan models.Catalog]struct{}
	// issued holds every merge key handed out per folder name. It outlives
	// removals so a key is never reused within a session.
	issued map[string]map[string]struct{}
}

func New() *Repository {
	return &Repository{
		subscribers: make(map[chan models.Catalog]struct{}),
		issued:      make(map[string]map[string]struct{}),
	}
}

// Snapshot returns a deep copy of the current catalog
func (r *Repository) Snapshot() models.Catalog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.catalog.Clone()
}

func (r *Repository) Folder(name string) (models.Folder, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(name)
	if i < 0 {
		return models.Folder{}, false
	}
	return r.catalog.Clone().Folders[i], true
}

// AddFolder appends an empty folder; the catalog is left untouched if the name is taken
func (r *Repository) AddFolder(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidFolderName
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.indexOf(name) >= 0 {
		return ErrFolderExists
	}
	r.catalog.Folders = append(r.catalog.Folders, models.Folder{Name: name, Images: []models.Image{}})
	r.publish()
	return nil
}

func (r *Repository) RemoveFolder(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(name)
	if i < 0 {
		return
	}
	r.catalog.Folders = append(r.catalog.Folders[:i:i], r.catalog.Folders[i+1:]...)
	r.publish()
}

// AddImage appends a pending image to the named folder. It returns false when the folder is absent.
func (r *Repository) AddImage(folderName, locator, mimeType string) (models.Image, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(folderName)
	if i < 0 {
		return models.Image{}, false
	}

	folder := &r.catalog.Folders[i]
	issued := r.issued[folderName]
	if issued == nil {
		issued = make(map[string]struct{})
		r.issued[folderName] = issued
	}
	fileName := models.FileNameFromLocator(locator)
	key := uniqueKey(issued, fileName)
	issued[key] = struct{}{}
	img := models.Image{
		Locator:  locator,
		FileName: fileName,
		Key:      key,
		MimeType: mimeType,
	}
	folder.Images = append(folder.Images, img)
	r.publish()
	return img, true
}

// RemoveImage drops the image with the given locator. Uploaded images are removed too;
// the UI is expected to hide the affordance once an image is uploaded.
func (r *Repository) RemoveImage(folderName, locator string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(folderName)
	if i < 0 {
		return
	}
	folder := &r.catalog.Folders[i]
	for j, img := range folder.Images {
		if img.Locator == locator {
			folder.Images = append(folder.Images[:j:j], folder.Images[j+1:]...)
			r.publish()
			return
		}
	}
}

// ApplyProgress merges one progress echo into the image whose merge key matches.
// Uploaded images, unknown folders/keys and decreasing fractions are ignored.
// A fraction of 1.0 marks the image uploaded. It reports whether anything changed.
func (r *Repository) ApplyProgress(folderName, key string, fraction float64) bool {
	if math.IsNaN(fraction) {
		return false
	}
	fraction = math.Max(0, math.Min(1, fraction))

	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(folderName)
	if i < 0 {
		return false
	}
	images := r.catalog.Folders[i].Images
	for j := range images {
		img := &images[j]
		if img.Key != key {
			continue
		}
		if img.Uploaded || fraction < img.Progress {
			return false
		}
		img.Progress = fraction
		if fraction == 1.0 {
			img.Uploaded = true
		}
		r.publish()
		return true
	}
	return false
}

func (r *Repository) ClearAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.catalog.Folders = nil
	r.publish()
}

// ClearIfAllUploaded empties a non-empty catalog when every image in it is uploaded.
// The check and the clear happen under one lock.
func (r *Repository) ClearIfAllUploaded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.catalog.Folders) == 0 || !r.catalog.AllUploaded() {
		return false
	}
	r.catalog.Folders = nil
	r.publish()
	return true
}

// HasPendingImages reports whether any folder still holds an image that is not uploaded
func (r *Repository) HasPendingImages() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.catalog.Folders {
		if len(f.Pending()) > 0 {
			return true
		}
	}
	return false
}

// Subscribe streams catalog snapshots, starting with the current one. Only the latest
// snapshot is buffered, so slow readers skip intermediate states rather than block writers.
// The channel is closed when ctx is done.
func (r *Repository) Subscribe(ctx context.Context) <-chan models.Catalog {
	ch := make(chan models.Catalog, 1)

	r.mu.Lock()
	r.subscribers[ch] = struct{}{}
	ch <- r.catalog.Clone()
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		delete(r.subscribers, ch)
		close(ch)
		r.mu.Unlock()
	}()
	return ch
}

// publish must be called with r.mu held
func (r *Repository) publish() {
	if len(r.subscribers) == 0 {
		return
	}
	snapshot := r.catalog.Clone()
	for ch := range r.subscribers {
		select {
		case <-ch:
		default:
		}
		ch <- snapshot
	}
}

func (r *Repository) indexOf(name string) int {
	for i, f := range r.catalog.Folders {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// uniqueKey returns fileName unless it was already issued for the folder,
// in which case a short random suffix is added before the extension.
func uniqueKey(issued map[string]struct{}, fileName string) string {
	if _, taken := issued[fileName]; !taken {
		return fileName
	}
	ext := path.Ext(fileName)
	base := strings.TrimSuffix(fileName, ext)
	for {
		k := base + "_" + uuid.NewString()[:8] + ext
		if _, taken := issued[k]; !taken {
			return k
		}
	}
}
