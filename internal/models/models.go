package models

import (
	"net/url"
	"path"
	"strings"
)

// Image is a single captured photo waiting to be (or already) uploaded
type Image struct {
	Locator  string  `json:"locator"`
	FileName string  `json:"file_name"`
	Key      string  `json:"key"`
	MimeType string  `json:"mime_type,omitempty"`
	Progress float64 `json:"progress"`
	Uploaded bool    `json:"uploaded"`
}

// Folder is a named bucket of images, usually keyed by a scanned barcode
type Folder struct {
	Name   string  `json:"name"`
	Images []Image `json:"images"`
}

// FullyUploaded reports whether the folder holds at least one image and every image is uploaded
func (f Folder) FullyUploaded() bool {
	if len(f.Images) == 0 {
		return false
	}
	return f.allUploaded()
}

// Pending returns the images that have not reached uploaded yet
func (f Folder) Pending() []Image {
	pending := make([]Image, 0, len(f.Images))
	for _, img := range f.Images {
		if !img.Uploaded {
			pending = append(pending, img)
		}
	}
	return pending
}

func (f Folder) allUploaded() bool {
	for _, img := range f.Images {
		if !img.Uploaded {
			return false
		}
	}
	return true
}

// Catalog is the ordered set of folders for the current session
type Catalog struct {
	Folders []Folder `json:"folders"`
}

// Folder looks up a folder by name
func (c Catalog) Folder(name string) (Folder, bool) {
	for _, f := range c.Folders {
		if f.Name == name {
			return f, true
		}
	}
	return Folder{}, false
}

// AllUploaded reports whether every image of every folder is uploaded.
// Empty folders do not hold the catalog back.
func (c Catalog) AllUploaded() bool {
	for _, f := range c.Folders {
		if !f.allUploaded() {
			return false
		}
	}
	return true
}

// Clone returns a deep copy so callers can never observe later mutations
func (c Catalog) Clone() Catalog {
	out := Catalog{Folders: make([]Folder, len(c.Folders))}
	for i, f := range c.Folders {
		images := make([]Image, len(f.Images))
		copy(images, f.Images)
		out.Folders[i] = Folder{Name: f.Name, Images: images}
	}
	return out
}

// FileNameFromLocator derives the display file name of a locator: its trailing path segment.
// content://media/external/images/1234 -> 1234, /tmp/a.jpg -> a.jpg
func FileNameFromLocator(locator string) string {
	p := locator
	if u, err := url.Parse(locator); err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
		p = u.Path
		if p == "" {
			p = u.Opaque
		}
	}
	p = strings.TrimRight(strings.ReplaceAll(p, "\\", "/"), "/")
	if p == "" {
		return ""
	}
	return path.Base(p)
}
