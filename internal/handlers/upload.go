package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/lehigh-university-libraries/scanfolders/internal/controller"
)

const maxImageSize = 50 * 1024 * 1024

var ErrLocatorNotAllowed = errors.New("locator is outside the image directories")

// handleAddImage adds an image to a folder, either by locator (JSON) or as a posted file
func (h *Handler) handleAddImage(w http.ResponseWriter, r *http.Request, folder string) {
	contentType := r.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/json") {
		var request struct {
			Locator  string `json:"locator"`
			MimeType string `json:"mime_type"`
		}
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}
		if request.Locator == "" {
			h.writeError(w, "locator is required", http.StatusBadRequest)
			return
		}
		locator, err := h.localLocator(request.Locator)
		if err != nil {
			h.writeError(w, err.Error(), errorStatus(err))
			return
		}
		h.dispatch(w, r, controller.AddImage{Folder: folder, Locator: locator, MimeType: request.MimeType})
		return
	}

	h.handleFileUpload(w, r, folder)
}

func (h *Handler) handleFileUpload(w http.ResponseWriter, r *http.Request, folder string) {
	if !h.folderExists(folder) {
		h.writeError(w, "Folder not found", http.StatusNotFound)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImageSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, "Failed to read file: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	if err := h.ensureUploadsDir(); err != nil {
		h.writeError(w, "Failed to create uploads directory: "+err.Error(), http.StatusInternalServerError)
		return
	}

	locator, mimeType, err := h.saveUpload(file, header.Filename)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !strings.HasPrefix(mimeType, "image/") {
		os.RemoveAll(filepath.Dir(locator))
		h.writeError(w, "Not an image: "+mimeType, http.StatusUnsupportedMediaType)
		return
	}

	h.dispatch(w, r, controller.AddImage{Folder: folder, Locator: locator, MimeType: mimeType})
}

// saveUpload keeps the original file name, which becomes the remote file name,
// inside a directory of its own so names never clash on disk
func (h *Handler) saveUpload(file io.Reader, filename string) (string, string, error) {
	name := filepath.Base(filename)
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = "image.jpg"
	}
	dir := filepath.Join(h.uploadsDir, uuid.NewString())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	path := filepath.Join(dir, name)
	out, err := os.Create(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to save image: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, file); err != nil {
		os.RemoveAll(dir)
		return "", "", fmt.Errorf("failed to save image: %w", err)
	}

	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to detect image type: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	slog.Info("Image saved", "path", abs, "type", mt.String())
	return abs, mt.String(), nil
}

// localLocator resolves a JSON locator to an absolute path inside one of the image roots.
// URLs and paths anywhere else on the server are refused.
func (h *Handler) localLocator(locator string) (string, error) {
	p := locator
	if u, err := url.Parse(locator); err == nil && len(u.Scheme) > 1 {
		if u.Scheme != "file" {
			return "", fmt.Errorf("%w: %s", ErrLocatorNotAllowed, locator)
		}
		p = u.Path
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrLocatorNotAllowed, locator)
	}
	for _, root := range h.imageRoots {
		rel, err := filepath.Rel(root, abs)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return abs, nil
	}
	return "", fmt.Errorf("%w: %s", ErrLocatorNotAllowed, locator)
}

func (h *Handler) folderExists(name string) bool {
	_, ok := h.controller.State().Catalog.Folder(name)
	return ok
}
