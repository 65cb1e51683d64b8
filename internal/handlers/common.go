package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/lehigh-university-libraries/scanfolders/internal/barcode"
	"github.com/lehigh-university-libraries/scanfolders/internal/controller"
	"github.com/lehigh-university-libraries/scanfolders/internal/providers"
	"github.com/lehigh-university-libraries/scanfolders/internal/storage"
	"github.com/lehigh-university-libraries/scanfolders/internal/upload"
)

type Handler struct {
	controller *controller.Controller
	auth       providers.Auth
	remote     providers.Storage
	uploadsDir string
	staticDir  string
	imageRoots []string
}

// Config points the handler at its collaborators
type Config struct {
	Controller *controller.Controller
	Auth       providers.Auth
	Remote     providers.Storage
	// UploadsDir holds images posted as multipart files until they are uploaded
	UploadsDir string
	StaticDir  string
	// ImageRoots are directories, besides UploadsDir, that JSON locators may point into
	ImageRoots []string
}

func New(cfg Config) *Handler {
	if cfg.UploadsDir == "" {
		cfg.UploadsDir = "uploads"
	}
	if cfg.StaticDir == "" {
		cfg.StaticDir = "static"
	}
	roots := make([]string, 0, len(cfg.ImageRoots)+1)
	for _, dir := range append([]string{cfg.UploadsDir}, cfg.ImageRoots...) {
		abs, err := filepath.Abs(dir)
		if err != nil {
			slog.Warn("Ignoring image root", "dir", dir, "err", err)
			continue
		}
		roots = append(roots, abs)
	}
	return &Handler{
		controller: cfg.Controller,
		auth:       cfg.Auth,
		remote:     cfg.Remote,
		uploadsDir: cfg.UploadsDir,
		staticDir:  cfg.StaticDir,
		imageRoots: roots,
	}
}

// Register adds every route to mux
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/state", h.HandleState)
	mux.HandleFunc("/api/events", h.HandleEvents)
	mux.HandleFunc("/api/folders", h.HandleFolders)
	mux.HandleFunc("/api/folders/", h.HandleFolderDetail)
	mux.HandleFunc("/api/upload", h.HandleUploadAll)
	mux.HandleFunc("/api/delete-all", h.HandleDeleteAll)
	mux.HandleFunc("/api/scan", h.HandleScan)
	mux.HandleFunc("/api/search", h.HandleSearch)
	mux.HandleFunc("/api/signout", h.HandleSignOut)
	mux.HandleFunc("/api/dismiss-login", h.HandleDismissLogin)
	mux.HandleFunc("/api/settings/parent", h.HandleParentFolder)
	mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			slog.Error("Unable to write healthcheck", "err", err)
		}
	})
	mux.HandleFunc("/", h.HandleStatic)
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	if code >= http.StatusInternalServerError {
		slog.Error(message)
	} else {
		slog.Warn(message, "status", code)
	}
	http.Error(w, message, code)
}

// dispatch runs an action and writes either the reply or a mapped error
func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request, a controller.Action) {
	reply, err := h.controller.Dispatch(r.Context(), a)
	if err != nil {
		h.writeError(w, err.Error(), errorStatus(err))
		return
	}
	h.writeJSON(w, reply)
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, storage.ErrInvalidFolderName):
		return http.StatusBadRequest
	case errors.Is(err, ErrLocatorNotAllowed):
		return http.StatusForbidden
	case errors.Is(err, providers.ErrAuthenticationRequired):
		return http.StatusUnauthorized
	case errors.Is(err, upload.ErrFolderNotFound), errors.Is(err, controller.ErrFolderAbsent):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrFolderExists), errors.Is(err, controller.ErrNotUploading):
		return http.StatusConflict
	case errors.Is(err, barcode.ErrNoBarcode):
		return http.StatusUnprocessableEntity
	case errors.Is(err, controller.ErrNoScanner):
		return http.StatusNotImplemented
	case errors.Is(err, providers.ErrRemoteOperationFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// File operation helpers
func (h *Handler) ensureUploadsDir() error {
	return os.MkdirAll(h.uploadsDir, 0755)
}
