package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/lehigh-university-libraries/scanfolders/internal/controller"
)

func (h *Handler) HandleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.writeJSON(w, h.controller.State())
}

func (h *Handler) HandleFolders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		h.writeJSON(w, h.controller.State().Catalog.Folders)
	case "POST":
		var request struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}
		h.dispatch(w, r, controller.AddFolder{Name: request.Name})
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleFolderDetail serves /api/folders/{name}[/images|/upload|/cancel]
func (h *Handler) HandleFolderDetail(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.EscapedPath(), "/api/folders/")
	escaped, sub, _ := strings.Cut(rest, "/")
	name, err := url.PathUnescape(escaped)
	if err != nil || name == "" {
		h.writeError(w, "Invalid folder name", http.StatusBadRequest)
		return
	}

	switch sub {
	case "":
		if r.Method != "DELETE" {
			h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.dispatch(w, r, controller.DeleteFolder{Name: name})
	case "images":
		switch r.Method {
		case "POST":
			h.handleAddImage(w, r, name)
		case "DELETE":
			locator := r.URL.Query().Get("locator")
			if locator == "" {
				h.writeError(w, "locator is required", http.StatusBadRequest)
				return
			}
			h.dispatch(w, r, controller.DeleteImage{Folder: name, Locator: locator})
		default:
			h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case "upload":
		if r.Method != "POST" {
			h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.dispatchAccepted(w, r, controller.UploadFolder{Name: name})
	case "cancel":
		if r.Method != "POST" {
			h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.dispatch(w, r, controller.CancelUpload{Name: name})
	default:
		h.writeError(w, "Not found", http.StatusNotFound)
	}
}

func (h *Handler) HandleUploadAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.dispatchAccepted(w, r, controller.UploadAll{})
}

// HandleDeleteAll clears the catalog, asking for confirmation first when images are still
// pending. ?confirm=true skips the question and ?confirm=false dismisses it.
func (h *Handler) HandleDeleteAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var a controller.Action
	switch r.URL.Query().Get("confirm") {
	case "true":
		a = controller.DeleteAll{}
	case "false":
		a = controller.DismissDeleteAll{}
	default:
		a = controller.DeleteAllClicked{}
	}
	if _, err := h.controller.Dispatch(r.Context(), a); err != nil {
		h.writeError(w, err.Error(), errorStatus(err))
		return
	}

	st := h.controller.State()
	h.writeJSON(w, map[string]any{
		"confirm_delete_all": st.ConfirmDeleteAll,
		"folders":            len(st.Catalog.Folders),
	})
}

// dispatchAccepted starts a background upload and answers 202
func (h *Handler) dispatchAccepted(w http.ResponseWriter, r *http.Request, a controller.Action) {
	reply, err := h.controller.Dispatch(r.Context(), a)
	if err != nil {
		h.writeError(w, err.Error(), errorStatus(err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	h.writeJSON(w, reply)
}
