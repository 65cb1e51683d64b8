package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/lehigh-university-libraries/scanfolders/internal/controller"
)

func (h *Handler) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.dispatch(w, r, controller.SignOut{})
}

func (h *Handler) HandleDismissLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.dispatch(w, r, controller.DismissLogin{})
}

// HandleParentFolder reads or changes the parent folder new remote folders are created under
func (h *Handler) HandleParentFolder(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		h.writeJSON(w, map[string]string{"parent_folder": h.controller.State().ParentFolder})
	case "PUT":
		var request struct {
			ParentFolder string `json:"parent_folder"`
		}
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}
		if _, err := h.controller.Dispatch(r.Context(), controller.SetParentFolder{Name: request.ParentFolder}); err != nil {
			h.writeError(w, err.Error(), errorStatus(err))
			return
		}
		h.writeJSON(w, map[string]string{"parent_folder": h.controller.State().ParentFolder})
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
