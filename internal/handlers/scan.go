package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/lehigh-university-libraries/scanfolders/internal/controller"
	"github.com/lehigh-university-libraries/scanfolders/internal/providers"
)

// HandleScan decodes the barcode in a posted image and adds a folder named after it
func (h *Handler) HandleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImageSize)
	file, _, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, "Failed to read file: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, "Failed to read file contents: "+err.Error(), http.StatusBadRequest)
		return
	}
	mimeType := mimetype.Detect(data).String()
	if !strings.HasPrefix(mimeType, "image/") {
		h.writeError(w, "Not an image: "+mimeType, http.StatusUnsupportedMediaType)
		return
	}

	h.dispatch(w, r, controller.ScanBarcode{Image: data, MimeType: mimeType})
}

type searchResult struct {
	providers.RemoteFile
	HumanSize string `json:"human_size"`
}

// HandleSearch lists the remote images of the first folder named q
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		h.writeError(w, "q is required", http.StatusBadRequest)
		return
	}

	id, err := h.auth.CurrentIdentity(r.Context())
	if err != nil {
		h.writeError(w, err.Error(), http.StatusUnauthorized)
		return
	}

	files, err := h.remote.SearchFolderImages(r.Context(), id, query)
	if err != nil {
		h.writeError(w, err.Error(), errorStatus(err))
		return
	}

	results := make([]searchResult, 0, len(files))
	for _, f := range files {
		results = append(results, searchResult{RemoteFile: f, HumanSize: humanize.Bytes(uint64(f.Size))})
	}
	h.writeJSON(w, results)
}
