package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	appMiddleware "github.com/markdave123-py/Inkwell/internal/api/middlewares"
	"github.com/markdave123-py/Inkwell/internal/services"
)

type ExportHandler struct {
	exports *services.ExportService
}

func NewExportHandler(exports *services.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

type exportRequest struct {
	Format  string `json:"format"`
	Archive bool   `json:"archive"`
}

// Export streams the rendered project as an attachment.
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.exports.Export(r.Context(), appMiddleware.PrincipalFrom(r.Context()), chi.URLParam(r, "id"), req.Format, req.Archive)
	if err != nil {
		writeError(w, r, err)
		return
	}

	doc := res.Document
	hdr := w.Header()
	hdr.Set("Content-Type", doc.ContentType)
	hdr.Set("Content-Disposition", doc.ContentDisposition())
	hdr.Set("Content-Length", strconv.Itoa(len(doc.Body)))
	hdr.Set("Cache-Control", "no-store, no-cache, must-revalidate")
	hdr.Set("Pragma", "no-cache")
	if res.ArchiveURL != "" {
		hdr.Set("X-Archive-URL", res.ArchiveURL)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc.Body); err != nil {
		logrus.WithError(err).WithField("project_id", chi.URLParam(r, "id")).Warn("export response interrupted")
	}
}
