package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	appMiddleware "github.com/markdave123-py/Inkwell/internal/api/middlewares"
	"github.com/markdave123-py/Inkwell/internal/core"
	"github.com/markdave123-py/Inkwell/internal/core/ingestion_engine"
	"github.com/markdave123-py/Inkwell/internal/core/wordcount"
	"github.com/markdave123-py/Inkwell/internal/models"
	"github.com/markdave123-py/Inkwell/internal/services"
)

type ChapterHandler struct {
	chapters  *services.ChapterService
	maxUpload int64
}

func NewChapterHandler(chapters *services.ChapterService, maxUpload int64) *ChapterHandler {
	return &ChapterHandler{chapters: chapters, maxUpload: maxUpload}
}

// chapterResponse adds the derived reading statistics to a chapter.
type chapterResponse struct {
	*models.Chapter
	CharacterCount int `json:"character_count"`
	ReadingTime    int `json:"reading_time_minutes"`
}

func newChapterResponse(ch *models.Chapter) chapterResponse {
	return chapterResponse{
		Chapter:        ch,
		CharacterCount: wordcount.Characters(ch.Content),
		ReadingTime:    wordcount.ReadingTime(ch.WordCount),
	}
}

type createChapterRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type autosaveRequest struct {
	Content *string `json:"content"`
}

type reorderRequest struct {
	ChapterIDs []string `json:"chapter_ids"`
}

func (h *ChapterHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.chapters.List(r.Context(), appMiddleware.PrincipalFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []models.ChapterListItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *ChapterHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createChapterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ch, err := h.chapters.Create(r.Context(), appMiddleware.PrincipalFrom(r.Context()), chi.URLParam(r, "id"), req.Title, req.Content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newChapterResponse(ch))
}

func (h *ChapterHandler) Get(w http.ResponseWriter, r *http.Request) {
	ch, err := h.chapters.Get(r.Context(), appMiddleware.PrincipalFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newChapterResponse(ch))
}

// Update is the explicit save: {title?, content?}.
func (h *ChapterHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch models.ChapterPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	ch, err := h.chapters.Update(r.Context(), appMiddleware.PrincipalFrom(r.Context()), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newChapterResponse(ch))
}

func (h *ChapterHandler) Autosave(w http.ResponseWriter, r *http.Request) {
	var req autosaveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Content == nil {
		writeError(w, r, core.Invalid("content", "is required"))
		return
	}
	res, err := h.chapters.Autosave(r.Context(), appMiddleware.PrincipalFrom(r.Context()), chi.URLParam(r, "id"), *req.Content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *ChapterHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.chapters.Delete(r.Context(), appMiddleware.PrincipalFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *ChapterHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	items, err := h.chapters.Reorder(r.Context(), appMiddleware.PrincipalFrom(r.Context()), chi.URLParam(r, "id"), req.ChapterIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// Import accepts a multipart upload with a "file" part and an optional
// "title" field.
func (h *ChapterHandler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, core.Invalid("file", "upload too large"))
			return
		}
		writeError(w, r, core.Invalid("file", "expected a multipart form"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, core.Invalid("file", "is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUpload+1))
	if err != nil {
		writeError(w, r, err)
		return
	}

	ch, err := h.chapters.Import(r.Context(), appMiddleware.PrincipalFrom(r.Context()), chi.URLParam(r, "id"), ingestion_engine.Upload{
		Title:       r.FormValue("title"),
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newChapterResponse(ch))
}
