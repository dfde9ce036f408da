package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	appMiddleware "github.com/markdave123-py/Inkwell/internal/api/middlewares"
	"github.com/markdave123-py/Inkwell/internal/models"
	"github.com/markdave123-py/Inkwell/internal/services"
)

type ProjectHandler struct {
	projects *services.ProjectService
	chapters *services.ChapterService
}

func NewProjectHandler(projects *services.ProjectService, chapters *services.ChapterService) *ProjectHandler {
	return &ProjectHandler{projects: projects, chapters: chapters}
}

type projectResponse struct {
	*models.Project
	Chapters []models.ChapterListItem `json:"chapters,omitempty"`
}

func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	projects, err := h.projects.List(r.Context(), appMiddleware.PrincipalFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if projects == nil {
		projects = []models.Project{}
	}
	writeJSON(w, http.StatusOK, projects)
}

func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req services.NewProject
	if !decodeJSON(w, r, &req) {
		return
	}
	project, first, err := h.projects.Create(r.Context(), appMiddleware.PrincipalFrom(r.Context()), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, projectResponse{
		Project: project,
		Chapters: []models.ChapterListItem{{
			ID:         first.ID,
			Title:      first.Title,
			WordCount:  first.WordCount,
			OrderIndex: first.OrderIndex,
			UpdatedAt:  first.UpdatedAt,
		}},
	})
}

// Get returns the project with its chapter list in reading order.
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	p := appMiddleware.PrincipalFrom(r.Context())
	id := chi.URLParam(r, "id")
	project, err := h.projects.Get(r.Context(), p, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	chapters, err := h.chapters.List(r.Context(), p, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, projectResponse{Project: project, Chapters: chapters})
}

func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch models.ProjectPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	project, err := h.projects.Update(r.Context(), appMiddleware.PrincipalFrom(r.Context()), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.projects.Delete(r.Context(), appMiddleware.PrincipalFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
