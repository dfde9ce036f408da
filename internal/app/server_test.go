package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/Inkwell/internal/config"
	db "github.com/markdave123-py/Inkwell/internal/core/database"
	"github.com/markdave123-py/Inkwell/internal/core/ingestion_engine"
	"github.com/markdave123-py/Inkwell/internal/services"
)

type memStorage struct {
	objects map[string][]byte
}

func (m *memStorage) UploadFile(_ context.Context, key string, data io.Reader, _ string) (string, error) {
	b, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	m.objects[key] = b
	return "https://archive.example/" + key, nil
}

func (m *memStorage) DeletePrefix(_ context.Context, prefix string) (int, error) {
	n := 0
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			delete(m.objects, k)
			n++
		}
	}
	return n, nil
}

type testServer struct {
	handler http.Handler
	db      *db.DatabaseClient
	storage *memStorage
	cfg     *config.Config
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	client, err := db.Open(context.Background(), db.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	cfg := &config.Config{
		Port:           "0",
		DatabaseDriver: db.DriverSQLite,
		JWTSecret:      "test-secret",
		TokenTTL:       time.Hour,
		RequestTimeout: 30 * time.Second,
		CORSOrigins:    []string{"http://localhost:5173"},
	}
	storage := &memStorage{objects: map[string][]byte{}}
	srv := NewServer(cfg, client, storage, ingestion_engine.NewDocconvExtractor(false))
	return &testServer{handler: srv.Handler(), db: client, storage: storage, cfg: cfg}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type sessionBody struct {
	Token string `json:"token"`
	User  struct {
		ID                 string `json:"id"`
		MustChangePassword bool   `json:"must_change_password"`
	} `json:"user"`
}

type chapterBody struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Content        string `json:"content"`
	WordCount      int    `json:"word_count"`
	OrderIndex     int    `json:"order_index"`
	CharacterCount int    `json:"character_count"`
	ReadingTime    int    `json:"reading_time_minutes"`
}

type projectBody struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	WordCount    int           `json:"word_count"`
	ChapterCount int           `json:"chapter_count"`
	Chapters     []chapterBody `json:"chapters"`
}

func (s *testServer) upload(t *testing.T, token, projectID, title, filename, data string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if title != "" {
		require.NoError(t, mw.WriteField("title", title))
	}
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(data))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/projects/"+projectID+"/chapters/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) signup(t *testing.T, name string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/signup", "", map[string]string{
		"email": name + "@example.com", "username": name, "password": "password1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[sessionBody](t, rec).Token
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServer_WritingFlow(t *testing.T) {
	s := newTestServer(t)
	token := s.signup(t, "writer")

	rec := s.do(t, http.MethodPost, "/api/projects", token, map[string]string{"title": "Moonlight", "genre": "Fantasy"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	project := decode[projectBody](t, rec)
	require.Len(t, project.Chapters, 1)
	first := project.Chapters[0]
	assert.Equal(t, "Chapter 1", first.Title)
	assert.Equal(t, 0, project.WordCount)

	rec = s.do(t, http.MethodPut, "/api/chapters/"+first.ID, token, map[string]string{"content": "<p>The quick brown fox jumps.</p>"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	ch := decode[chapterBody](t, rec)
	assert.Equal(t, 5, ch.WordCount)
	assert.Equal(t, "Chapter 1", ch.Title)
	assert.Equal(t, 1, ch.ReadingTime)

	rec = s.do(t, http.MethodPost, "/api/projects/"+project.ID+"/chapters", token, map[string]string{"title": "Chapter 2", "content": "<p>Hello world</p>"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	second := decode[chapterBody](t, rec)
	assert.Equal(t, 1, second.OrderIndex)
	assert.Equal(t, 11, second.CharacterCount)

	rec = s.do(t, http.MethodGet, "/api/projects/"+project.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[projectBody](t, rec)
	assert.Equal(t, 7, got.WordCount)
	assert.Equal(t, 2, got.ChapterCount)
	require.Len(t, got.Chapters, 2)

	rec = s.do(t, http.MethodPost, "/api/chapters/"+second.ID+"/autosave", token, map[string]string{"content": "<p>Hello world</p>"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[map[string]any](t, rec)["skipped"].(bool))

	rec = s.do(t, http.MethodPost, "/api/chapters/"+second.ID+"/autosave", token, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/projects/"+project.ID+"/chapters/order", token, map[string][]string{"chapter_ids": {second.ID, first.ID}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	order := decode[[]chapterBody](t, rec)
	require.Len(t, order, 2)
	assert.Equal(t, second.ID, order[0].ID)

	rec = s.do(t, http.MethodPut, "/api/projects/"+project.ID+"/chapters/order", token, map[string][]string{"chapter_ids": {second.ID}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/chapters/"+first.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/projects/"+project.ID+"/chapters", token, nil)
	list := decode[[]chapterBody](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, 0, list[0].OrderIndex)

	rec = s.do(t, http.MethodGet, "/api/projects/"+project.ID, token, nil)
	assert.Equal(t, 2, decode[projectBody](t, rec).WordCount)

	rec = s.do(t, http.MethodGet, "/api/projects", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]projectBody](t, rec), 1)
}

func TestServer_AccessErrors(t *testing.T) {
	s := newTestServer(t)
	owner := s.signup(t, "owner")
	other := s.signup(t, "other")

	rec := s.do(t, http.MethodPost, "/api/projects", owner, map[string]string{"title": "Private"})
	require.Equal(t, http.StatusCreated, rec.Code)
	project := decode[projectBody](t, rec)

	tests := []struct {
		name         string
		method, path string
		token        string
		body         any
		want         int
	}{
		{"no token", http.MethodGet, "/api/projects", "", nil, http.StatusUnauthorized},
		{"bad token", http.MethodGet, "/api/projects", "junk", nil, http.StatusUnauthorized},
		{"other owner project", http.MethodGet, "/api/projects/" + project.ID, other, nil, http.StatusForbidden},
		{"other owner chapter", http.MethodGet, "/api/chapters/" + project.Chapters[0].ID, other, nil, http.StatusForbidden},
		{"missing project", http.MethodGet, "/api/projects/nope", other, nil, http.StatusNotFound},
		{"missing chapter", http.MethodPost, "/api/chapters/nope/autosave", owner, map[string]string{"content": "x"}, http.StatusNotFound},
		{"empty title", http.MethodPost, "/api/projects/" + project.ID + "/chapters", owner, map[string]string{"title": ""}, http.StatusBadRequest},
		{"bad json", http.MethodPost, "/api/projects", owner, "not an object", http.StatusBadRequest},
		{"non admin", http.MethodGet, "/api/admin/users", owner, nil, http.StatusForbidden},
		{"duplicate signup", http.MethodPost, "/api/signup", "", map[string]string{"email": "owner@example.com", "username": "owner2", "password": "password1"}, http.StatusConflict},
		{"bad login", http.MethodPost, "/api/login", "", map[string]string{"identifier": "owner", "password": "nope-nope"}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestServer_ExportAndImport(t *testing.T) {
	s := newTestServer(t)
	token := s.signup(t, "writer")
	rec := s.do(t, http.MethodPost, "/api/projects", token, map[string]string{"title": "Été à Paris"})
	require.Equal(t, http.StatusCreated, rec.Code)
	project := decode[projectBody](t, rec)

	rec = s.upload(t, token, project.ID, "Imported", "notes.txt", "First paragraph here.\n\nSecond one.")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	imported := decode[chapterBody](t, rec)
	assert.Equal(t, "Imported", imported.Title)
	assert.Equal(t, 1, imported.OrderIndex)
	assert.Equal(t, 5, imported.WordCount)

	rec = s.do(t, http.MethodPost, "/api/projects/"+project.ID+"/export", token, map[string]any{"format": "txt", "archive": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="t Paris.txt"; filename*=UTF-8''%C3%89t%C3%A9%20%C3%A0%20Paris.txt`, rec.Header().Get("Content-Disposition"))
	assert.Contains(t, rec.Header().Get("Cache-Control"), "no-store")
	assert.Equal(t, "no-cache", rec.Header().Get("Pragma"))
	assert.True(t, strings.HasPrefix(rec.Header().Get("X-Archive-URL"), "https://archive.example/users/"))
	assert.Contains(t, rec.Body.String(), "First paragraph here.")
	assert.Len(t, s.storage.objects, 1)

	rec = s.do(t, http.MethodPost, "/api/projects/"+project.ID+"/export", token, map[string]any{"format": "pdf"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/projects/"+project.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, s.storage.objects)
}

func TestServer_ImportHTML(t *testing.T) {
	s := newTestServer(t)
	token := s.signup(t, "writer")
	rec := s.do(t, http.MethodPost, "/api/projects", token, map[string]string{"title": "Web"})
	require.Equal(t, http.StatusCreated, rec.Code)
	project := decode[projectBody](t, rec)

	rec = s.upload(t, token, project.ID, "", "greeting.html",
		"<html><head><title>ignored</title></head><body><p>Hello there</p><p>General Kenobi</p></body></html>")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	imported := decode[chapterBody](t, rec)
	assert.Equal(t, "greeting", imported.Title)
	assert.Equal(t, 4, imported.WordCount)

	rec = s.do(t, http.MethodGet, "/api/projects/"+project.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 4, decode[projectBody](t, rec).WordCount)

	rec = s.upload(t, token, project.ID, "", "blank.html", "<html><body><p>  </p></body></html>")
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func TestServer_AdminAndPasswordChange(t *testing.T) {
	s := newTestServer(t)
	users := services.NewUserService(s.db, services.NewTokenIssuer(s.cfg.JWTSecret, s.cfg.TokenTTL))
	_, _, err := users.EnsureAdmin(context.Background(), "root@example.com", "root", "bootstrap1")
	require.NoError(t, err)
	writer := s.signup(t, "writer")

	rec := s.do(t, http.MethodPost, "/api/login", "", map[string]string{"identifier": "root", "password": "bootstrap1"})
	require.Equal(t, http.StatusOK, rec.Code)
	sess := decode[sessionBody](t, rec)
	assert.True(t, sess.User.MustChangePassword)

	rec = s.do(t, http.MethodGet, "/api/admin/users", sess.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/me", sess.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/change-password", sess.Token, map[string]string{
		"current_password": "bootstrap1", "new_password": "Sup3rsecret!", "confirm_password": "Sup3rsecret!",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	admin := decode[sessionBody](t, rec).Token

	rec = s.do(t, http.MethodGet, "/api/admin/users?search=writ&limit=5", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[services.UserPage](t, rec)
	require.Len(t, page.Users, 1)
	writerID := page.Users[0].ID
	assert.Equal(t, 5, page.Limit)

	rec = s.do(t, http.MethodPost, "/api/admin/users", admin, map[string]string{"email": "writer@example.com", "username": "w2", "password": "password1"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/admin/users/"+writerID, admin, map[string]any{"must_change_password": true})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/admin/users/"+writerID, admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/projects", writer, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
