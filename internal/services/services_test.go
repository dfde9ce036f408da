package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/markdave123-py/Inkwell/internal/core"
	db "github.com/markdave123-py/Inkwell/internal/core/database"
	"github.com/markdave123-py/Inkwell/internal/core/ingestion_engine"
	"github.com/markdave123-py/Inkwell/internal/models"
)

type fakeStorage struct {
	mu       sync.Mutex
	uploads  map[string][]byte
	prefixes []string
	err      error
}

func (f *fakeStorage) UploadFile(_ context.Context, key string, data io.Reader, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploads == nil {
		f.uploads = map[string][]byte{}
	}
	f.uploads[key] = b
	return "https://bucket.example/" + key, nil
}

func (f *fakeStorage) DeletePrefix(_ context.Context, prefix string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prefixes = append(f.prefixes, prefix)
	if f.err != nil {
		return 0, f.err
	}
	n := 0
	for k := range f.uploads {
		if strings.HasPrefix(k, prefix) {
			delete(f.uploads, k)
			n++
		}
	}
	return n, nil
}

type lineExtractor struct{}

func (lineExtractor) ExtractParagraphs(_ context.Context, data []byte, _ string) ([]string, error) {
	var out []string
	for _, l := range strings.Split(string(data), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out, nil
}

type fixture struct {
	db       *db.DatabaseClient
	storage  *fakeStorage
	projects *ProjectService
	chapters *ChapterService
	exports  *ExportService
	users    *UserService
	tokens   *TokenIssuer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client, err := db.Open(context.Background(), db.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	storage := &fakeStorage{}
	tokens := NewTokenIssuer("test-secret", time.Hour)
	users := NewUserService(client, tokens)
	users.cost = bcrypt.MinCost
	return &fixture{
		db:       client,
		storage:  storage,
		projects: NewProjectService(client, storage),
		chapters: NewChapterService(client, ingestion_engine.NewChapterImporter(client, lineExtractor{}, nil)),
		exports:  NewExportService(client, storage),
		users:    users,
		tokens:   tokens,
	}
}

func (f *fixture) principal(t *testing.T, name string) *models.Principal {
	t.Helper()
	sess, err := f.users.Signup(context.Background(), name+"@example.com", name, "password1")
	require.NoError(t, err)
	return &models.Principal{ID: sess.User.ID, Role: sess.User.Role}
}

func TestProjectService_CreateValidatesAndSeedsChapter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.principal(t, "writer")

	project, first, err := f.projects.Create(ctx, p, NewProject{Title: "  Moonlight  ", Genre: "Fantasy"})
	require.NoError(t, err)
	assert.Equal(t, "Moonlight", project.Title)
	assert.Equal(t, models.DefaultProjectStatus, project.Status)
	assert.Equal(t, models.FirstChapterTitle, first.Title)
	assert.Equal(t, 0, first.OrderIndex)

	tests := []struct {
		name  string
		in    NewProject
		field string
	}{
		{"empty title", NewProject{Title: "   "}, "title"},
		{"long title", NewProject{Title: strings.Repeat("a", 256)}, "title"},
		{"long description", NewProject{Title: "ok", Description: strings.Repeat("d", 1001)}, "description"},
		{"long genre", NewProject{Title: "ok", Genre: strings.Repeat("g", 101)}, "genre"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.projects.Create(ctx, p, tt.in)
			var ve *core.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	_, _, err = f.projects.Create(ctx, p, NewProject{Title: strings.Repeat("é", 255)})
	assert.NoError(t, err)

	_, _, err = f.projects.Create(ctx, nil, NewProject{Title: "x"})
	assert.ErrorIs(t, err, core.ErrNotAuthenticated)
	_, err = f.projects.List(ctx, &models.Principal{})
	assert.ErrorIs(t, err, core.ErrNotAuthenticated)
}

func TestProjectService_Update(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.principal(t, "writer")
	project, _, err := f.projects.Create(ctx, p, NewProject{Title: "Draft"})
	require.NoError(t, err)

	target := 50000
	got, err := f.projects.Update(ctx, p, project.ID, models.ProjectPatch{
		Status:          models.Some("revising"),
		TargetWordCount: models.Some(&target),
	})
	require.NoError(t, err)
	assert.Equal(t, "revising", got.Status)
	assert.Equal(t, "Draft", got.Title)
	require.NotNil(t, got.TargetWordCount)
	assert.Equal(t, 50000, *got.TargetWordCount)

	negative := -1
	_, err = f.projects.Update(ctx, p, project.ID, models.ProjectPatch{TargetWordCount: models.Some(&negative)})
	assert.True(t, core.IsValidation(err))
	_, err = f.projects.Update(ctx, p, project.ID, models.ProjectPatch{Status: models.Some("")})
	assert.True(t, core.IsValidation(err))
	_, err = f.projects.Update(ctx, p, project.ID, models.ProjectPatch{Title: models.Some(strings.Repeat("t", 256))})
	assert.True(t, core.IsValidation(err))

	other := f.principal(t, "other")
	_, err = f.projects.Update(ctx, other, project.ID, models.ProjectPatch{Title: models.Some("Mine")})
	assert.ErrorIs(t, err, core.ErrForbidden)
}

func TestProjectService_DeleteRemovesArchive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.principal(t, "writer")
	project, _, err := f.projects.Create(ctx, p, NewProject{Title: "Gone"})
	require.NoError(t, err)

	res, err := f.exports.Export(ctx, p, project.ID, "txt", true)
	require.NoError(t, err)
	require.NotEmpty(t, res.ArchiveURL)
	require.Len(t, f.storage.uploads, 1)

	require.NoError(t, f.projects.Delete(ctx, p, project.ID))
	assert.Empty(t, f.storage.uploads)
	assert.Equal(t, []string{"users/" + p.ID + "/projects/" + project.ID + "/"}, f.storage.prefixes)

	_, err = f.projects.Get(ctx, p, project.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestProjectService_DeleteIgnoresArchiveFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.principal(t, "writer")
	project, _, err := f.projects.Create(ctx, p, NewProject{Title: "Gone"})
	require.NoError(t, err)

	f.storage.err = errors.New("s3 down")
	assert.NoError(t, f.projects.Delete(ctx, p, project.ID))
}

func TestChapterService_Lifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.principal(t, "writer")
	project, first, err := f.projects.Create(ctx, p, NewProject{Title: "Moonlight"})
	require.NoError(t, err)

	_, err = f.chapters.Create(ctx, p, project.ID, "", "")
	assert.True(t, core.IsValidation(err))
	_, err = f.chapters.Create(ctx, p, project.ID, strings.Repeat("x", 256), "")
	assert.True(t, core.IsValidation(err))

	second, err := f.chapters.Create(ctx, p, project.ID, strings.Repeat("x", 255), "<p>Hello world</p>")
	require.NoError(t, err)
	assert.Equal(t, 1, second.OrderIndex)
	assert.Equal(t, 2, second.WordCount)

	updated, err := f.chapters.Update(ctx, p, first.ID, models.ChapterPatch{Content: models.Some("<p>The quick brown fox jumps.</p>")})
	require.NoError(t, err)
	assert.Equal(t, 5, updated.WordCount)

	_, err = f.chapters.Update(ctx, p, first.ID, models.ChapterPatch{Title: models.Some(" ")})
	assert.True(t, core.IsValidation(err))

	res, err := f.chapters.Autosave(ctx, p, first.ID, "<p>The quick brown fox jumps.</p>")
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	got, err := f.projects.Get(ctx, p, project.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.WordCount)

	items, err := f.chapters.Reorder(ctx, p, project.ID, []string{second.ID, first.ID})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, second.ID, items[0].ID)

	_, err = f.chapters.Reorder(ctx, p, project.ID, nil)
	assert.True(t, core.IsValidation(err))

	require.NoError(t, f.chapters.Delete(ctx, p, second.ID))
	list, err := f.chapters.List(ctx, p, project.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 0, list[0].OrderIndex)

	other := f.principal(t, "other")
	_, err = f.chapters.Get(ctx, other, first.ID)
	assert.ErrorIs(t, err, core.ErrForbidden)
	_, err = f.chapters.Get(ctx, other, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestChapterService_Import(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.principal(t, "writer")
	project, _, err := f.projects.Create(ctx, p, NewProject{Title: "Imports"})
	require.NoError(t, err)

	ch, err := f.chapters.Import(ctx, p, project.ID, ingestion_engine.Upload{
		Filename: "Prologue.txt",
		Data:     []byte("Once upon a time\n\nthe end"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Prologue", ch.Title)
	assert.Equal(t, "<p>Once upon a time</p>\n<p>the end</p>", ch.Content)
	assert.Equal(t, 1, ch.OrderIndex)

	_, err = f.chapters.Import(ctx, p, project.ID, ingestion_engine.Upload{Filename: "empty.txt"})
	assert.True(t, core.IsValidation(err))
}

func TestExportService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.principal(t, "writer")
	project, first, err := f.projects.Create(ctx, p, NewProject{Title: "Moon light"})
	require.NoError(t, err)
	_, err = f.chapters.Update(ctx, p, first.ID, models.ChapterPatch{Content: models.Some("<p>Hello world</p>")})
	require.NoError(t, err)

	res, err := f.exports.Export(ctx, p, project.ID, "plain-text", false)
	require.NoError(t, err)
	assert.Empty(t, res.ArchiveURL)
	assert.Equal(t, "Moon light.txt", res.Document.Filename)
	assert.Contains(t, string(res.Document.Body), "Hello world")
	assert.Empty(t, f.storage.uploads)

	res, err = f.exports.Export(ctx, p, project.ID, "docx", true)
	require.NoError(t, err)
	require.Len(t, f.storage.uploads, 1)
	for key := range f.storage.uploads {
		assert.True(t, strings.HasPrefix(key, "users/"+p.ID+"/projects/"+project.ID+"/exports/"), key)
		assert.True(t, strings.HasSuffix(key, "/Moon_light.docx"), key)
		assert.Equal(t, "https://bucket.example/"+key, res.ArchiveURL)
	}

	_, err = f.exports.Export(ctx, p, project.ID, "pdf", false)
	assert.True(t, core.IsValidation(err))

	noStorage := NewExportService(f.db, nil)
	_, err = noStorage.Export(ctx, p, project.ID, "txt", true)
	assert.True(t, core.IsValidation(err))

	other := f.principal(t, "other")
	_, err = f.exports.Export(ctx, other, project.ID, "txt", false)
	assert.ErrorIs(t, err, core.ErrForbidden)
}
