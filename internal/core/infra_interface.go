package core

import (
	"context"
	"io"

	"github.com/markdave123-py/Inkwell/internal/models"
)

// DbClient defines all persistence operations the services need.
// Chapter mutations keep the project word count and the dense chapter
// ordering consistent inside the same transaction.
//
// Methods taking an ownerID resolve the target first (ErrNotFound) and then
// compare its owner (ErrForbidden).
type DbClient interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByIdentifier(ctx context.Context, emailOrUsername string) (*models.User, error)
	ListUsers(ctx context.Context, filter models.UserFilter) ([]models.UserSummary, int, error)
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id string) error

	CreateProject(ctx context.Context, project *models.Project) (*models.Chapter, error)
	GetProject(ctx context.Context, ownerID, id string) (*models.Project, error)
	ListProjectsByOwner(ctx context.Context, ownerID string) ([]models.Project, error)
	UpdateProject(ctx context.Context, ownerID, id string, patch models.ProjectPatch) (*models.Project, error)
	DeleteProject(ctx context.Context, ownerID, id string) error

	CreateChapter(ctx context.Context, ownerID string, chapter *models.Chapter) error
	GetChapter(ctx context.Context, ownerID, id string) (*models.Chapter, error)
	ListChapters(ctx context.Context, ownerID, projectID string) ([]models.ChapterListItem, error)
	ListChaptersWithContent(ctx context.Context, ownerID, projectID string) ([]models.Chapter, error)
	UpdateChapter(ctx context.Context, ownerID, id string, patch models.ChapterPatch) (*models.Chapter, error)
	AutosaveChapter(ctx context.Context, ownerID, id, content string) (*models.AutosaveResult, error)
	DeleteChapter(ctx context.Context, ownerID, id string) error
	ReorderChapters(ctx context.Context, ownerID, projectID string, orderedIDs []string) ([]models.ChapterListItem, error)

	Close() error
}

// ObjectClient defines interactions with S3 or any object storage.
type ObjectClient interface {
	UploadFile(ctx context.Context, key string, data io.Reader, contentType string) (url string, err error)
	DeletePrefix(ctx context.Context, prefix string) (deleted int, err error)
}

// TextExtractor turns an uploaded document into plain-text paragraphs.
type TextExtractor interface {
	ExtractParagraphs(ctx context.Context, data []byte, contentType string) ([]string, error)
}
