package services

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/markdave123-py/Inkwell/internal/core"
	"github.com/markdave123-py/Inkwell/internal/core/ingestion_engine"
	"github.com/markdave123-py/Inkwell/internal/models"
)

type ChapterService struct {
	db       core.DbClient
	importer ingestion_engine.Importer
}

func NewChapterService(db core.DbClient, importer ingestion_engine.Importer) *ChapterService {
	return &ChapterService{db: db, importer: importer}
}

// Create appends a chapter at the end of the project.
func (s *ChapterService) Create(ctx context.Context, p *models.Principal, projectID, title, content string) (*models.Chapter, error) {
	ownerID, err := callerID(p)
	if err != nil {
		return nil, err
	}
	if title, err = normalizeTitle(title); err != nil {
		return nil, err
	}
	ch := &models.Chapter{ProjectID: projectID, Title: title, Content: content}
	if err := s.db.CreateChapter(ctx, ownerID, ch); err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"project_id": projectID, "chapter_id": ch.ID, "order_index": ch.OrderIndex}).Debug("chapter created")
	return ch, nil
}

func (s *ChapterService) Get(ctx context.Context, p *models.Principal, id string) (*models.Chapter, error) {
	ownerID, err := callerID(p)
	if err != nil {
		return nil, err
	}
	return s.db.GetChapter(ctx, ownerID, id)
}

func (s *ChapterService) List(ctx context.Context, p *models.Principal, projectID string) ([]models.ChapterListItem, error) {
	ownerID, err := callerID(p)
	if err != nil {
		return nil, err
	}
	return s.db.ListChapters(ctx, ownerID, projectID)
}

// Update is the explicit save.
func (s *ChapterService) Update(ctx context.Context, p *models.Principal, id string, patch models.ChapterPatch) (*models.Chapter, error) {
	ownerID, err := callerID(p)
	if err != nil {
		return nil, err
	}
	if v, ok := patch.Title.Get(); ok {
		if patch.Title.Value, err = normalizeTitle(v); err != nil {
			return nil, err
		}
	}
	return s.db.UpdateChapter(ctx, ownerID, id, patch)
}

func (s *ChapterService) Autosave(ctx context.Context, p *models.Principal, id, content string) (*models.AutosaveResult, error) {
	ownerID, err := callerID(p)
	if err != nil {
		return nil, err
	}
	return s.db.AutosaveChapter(ctx, ownerID, id, content)
}

func (s *ChapterService) Delete(ctx context.Context, p *models.Principal, id string) error {
	ownerID, err := callerID(p)
	if err != nil {
		return err
	}
	return s.db.DeleteChapter(ctx, ownerID, id)
}

func (s *ChapterService) Reorder(ctx context.Context, p *models.Principal, projectID string, orderedIDs []string) ([]models.ChapterListItem, error) {
	ownerID, err := callerID(p)
	if err != nil {
		return nil, err
	}
	if len(orderedIDs) == 0 {
		return nil, core.Invalid("chapter_ids", "is required")
	}
	return s.db.ReorderChapters(ctx, ownerID, projectID, orderedIDs)
}

// Import converts an uploaded document into a new last chapter.
func (s *ChapterService) Import(ctx context.Context, p *models.Principal, projectID string, upload ingestion_engine.Upload) (*models.Chapter, error) {
	ownerID, err := callerID(p)
	if err != nil {
		return nil, err
	}
	if s.importer == nil {
		return nil, errors.New("chapter import is not configured")
	}
	if len(upload.Data) == 0 {
		return nil, core.Invalid("file", "is empty")
	}
	return s.importer.Import(ctx, ownerID, projectID, upload)
}
