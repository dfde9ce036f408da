package services

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/markdave123-py/Inkwell/internal/core"
	objectclient "github.com/markdave123-py/Inkwell/internal/core/object-client"
	"github.com/markdave123-py/Inkwell/internal/models"
)

type ProjectService struct {
	db      core.DbClient
	storage core.ObjectClient // nil when archiving is disabled
}

func NewProjectService(db core.DbClient, storage core.ObjectClient) *ProjectService {
	return &ProjectService{db: db, storage: storage}
}

type NewProject struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Genre       string `json:"genre"`
}

// Create stores the project together with its first, empty chapter.
func (s *ProjectService) Create(ctx context.Context, p *models.Principal, in NewProject) (*models.Project, *models.Chapter, error) {
	ownerID, err := callerID(p)
	if err != nil {
		return nil, nil, err
	}
	title, err := normalizeTitle(in.Title)
	if err != nil {
		return nil, nil, err
	}
	description := strings.TrimSpace(in.Description)
	if err := checkLength("description", description, 0, maxDescriptionLen); err != nil {
		return nil, nil, err
	}
	genre := strings.TrimSpace(in.Genre)
	if err := checkLength("genre", genre, 0, maxGenreLen); err != nil {
		return nil, nil, err
	}

	project := &models.Project{
		OwnerID:     ownerID,
		Title:       title,
		Description: description,
		Genre:       genre,
	}
	first, err := s.db.CreateProject(ctx, project)
	if err != nil {
		return nil, nil, err
	}
	logrus.WithFields(logrus.Fields{"project_id": project.ID, "user_id": ownerID}).Info("project created")
	return project, first, nil
}

func (s *ProjectService) List(ctx context.Context, p *models.Principal) ([]models.Project, error) {
	ownerID, err := callerID(p)
	if err != nil {
		return nil, err
	}
	return s.db.ListProjectsByOwner(ctx, ownerID)
}

func (s *ProjectService) Get(ctx context.Context, p *models.Principal, id string) (*models.Project, error) {
	ownerID, err := callerID(p)
	if err != nil {
		return nil, err
	}
	return s.db.GetProject(ctx, ownerID, id)
}

// Update validates every present field before touching the store.
func (s *ProjectService) Update(ctx context.Context, p *models.Principal, id string, patch models.ProjectPatch) (*models.Project, error) {
	ownerID, err := callerID(p)
	if err != nil {
		return nil, err
	}
	if v, ok := patch.Title.Get(); ok {
		if patch.Title.Value, err = normalizeTitle(v); err != nil {
			return nil, err
		}
	}
	if v, ok := patch.Description.Get(); ok {
		patch.Description.Value = strings.TrimSpace(v)
		if err := checkLength("description", patch.Description.Value, 0, maxDescriptionLen); err != nil {
			return nil, err
		}
	}
	if v, ok := patch.Genre.Get(); ok {
		patch.Genre.Value = strings.TrimSpace(v)
		if err := checkLength("genre", patch.Genre.Value, 0, maxGenreLen); err != nil {
			return nil, err
		}
	}
	if v, ok := patch.Status.Get(); ok {
		patch.Status.Value = strings.TrimSpace(v)
		if err := checkLength("status", patch.Status.Value, 1, maxStatusLen); err != nil {
			return nil, err
		}
	}
	if v, ok := patch.TargetWordCount.Get(); ok && v != nil && *v < 0 {
		return nil, core.Invalid("target_word_count", "must not be negative")
	}
	return s.db.UpdateProject(ctx, ownerID, id, patch)
}

// Delete removes the project and its chapters, then drops any archived
// exports. Archive cleanup failures are logged, never returned.
func (s *ProjectService) Delete(ctx context.Context, p *models.Principal, id string) error {
	ownerID, err := callerID(p)
	if err != nil {
		return err
	}
	if err := s.db.DeleteProject(ctx, ownerID, id); err != nil {
		return err
	}

	log := logrus.WithFields(logrus.Fields{"project_id": id, "user_id": ownerID})
	if s.storage == nil {
		log.Info("project deleted")
		return nil
	}
	n, err := s.storage.DeletePrefix(ctx, objectclient.ProjectPrefix(ownerID, id))
	if err != nil {
		log.WithError(err).Warn("project deleted; archived exports not removed")
		return nil
	}
	log.WithField("archived_removed", n).Info("project deleted")
	return nil
}
