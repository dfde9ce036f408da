package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/markdave123-py/Inkwell/internal/core"
	"github.com/markdave123-py/Inkwell/internal/models"
)

const projectColumns = `p.id, p.owner_id, p.title, p.description, p.genre, p.status,
	p.word_count, p.target_word_count, p.created_at, p.updated_at,
	(SELECT COUNT(*) FROM chapters c WHERE c.project_id = p.id) AS chapter_count`

// lockProject resolves the project, checks ownership and, on Postgres, takes
// the row lock that serializes every chapter mutation of the project.
func (c *DatabaseClient) lockProject(ctx context.Context, tx *sqlx.Tx, ownerID, projectID string) error {
	var owner string
	q := tx.Rebind(`SELECT owner_id FROM projects WHERE id = ?` + c.dialect.lockSuffix)
	err := tx.GetContext(ctx, &owner, q, projectID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("project %s: %w", projectID, core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("lock project %s: %w", projectID, err)
	}
	if owner != ownerID {
		return fmt.Errorf("project %s: %w", projectID, core.ErrForbidden)
	}
	return nil
}

// recomputeWordCount rewrites the project total from its chapters. It must run
// in the same transaction as the chapter write that changed a count.
func recomputeWordCount(ctx context.Context, tx *sqlx.Tx, projectID string) (int, error) {
	var total int
	err := tx.GetContext(ctx, &total,
		tx.Rebind(`SELECT COALESCE(SUM(word_count), 0) FROM chapters WHERE project_id = ?`), projectID)
	if err != nil {
		return 0, fmt.Errorf("sum chapter word counts: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		tx.Rebind(`UPDATE projects SET word_count = ?, updated_at = ? WHERE id = ?`), total, now(), projectID)
	if err != nil {
		return 0, fmt.Errorf("update project word count: %w", err)
	}
	return total, nil
}

// CreateProject persists the project together with its first, empty chapter.
func (c *DatabaseClient) CreateProject(ctx context.Context, project *models.Project) (*models.Chapter, error) {
	if project == nil {
		return nil, errors.New("nil project")
	}
	if project.ID == "" {
		project.ID = uuid.NewString()
	}
	if project.Status == "" {
		project.Status = models.DefaultProjectStatus
	}
	ts := now()
	project.WordCount = 0
	project.ChapterCount = 1
	project.CreatedAt, project.UpdatedAt = ts, ts

	first := &models.Chapter{
		ID:         uuid.NewString(),
		ProjectID:  project.ID,
		Title:      models.FirstChapterTitle,
		OrderIndex: 0,
		CreatedAt:  ts,
		UpdatedAt:  ts,
	}

	err := c.inTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO projects
				(id, owner_id, title, description, genre, status, word_count, target_word_count, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			project.ID, project.OwnerID, project.Title, project.Description, project.Genre, project.Status,
			project.WordCount, project.TargetWordCount, project.CreatedAt, project.UpdatedAt)
		if err != nil {
			return mapWriteErr("insert project", err)
		}
		return insertChapter(ctx, tx, first)
	})
	if err != nil {
		return nil, err
	}
	return first, nil
}

// GetProject returns the project if ownerID owns it.
func (c *DatabaseClient) GetProject(ctx context.Context, ownerID, id string) (*models.Project, error) {
	var p models.Project
	err := c.db.GetContext(ctx, &p, c.db.Rebind(`SELECT `+projectColumns+` FROM projects p WHERE p.id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get project %s: %w", id, err)
	}
	if p.OwnerID != ownerID {
		return nil, fmt.Errorf("project %s: %w", id, core.ErrForbidden)
	}
	return &p, nil
}

// ListProjectsByOwner returns the owner's projects, most recently updated first.
func (c *DatabaseClient) ListProjectsByOwner(ctx context.Context, ownerID string) ([]models.Project, error) {
	out := []models.Project{}
	err := c.db.SelectContext(ctx, &out, c.db.Rebind(`
		SELECT `+projectColumns+`
		FROM projects p
		WHERE p.owner_id = ?
		ORDER BY p.updated_at DESC, p.id`), ownerID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return out, nil
}

// UpdateProject applies the present fields of patch. Word count is never
// writable here.
func (c *DatabaseClient) UpdateProject(ctx context.Context, ownerID, id string, patch models.ProjectPatch) (*models.Project, error) {
	err := c.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := c.lockProject(ctx, tx, ownerID, id); err != nil {
			return err
		}

		var p models.Project
		if err := tx.GetContext(ctx, &p, tx.Rebind(`SELECT `+projectColumns+` FROM projects p WHERE p.id = ?`), id); err != nil {
			return fmt.Errorf("load project %s: %w", id, err)
		}
		if v, ok := patch.Title.Get(); ok {
			p.Title = v
		}
		if v, ok := patch.Description.Get(); ok {
			p.Description = v
		}
		if v, ok := patch.Genre.Get(); ok {
			p.Genre = v
		}
		if v, ok := patch.Status.Get(); ok {
			p.Status = v
		}
		if v, ok := patch.TargetWordCount.Get(); ok {
			p.TargetWordCount = v
		}

		_, err := tx.ExecContext(ctx, tx.Rebind(`
			UPDATE projects
			SET title = ?, description = ?, genre = ?, status = ?, target_word_count = ?, updated_at = ?
			WHERE id = ?`),
			p.Title, p.Description, p.Genre, p.Status, p.TargetWordCount, now(), id)
		return mapWriteErr("update project", err)
	})
	if err != nil {
		return nil, err
	}
	return c.GetProject(ctx, ownerID, id)
}

// DeleteProject removes the project and all of its chapters.
func (c *DatabaseClient) DeleteProject(ctx context.Context, ownerID, id string) error {
	return c.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := c.lockProject(ctx, tx, ownerID, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM chapters WHERE project_id = ?`), id); err != nil {
			return fmt.Errorf("delete chapters of %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM projects WHERE id = ?`), id); err != nil {
			return fmt.Errorf("delete project %s: %w", id, err)
		}
		return nil
	})
}
