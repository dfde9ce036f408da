package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/markdave123-py/Inkwell/internal/core"
	"github.com/markdave123-py/Inkwell/internal/core/wordcount"
	"github.com/markdave123-py/Inkwell/internal/models"
)

const chapterColumns = `id, project_id, title, content, word_count, order_index, created_at, updated_at`

func insertChapter(ctx context.Context, tx *sqlx.Tx, ch *models.Chapter) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO chapters (`+chapterColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		ch.ID, ch.ProjectID, ch.Title, ch.Content, ch.WordCount, ch.OrderIndex, ch.CreatedAt, ch.UpdatedAt)
	return mapWriteErr("insert chapter", err)
}

// chapterProject finds the owning project of a chapter without locking.
func (c *DatabaseClient) chapterProject(ctx context.Context, q sqlx.ExtContext, id string) (projectID, ownerID string, err error) {
	var row struct {
		ProjectID string `db:"project_id"`
		OwnerID   string `db:"owner_id"`
	}
	err = sqlx.GetContext(ctx, q, &row, q.Rebind(`
		SELECT c.project_id, p.owner_id
		FROM chapters c JOIN projects p ON p.id = c.project_id
		WHERE c.id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", fmt.Errorf("chapter %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return "", "", fmt.Errorf("resolve chapter %s: %w", id, err)
	}
	return row.ProjectID, row.OwnerID, nil
}

// lockChapter resolves a chapter, checks ownership, locks its project and
// returns the chapter as stored under that lock.
func (c *DatabaseClient) lockChapter(ctx context.Context, tx *sqlx.Tx, ownerID, id string) (*models.Chapter, error) {
	projectID, owner, err := c.chapterProject(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if owner != ownerID {
		return nil, fmt.Errorf("chapter %s: %w", id, core.ErrForbidden)
	}
	if err := c.lockProject(ctx, tx, ownerID, projectID); err != nil {
		return nil, err
	}

	var ch models.Chapter
	err = tx.GetContext(ctx, &ch, tx.Rebind(`SELECT `+chapterColumns+` FROM chapters WHERE id = ? AND project_id = ?`), id, projectID)
	if errors.Is(err, sql.ErrNoRows) {
		// Deleted or moved while we waited for the lock.
		return nil, fmt.Errorf("chapter %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load chapter %s: %w", id, err)
	}
	return &ch, nil
}

// CreateChapter appends ch to the end of its project. ID, WordCount,
// OrderIndex and timestamps are assigned here.
func (c *DatabaseClient) CreateChapter(ctx context.Context, ownerID string, ch *models.Chapter) error {
	if ch == nil {
		return errors.New("nil chapter")
	}
	return c.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := c.lockProject(ctx, tx, ownerID, ch.ProjectID); err != nil {
			return err
		}

		var maxIndex int
		err := tx.GetContext(ctx, &maxIndex,
			tx.Rebind(`SELECT COALESCE(MAX(order_index), -1) FROM chapters WHERE project_id = ?`), ch.ProjectID)
		if err != nil {
			return fmt.Errorf("read max order index: %w", err)
		}

		ts := now()
		if ch.ID == "" {
			ch.ID = uuid.NewString()
		}
		ch.WordCount = wordcount.Count(ch.Content)
		ch.OrderIndex = maxIndex + 1
		ch.CreatedAt, ch.UpdatedAt = ts, ts

		if err := insertChapter(ctx, tx, ch); err != nil {
			return err
		}
		_, err = recomputeWordCount(ctx, tx, ch.ProjectID)
		return err
	})
}

// GetChapter returns the full chapter, content included.
func (c *DatabaseClient) GetChapter(ctx context.Context, ownerID, id string) (*models.Chapter, error) {
	_, owner, err := c.chapterProject(ctx, c.db, id)
	if err != nil {
		return nil, err
	}
	if owner != ownerID {
		return nil, fmt.Errorf("chapter %s: %w", id, core.ErrForbidden)
	}

	var ch models.Chapter
	err = c.db.GetContext(ctx, &ch, c.db.Rebind(`SELECT `+chapterColumns+` FROM chapters WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("chapter %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get chapter %s: %w", id, err)
	}
	return &ch, nil
}

func (c *DatabaseClient) checkProjectOwner(ctx context.Context, ownerID, projectID string) error {
	var owner string
	err := c.db.GetContext(ctx, &owner, c.db.Rebind(`SELECT owner_id FROM projects WHERE id = ?`), projectID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("project %s: %w", projectID, core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("get project %s: %w", projectID, err)
	}
	if owner != ownerID {
		return fmt.Errorf("project %s: %w", projectID, core.ErrForbidden)
	}
	return nil
}

// ListChapters returns the project's chapters in reading order, without content.
func (c *DatabaseClient) ListChapters(ctx context.Context, ownerID, projectID string) ([]models.ChapterListItem, error) {
	if err := c.checkProjectOwner(ctx, ownerID, projectID); err != nil {
		return nil, err
	}
	return listChapterItems(ctx, c.db, projectID)
}

func listChapterItems(ctx context.Context, q sqlx.ExtContext, projectID string) ([]models.ChapterListItem, error) {
	out := []models.ChapterListItem{}
	err := sqlx.SelectContext(ctx, q, &out, q.Rebind(`
		SELECT id, title, word_count, order_index, updated_at
		FROM chapters
		WHERE project_id = ?
		ORDER BY order_index ASC`), projectID)
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	return out, nil
}

// ListChaptersWithContent returns full chapters in reading order, for export.
func (c *DatabaseClient) ListChaptersWithContent(ctx context.Context, ownerID, projectID string) ([]models.Chapter, error) {
	if err := c.checkProjectOwner(ctx, ownerID, projectID); err != nil {
		return nil, err
	}
	out := []models.Chapter{}
	err := c.db.SelectContext(ctx, &out, c.db.Rebind(`
		SELECT `+chapterColumns+`
		FROM chapters
		WHERE project_id = ?
		ORDER BY order_index ASC`), projectID)
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	return out, nil
}

// UpdateChapter is the explicit save. A present Content always rewrites the
// chapter and the project total, even when unchanged.
func (c *DatabaseClient) UpdateChapter(ctx context.Context, ownerID, id string, patch models.ChapterPatch) (*models.Chapter, error) {
	var out *models.Chapter
	err := c.inTx(ctx, func(tx *sqlx.Tx) error {
		ch, err := c.lockChapter(ctx, tx, ownerID, id)
		if err != nil {
			return err
		}
		if v, ok := patch.Title.Get(); ok {
			ch.Title = v
		}
		if v, ok := patch.Content.Get(); ok {
			ch.Content = v
			ch.WordCount = wordcount.Count(v)
		}
		ch.UpdatedAt = now()

		_, err = tx.ExecContext(ctx, tx.Rebind(`
			UPDATE chapters SET title = ?, content = ?, word_count = ?, updated_at = ?
			WHERE id = ?`),
			ch.Title, ch.Content, ch.WordCount, ch.UpdatedAt, id)
		if err != nil {
			return mapWriteErr("update chapter", err)
		}
		if patch.Content.Set {
			if _, err := recomputeWordCount(ctx, tx, ch.ProjectID); err != nil {
				return err
			}
		}
		out = ch
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AutosaveChapter writes content unless it equals the stored content, in
// which case nothing is written and the stored timestamp is reported.
func (c *DatabaseClient) AutosaveChapter(ctx context.Context, ownerID, id, content string) (*models.AutosaveResult, error) {
	var res *models.AutosaveResult
	err := c.inTx(ctx, func(tx *sqlx.Tx) error {
		ch, err := c.lockChapter(ctx, tx, ownerID, id)
		if err != nil {
			return err
		}
		if ch.Content == content {
			res = &models.AutosaveResult{SavedAt: ch.UpdatedAt, WordCount: ch.WordCount, Skipped: true}
			return nil
		}

		words := wordcount.Count(content)
		ts := now()
		_, err = tx.ExecContext(ctx, tx.Rebind(`
			UPDATE chapters SET content = ?, word_count = ?, updated_at = ?
			WHERE id = ?`),
			content, words, ts, id)
		if err != nil {
			return mapWriteErr("autosave chapter", err)
		}
		if _, err := recomputeWordCount(ctx, tx, ch.ProjectID); err != nil {
			return err
		}
		res = &models.AutosaveResult{SavedAt: ts, WordCount: words}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// DeleteChapter removes the chapter, closes the gap it leaves in the
// ordering and recomputes the project total, all in one transaction.
func (c *DatabaseClient) DeleteChapter(ctx context.Context, ownerID, id string) error {
	return c.inTx(ctx, func(tx *sqlx.Tx) error {
		ch, err := c.lockChapter(ctx, tx, ownerID, id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM chapters WHERE id = ?`), id); err != nil {
			return fmt.Errorf("delete chapter %s: %w", id, err)
		}
		if err := shiftDown(ctx, tx, ch.ProjectID, ch.OrderIndex); err != nil {
			return err
		}
		_, err = recomputeWordCount(ctx, tx, ch.ProjectID)
		return err
	})
}

// shiftDown decrements every order_index above removed. Rows pass through
// negative values so UNIQUE(project_id, order_index) holds after every row.
func shiftDown(ctx context.Context, tx *sqlx.Tx, projectID string, removed int) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(`
		UPDATE chapters SET order_index = -order_index - 1
		WHERE project_id = ? AND order_index > ?`), projectID, removed)
	if err != nil {
		return fmt.Errorf("reindex chapters: %w", err)
	}
	// -(i+1) becomes i-1
	_, err = tx.ExecContext(ctx, tx.Rebind(`
		UPDATE chapters SET order_index = -order_index - 2
		WHERE project_id = ? AND order_index < 0`), projectID)
	if err != nil {
		return fmt.Errorf("reindex chapters: %w", err)
	}
	return nil
}

// ReorderChapters assigns order 0..n-1 following orderedIDs, which must be a
// permutation of the project's chapter ids.
func (c *DatabaseClient) ReorderChapters(ctx context.Context, ownerID, projectID string, orderedIDs []string) ([]models.ChapterListItem, error) {
	var out []models.ChapterListItem
	err := c.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := c.lockProject(ctx, tx, ownerID, projectID); err != nil {
			return err
		}

		var existing []string
		err := tx.SelectContext(ctx, &existing, tx.Rebind(`SELECT id FROM chapters WHERE project_id = ?`), projectID)
		if err != nil {
			return fmt.Errorf("list chapter ids: %w", err)
		}
		if !samePermutation(existing, orderedIDs) {
			return core.Invalid("chapter_ids", "must list every chapter of the project exactly once")
		}

		for i, id := range orderedIDs {
			_, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE chapters SET order_index = ? WHERE id = ?`), -(i + 1), id)
			if err != nil {
				return mapWriteErr("reorder chapters", err)
			}
		}
		_, err = tx.ExecContext(ctx, tx.Rebind(`
			UPDATE chapters SET order_index = -order_index - 1
			WHERE project_id = ? AND order_index < 0`), projectID)
		if err != nil {
			return mapWriteErr("reorder chapters", err)
		}
		_, err = tx.ExecContext(ctx, tx.Rebind(`UPDATE projects SET updated_at = ? WHERE id = ?`), now(), projectID)
		if err != nil {
			return fmt.Errorf("touch project: %w", err)
		}

		out, err = listChapterItems(ctx, tx, projectID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func samePermutation(existing, ordered []string) bool {
	if len(existing) != len(ordered) {
		return false
	}
	seen := make(map[string]bool, len(existing))
	for _, id := range existing {
		seen[id] = false
	}
	for _, id := range ordered {
		used, ok := seen[id]
		if !ok || used {
			return false
		}
		seen[id] = true
	}
	return true
}
