package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/markdave123-py/Inkwell/internal/core"
	"github.com/markdave123-py/Inkwell/internal/models"
)

const userColumns = `id, email, username, role, password_hash, provider, must_change_password, created_at, updated_at`

func (c *DatabaseClient) CreateUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return errors.New("nil user")
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	if user.Provider == "" {
		user.Provider = "credentials"
	}
	ts := now()
	user.CreatedAt, user.UpdatedAt = ts, ts

	_, err := c.db.ExecContext(ctx, c.db.Rebind(`
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		user.ID, user.Email, user.Username, user.Role, user.PasswordHash, user.Provider,
		user.MustChangePassword, user.CreatedAt, user.UpdatedAt)
	return mapWriteErr("create user", err)
}

func (c *DatabaseClient) getUser(ctx context.Context, where string, args ...any) (*models.User, error) {
	var u models.User
	err := c.db.GetContext(ctx, &u, c.db.Rebind(`SELECT `+userColumns+` FROM users WHERE `+where), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (c *DatabaseClient) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return c.getUser(ctx, `id = ?`, id)
}

// GetUserByIdentifier looks a user up by email or username.
func (c *DatabaseClient) GetUserByIdentifier(ctx context.Context, emailOrUsername string) (*models.User, error) {
	return c.getUser(ctx, `email = ? OR username = ?`, emailOrUsername, emailOrUsername)
}

// ListUsers returns one page of the directory and the total number of matches.
func (c *DatabaseClient) ListUsers(ctx context.Context, filter models.UserFilter) ([]models.UserSummary, int, error) {
	where := "1 = 1"
	var args []any
	if s := strings.TrimSpace(filter.Search); s != "" {
		where = "(LOWER(u.email) LIKE ? OR LOWER(u.username) LIKE ?)"
		pattern := "%" + strings.ToLower(s) + "%"
		args = append(args, pattern, pattern)
	}

	var total int
	if err := c.db.GetContext(ctx, &total, c.db.Rebind(`SELECT COUNT(*) FROM users u WHERE `+where), args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	limit, page := filter.Limit, filter.Page
	if limit <= 0 {
		limit = 10
	}
	if page <= 0 {
		page = 1
	}

	out := []models.UserSummary{}
	q := c.db.Rebind(`
		SELECT u.id, u.email, u.username, u.role, u.password_hash, u.provider, u.must_change_password,
			u.created_at, u.updated_at,
			(SELECT COUNT(*) FROM projects p WHERE p.owner_id = u.id) AS project_count
		FROM users u
		WHERE ` + where + `
		ORDER BY u.created_at DESC, u.id
		LIMIT ? OFFSET ?`)
	if err := c.db.SelectContext(ctx, &out, q, append(args, limit, (page-1)*limit)...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return out, total, nil
}

// UpdateUser rewrites the mutable fields of user.
func (c *DatabaseClient) UpdateUser(ctx context.Context, user *models.User) error {
	user.UpdatedAt = now()
	res, err := c.db.ExecContext(ctx, c.db.Rebind(`
		UPDATE users
		SET email = ?, username = ?, role = ?, password_hash = ?, must_change_password = ?, updated_at = ?
		WHERE id = ?`),
		user.Email, user.Username, user.Role, user.PasswordHash, user.MustChangePassword, user.UpdatedAt, user.ID)
	if err != nil {
		return mapWriteErr("update user", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %s: %w", user.ID, core.ErrNotFound)
	}
	return nil
}

// DeleteUser removes the user with every project and chapter they own.
func (c *DatabaseClient) DeleteUser(ctx context.Context, id string) error {
	return c.inTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, tx.Rebind(`
			DELETE FROM chapters WHERE project_id IN (SELECT id FROM projects WHERE owner_id = ?)`), id)
		if err != nil {
			return fmt.Errorf("delete chapters of user %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM projects WHERE owner_id = ?`), id); err != nil {
			return fmt.Errorf("delete projects of user %s: %w", id, err)
		}
		res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM users WHERE id = ?`), id)
		if err != nil {
			return fmt.Errorf("delete user %s: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("user %s: %w", id, core.ErrNotFound)
		}
		return nil
	})
}
