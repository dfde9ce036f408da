package models

import (
	"time"
)

// Role is a user's authorization role.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// DefaultProjectStatus is assigned to new projects.
const DefaultProjectStatus = "draft"

// FirstChapterTitle is the title of the chapter created with every project.
const FirstChapterTitle = "Chapter 1"

// User represents an account of the system.
type User struct {
	ID                 string    `db:"id" json:"id"`
	Email              string    `db:"email" json:"email"`
	Username           string    `db:"username" json:"username"`
	Role               Role      `db:"role" json:"role"`
	PasswordHash       string    `db:"password_hash" json:"-"`
	Provider           string    `db:"provider" json:"provider"` // "credentials" or an OAuth provider tag
	MustChangePassword bool      `db:"must_change_password" json:"must_change_password"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// UserSummary is a directory row for the admin screens.
type UserSummary struct {
	User
	ProjectCount int `db:"project_count" json:"project_count"`
}

// Principal is the authenticated caller resolved from a session token.
type Principal struct {
	ID                 string
	Role               Role
	MustChangePassword bool
}

// Project is a novel-writing workspace owned by exactly one user.
type Project struct {
	ID              string    `db:"id" json:"id"`
	OwnerID         string    `db:"owner_id" json:"owner_id"`
	Title           string    `db:"title" json:"title"`
	Description     string    `db:"description" json:"description,omitempty"`
	Genre           string    `db:"genre" json:"genre,omitempty"`
	Status          string    `db:"status" json:"status"`
	WordCount       int       `db:"word_count" json:"word_count"` // always the sum over chapters
	TargetWordCount *int      `db:"target_word_count" json:"target_word_count,omitempty"`
	ChapterCount    int       `db:"chapter_count" json:"chapter_count"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Chapter is an ordered unit of content within a project.
type Chapter struct {
	ID         string    `db:"id" json:"id"`
	ProjectID  string    `db:"project_id" json:"project_id"`
	Title      string    `db:"title" json:"title"`
	Content    string    `db:"content" json:"content"`
	WordCount  int       `db:"word_count" json:"word_count"`
	OrderIndex int       `db:"order_index" json:"order_index"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// ChapterListItem is a chapter without its content, used for navigation lists.
type ChapterListItem struct {
	ID         string    `db:"id" json:"id"`
	Title      string    `db:"title" json:"title"`
	WordCount  int       `db:"word_count" json:"word_count"`
	OrderIndex int       `db:"order_index" json:"order_index"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// AutosaveResult is the outcome of an autosave request.
type AutosaveResult struct {
	SavedAt   time.Time `json:"saved_at"`
	WordCount int       `json:"word_count"`
	Skipped   bool      `json:"skipped"`
}

// ChapterPatch is an explicit save; absent fields are left untouched.
type ChapterPatch struct {
	Title   Optional[string] `json:"title,omitzero"`
	Content Optional[string] `json:"content,omitzero"`
}

// ProjectPatch updates project metadata; absent fields are left untouched.
type ProjectPatch struct {
	Title           Optional[string] `json:"title,omitzero"`
	Description     Optional[string] `json:"description,omitzero"`
	Genre           Optional[string] `json:"genre,omitzero"`
	Status          Optional[string] `json:"status,omitzero"`
	TargetWordCount Optional[*int]   `json:"target_word_count,omitzero"`
}

// UserFilter selects a page of the user directory.
type UserFilter struct {
	Search string
	Page   int
	Limit  int
}

// UserPatch is an administrative update of a user.
type UserPatch struct {
	Email              Optional[string] `json:"email,omitzero"`
	Username           Optional[string] `json:"username,omitzero"`
	Role               Optional[Role]   `json:"role,omitzero"`
	MustChangePassword Optional[bool]   `json:"must_change_password,omitzero"`
	Password           Optional[string] `json:"password,omitzero"`
}
