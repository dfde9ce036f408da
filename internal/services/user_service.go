package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/markdave123-py/Inkwell/internal/core"
	"github.com/markdave123-py/Inkwell/internal/models"
)

const (
	minUsernameLen = 2
	maxUsernameLen = 50
	minPasswordLen = 8
	// bcrypt ignores input past 72 bytes.
	maxPasswordLen = 72

	defaultUserPageSize = 20
	maxUserPageSize     = 100

	passwordSpecials = "!@#$%^&*"
)

type UserService struct {
	db     core.DbClient
	tokens *TokenIssuer
	cost   int
}

func NewUserService(db core.DbClient, tokens *TokenIssuer) *UserService {
	return &UserService{db: db, tokens: tokens, cost: bcrypt.DefaultCost}
}

// Session is returned by every call that (re)authenticates the caller.
type Session struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func (s *UserService) session(u *models.User) (*Session, error) {
	token, err := s.tokens.Issue(u)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, User: u}, nil
}

func (s *UserService) hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

func validEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return core.Invalid("email", "must be a valid email address")
	}
	return nil
}

func validUsername(username string) error {
	if strings.ContainsAny(username, " \t\n@") {
		return core.Invalid("username", "must not contain spaces or '@'")
	}
	return checkLength("username", username, minUsernameLen, maxUsernameLen)
}

func validPassword(field, password string) error {
	if len(password) > maxPasswordLen {
		return core.Invalid(field, fmt.Sprintf("must be at most %d bytes", maxPasswordLen))
	}
	return checkLength(field, password, minPasswordLen, maxPasswordLen)
}

// strongPassword is the policy applied when users choose their own
// password: a letter, a digit and one of !@#$%^&*.
func strongPassword(field, password string) error {
	if err := validPassword(field, password); err != nil {
		return err
	}
	var letter, digit bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			letter = true
		case r >= '0' && r <= '9':
			digit = true
		}
	}
	if !letter || !digit || !strings.ContainsAny(password, passwordSpecials) {
		return core.Invalid(field, "must contain a letter, a digit and one of "+passwordSpecials)
	}
	return nil
}

// Signup registers a regular user and opens a session.
func (s *UserService) Signup(ctx context.Context, email, username, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.TrimSpace(username)
	if err := validEmail(email); err != nil {
		return nil, err
	}
	if err := validUsername(username); err != nil {
		return nil, err
	}
	if err := validPassword("password", password); err != nil {
		return nil, err
	}

	hash, err := s.hash(password)
	if err != nil {
		return nil, err
	}
	u := &models.User{Email: email, Username: username, PasswordHash: hash, Role: models.RoleUser}
	if err := s.db.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	logrus.WithField("user_id", u.ID).Info("user signed up")
	return s.session(u)
}

var errBadCredentials = fmt.Errorf("%w: invalid credentials", core.ErrNotAuthenticated)

// Login accepts either the email or the username as identifier.
func (s *UserService) Login(ctx context.Context, identifier, password string) (*Session, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, core.Invalid("credentials", "identifier and password are required")
	}
	if strings.Contains(identifier, "@") {
		identifier = strings.ToLower(identifier)
	}
	u, err := s.db.GetUserByIdentifier(ctx, identifier)
	if errors.Is(err, core.ErrNotFound) {
		return nil, errBadCredentials
	}
	if err != nil {
		return nil, err
	}
	if u.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, errBadCredentials
	}
	return s.session(u)
}

func (s *UserService) Me(ctx context.Context, p *models.Principal) (*models.User, error) {
	id, err := callerID(p)
	if err != nil {
		return nil, err
	}
	return s.db.GetUserByID(ctx, id)
}

type PasswordChange struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

// ChangePassword replaces the caller's password, clears the forced-change
// flag and returns a session whose token no longer carries it.
func (s *UserService) ChangePassword(ctx context.Context, p *models.Principal, req PasswordChange) (*Session, error) {
	id, err := callerID(p)
	if err != nil {
		return nil, err
	}
	if req.CurrentPassword == "" {
		return nil, core.Invalid("current_password", "is required")
	}
	if err := strongPassword("new_password", req.NewPassword); err != nil {
		return nil, err
	}
	if req.NewPassword != req.ConfirmPassword {
		return nil, core.Invalid("confirm_password", "does not match the new password")
	}

	u, err := s.db.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.CurrentPassword)) != nil {
		return nil, core.Invalid("current_password", "is incorrect")
	}
	if u.PasswordHash, err = s.hash(req.NewPassword); err != nil {
		return nil, err
	}
	u.MustChangePassword = false
	if err := s.db.UpdateUser(ctx, u); err != nil {
		return nil, err
	}
	logrus.WithField("user_id", u.ID).Info("password changed")
	return s.session(u)
}

func requireAdmin(p *models.Principal) (string, error) {
	id, err := callerID(p)
	if err != nil {
		return "", err
	}
	if p.Role != models.RoleAdmin {
		return "", fmt.Errorf("%w: administrator role required", core.ErrForbidden)
	}
	return id, nil
}

// UserPage is one page of the user directory.
type UserPage struct {
	Users      []models.UserSummary `json:"users"`
	Page       int                  `json:"page"`
	Limit      int                  `json:"limit"`
	Total      int                  `json:"total"`
	TotalPages int                  `json:"total_pages"`
}

func (s *UserService) ListUsers(ctx context.Context, p *models.Principal, filter models.UserFilter) (*UserPage, error) {
	if _, err := requireAdmin(p); err != nil {
		return nil, err
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	switch {
	case filter.Limit < 1:
		filter.Limit = defaultUserPageSize
	case filter.Limit > maxUserPageSize:
		filter.Limit = maxUserPageSize
	}
	users, total, err := s.db.ListUsers(ctx, filter)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []models.UserSummary{}
	}
	return &UserPage{
		Users:      users,
		Page:       filter.Page,
		Limit:      filter.Limit,
		Total:      total,
		TotalPages: (total + filter.Limit - 1) / filter.Limit,
	}, nil
}

func (s *UserService) GetUser(ctx context.Context, p *models.Principal, id string) (*models.User, error) {
	if _, err := requireAdmin(p); err != nil {
		return nil, err
	}
	return s.db.GetUserByID(ctx, id)
}

type NewUser struct {
	Email    string      `json:"email"`
	Username string      `json:"username"`
	Password string      `json:"password"`
	Role     models.Role `json:"role"`
}

// CreateUser adds an account on behalf of an administrator. The new user
// must change the password on first login.
func (s *UserService) CreateUser(ctx context.Context, p *models.Principal, in NewUser) (*models.User, error) {
	if _, err := requireAdmin(p); err != nil {
		return nil, err
	}
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = strings.TrimSpace(in.Username)
	if in.Role == "" {
		in.Role = models.RoleUser
	}
	if err := validEmail(in.Email); err != nil {
		return nil, err
	}
	if err := validUsername(in.Username); err != nil {
		return nil, err
	}
	if err := validPassword("password", in.Password); err != nil {
		return nil, err
	}
	if !in.Role.Valid() {
		return nil, core.Invalid("role", "must be 'user' or 'admin'")
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, err
	}
	u := &models.User{
		Email:              in.Email,
		Username:           in.Username,
		PasswordHash:       hash,
		Role:               in.Role,
		MustChangePassword: true,
	}
	if err := s.db.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"user_id": u.ID, "role": u.Role, "by": p.ID}).Info("user created by admin")
	return u, nil
}

// UpdateUser applies an administrative patch. A password reset does not
// set the forced-change flag unless the patch asks for it.
func (s *UserService) UpdateUser(ctx context.Context, p *models.Principal, id string, patch models.UserPatch) (*models.User, error) {
	if _, err := requireAdmin(p); err != nil {
		return nil, err
	}
	u, err := s.db.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if v, ok := patch.Email.Get(); ok {
		v = strings.ToLower(strings.TrimSpace(v))
		if err := validEmail(v); err != nil {
			return nil, err
		}
		u.Email = v
	}
	if v, ok := patch.Username.Get(); ok {
		v = strings.TrimSpace(v)
		if err := validUsername(v); err != nil {
			return nil, err
		}
		u.Username = v
	}
	if v, ok := patch.Role.Get(); ok {
		if !v.Valid() {
			return nil, core.Invalid("role", "must be 'user' or 'admin'")
		}
		u.Role = v
	}
	if v, ok := patch.MustChangePassword.Get(); ok {
		u.MustChangePassword = v
	}
	if v, ok := patch.Password.Get(); ok {
		if err := validPassword("password", v); err != nil {
			return nil, err
		}
		if u.PasswordHash, err = s.hash(v); err != nil {
			return nil, err
		}
	}
	if err := s.db.UpdateUser(ctx, u); err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"user_id": u.ID, "by": p.ID}).Info("user updated by admin")
	return u, nil
}

// DeleteUser removes another user with all of their projects.
func (s *UserService) DeleteUser(ctx context.Context, p *models.Principal, id string) error {
	adminID, err := requireAdmin(p)
	if err != nil {
		return err
	}
	if id == adminID {
		return core.Invalid("id", "you cannot delete your own account")
	}
	if err := s.db.DeleteUser(ctx, id); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{"user_id": id, "by": adminID}).Info("user deleted by admin")
	return nil
}

// EnsureAdmin creates the administrator account, or resets its password and
// role when the email or username already exists. Either way the account
// must change its password on next login.
func (s *UserService) EnsureAdmin(ctx context.Context, email, username, password string) (*models.User, bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.TrimSpace(username)
	if err := validEmail(email); err != nil {
		return nil, false, err
	}
	if err := validUsername(username); err != nil {
		return nil, false, err
	}
	if err := validPassword("password", password); err != nil {
		return nil, false, err
	}
	hash, err := s.hash(password)
	if err != nil {
		return nil, false, err
	}

	u, err := s.db.GetUserByIdentifier(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		u, err = s.db.GetUserByIdentifier(ctx, username)
	}
	switch {
	case errors.Is(err, core.ErrNotFound):
		u = &models.User{
			Email:              email,
			Username:           username,
			PasswordHash:       hash,
			Role:               models.RoleAdmin,
			MustChangePassword: true,
		}
		if err := s.db.CreateUser(ctx, u); err != nil {
			return nil, false, err
		}
		return u, true, nil
	case err != nil:
		return nil, false, err
	}

	u.PasswordHash = hash
	u.Role = models.RoleAdmin
	u.MustChangePassword = true
	if err := s.db.UpdateUser(ctx, u); err != nil {
		return nil, false, err
	}
	return u, false, nil
}
