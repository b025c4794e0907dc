// Package auth manages player registration, login, and session validation.
package auth

import (
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"vdm-lab/contract"
	"vdm-lab/errors"
)

// RegisterRequest is the payload of POST /api/register.
type RegisterRequest struct {
	Name        string `json:"name" validate:"required,min=3,max=20"`
	AvatarStyle string `json:"avatar_style" validate:"required"`
	Password    string `json:"password" validate:"required,min=8"`
}

// LoginRequest is the payload of POST /api/login.
type LoginRequest struct {
	Name     string `json:"name" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Session is the client-safe result of a successful login.
type Session struct {
	Token       string `json:"token"`
	Name        string `json:"name"`
	AvatarStyle string `json:"avatar_style"`
}

// Manager is the session directory: it registers accounts, logs players in,
// and resolves session tokens into stable identities.
type Manager struct {
	log      *slog.Logger
	users    contract.UserStore
	tokens   *TokenIssuer
	validate *validator.Validate
}

func NewManager(log *slog.Logger, users contract.UserStore, tokens *TokenIssuer) *Manager {
	return &Manager{
		log:      log,
		users:    users,
		tokens:   tokens,
		validate: validator.New(),
	}
}

// Register creates a new account. Names collide case-insensitively.
func (m *Manager) Register(req RegisterRequest) error {
	if err := m.validate.Struct(req); err != nil {
		return fmt.Errorf("invalid registration request: %w", err)
	}
	if _, found, err := m.users.Get(req.Name); err != nil {
		return fmt.Errorf("looking up account: %w", err)
	} else if found {
		return errors.ErrNameTaken
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	if err := m.users.Put(contract.UserAccount{
		Name:         req.Name,
		AvatarStyle:  req.AvatarStyle,
		PasswordHash: hash,
	}); err != nil {
		return fmt.Errorf("storing account: %w", err)
	}
	m.log.Info(fmt.Sprintf("Registered new player '%s'", req.Name))
	return nil
}

// Login verifies credentials and issues a fresh session token.
func (m *Manager) Login(req LoginRequest) (Session, error) {
	if err := m.validate.Struct(req); err != nil {
		return Session{}, errors.ErrBadCredentials
	}
	account, found, err := m.users.Get(req.Name)
	if err != nil {
		return Session{}, fmt.Errorf("looking up account: %w", err)
	}
	if !found {
		return Session{}, errors.ErrBadCredentials
	}
	match, err := ComparePassword(req.Password, account.PasswordHash)
	if err != nil || !match {
		return Session{}, errors.ErrBadCredentials
	}

	token, err := m.tokens.Issue(account.Name, account.AvatarStyle)
	if err != nil {
		return Session{}, fmt.Errorf("issuing session token: %w", err)
	}
	m.log.Info(fmt.Sprintf("Player '%s' logged in", account.Name))
	return Session{Token: token, Name: account.Name, AvatarStyle: account.AvatarStyle}, nil
}

// Authenticate resolves an opaque session token into a participant identity.
// Any invalid or expired token yields ErrUnauthorized.
func (m *Manager) Authenticate(token string) (contract.Profile, error) {
	claims, err := m.tokens.Verify(token)
	if err != nil {
		return contract.Profile{}, errors.ErrUnauthorized
	}
	return contract.Profile{Name: claims.Name, AvatarStyle: claims.AvatarStyle}, nil
}
