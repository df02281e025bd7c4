// Package users manages family members.
package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JunoAX/familytasks-go/internal/apperror"
	"github.com/JunoAX/familytasks-go/internal/models"
	"github.com/JunoAX/familytasks-go/internal/patch"
	"github.com/JunoAX/familytasks-go/internal/store"
	"github.com/JunoAX/familytasks-go/internal/validation"
)

type Service struct {
	store  store.Store
	logger *slog.Logger
}

func NewService(s store.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: s, logger: logger}
}

// NormalizeEmail trims and lowercases an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ListUsers returns all users, newest first.
func (s *Service) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, apperror.FromStore(err, "Users")
	}
	return users, nil
}

func (s *Service) GetUser(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, apperror.FromStore(err, fmt.Sprintf("User %d", id))
	}
	return user, nil
}

// CreateUser inserts a user. The email must not belong to anyone else.
func (s *Service) CreateUser(ctx context.Context, req models.UserCreateRequest) (*models.User, error) {
	user := models.User{
		Name:   strings.TrimSpace(req.Name),
		Email:  NormalizeEmail(req.Email),
		Avatar: req.Avatar,
	}
	if user.Name == "" {
		return nil, apperror.Invalid("name is required")
	}
	if err := validation.Var(user.Email, "required,email"); err != nil {
		return nil, apperror.Invalid("Invalid email %q", req.Email)
	}

	err := s.store.Tx(ctx, store.ReadCommitted, func(q store.Queries) error {
		if err := emailFree(ctx, q, user.Email, 0); err != nil {
			return err
		}
		return q.CreateUser(ctx, &user)
	})
	if err != nil {
		return nil, duplicateEmail(err, user.Email)
	}

	s.logger.InfoContext(ctx, "user.created", "user_id", user.ID)
	return &user, nil
}

// UpdateUser applies the fields present in req; an empty request returns
// the user unchanged.
func (s *Service) UpdateUser(ctx context.Context, id int64, req models.UserUpdateRequest) (*models.User, error) {
	var p patch.Patch
	if req.Name.Set {
		name := strings.TrimSpace(req.Name.Value)
		if req.Name.Null || name == "" {
			return nil, apperror.Invalid("name cannot be empty")
		}
		p.Set("name", name)
	}
	var email string
	if req.Email.Set {
		email = NormalizeEmail(req.Email.Value)
		if req.Email.Null || validation.Var(email, "required,email") != nil {
			return nil, apperror.Invalid("Invalid email %q", req.Email.Value)
		}
		p.Set("email", email)
	}
	if req.Avatar.Set && !req.Avatar.Null {
		if err := validation.Var(req.Avatar.Value, "url"); err != nil {
			return nil, apperror.Invalid("avatar must be a URL")
		}
	}
	patch.Add(&p, "avatar", req.Avatar)

	what := fmt.Sprintf("User %d", id)
	if p.Empty() {
		return s.GetUser(ctx, id)
	}

	var user *models.User
	err := s.store.Tx(ctx, store.ReadCommitted, func(q store.Queries) error {
		if email != "" {
			if err := emailFree(ctx, q, email, id); err != nil {
				return err
			}
		}
		var err error
		user, err = q.UpdateUser(ctx, id, p)
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperror.NotFound("%s not found", what)
		}
		return nil, duplicateEmail(err, email)
	}

	s.logger.InfoContext(ctx, "user.updated", "user_id", id, "fields", p.Len())
	return user, nil
}

// DeleteUser removes a user. Tasks assigned to them become unassigned.
func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	deleted, err := s.store.DeleteUser(ctx, id)
	if err != nil {
		return apperror.FromStore(err, fmt.Sprintf("User %d", id))
	}
	if !deleted {
		return apperror.NotFound("User %d not found", id)
	}
	s.logger.InfoContext(ctx, "user.deleted", "user_id", id)
	return nil
}

// emailFree fails with Conflict when email belongs to a user other than self.
func emailFree(ctx context.Context, q store.Queries, email string, self int64) error {
	existing, err := q.GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID == self:
		return nil
	}
	return apperror.Conflict("User with email %s already exists", email)
}

// duplicateEmail covers the race where another insert wins between the
// lookup and the write; the unique index reports it as ErrDuplicate.
func duplicateEmail(err error, email string) error {
	if errors.Is(err, store.ErrDuplicate) {
		return apperror.Conflict("User with email %s already exists", email)
	}
	return apperror.FromStore(err, "User")
}
