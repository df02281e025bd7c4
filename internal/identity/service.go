// Package identity reconciles an external sign-in with exactly one user and
// one family account.
package identity

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
	"github.com/JunoAX/familytasks-go/internal/users"
	"github.com/JunoAX/familytasks-go/internal/validation"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("github.com/JunoAX/familytasks-go/internal/identity")

// Sync outcomes reported to the Observer.
const (
	OutcomeExisting = "existing"
	OutcomeLinked   = "linked"
	OutcomeCreated  = "created"
	OutcomeError    = "error"
)

// Observer is told how each sync ended.
type Observer interface {
	IdentitySynced(outcome string)
}

// TokenIssuer signs a session token for a synced user.
type TokenIssuer interface {
	GenerateToken(userID, familyID int64, email string) (string, error)
}

type nopObserver struct{}

func (nopObserver) IdentitySynced(string) {}

type Service struct {
	store    store.Store
	logger   *slog.Logger
	observer Observer
	tokens   TokenIssuer
}

type Option func(*Service)

func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithTokenIssuer makes SyncIdentity return a signed session token.
func WithTokenIssuer(t TokenIssuer) Option {
	return func(s *Service) { s.tokens = t }
}

func NewService(s store.Store, opts ...Option) *Service {
	svc := &Service{store: s, logger: slog.Default(), observer: nopObserver{}}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// FamilyName derives the name of a new family account: "The <surname> Family"
// when name has more than one word, "<name>'s Family" otherwise.
func FamilyName(name string) string {
	fields := strings.Fields(name)
	if len(fields) > 1 {
		return fmt.Sprintf("The %s Family", fields[len(fields)-1])
	}
	return fmt.Sprintf("%s's Family", strings.TrimSpace(name))
}

// SyncIdentity maps an external identity to its user and family, linking an
// existing user by email or creating both when neither is known. The whole
// reconciliation runs in one serializable transaction.
func (s *Service) SyncIdentity(ctx context.Context, req models.SyncRequest) (*models.SyncResult, error) {
	ctx, span := tracer.Start(ctx, "identity.SyncIdentity")
	defer span.End()

	externalID := strings.TrimSpace(req.Subject())
	email := users.NormalizeEmail(req.Email)
	name := strings.TrimSpace(req.Name)
	switch {
	case externalID == "":
		return nil, apperror.Invalid("google_id or external_id is required")
	case validation.Var(email, "required,email") != nil:
		return nil, apperror.Invalid("Invalid email %q", req.Email)
	case name == "":
		return nil, apperror.Invalid("name is required")
	}

	var out syncOutcome
	err := s.store.Tx(ctx, store.Serializable, func(q store.Queries) error {
		out = syncOutcome{}
		return s.sync(ctx, q, externalID, email, name, req.Image, &out)
	})
	if err != nil {
		s.observer.IdentitySynced(OutcomeError)
		return nil, apperror.FromStore(err, "User")
	}
	result, outcome := out.result, out.outcome
	span.SetAttributes(attribute.String("identity.outcome", outcome), attribute.Int64("user.id", result.User.ID))
	s.observer.IdentitySynced(outcome)

	// Events are logged only once the transaction has committed.
	switch outcome {
	case OutcomeLinked:
		if out.familyCreated {
			s.logger.InfoContext(ctx, "family.created", "family_id", result.Family.ID, "user_id", result.User.ID, "reason", "legacy_migration")
		}
		s.logger.InfoContext(ctx, "user.linked", "user_id", result.User.ID, "external_id", externalID)
	case OutcomeCreated:
		s.logger.InfoContext(ctx, "family.created", "family_id", result.Family.ID, "user_id", result.User.ID, "email", email)
		s.logger.InfoContext(ctx, "user.created", "user_id", result.User.ID, "external_id", externalID)
	}

	if s.tokens != nil {
		token, err := s.tokens.GenerateToken(result.User.ID, result.Family.ID, result.User.Email)
		if err != nil {
			return nil, apperror.Internal(err, "failed to issue session token")
		}
		result.Token = token
	}
	return &result, nil
}

// syncOutcome is what one reconciliation produced.
type syncOutcome struct {
	result        models.SyncResult
	outcome       string
	familyCreated bool // a legacy user was given a family while linking
}

func (s *Service) sync(ctx context.Context, q store.Queries, externalID, email, name string, image *string, out *syncOutcome) error {
	user, err := q.GetUserByExternalID(ctx, externalID)
	switch {
	case err == nil:
		family, err := existingFamily(ctx, q, user)
		if err != nil {
			return err
		}
		out.result = models.SyncResult{User: *user, Family: *family}
		out.outcome = OutcomeExisting
		return nil
	case !errors.Is(err, store.ErrNotFound):
		return err
	}

	user, err = q.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		out.outcome = OutcomeLinked
		return s.link(ctx, q, user, externalID, name, image, out)
	case !errors.Is(err, store.ErrNotFound):
		return err
	}

	family := models.Family{Name: FamilyName(name)}
	if err := q.CreateFamily(ctx, &family); err != nil {
		return err
	}
	newUser := models.User{
		Name:       name,
		Email:      email,
		Avatar:     image,
		ExternalID: &externalID,
		FamilyID:   &family.ID,
	}
	if err := q.CreateUser(ctx, &newUser); err != nil {
		return err
	}
	out.result = models.SyncResult{User: newUser, Family: family, IsNewUser: true}
	out.outcome = OutcomeCreated
	return nil
}

// existingFamily loads the family of an already linked user. A linked user
// without a family is a broken invariant and is not repaired here.
func existingFamily(ctx context.Context, q store.Queries, user *models.User) (*models.Family, error) {
	if user.FamilyID == nil {
		return nil, apperror.Internal(nil, "User %d has no associated family", user.ID)
	}
	family, err := q.GetFamily(ctx, *user.FamilyID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperror.Internal(err, "User %d has no associated family", user.ID)
	}
	return family, err
}

// link attaches externalID to a user found by email, creating a family for
// users that predate family accounts. An existing avatar is kept.
func (s *Service) link(ctx context.Context, q store.Queries, user *models.User, externalID, name string, image *string, out *syncOutcome) error {
	var family *models.Family
	if user.FamilyID == nil {
		family = &models.Family{Name: FamilyName(name)}
		if err := q.CreateFamily(ctx, family); err != nil {
			return err
		}
		out.familyCreated = true
	} else {
		var err error
		if family, err = q.GetFamily(ctx, *user.FamilyID); err != nil {
			return err
		}
	}

	var p patch.Patch
	p.Set("external_id", externalID)
	p.Set("family_id", family.ID)
	if user.Avatar == nil && image != nil {
		p.Set("avatar", *image)
	}
	updated, err := q.UpdateUser(ctx, user.ID, p)
	if err != nil {
		return err
	}
	out.result = models.SyncResult{User: *updated, Family: *family}
	return nil
}
