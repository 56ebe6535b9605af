package account

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/harvest/internal/auth"
	"github.com/Additional-Code/harvest/internal/entity"
	repo "github.com/Additional-Code/harvest/internal/repository/user"
	"github.com/Additional-Code/harvest/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/harvest/service/account")

const minPasswordLength = 8

// RegisterInput describes a new account.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Phone    string
	Address  string
	Role     string
}

// Session is a freshly issued bearer token.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *entity.User
}

// Service registers and authenticates users.
type Service struct {
	repo   *repo.Repository
	issuer *auth.Issuer
	logger *zap.Logger
	now    func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *repo.Repository
	Issuer     *auth.Issuer
	Logger     *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		repo:   p.Repository,
		issuer: p.Issuer,
		logger: p.Logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Register creates a buyer or farmer account and signs it in.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Session, error) {
	ctx, span := serviceTracer.Start(ctx, "AccountService.Register")
	defer span.End()

	role := entity.Role(strings.ToLower(strings.TrimSpace(in.Role)))
	if role == "" {
		role = entity.RoleBuyer
	}
	if role != entity.RoleBuyer && role != entity.RoleFarmer {
		return Session{}, errorbank.BadRequest("role must be buyer or farmer")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Session{}, errorbank.BadRequest("name is required")
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(in.Email)); err != nil {
		return Session{}, errorbank.BadRequest("a valid email is required")
	}
	if len(in.Password) < minPasswordLength {
		return Session{}, errorbank.BadRequest("password must be at least 8 characters")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		span.RecordError(err)
		return Session{}, errorbank.Internal("failed to secure password", errorbank.WithCause(err))
	}

	now := s.now()
	u := &entity.User{
		Name:         name,
		Email:        in.Email,
		PasswordHash: hash,
		Phone:        strings.TrimSpace(in.Phone),
		Address:      strings.TrimSpace(in.Address),
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, repo.ErrDuplicateEmail) {
			return Session{}, errorbank.Conflict("email already registered", errorbank.WithCause(err))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return Session{}, errorbank.Internal("failed to register", errorbank.WithCause(err))
	}
	span.SetAttributes(attribute.Int64("user.id", u.ID))
	s.logger.Info("user registered", zap.Int64("user_id", u.ID), zap.String("role", string(role)))

	return s.session(u)
}

// Login verifies credentials and issues a token.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	ctx, span := serviceTracer.Start(ctx, "AccountService.Login")
	defer span.End()

	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return Session{}, errorbank.Unauthorized("invalid email or password")
		}
		span.RecordError(err)
		return Session{}, errorbank.Internal("failed to sign in", errorbank.WithCause(err))
	}
	if err := auth.CheckPassword(u.PasswordHash, password); err != nil {
		return Session{}, errorbank.Unauthorized("invalid email or password")
	}
	if !u.IsActive {
		return Session{}, errorbank.Forbidden("account is disabled")
	}
	return s.session(u)
}

// Profile returns the actor's own account.
func (s *Service) Profile(ctx context.Context, actor auth.Actor) (*entity.User, error) {
	ctx, span := serviceTracer.Start(ctx, "AccountService.Profile", trace.WithAttributes(attribute.Int64("user.id", actor.UserID)))
	defer span.End()

	u, err := s.repo.GetByID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("user not found")
		}
		span.RecordError(err)
		return nil, errorbank.Internal("failed to load profile", errorbank.WithCause(err))
	}
	return u, nil
}

func (s *Service) session(u *entity.User) (Session, error) {
	token, expires, err := s.issuer.Issue(auth.Actor{UserID: u.ID, Role: u.Role})
	if err != nil {
		return Session{}, errorbank.Internal("failed to issue token", errorbank.WithCause(err))
	}
	return Session{Token: token, ExpiresAt: expires, User: u}, nil
}
