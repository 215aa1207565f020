// Package identity owns user accounts: registration, email verification,
// password authentication with lockout, and credential issue.
package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/teamreg/internal/app/system/apperr"
	"github.com/dalemusser/teamreg/internal/app/system/auth"
	"github.com/dalemusser/teamreg/internal/app/system/clock"
	"github.com/dalemusser/teamreg/internal/app/system/metrics"
	"github.com/dalemusser/teamreg/internal/app/system/normalize"
	"github.com/dalemusser/teamreg/internal/app/system/sentinel"
	"github.com/dalemusser/teamreg/internal/app/system/timeouts"
	"github.com/dalemusser/teamreg/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Users is the persistence the service needs.
type Users interface {
	Create(ctx context.Context, u models.User) (models.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	SetVerifyToken(ctx context.Context, id primitive.ObjectID, token string, expiresAt time.Time) error
	ConsumeVerifyToken(ctx context.Context, token string, now time.Time) (*models.User, error)
	RecordLoginFailure(ctx context.Context, id primitive.ObjectID, now time.Time, threshold int, lockFor time.Duration) (*models.User, error)
	ResetLoginFailures(ctx context.Context, id primitive.ObjectID) error
	SetDiscordID(ctx context.Context, id primitive.ObjectID, discordID string) error
	SetRole(ctx context.Context, id primitive.ObjectID, role string) error
}

// Notifier hands a verification message to whatever delivers mail.
type Notifier interface {
	SendVerificationEmail(ctx context.Context, to, name, token string) error
}

// Config holds the account policy.
type Config struct {
	VerifyTTL        time.Duration
	LockoutThreshold int
	LockoutDuration  time.Duration
	BcryptCost       int
	MinPasswordLen   int
}

// DefaultConfig is 24h verification links and a 15 minute lock after five
// consecutive failures.
func DefaultConfig() Config {
	return Config{
		VerifyTTL:        24 * time.Hour,
		LockoutThreshold: 5,
		LockoutDuration:  15 * time.Minute,
		BcryptCost:       bcrypt.DefaultCost,
		MinPasswordLen:   6,
	}
}

// Credential is the result of a successful login.
type Credential struct {
	Token     string
	ExpiresAt time.Time
	User      *models.User
}

type Service struct {
	users    Users
	notifier Notifier
	issuer   *auth.Issuer
	cfg      Config
	metrics  *metrics.Metrics
	log      *zap.Logger

	// compared against on unknown emails so both failure paths cost a hash
	dummyHash []byte
}

func New(users Users, notifier Notifier, issuer *auth.Issuer, cfg Config, m *metrics.Metrics, log *zap.Logger) *Service {
	def := DefaultConfig()
	if cfg.VerifyTTL <= 0 {
		cfg.VerifyTTL = def.VerifyTTL
	}
	if cfg.LockoutThreshold <= 0 {
		cfg.LockoutThreshold = def.LockoutThreshold
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = def.LockoutDuration
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = def.BcryptCost
	}
	if cfg.MinPasswordLen <= 0 {
		cfg.MinPasswordLen = def.MinPasswordLen
	}
	if log == nil {
		log = zap.NewNop()
	}
	dummy, _ := bcrypt.GenerateFromPassword([]byte("teamreg-dummy-password"), cfg.BcryptCost)
	return &Service{
		users:     users,
		notifier:  notifier,
		issuer:    issuer,
		cfg:       cfg,
		metrics:   m,
		log:       log,
		dummyHash: dummy,
	}
}

// HashPassword hashes raw with the configured cost.
func (s *Service) HashPassword(raw string) (string, error) {
	if len(raw) < s.cfg.MinPasswordLen {
		return "", apperr.Validation("password is too short")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(raw), s.cfg.BcryptCost)
	if err != nil {
		return "", apperr.Internal("hash password", err)
	}
	return string(h), nil
}

// NewVerification returns a fresh token and its expiry.
func (s *Service) NewVerification(now time.Time) (string, time.Time) {
	return auth.RandomSecret(), now.Add(s.cfg.VerifyTTL)
}

// Register creates an unverified solo account and emits a verification
// message. Delivery problems are logged and never fail the registration.
func (s *Service) Register(ctx context.Context, p models.Profile, rawPassword string) (*models.User, error) {
	p = normalize.Profile(p)
	if p.Email == "" {
		return nil, apperr.Validation("A valid email address is required.")
	}
	hash, err := s.HashPassword(rawPassword)
	if err != nil {
		return nil, err
	}
	now := clock.Now(ctx)
	token, exp := s.NewVerification(now)

	u := models.User{
		Email:           p.Email,
		Role:            models.RoleSolo,
		PasswordHash:    hash,
		VerifyToken:     token,
		VerifyExpiresAt: &exp,
	}
	u.ApplyProfile(p)

	created, err := s.users.Create(ctx, u)
	if errors.Is(err, sentinel.ErrDuplicate) {
		return nil, apperr.ErrDuplicateEmail
	}
	if err != nil {
		return nil, apperr.Internal("create user", err)
	}

	s.Notify(ctx, &created)
	return &created, nil
}

// Notify sends the verification message for u if it carries a token.
func (s *Service) Notify(ctx context.Context, u *models.User) {
	if s.notifier == nil || u.VerifyToken == "" {
		return
	}
	nctx, cancel := timeouts.WithTimeout(ctx, timeouts.Short(), s.log, "notify.verification")
	defer cancel()
	if err := s.notifier.SendVerificationEmail(nctx, u.Email, u.Name, u.VerifyToken); err != nil {
		s.metrics.IncNotificationError()
		s.log.Warn("verification message not sent",
			zap.String("user_id", u.ID.Hex()),
			zap.Error(err))
	}
}

// VerifyEmail consumes token and marks its holder verified.
func (s *Service) VerifyEmail(ctx context.Context, token string) (*models.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperr.ErrInvalidOrExpiredToken
	}
	u, err := s.users.ConsumeVerifyToken(ctx, token, clock.Now(ctx))
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, apperr.ErrInvalidOrExpiredToken
	}
	if err != nil {
		return nil, apperr.Internal("verify email", err)
	}
	return u, nil
}

// ResendVerification issues a new token to an unverified account. It
// reports success for unknown or already verified emails so callers
// cannot probe which addresses exist.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	if err != nil {
		return apperr.Internal("load user", err)
	}
	if u.EmailVerified {
		return nil
	}
	token, exp := s.NewVerification(clock.Now(ctx))
	if err := s.users.SetVerifyToken(ctx, u.ID, token, exp); err != nil {
		return apperr.Internal("set verify token", err)
	}
	u.VerifyToken = token
	u.VerifyExpiresAt = &exp
	s.Notify(ctx, u)
	return nil
}

// Authenticate checks a password and issues a credential.
//
// An active lock fails with ErrAccountLocked even for the right password.
// Unknown emails and wrong passwords both fail with ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, rawPassword string) (*Credential, error) {
	now := clock.Now(ctx)

	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, sentinel.ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(rawPassword))
		return nil, apperr.ErrInvalidCredentials
	}
	if err != nil {
		return nil, apperr.Internal("load user", err)
	}

	if u.IsLocked(now) {
		return nil, apperr.ErrAccountLocked
	}

	if u.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(rawPassword)) != nil {
		s.metrics.IncLoginFailure()
		after, ferr := s.users.RecordLoginFailure(ctx, u.ID, now, s.cfg.LockoutThreshold, s.cfg.LockoutDuration)
		if ferr != nil {
			s.log.Error("record login failure", zap.String("user_id", u.ID.Hex()), zap.Error(ferr))
		} else if after.IsLocked(now) && !u.IsLocked(now) {
			s.metrics.IncLockout()
			s.log.Info("account locked",
				zap.String("user_id", u.ID.Hex()),
				zap.Timep("lock_until", after.LockUntil))
		}
		return nil, apperr.ErrInvalidCredentials
	}

	if u.FailedLogins > 0 || u.LockUntil != nil {
		if err := s.users.ResetLoginFailures(ctx, u.ID); err != nil {
			return nil, apperr.Internal("reset login failures", err)
		}
		u.FailedLogins = 0
		u.LockUntil = nil
	}

	tok, exp, err := s.issuer.Issue(&auth.SessionUser{ID: u.ID.Hex(), Role: u.Role}, now)
	if err != nil {
		return nil, apperr.Internal("issue credential", err)
	}
	return &Credential{Token: tok, ExpiresAt: exp, User: u}, nil
}

// Get loads a user by id.
func (s *Service) Get(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, apperr.Internal("load user", err)
	}
	return u, nil
}

// PromoteOrganizer grants the organizer role to the account with email.
// promoted is false when the account already was one. Participants on a
// team must be removed from it first.
func (s *Service) PromoteOrganizer(ctx context.Context, email string) (u *models.User, promoted bool, err error) {
	u, err = s.users.GetByEmail(ctx, normalize.Email(email))
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, false, apperr.ErrNotFound
	}
	if err != nil {
		return nil, false, apperr.Internal("load user", err)
	}
	if u.Role == models.RoleOrganizer {
		return u, false, nil
	}
	if u.OnTeam() {
		return nil, false, apperr.ErrAlreadyOnTeam
	}
	if err := s.users.SetRole(ctx, u.ID, models.RoleOrganizer); err != nil {
		return nil, false, apperr.Internal("set role", err)
	}
	u.Role = models.RoleOrganizer
	s.log.Info("organizer promoted", zap.String("user_id", u.ID.Hex()))
	return u, true, nil
}

// LinkDiscord stores the chat account id for the user with email.
func (s *Service) LinkDiscord(ctx context.Context, email, discordID string) (*models.User, error) {
	discordID = strings.TrimSpace(discordID)
	if discordID == "" {
		return nil, apperr.Validation("Discord ID is required.")
	}
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, apperr.Internal("load user", err)
	}
	return u, s.linkDiscord(ctx, u, discordID)
}

// LinkDiscordByID is LinkDiscord for a signed-in user.
func (s *Service) LinkDiscordByID(ctx context.Context, id primitive.ObjectID, discordID string) (*models.User, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return u, s.linkDiscord(ctx, u, discordID)
}

func (s *Service) linkDiscord(ctx context.Context, u *models.User, discordID string) error {
	if err := s.users.SetDiscordID(ctx, u.ID, discordID); err != nil {
		return apperr.Internal("link discord", err)
	}
	u.DiscordID = discordID
	return nil
}
