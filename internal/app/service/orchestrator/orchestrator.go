// Package orchestrator sequences the roster and the ledger into the two
// registration flows a participant sees: register a team, or register
// solo. It also owns the event-wide registration switch.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/teamreg/internal/app/service/roster"
	"github.com/dalemusser/teamreg/internal/app/system/apperr"
	"github.com/dalemusser/teamreg/internal/app/system/clock"
	"github.com/dalemusser/teamreg/internal/app/system/metrics"
	"github.com/dalemusser/teamreg/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Default fees in paise.
const (
	DefaultTeamFee = 50000
	DefaultSoloFee = 15000
)

type Settings interface {
	Get(ctx context.Context) (models.SiteSettings, error)
	SetRegistrationOpen(ctx context.Context, open bool, actor *primitive.ObjectID, now time.Time) error
}

type Roster interface {
	CreateTeam(ctx context.Context, in roster.CreateTeamInput) (*models.Team, error)
	RegisterSolo(ctx context.Context, userID primitive.ObjectID, p models.Profile) (*models.User, error)
	ForLeader(ctx context.Context, leaderID primitive.ObjectID) (*models.Team, error)
}

type Ledger interface {
	CreateIntent(ctx context.Context, payer primitive.ObjectID, amountInPaise int64, mode string, teamID *primitive.ObjectID) (*models.Payment, error)
	Get(ctx context.Context, id primitive.ObjectID) (*models.Payment, error)
	Latest(ctx context.Context, payer primitive.ObjectID, mode string) (*models.Payment, error)
}

// Teams records which payment belongs to a team.
type Teams interface {
	SetPayment(ctx context.Context, teamID, paymentID primitive.ObjectID) error
}

// Fees are the registration charges in paise.
type Fees struct {
	Team int64
	Solo int64
}

type Service struct {
	settings Settings
	roster   Roster
	ledger   Ledger
	teams    Teams
	fees     Fees
	metrics  *metrics.Metrics
	log      *zap.Logger
}

func New(settings Settings, r Roster, l Ledger, teams Teams, fees Fees, m *metrics.Metrics, log *zap.Logger) *Service {
	if fees.Team <= 0 {
		fees.Team = DefaultTeamFee
	}
	if fees.Solo <= 0 {
		fees.Solo = DefaultSoloFee
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{settings: settings, roster: r, ledger: l, teams: teams, fees: fees, metrics: m, log: log}
}

// Fees returns the configured charges.
func (s *Service) Fees() Fees { return s.fees }

// TeamRegistration is the result of RegisterTeam and ResumePayment.
type TeamRegistration struct {
	Team          *models.Team
	Payment       *models.Payment
	AmountInPaise int64
}

// SoloRegistration is the result of RegisterSolo.
type SoloRegistration struct {
	User          *models.User
	Payment       *models.Payment
	AmountInPaise int64
}

// RegistrationOpen reports the persisted registration switch.
func (s *Service) RegistrationOpen(ctx context.Context) (bool, error) {
	st, err := s.settings.Get(ctx)
	if err != nil {
		return false, apperr.Internal("load settings", err)
	}
	return st.RegistrationOpen, nil
}

// SetRegistrationOpen flips the switch. actor is nil for CLI changes.
func (s *Service) SetRegistrationOpen(ctx context.Context, open bool, actor *primitive.ObjectID) error {
	if err := s.settings.SetRegistrationOpen(ctx, open, actor, clock.Now(ctx)); err != nil {
		return apperr.Internal("save settings", err)
	}
	s.log.Info("registration switch changed", zap.Bool("open", open))
	return nil
}

func (s *Service) requireOpen(ctx context.Context) error {
	open, err := s.RegistrationOpen(ctx)
	if err != nil {
		return err
	}
	if !open {
		return apperr.ErrRegistrationClosed
	}
	return nil
}

// RegisterTeam creates the team and its fee intent. If the team is created
// but the intent is not, the error says so and ResumePayment finishes the
// job later.
func (s *Service) RegisterTeam(ctx context.Context, in roster.CreateTeamInput) (*TeamRegistration, error) {
	if err := s.requireOpen(ctx); err != nil {
		return nil, err
	}
	team, err := s.roster.CreateTeam(ctx, in)
	if err != nil {
		return nil, err
	}
	s.metrics.IncRegistration(models.ModeTeam)

	p, err := s.attachTeamPayment(ctx, team)
	if err != nil {
		s.log.Error("team registered without payment intent",
			zap.String("team_id", team.ID.Hex()),
			zap.Error(err))
		return nil, fmt.Errorf("team %s created, payment intent pending: %w", team.ID.Hex(), err)
	}
	return &TeamRegistration{Team: team, Payment: p, AmountInPaise: s.fees.Team}, nil
}

func (s *Service) attachTeamPayment(ctx context.Context, team *models.Team) (*models.Payment, error) {
	teamID := team.ID
	p, err := s.ledger.CreateIntent(ctx, team.LeaderID, s.fees.Team, models.ModeTeam, &teamID)
	if err != nil {
		return nil, err
	}
	if err := s.teams.SetPayment(ctx, team.ID, p.ID); err != nil {
		return nil, apperr.Internal("link team payment", err)
	}
	pid := p.ID
	team.PaymentID = &pid
	return p, nil
}

// ResumePayment returns the leader's usable team payment, creating a new
// intent when there is none or the last one failed.
func (s *Service) ResumePayment(ctx context.Context, leaderID primitive.ObjectID) (*TeamRegistration, error) {
	team, err := s.roster.ForLeader(ctx, leaderID)
	if err != nil {
		return nil, err
	}
	if team.PaymentID != nil {
		p, err := s.ledger.Get(ctx, *team.PaymentID)
		switch {
		case err == nil && p.Status != models.PaymentFailed:
			return &TeamRegistration{Team: team, Payment: p, AmountInPaise: p.AmountInPaise}, nil
		case err != nil && !errors.Is(err, apperr.ErrPaymentNotFound):
			return nil, err
		}
	}
	p, err := s.attachTeamPayment(ctx, team)
	if err != nil {
		return nil, err
	}
	return &TeamRegistration{Team: team, Payment: p, AmountInPaise: s.fees.Team}, nil
}

// RegisterSolo records a solo profile and returns the fee intent. Calling
// it again reuses an unsettled intent; after a failed payment it opens a
// new one; once paid it refuses.
func (s *Service) RegisterSolo(ctx context.Context, userID primitive.ObjectID, p models.Profile) (*SoloRegistration, error) {
	if err := s.requireOpen(ctx); err != nil {
		return nil, err
	}

	latest, err := s.ledger.Latest(ctx, userID, models.ModeIndividual)
	if err != nil && !errors.Is(err, apperr.ErrPaymentNotFound) {
		return nil, err
	}
	if latest != nil && latest.Status == models.PaymentSuccess {
		return nil, apperr.ErrPaymentSettled
	}

	u, err := s.roster.RegisterSolo(ctx, userID, p)
	if err != nil {
		return nil, err
	}

	if latest != nil && !latest.Terminal() {
		return &SoloRegistration{User: u, Payment: latest, AmountInPaise: latest.AmountInPaise}, nil
	}
	pay, err := s.ledger.CreateIntent(ctx, userID, s.fees.Solo, models.ModeIndividual, nil)
	if err != nil {
		return nil, err
	}
	s.metrics.IncRegistration(models.ModeIndividual)
	return &SoloRegistration{User: u, Payment: pay, AmountInPaise: s.fees.Solo}, nil
}
