// Package joinflow runs the join-request state machine: a solo asks to join
// a team, the leader (or an organizer) accepts or rejects, and the solo may
// withdraw while the request is pending.
//
//	pending ──accept──▶ accepted
//	   │ ────reject──▶ rejected
//	   └─────cancel──▶ cancelled
package joinflow

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/teamreg/internal/app/system/apperr"
	"github.com/dalemusser/teamreg/internal/app/system/clock"
	"github.com/dalemusser/teamreg/internal/app/system/metrics"
	"github.com/dalemusser/teamreg/internal/app/system/sentinel"
	"github.com/dalemusser/teamreg/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type Requests interface {
	Create(ctx context.Context, jr models.JoinRequest) (models.JoinRequest, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.JoinRequest, error)
	FindPending(ctx context.Context, teamID, soloID primitive.ObjectID) (*models.JoinRequest, error)
	Transition(ctx context.Context, id primitive.ObjectID, from, to string, actor *primitive.ObjectID, now time.Time) (*models.JoinRequest, error)
	ListPendingByTeam(ctx context.Context, teamID primitive.ObjectID) ([]models.JoinRequest, error)
	ListBySolo(ctx context.Context, soloID primitive.ObjectID) ([]models.JoinRequest, error)
	CancelPendingBySolo(ctx context.Context, soloID, exceptID primitive.ObjectID, now time.Time) (int64, error)
}

type Users interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

type Teams interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Team, error)
	GetByLeader(ctx context.Context, leaderID primitive.ObjectID) (*models.Team, error)
}

// Roster performs the membership change an accepted request implies.
type Roster interface {
	AddMember(ctx context.Context, teamID, userID primitive.ObjectID) (*models.Team, error)
	Detach(ctx context.Context, teamID, userID primitive.ObjectID) error
}

// Decision outcomes.
const (
	Accept = "accept"
	Reject = "reject"
)

type Service struct {
	requests Requests
	users    Users
	teams    Teams
	roster   Roster
	metrics  *metrics.Metrics
	log      *zap.Logger
}

func New(requests Requests, users Users, teams Teams, roster Roster, m *metrics.Metrics, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{requests: requests, users: users, teams: teams, roster: roster, metrics: m, log: log}
}

// Request files a pending request from soloID to teamID, or returns the one
// already pending for that pair. created reports whether a new request was
// stored.
func (s *Service) Request(ctx context.Context, teamID, soloID primitive.ObjectID) (jr *models.JoinRequest, created bool, err error) {
	solo, err := s.users.GetByID(ctx, soloID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, false, apperr.ErrNotFound
	}
	if err != nil {
		return nil, false, apperr.Internal("load user", err)
	}
	if solo.Role != models.RoleSolo || solo.OnTeam() {
		return nil, false, apperr.ErrNotSolo
	}

	team, err := s.teams.GetByID(ctx, teamID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, false, apperr.ErrTeamNotFound
	}
	if err != nil {
		return nil, false, apperr.Internal("load team", err)
	}

	if existing, err := s.requests.FindPending(ctx, teamID, soloID); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, false, apperr.Internal("find request", err)
	}

	if team.IsFull() {
		return nil, false, apperr.ErrTeamFull
	}

	out, err := s.requests.Create(ctx, models.JoinRequest{TeamID: teamID, SoloID: soloID})
	if errors.Is(err, sentinel.ErrDuplicate) {
		// lost a race with an identical request; return the winner
		winner, ferr := s.requests.FindPending(ctx, teamID, soloID)
		if ferr != nil {
			return nil, false, apperr.Internal("find request", ferr)
		}
		return winner, false, nil
	}
	if err != nil {
		return nil, false, apperr.Internal("create request", err)
	}
	return &out, true, nil
}

// Decide applies the team leader's decision. actorID must lead the team.
func (s *Service) Decide(ctx context.Context, requestID, actorID primitive.ObjectID, decision string) (*models.JoinRequest, error) {
	jr, team, err := s.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if team.LeaderID != actorID {
		return nil, apperr.ErrForbidden
	}
	return s.decide(ctx, jr, actorID, decision)
}

// DecideAsOrganizer applies a decision on the leader's behalf.
func (s *Service) DecideAsOrganizer(ctx context.Context, requestID, actorID primitive.ObjectID, decision string) (*models.JoinRequest, error) {
	jr, _, err := s.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	return s.decide(ctx, jr, actorID, decision)
}

func (s *Service) load(ctx context.Context, requestID primitive.ObjectID) (*models.JoinRequest, *models.Team, error) {
	jr, err := s.requests.GetByID(ctx, requestID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, nil, apperr.Internal("load request", err)
	}
	if !jr.Pending() {
		return nil, nil, apperr.ErrAlreadyDecided
	}
	team, err := s.teams.GetByID(ctx, jr.TeamID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil, apperr.ErrTeamNotFound
	}
	if err != nil {
		return nil, nil, apperr.Internal("load team", err)
	}
	return jr, team, nil
}

func (s *Service) decide(ctx context.Context, jr *models.JoinRequest, actorID primitive.ObjectID, decision string) (*models.JoinRequest, error) {
	switch decision {
	case Accept:
		out, err := s.accept(ctx, jr, actorID)
		s.count(Accept, err)
		return out, err
	case Reject:
		out, err := s.transition(ctx, jr.ID, models.JoinRejected, actorID)
		s.count(Reject, err)
		return out, err
	}
	return nil, apperr.Validation(`Action must be "accept" or "reject".`)
}

func (s *Service) count(decision string, err error) {
	switch {
	case err == nil && decision == Accept:
		s.metrics.IncJoinDecision("accepted")
	case err == nil:
		s.metrics.IncJoinDecision("rejected")
	case errors.Is(err, apperr.ErrTeamFull):
		s.metrics.IncJoinDecision("team_full")
	case errors.Is(err, apperr.ErrAlreadyDecided):
		s.metrics.IncJoinDecision("already_decided")
	default:
		s.metrics.IncJoinDecision("error")
	}
}

// accept adds the solo to the roster, then claims the pending→accepted
// transition. If another decision got there first the roster change is
// undone. A full team leaves the request pending.
func (s *Service) accept(ctx context.Context, jr *models.JoinRequest, actorID primitive.ObjectID) (*models.JoinRequest, error) {
	if _, err := s.roster.AddMember(ctx, jr.TeamID, jr.SoloID); err != nil {
		if errors.Is(err, apperr.ErrAlreadyOnTeam) {
			if cur, gerr := s.requests.GetByID(ctx, jr.ID); gerr == nil && !cur.Pending() {
				return nil, apperr.ErrAlreadyDecided
			}
		}
		return nil, err
	}

	out, err := s.transition(ctx, jr.ID, models.JoinAccepted, actorID)
	if err != nil {
		if derr := s.roster.Detach(context.WithoutCancel(ctx), jr.TeamID, jr.SoloID); derr != nil {
			s.log.Error("undo accepted member",
				zap.String("request_id", jr.ID.Hex()),
				zap.Error(derr))
		}
		return nil, err
	}

	if _, err := s.requests.CancelPendingBySolo(ctx, jr.SoloID, jr.ID, clock.Now(ctx)); err != nil {
		s.log.Warn("cancel other requests", zap.String("solo_id", jr.SoloID.Hex()), zap.Error(err))
	}
	return out, nil
}

func (s *Service) transition(ctx context.Context, id primitive.ObjectID, to string, actorID primitive.ObjectID) (*models.JoinRequest, error) {
	actor := actorID
	out, err := s.requests.Transition(ctx, id, models.JoinPending, to, &actor, clock.Now(ctx))
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return nil, apperr.ErrNotFound
	case errors.Is(err, sentinel.ErrInvalidState):
		return nil, apperr.ErrAlreadyDecided
	case err != nil:
		return nil, apperr.Internal("decide request", err)
	}
	return out, nil
}

// Cancel withdraws a pending request. Only the solo who made it may.
func (s *Service) Cancel(ctx context.Context, requestID, soloID primitive.ObjectID) (*models.JoinRequest, error) {
	jr, err := s.requests.GetByID(ctx, requestID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, apperr.Internal("load request", err)
	}
	if jr.SoloID != soloID {
		return nil, apperr.ErrForbidden
	}
	return s.transition(ctx, jr.ID, models.JoinCancelled, soloID)
}

// PendingForLeader lists pending requests for the team leaderID leads.
// A leader without a team gets an empty list.
func (s *Service) PendingForLeader(ctx context.Context, leaderID primitive.ObjectID) ([]models.JoinRequest, error) {
	team, err := s.teams.GetByLeader(ctx, leaderID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return []models.JoinRequest{}, nil
	}
	if err != nil {
		return nil, apperr.Internal("load team", err)
	}
	out, err := s.requests.ListPendingByTeam(ctx, team.ID)
	if err != nil {
		return nil, apperr.Internal("list requests", err)
	}
	return out, nil
}

// ListForSolo lists every request soloID has made.
func (s *Service) ListForSolo(ctx context.Context, soloID primitive.ObjectID) ([]models.JoinRequest, error) {
	out, err := s.requests.ListBySolo(ctx, soloID)
	if err != nil {
		return nil, apperr.Internal("list requests", err)
	}
	return out, nil
}
