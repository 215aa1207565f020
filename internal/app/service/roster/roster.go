// Package roster owns teams: creation with members, capacity-checked
// additions, solo registration and organizer removals. It keeps the user
// side (role, team_id) in step with the team side (leader, members).
package roster

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/teamreg/internal/app/system/apperr"
	"github.com/dalemusser/teamreg/internal/app/system/auth"
	"github.com/dalemusser/teamreg/internal/app/system/clock"
	"github.com/dalemusser/teamreg/internal/app/system/normalize"
	"github.com/dalemusser/teamreg/internal/app/system/sentinel"
	"github.com/dalemusser/teamreg/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type Users interface {
	Create(ctx context.Context, u models.User) (models.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	ListByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	UpgradeSolo(ctx context.Context, id primitive.ObjectID, p models.Profile) error
	AssignTeam(ctx context.Context, id primitive.ObjectID, role string, teamID primitive.ObjectID, profile *models.Profile) error
	ReleaseToSolo(ctx context.Context, id, teamID primitive.ObjectID) error
	Restore(ctx context.Context, snap models.User) error
}

type Teams interface {
	Create(ctx context.Context, t models.Team) (models.Team, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Team, error)
	GetByLeader(ctx context.Context, leaderID primitive.ObjectID) (*models.Team, error)
	AddMember(ctx context.Context, teamID, userID primitive.ObjectID) (*models.Team, error)
	RemoveMember(ctx context.Context, teamID, userID primitive.ObjectID) error
	SetLocked(ctx context.Context, teamID primitive.ObjectID, locked bool) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	List(ctx context.Context) ([]models.Team, error)
	ListOpen(ctx context.Context) ([]models.Team, error)
}

// Requests is the slice of the join-request store that roster removals
// need to tidy up after themselves.
type Requests interface {
	CancelPendingByTeam(ctx context.Context, teamID primitive.ObjectID, now time.Time) (int64, error)
	CancelPendingBySolo(ctx context.Context, soloID, exceptID primitive.ObjectID, now time.Time) (int64, error)
}

// Accounts provides credentials for member accounts created with a team.
type Accounts interface {
	HashPassword(raw string) (string, error)
	NewVerification(now time.Time) (string, time.Time)
	Notify(ctx context.Context, u *models.User)
}

// Tx runs fn as one unit where the database allows it.
type Tx interface {
	Run(ctx context.Context, fn func(ctx context.Context) error) error
}

type Service struct {
	users    Users
	teams    Teams
	requests Requests
	accounts Accounts
	tx       Tx
	maxSize  int
	log      *zap.Logger
}

func New(users Users, teams Teams, requests Requests, accounts Accounts, tx Tx, maxSize int, log *zap.Logger) *Service {
	if maxSize <= 1 {
		maxSize = models.DefaultMaxTeamSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		users:    users,
		teams:    teams,
		requests: requests,
		accounts: accounts,
		tx:       tx,
		maxSize:  maxSize,
		log:      log,
	}
}

// MaxSize is the roster capacity given to new teams, leader included.
func (s *Service) MaxSize() int { return s.maxSize }

// MemberInput describes one member account to create with a team.
// Password is optional; without one the account gets an unusable random
// password until the member resets it.
type MemberInput struct {
	Profile  models.Profile
	Password string
}

// CreateTeamInput is everything CreateTeam needs.
type CreateTeamInput struct {
	LeaderID      primitive.ObjectID
	Name          string
	LeaderProfile models.Profile
	Members       []MemberInput
}

type pendingMember struct {
	user models.User
}

// compensations undo completed steps of a multi-document change when a
// later step fails and no transaction will roll them back.
type compensations struct {
	log   *zap.Logger
	steps []func(ctx context.Context) error
}

func (c *compensations) add(fn func(ctx context.Context) error) {
	c.steps = append(c.steps, fn)
}

func (c *compensations) run(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	for i := len(c.steps) - 1; i >= 0; i-- {
		if err := c.steps[i](ctx); err != nil {
			c.log.Error("compensation failed", zap.Int("step", i), zap.Error(err))
		}
	}
}

// CreateTeam upgrades the leader, creates one member account per profile,
// and inserts the team with every user back-linked. Either all of it
// happens or none of it is left behind.
func (s *Service) CreateTeam(ctx context.Context, in CreateTeamInput) (*models.Team, error) {
	name := normalize.Name(in.Name)
	if name == "" {
		return nil, apperr.Validation("Team name is required.")
	}
	if len(in.Members) > s.maxSize-1 {
		return nil, apperr.Validation(fmt.Sprintf("A team can have at most %d members besides the leader.", s.maxSize-1))
	}

	leader, err := s.users.GetByID(ctx, in.LeaderID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, apperr.ErrLeaderNotFound
	}
	if err != nil {
		return nil, apperr.Internal("load leader", err)
	}
	if leader.Role == models.RoleOrganizer {
		return nil, apperr.ErrForbidden
	}
	if leader.OnTeam() {
		return nil, apperr.ErrAlreadyOnTeam
	}

	now := clock.Now(ctx)
	members, err := s.prepareMembers(ctx, leader.Email, in.Members, now)
	if err != nil {
		return nil, err
	}
	leaderProfile := normalize.Profile(in.LeaderProfile)

	var team models.Team
	err = s.tx.Run(ctx, func(ctx context.Context) error {
		undo := &compensations{log: s.log}
		t, err := s.createTeam(ctx, undo, *leader, leaderProfile, name, members)
		if err != nil {
			undo.run(ctx)
			return err
		}
		team = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := range members {
		s.accounts.Notify(ctx, &members[i].user)
	}
	s.log.Info("team created",
		zap.String("team_id", team.ID.Hex()),
		zap.String("leader_id", leader.ID.Hex()),
		zap.Int("members", len(team.MemberIDs)))
	return &team, nil
}

// prepareMembers normalizes and checks member profiles and hashes their
// passwords before any write happens.
func (s *Service) prepareMembers(ctx context.Context, leaderEmail string, in []MemberInput, now time.Time) ([]pendingMember, error) {
	seen := map[string]bool{leaderEmail: true}
	out := make([]pendingMember, 0, len(in))
	for _, m := range in {
		p := normalize.Profile(m.Profile)
		if p.Email == "" {
			return nil, apperr.Validation("Every member needs an email address.")
		}
		if seen[p.Email] {
			return nil, apperr.Validation("Member emails must be different from each other and from the leader.")
		}
		seen[p.Email] = true

		if _, err := s.users.GetByEmail(ctx, p.Email); err == nil {
			return nil, apperr.ErrDuplicateEmail
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, apperr.Internal("check member email", err)
		}

		raw := strings.TrimSpace(m.Password)
		if raw == "" {
			raw = auth.RandomSecret()
		}
		hash, err := s.accounts.HashPassword(raw)
		if err != nil {
			return nil, err
		}
		token, exp := s.accounts.NewVerification(now)

		u := models.User{
			ID:              primitive.NewObjectID(),
			Email:           p.Email,
			Role:            models.RoleMember,
			PasswordHash:    hash,
			VerifyToken:     token,
			VerifyExpiresAt: &exp,
		}
		u.ApplyProfile(p)
		out = append(out, pendingMember{user: u})
	}
	return out, nil
}

func (s *Service) createTeam(ctx context.Context, undo *compensations, leader models.User, leaderProfile models.Profile, name string, members []pendingMember) (models.Team, error) {
	teamID := primitive.NewObjectID()

	err := s.users.AssignTeam(ctx, leader.ID, models.RoleLeader, teamID, &leaderProfile)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return models.Team{}, apperr.ErrLeaderNotFound
	case errors.Is(err, sentinel.ErrInvalidState):
		return models.Team{}, apperr.ErrAlreadyOnTeam
	case err != nil:
		return models.Team{}, apperr.Internal("assign leader", err)
	}
	undo.add(func(ctx context.Context) error { return s.users.Restore(ctx, leader) })

	memberIDs := make([]primitive.ObjectID, 0, len(members))
	for i := range members {
		u := members[i].user
		u.TeamID = &teamID
		created, err := s.users.Create(ctx, u)
		if errors.Is(err, sentinel.ErrDuplicate) {
			return models.Team{}, apperr.ErrDuplicateEmail
		}
		if err != nil {
			return models.Team{}, apperr.Internal("create member", err)
		}
		members[i].user = created
		id := created.ID
		undo.add(func(ctx context.Context) error { return s.users.Delete(ctx, id) })
		memberIDs = append(memberIDs, id)
	}

	team, err := s.teams.Create(ctx, models.Team{
		ID:        teamID,
		Name:      name,
		LeaderID:  leader.ID,
		MemberIDs: memberIDs,
		MaxSize:   s.maxSize,
	})
	switch {
	case errors.Is(err, sentinel.ErrDuplicate):
		return models.Team{}, apperr.ErrAlreadyOnTeam
	case errors.Is(err, sentinel.ErrInvalidState):
		return models.Team{}, apperr.ErrTeamFull
	case err != nil:
		return models.Team{}, apperr.Internal("create team", err)
	}
	return team, nil
}

// AddMember puts userID on teamID's roster and makes them a member. The
// capacity check happens inside the team update, so concurrent callers
// racing for the last slot get exactly one winner.
func (s *Service) AddMember(ctx context.Context, teamID, userID primitive.ObjectID) (*models.Team, error) {
	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, apperr.Internal("load user", err)
	}
	if u.Role == models.RoleOrganizer {
		return nil, apperr.ErrForbidden
	}
	if u.OnTeam() {
		return nil, apperr.ErrAlreadyOnTeam
	}

	var team *models.Team
	err = s.tx.Run(ctx, func(ctx context.Context) error {
		t, err := s.teams.AddMember(ctx, teamID, userID)
		if err != nil {
			return s.addMemberError(ctx, teamID, err)
		}
		if err := s.users.AssignTeam(ctx, userID, models.RoleMember, teamID, nil); err != nil {
			if rerr := s.teams.RemoveMember(context.WithoutCancel(ctx), teamID, userID); rerr != nil {
				s.log.Error("undo roster add", zap.String("team_id", teamID.Hex()), zap.Error(rerr))
			}
			if errors.Is(err, sentinel.ErrInvalidState) {
				return apperr.ErrAlreadyOnTeam
			}
			return apperr.Internal("assign member", err)
		}
		team = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return team, nil
}

func (s *Service) addMemberError(ctx context.Context, teamID primitive.ObjectID, err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return apperr.ErrTeamNotFound
	}
	if !errors.Is(err, sentinel.ErrInvalidState) {
		return apperr.Internal("add member", err)
	}
	t, gerr := s.teams.GetByID(ctx, teamID)
	if gerr != nil {
		return apperr.ErrTeamNotFound
	}
	if t.IsFull() {
		return apperr.ErrTeamFull
	}
	return apperr.ErrAlreadyOnTeam
}

// RegisterSolo records the profile of a participant who is competing
// alone. Repeating it only rewrites the profile.
func (s *Service) RegisterSolo(ctx context.Context, userID primitive.ObjectID, p models.Profile) (*models.User, error) {
	err := s.users.UpgradeSolo(ctx, userID, normalize.Profile(p))
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, apperr.ErrNotFound
	}
	if errors.Is(err, sentinel.ErrInvalidState) {
		u, gerr := s.users.GetByID(ctx, userID)
		if gerr == nil && u.Role == models.RoleOrganizer {
			return nil, apperr.ErrForbidden
		}
		return nil, apperr.ErrAlreadyOnTeam
	}
	if err != nil {
		return nil, apperr.Internal("register solo", err)
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("reload user", err)
	}
	return u, nil
}

// Get loads a team.
func (s *Service) Get(ctx context.Context, teamID primitive.ObjectID) (*models.Team, error) {
	t, err := s.teams.GetByID(ctx, teamID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, apperr.ErrTeamNotFound
	}
	if err != nil {
		return nil, apperr.Internal("load team", err)
	}
	return t, nil
}

// ForLeader returns the team led by leaderID.
func (s *Service) ForLeader(ctx context.Context, leaderID primitive.ObjectID) (*models.Team, error) {
	t, err := s.teams.GetByLeader(ctx, leaderID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, apperr.ErrTeamNotFound
	}
	if err != nil {
		return nil, apperr.Internal("load team", err)
	}
	return t, nil
}

// Roster returns the team's leader and members.
func (s *Service) Roster(ctx context.Context, t *models.Team) (leader *models.User, members []models.User, err error) {
	ids := append([]primitive.ObjectID{t.LeaderID}, t.MemberIDs...)
	users, err := s.users.ListByIDs(ctx, ids)
	if err != nil {
		return nil, nil, apperr.Internal("load roster", err)
	}
	byID := make(map[primitive.ObjectID]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	if l, ok := byID[t.LeaderID]; ok {
		leader = &l
	}
	for _, id := range t.MemberIDs {
		if m, ok := byID[id]; ok {
			members = append(members, m)
		}
	}
	return leader, members, nil
}

// ListOpen returns teams a solo could still ask to join.
func (s *Service) ListOpen(ctx context.Context) ([]models.Team, error) {
	teams, err := s.teams.ListOpen(ctx)
	if err != nil {
		return nil, apperr.Internal("list teams", err)
	}
	return teams, nil
}

// List returns every team.
func (s *Service) List(ctx context.Context) ([]models.Team, error) {
	teams, err := s.teams.List(ctx)
	if err != nil {
		return nil, apperr.Internal("list teams", err)
	}
	return teams, nil
}

// LockTeam sets the team's locked flag once its fee is paid. The flag is a
// record for organizers and exports; roster changes do not consult it.
func (s *Service) LockTeam(ctx context.Context, teamID primitive.ObjectID) error {
	err := s.teams.SetLocked(ctx, teamID, true)
	if errors.Is(err, sentinel.ErrNotFound) {
		return apperr.ErrTeamNotFound
	}
	if err != nil {
		return apperr.Internal("lock team", err)
	}
	return nil
}

// RemoveTeam returns every user on the team to solo, cancels the team's
// pending join requests and deletes it.
func (s *Service) RemoveTeam(ctx context.Context, teamID primitive.ObjectID) error {
	t, err := s.Get(ctx, teamID)
	if err != nil {
		return err
	}
	return s.tx.Run(ctx, func(ctx context.Context) error {
		return s.removeTeam(ctx, t)
	})
}

func (s *Service) removeTeam(ctx context.Context, t *models.Team) error {
	for _, id := range append([]primitive.ObjectID{t.LeaderID}, t.MemberIDs...) {
		if err := s.users.ReleaseToSolo(ctx, id, t.ID); err != nil {
			return apperr.Internal("release user", err)
		}
	}
	if s.requests != nil {
		if _, err := s.requests.CancelPendingByTeam(ctx, t.ID, clock.Now(ctx)); err != nil {
			return apperr.Internal("cancel join requests", err)
		}
	}
	if err := s.teams.Delete(ctx, t.ID); err != nil {
		return apperr.Internal("delete team", err)
	}
	s.log.Info("team removed", zap.String("team_id", t.ID.Hex()))
	return nil
}

// RemoveUser deletes a participant. A leader's team is dissolved first and
// a member is taken off their roster. Organizers cannot be removed here.
func (s *Service) RemoveUser(ctx context.Context, userID primitive.ObjectID) error {
	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return apperr.ErrNotFound
	}
	if err != nil {
		return apperr.Internal("load user", err)
	}
	if u.Role == models.RoleOrganizer {
		return apperr.ErrForbidden
	}

	return s.tx.Run(ctx, func(ctx context.Context) error {
		if u.OnTeam() {
			t, err := s.teams.GetByID(ctx, *u.TeamID)
			switch {
			case errors.Is(err, sentinel.ErrNotFound):
			case err != nil:
				return apperr.Internal("load team", err)
			case t.LeaderID == u.ID:
				if err := s.removeTeam(ctx, t); err != nil {
					return err
				}
			default:
				if err := s.teams.RemoveMember(ctx, t.ID, u.ID); err != nil {
					return apperr.Internal("remove member", err)
				}
			}
		}
		if s.requests != nil {
			if _, err := s.requests.CancelPendingBySolo(ctx, u.ID, primitive.NilObjectID, clock.Now(ctx)); err != nil {
				return apperr.Internal("cancel join requests", err)
			}
		}
		if err := s.users.Delete(ctx, u.ID); err != nil {
			return apperr.Internal("delete user", err)
		}
		s.log.Info("user removed", zap.String("user_id", u.ID.Hex()))
		return nil
	})
}

// Detach undoes AddMember: the user leaves the roster and becomes solo.
func (s *Service) Detach(ctx context.Context, teamID, userID primitive.ObjectID) error {
	if err := s.teams.RemoveMember(ctx, teamID, userID); err != nil {
		return apperr.Internal("remove member", err)
	}
	if err := s.users.ReleaseToSolo(ctx, userID, teamID); err != nil {
		return apperr.Internal("release member", err)
	}
	return nil
}
