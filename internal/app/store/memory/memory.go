// Package memory is an in-process implementation of the stores, used by the
// service and handler tests. Every method mirrors its Mongo counterpart,
// including the sentinel errors and the conditional-update semantics.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	paymentstore "github.com/dalemusser/teamreg/internal/app/store/payments"
	"github.com/dalemusser/teamreg/internal/app/system/normalize"
	"github.com/dalemusser/teamreg/internal/app/system/sentinel"
	"github.com/dalemusser/teamreg/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DB holds every collection behind one lock, so each method is atomic the
// way a single-document Mongo update is.
type DB struct {
	mu       sync.Mutex
	users    map[primitive.ObjectID]models.User
	teams    map[primitive.ObjectID]models.Team
	payments map[primitive.ObjectID]models.Payment
	requests map[primitive.ObjectID]models.JoinRequest
	settings *models.SiteSettings

	Users        *Users
	Teams        *Teams
	Payments     *Payments
	JoinRequests *JoinRequests
	Settings     *Settings
}

func New() *DB {
	d := &DB{
		users:    map[primitive.ObjectID]models.User{},
		teams:    map[primitive.ObjectID]models.Team{},
		payments: map[primitive.ObjectID]models.Payment{},
		requests: map[primitive.ObjectID]models.JoinRequest{},
	}
	d.Users = &Users{d}
	d.Teams = &Teams{d}
	d.Payments = &Payments{d}
	d.JoinRequests = &JoinRequests{d}
	d.Settings = &Settings{d}
	return d
}

// Run calls fn directly, like a deployment without transactions. Callers
// rely on their own compensations.
func (d *DB) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func stamp() time.Time { return time.Now().UTC() }

func cloneIDs(ids []primitive.ObjectID) []primitive.ObjectID {
	out := make([]primitive.ObjectID, len(ids))
	copy(out, ids)
	return out
}

// ─── users ───────────────────────────────────────────────────────────────────

type Users struct{ d *DB }

func validRole(r string) bool {
	switch r {
	case models.RoleOrganizer, models.RoleLeader, models.RoleMember, models.RoleSolo:
		return true
	}
	return false
}

func (s *Users) Create(_ context.Context, u models.User) (models.User, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	u.Email = normalize.Email(u.Email)
	if u.Role == "" {
		u.Role = models.RoleSolo
	}
	if !validRole(u.Role) {
		return models.User{}, sentinel.ErrInvalidState
	}
	for _, existing := range s.d.users {
		if existing.Email == u.Email {
			return models.User{}, sentinel.ErrDuplicate
		}
	}
	now := stamp()
	u.CreatedAt, u.UpdatedAt = now, now
	s.d.users[u.ID] = u
	return u, nil
}

func (s *Users) GetByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	u, ok := s.d.users[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &u, nil
}

func (s *Users) GetByEmail(_ context.Context, email string) (*models.User, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	email = normalize.Email(email)
	for _, u := range s.d.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *Users) ListByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	var out []models.User
	for _, id := range ids {
		if u, ok := s.d.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *Users) list(match func(models.User) bool) []models.User {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	var out []models.User
	for _, u := range s.d.users {
		if match(u) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID.Hex() < out[j].ID.Hex()
	})
	return out
}

func (s *Users) ListByRole(_ context.Context, role string) ([]models.User, error) {
	return s.list(func(u models.User) bool { return u.Role == role }), nil
}

func (s *Users) List(_ context.Context) ([]models.User, error) {
	return s.list(func(models.User) bool { return true }), nil
}

func (s *Users) CountByRole(ctx context.Context, role string) (int64, error) {
	l, _ := s.ListByRole(ctx, role)
	return int64(len(l)), nil
}

func (s *Users) Delete(_ context.Context, id primitive.ObjectID) error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	delete(s.d.users, id)
	return nil
}

// mutate applies fn to the stored user under the lock. fn returns false to
// signal that the update's precondition did not hold.
func (s *Users) mutate(id primitive.ObjectID, fn func(u *models.User) bool) (*models.User, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	u, ok := s.d.users[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if !fn(&u) {
		return nil, sentinel.ErrInvalidState
	}
	u.UpdatedAt = stamp()
	s.d.users[id] = u
	return &u, nil
}

func (s *Users) SetVerifyToken(_ context.Context, id primitive.ObjectID, token string, expiresAt time.Time) error {
	_, err := s.mutate(id, func(u *models.User) bool {
		u.VerifyToken = token
		u.VerifyExpiresAt = &expiresAt
		return true
	})
	return err
}

func (s *Users) ConsumeVerifyToken(_ context.Context, token string, now time.Time) (*models.User, error) {
	if token == "" {
		return nil, sentinel.ErrNotFound
	}
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	for id, u := range s.d.users {
		if u.VerifyToken != token || u.VerifyExpiresAt == nil || !u.VerifyExpiresAt.After(now) {
			continue
		}
		u.EmailVerified = true
		u.VerifyToken = ""
		u.VerifyExpiresAt = nil
		u.UpdatedAt = now
		s.d.users[id] = u
		return &u, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *Users) ClearExpiredVerifyTokens(_ context.Context, now time.Time) (int64, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	var n int64
	for id, u := range s.d.users {
		if u.VerifyExpiresAt != nil && !u.VerifyExpiresAt.After(now) {
			u.VerifyToken = ""
			u.VerifyExpiresAt = nil
			s.d.users[id] = u
			n++
		}
	}
	return n, nil
}

func (s *Users) RecordLoginFailure(_ context.Context, id primitive.ObjectID, now time.Time, threshold int, lockFor time.Duration) (*models.User, error) {
	return s.mutate(id, func(u *models.User) bool {
		if u.LockUntil != nil && !u.LockUntil.After(now) {
			u.FailedLogins = 0
			u.LockUntil = nil
		}
		u.FailedLogins++
		if u.FailedLogins >= threshold {
			until := now.Add(lockFor)
			u.LockUntil = &until
		}
		return true
	})
}

func (s *Users) ResetLoginFailures(_ context.Context, id primitive.ObjectID) error {
	_, err := s.mutate(id, func(u *models.User) bool {
		u.FailedLogins = 0
		u.LockUntil = nil
		return true
	})
	if err == sentinel.ErrNotFound {
		return nil
	}
	return err
}

func (s *Users) SetDiscordID(_ context.Context, id primitive.ObjectID, discordID string) error {
	_, err := s.mutate(id, func(u *models.User) bool {
		u.DiscordID = discordID
		return true
	})
	return err
}

func (s *Users) SetRole(_ context.Context, id primitive.ObjectID, role string) error {
	if !validRole(role) {
		return sentinel.ErrInvalidState
	}
	_, err := s.mutate(id, func(u *models.User) bool {
		u.Role = role
		return true
	})
	return err
}

func (s *Users) UpgradeSolo(_ context.Context, id primitive.ObjectID, p models.Profile) error {
	_, err := s.mutate(id, func(u *models.User) bool {
		if u.TeamID != nil || u.Role == models.RoleOrganizer {
			return false
		}
		u.ApplyProfile(p)
		u.Role = models.RoleSolo
		return true
	})
	return err
}

func (s *Users) AssignTeam(_ context.Context, id primitive.ObjectID, role string, teamID primitive.ObjectID, profile *models.Profile) error {
	if role != models.RoleLeader && role != models.RoleMember {
		return sentinel.ErrInvalidState
	}
	_, err := s.mutate(id, func(u *models.User) bool {
		if u.TeamID != nil || u.Role == models.RoleOrganizer {
			return false
		}
		if profile != nil {
			u.ApplyProfile(*profile)
		}
		tid := teamID
		u.Role = role
		u.TeamID = &tid
		return true
	})
	return err
}

func (s *Users) ReleaseToSolo(_ context.Context, id, teamID primitive.ObjectID) error {
	_, err := s.mutate(id, func(u *models.User) bool {
		if u.TeamID == nil || *u.TeamID != teamID {
			return true
		}
		u.Role = models.RoleSolo
		u.TeamID = nil
		return true
	})
	if err == sentinel.ErrNotFound {
		return nil
	}
	return err
}

func (s *Users) Restore(_ context.Context, snap models.User) error {
	_, err := s.mutate(snap.ID, func(u *models.User) bool {
		u.ApplyProfile(snap.Profile())
		u.Role = snap.Role
		u.TeamID = snap.TeamID
		return true
	})
	if err == sentinel.ErrNotFound {
		return nil
	}
	return err
}

// ─── teams ───────────────────────────────────────────────────────────────────

type Teams struct{ d *DB }

func (s *Teams) Create(_ context.Context, t models.Team) (models.Team, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	if t.ID.IsZero() {
		t.ID = primitive.NewObjectID()
	}
	t.Name = strings.TrimSpace(t.Name)
	t.NameCI = text.Fold(t.Name)
	if t.MaxSize <= 0 {
		t.MaxSize = models.DefaultMaxTeamSize
	}
	t.MemberIDs = cloneIDs(t.MemberIDs)
	if t.Size() > t.MaxSize {
		return models.Team{}, sentinel.ErrInvalidState
	}
	for _, existing := range s.d.teams {
		if existing.LeaderID == t.LeaderID {
			return models.Team{}, sentinel.ErrDuplicate
		}
	}
	now := stamp()
	t.CreatedAt, t.UpdatedAt = now, now
	s.d.teams[t.ID] = t
	return t, nil
}

func (s *Teams) get(match func(models.Team) bool) (*models.Team, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	for _, t := range s.d.teams {
		if match(t) {
			t.MemberIDs = cloneIDs(t.MemberIDs)
			return &t, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *Teams) GetByID(_ context.Context, id primitive.ObjectID) (*models.Team, error) {
	return s.get(func(t models.Team) bool { return t.ID == id })
}

func (s *Teams) GetByLeader(_ context.Context, leaderID primitive.ObjectID) (*models.Team, error) {
	return s.get(func(t models.Team) bool { return t.LeaderID == leaderID })
}

func (s *Teams) mutate(id primitive.ObjectID, fn func(t *models.Team) bool) (*models.Team, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	t, ok := s.d.teams[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	t.MemberIDs = cloneIDs(t.MemberIDs)
	if !fn(&t) {
		return nil, sentinel.ErrInvalidState
	}
	t.UpdatedAt = stamp()
	s.d.teams[id] = t
	out := t
	out.MemberIDs = cloneIDs(t.MemberIDs)
	return &out, nil
}

func (s *Teams) AddMember(_ context.Context, teamID, userID primitive.ObjectID) (*models.Team, error) {
	return s.mutate(teamID, func(t *models.Team) bool {
		if t.HasMember(userID) || len(t.MemberIDs) >= t.MaxSize-1 {
			return false
		}
		t.MemberIDs = append(t.MemberIDs, userID)
		return true
	})
}

func (s *Teams) RemoveMember(_ context.Context, teamID, userID primitive.ObjectID) error {
	_, err := s.mutate(teamID, func(t *models.Team) bool {
		kept := t.MemberIDs[:0]
		for _, m := range t.MemberIDs {
			if m != userID {
				kept = append(kept, m)
			}
		}
		t.MemberIDs = kept
		return true
	})
	if err == sentinel.ErrNotFound {
		return nil
	}
	return err
}

func (s *Teams) SetPayment(_ context.Context, teamID, paymentID primitive.ObjectID) error {
	_, err := s.mutate(teamID, func(t *models.Team) bool {
		pid := paymentID
		t.PaymentID = &pid
		return true
	})
	return err
}

func (s *Teams) SetLocked(_ context.Context, teamID primitive.ObjectID, locked bool) error {
	_, err := s.mutate(teamID, func(t *models.Team) bool {
		t.Locked = locked
		return true
	})
	return err
}

func (s *Teams) Delete(_ context.Context, id primitive.ObjectID) error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	delete(s.d.teams, id)
	return nil
}

func (s *Teams) list(match func(models.Team) bool) []models.Team {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	var out []models.Team
	for _, t := range s.d.teams {
		if match(t) {
			t.MemberIDs = cloneIDs(t.MemberIDs)
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].NameCI != out[j].NameCI {
			return out[i].NameCI < out[j].NameCI
		}
		return out[i].ID.Hex() < out[j].ID.Hex()
	})
	return out
}

func (s *Teams) List(_ context.Context) ([]models.Team, error) {
	return s.list(func(models.Team) bool { return true }), nil
}

func (s *Teams) ListOpen(_ context.Context) ([]models.Team, error) {
	return s.list(func(t models.Team) bool { return !t.IsFull() }), nil
}

func (s *Teams) Count(ctx context.Context) (int64, error) {
	l, _ := s.List(ctx)
	return int64(len(l)), nil
}

// ─── payments ────────────────────────────────────────────────────────────────

type Payments struct{ d *DB }

func (s *Payments) Create(_ context.Context, p models.Payment) (models.Payment, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	if p.Status == "" {
		p.Status = models.PaymentCreated
	}
	if p.Currency == "" {
		p.Currency = models.CurrencyINR
	}
	p.Open = !p.Terminal()
	for _, existing := range s.d.payments {
		if existing.GatewayOrderID == p.GatewayOrderID {
			return models.Payment{}, sentinel.ErrDuplicate
		}
		if p.Open && existing.Open && existing.PayerID == p.PayerID && existing.Mode == p.Mode {
			return models.Payment{}, sentinel.ErrDuplicate
		}
	}
	now := stamp()
	p.CreatedAt, p.UpdatedAt = now, now
	s.d.payments[p.ID] = p
	return p, nil
}

func (s *Payments) sorted(match func(models.Payment) bool, less func(a, b models.Payment) bool) []models.Payment {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	var out []models.Payment
	for _, p := range s.d.payments {
		if match(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func newestFirst(a, b models.Payment) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID.Hex() > b.ID.Hex()
}

func (s *Payments) GetByID(_ context.Context, id primitive.ObjectID) (*models.Payment, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	p, ok := s.d.payments[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &p, nil
}

func (s *Payments) GetByOrderID(_ context.Context, orderID string) (*models.Payment, error) {
	l := s.sorted(func(p models.Payment) bool { return p.GatewayOrderID == orderID }, newestFirst)
	if len(l) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return &l[0], nil
}

func (s *Payments) LatestForPayer(_ context.Context, payerID primitive.ObjectID, mode string) (*models.Payment, error) {
	l := s.sorted(func(p models.Payment) bool { return p.PayerID == payerID && p.Mode == mode }, newestFirst)
	if len(l) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return &l[0], nil
}

func (s *Payments) OpenForPayer(_ context.Context, payerID primitive.ObjectID, mode string) (*models.Payment, error) {
	l := s.sorted(func(p models.Payment) bool { return p.Open && p.PayerID == payerID && p.Mode == mode }, newestFirst)
	if len(l) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return &l[0], nil
}

func (s *Payments) MarkPending(_ context.Context, id primitive.ObjectID, at time.Time) error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	p, ok := s.d.payments[id]
	if ok && p.Status == models.PaymentCreated {
		p.Status = models.PaymentPending
		p.UpdatedAt = at
		s.d.payments[id] = p
	}
	return nil
}

func (s *Payments) ApplyStatus(_ context.Context, orderID string, u paymentstore.StatusUpdate) (*models.Payment, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	for id, p := range s.d.payments {
		if p.GatewayOrderID != orderID {
			continue
		}
		if p.Terminal() {
			return nil, sentinel.ErrInvalidState
		}
		p.Status = u.Status
		p.Open = !p.Terminal()
		if u.GatewayPaymentID != "" {
			p.GatewayPaymentID = u.GatewayPaymentID
		}
		if u.ReferenceID != "" {
			p.ReferenceID = u.ReferenceID
		}
		p.UpdatedAt = u.At
		s.d.payments[id] = p
		return &p, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *Payments) ListStalePending(_ context.Context, cutoff time.Time, limit int64) ([]models.Payment, error) {
	l := s.sorted(func(p models.Payment) bool {
		return !p.Terminal() && p.UpdatedAt.Before(cutoff)
	}, func(a, b models.Payment) bool { return a.UpdatedAt.Before(b.UpdatedAt) })
	if limit > 0 && int64(len(l)) > limit {
		l = l[:limit]
	}
	return l, nil
}

func (s *Payments) List(_ context.Context) ([]models.Payment, error) {
	return s.sorted(func(models.Payment) bool { return true }, newestFirst), nil
}

func (s *Payments) CountByStatus(_ context.Context) (map[string]int64, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	out := map[string]int64{}
	for _, p := range s.d.payments {
		out[p.Status]++
	}
	return out, nil
}

// ─── join requests ───────────────────────────────────────────────────────────

type JoinRequests struct{ d *DB }

func (s *JoinRequests) Create(_ context.Context, jr models.JoinRequest) (models.JoinRequest, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	if jr.ID.IsZero() {
		jr.ID = primitive.NewObjectID()
	}
	jr.Status = models.JoinPending
	for _, existing := range s.d.requests {
		if existing.Pending() && existing.TeamID == jr.TeamID && existing.SoloID == jr.SoloID {
			return models.JoinRequest{}, sentinel.ErrDuplicate
		}
	}
	now := stamp()
	jr.CreatedAt, jr.UpdatedAt = now, now
	s.d.requests[jr.ID] = jr
	return jr, nil
}

func (s *JoinRequests) GetByID(_ context.Context, id primitive.ObjectID) (*models.JoinRequest, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	jr, ok := s.d.requests[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &jr, nil
}

func (s *JoinRequests) FindPending(ctx context.Context, teamID, soloID primitive.ObjectID) (*models.JoinRequest, error) {
	l := s.find(func(jr models.JoinRequest) bool {
		return jr.Pending() && jr.TeamID == teamID && jr.SoloID == soloID
	})
	if len(l) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return &l[0], nil
}

func (s *JoinRequests) Transition(_ context.Context, id primitive.ObjectID, from, to string, actor *primitive.ObjectID, now time.Time) (*models.JoinRequest, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	jr, ok := s.d.requests[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if jr.Status != from {
		return nil, sentinel.ErrInvalidState
	}
	jr.Status = to
	jr.UpdatedAt = now
	jr.DecidedAt = &now
	if actor != nil {
		a := *actor
		jr.DecidedBy = &a
	}
	s.d.requests[id] = jr
	return &jr, nil
}

func (s *JoinRequests) find(match func(models.JoinRequest) bool) []models.JoinRequest {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	var out []models.JoinRequest
	for _, jr := range s.d.requests {
		if match(jr) {
			out = append(out, jr)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.Hex() < out[j].ID.Hex()
	})
	return out
}

func (s *JoinRequests) ListPendingByTeam(_ context.Context, teamID primitive.ObjectID) ([]models.JoinRequest, error) {
	return s.find(func(jr models.JoinRequest) bool { return jr.Pending() && jr.TeamID == teamID }), nil
}

func (s *JoinRequests) ListBySolo(_ context.Context, soloID primitive.ObjectID) ([]models.JoinRequest, error) {
	return s.find(func(jr models.JoinRequest) bool { return jr.SoloID == soloID }), nil
}

func (s *JoinRequests) cancelMany(match func(models.JoinRequest) bool, now time.Time) int64 {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	var n int64
	for id, jr := range s.d.requests {
		if jr.Pending() && match(jr) {
			jr.Status = models.JoinCancelled
			jr.DecidedAt = &now
			jr.UpdatedAt = now
			s.d.requests[id] = jr
			n++
		}
	}
	return n
}

func (s *JoinRequests) CancelPendingBySolo(_ context.Context, soloID, exceptID primitive.ObjectID, now time.Time) (int64, error) {
	return s.cancelMany(func(jr models.JoinRequest) bool {
		return jr.SoloID == soloID && jr.ID != exceptID
	}, now), nil
}

func (s *JoinRequests) CancelPendingByTeam(_ context.Context, teamID primitive.ObjectID, now time.Time) (int64, error) {
	return s.cancelMany(func(jr models.JoinRequest) bool { return jr.TeamID == teamID }, now), nil
}

func (s *JoinRequests) CountPending(_ context.Context) (int64, error) {
	return int64(len(s.find(func(jr models.JoinRequest) bool { return jr.Pending() }))), nil
}

// ─── settings ────────────────────────────────────────────────────────────────

type Settings struct{ d *DB }

func (s *Settings) Get(_ context.Context) (models.SiteSettings, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	if s.d.settings == nil {
		return models.DefaultSiteSettings(), nil
	}
	return *s.d.settings, nil
}

func (s *Settings) SetRegistrationOpen(_ context.Context, open bool, actor *primitive.ObjectID, now time.Time) error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	st := models.DefaultSiteSettings()
	if s.d.settings != nil {
		st = *s.d.settings
	}
	st.RegistrationOpen = open
	st.UpdatedAt = &now
	if actor != nil {
		a := *actor
		st.UpdatedByID = &a
	}
	s.d.settings = &st
	return nil
}

func (s *Settings) Exists(_ context.Context) (bool, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	return s.d.settings != nil, nil
}
