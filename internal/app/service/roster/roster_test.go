package roster_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/dalemusser/teamreg/internal/app/service/identity"
	"github.com/dalemusser/teamreg/internal/app/service/roster"
	"github.com/dalemusser/teamreg/internal/app/store/memory"
	"github.com/dalemusser/teamreg/internal/app/system/apperr"
	"github.com/dalemusser/teamreg/internal/app/system/auth"
	"github.com/dalemusser/teamreg/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

type countingNotifier struct {
	mu sync.Mutex
	to []string
}

func (n *countingNotifier) SendVerificationEmail(_ context.Context, to, _, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.to = append(n.to, to)
	return nil
}

// failingTeams lets a test break team insertion after the user writes
// have already happened.
type failingTeams struct {
	*memory.Teams
	createErr error
}

func (f *failingTeams) Create(ctx context.Context, t models.Team) (models.Team, error) {
	if f.createErr != nil {
		return models.Team{}, f.createErr
	}
	return f.Teams.Create(ctx, t)
}

type fixture struct {
	db    *memory.DB
	svc   *roster.Service
	ids   *identity.Service
	mail  *countingNotifier
	teams *failingTeams
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := memory.New()
	mail := &countingNotifier{}
	cfg := identity.DefaultConfig()
	cfg.BcryptCost = bcrypt.MinCost
	ids := identity.New(db.Users, mail, auth.NewIssuer("roster-test-secret", 0), cfg, nil, nil)
	teams := &failingTeams{Teams: db.Teams}
	svc := roster.New(db.Users, teams, db.JoinRequests, ids, db, 4, nil)
	return &fixture{db: db, svc: svc, ids: ids, mail: mail, teams: teams}
}

func (f *fixture) solo(t *testing.T, email string) *models.User {
	t.Helper()
	u, err := f.ids.Register(context.Background(), models.Profile{Name: email, Email: email}, "secret123")
	require.NoError(t, err)
	return u
}

func member(email string) roster.MemberInput {
	return roster.MemberInput{Profile: models.Profile{
		Name:          "Member " + email,
		Email:         email,
		YearOfStudy:   1,
		ResidenceType: models.ResidenceDayScholar,
	}}
}

func (f *fixture) user(t *testing.T, id primitive.ObjectID) *models.User {
	t.Helper()
	u, err := f.db.Users.GetByID(context.Background(), id)
	require.NoError(t, err)
	return u
}

// assertConsistent checks that every user on the roster points back at the
// team with the right role.
func (f *fixture) assertConsistent(t *testing.T, team *models.Team) {
	t.Helper()
	leader := f.user(t, team.LeaderID)
	assert.Equal(t, models.RoleLeader, leader.Role)
	require.NotNil(t, leader.TeamID)
	assert.Equal(t, team.ID, *leader.TeamID)
	for _, id := range team.MemberIDs {
		m := f.user(t, id)
		assert.Equal(t, models.RoleMember, m.Role)
		require.NotNil(t, m.TeamID)
		assert.Equal(t, team.ID, *m.TeamID)
	}
	assert.LessOrEqual(t, team.Size(), team.MaxSize)
}

func TestCreateTeam_BackLinksEveryone(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	leader := f.solo(t, "lead@example.com")
	sent := len(f.mail.to)

	team, err := f.svc.CreateTeam(ctx, roster.CreateTeamInput{
		LeaderID:      leader.ID,
		Name:          "  Byte   Busters ",
		LeaderProfile: models.Profile{Name: "Lead", YearOfStudy: 3},
		Members:       []roster.MemberInput{member("m1@example.com"), member("M2@Example.com")},
	})
	require.NoError(t, err)

	assert.Equal(t, "Byte Busters", team.Name)
	assert.Equal(t, 4, team.MaxSize)
	assert.Len(t, team.MemberIDs, 2)
	f.assertConsistent(t, team)

	l := f.user(t, leader.ID)
	assert.Equal(t, "Lead", l.Name)
	assert.Equal(t, 3, l.YearOfStudy)

	m2, err := f.db.Users.GetByEmail(ctx, "m2@example.com")
	require.NoError(t, err)
	assert.False(t, m2.EmailVerified)
	assert.NotEmpty(t, m2.PasswordHash)
	assert.NotEmpty(t, m2.VerifyToken)

	assert.Len(t, f.mail.to, sent+2)
}

func TestCreateTeam_MemberPasswordIsUsable(t *testing.T) {
	f := setup(t)
	leader := f.solo(t, "pwlead@example.com")
	in := member("pwmember@example.com")
	in.Password = "member-pass"

	_, err := f.svc.CreateTeam(context.Background(), roster.CreateTeamInput{
		LeaderID: leader.ID, Name: "Pw", Members: []roster.MemberInput{in},
	})
	require.NoError(t, err)

	cred, err := f.ids.Authenticate(context.Background(), "pwmember@example.com", "member-pass")
	require.NoError(t, err)
	assert.Equal(t, models.RoleMember, cred.User.Role)
}

func TestCreateTeam_Validation(t *testing.T) {
	f := setup(t)
	leader := f.solo(t, "v@example.com")

	_, err := f.svc.CreateTeam(context.Background(), roster.CreateTeamInput{
		LeaderID: leader.ID,
		Name:     "Too Many",
		Members: []roster.MemberInput{
			member("a@example.com"), member("b@example.com"),
			member("c@example.com"), member("d@example.com"),
		},
	})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = f.svc.CreateTeam(context.Background(), roster.CreateTeamInput{LeaderID: leader.ID, Name: "   "})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = f.svc.CreateTeam(context.Background(), roster.CreateTeamInput{
		LeaderID: leader.ID,
		Name:     "Same Email",
		Members:  []roster.MemberInput{member("v@example.com")},
	})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestCreateTeam_LeaderNotFound(t *testing.T) {
	f := setup(t)

	_, err := f.svc.CreateTeam(context.Background(), roster.CreateTeamInput{
		LeaderID: primitive.NewObjectID(), Name: "Ghosts",
	})
	assert.ErrorIs(t, err, apperr.ErrLeaderNotFound)
}

func TestCreateTeam_LeaderAlreadyOnTeam(t *testing.T) {
	f := setup(t)
	leader := f.solo(t, "twice@example.com")
	ctx := context.Background()

	_, err := f.svc.CreateTeam(ctx, roster.CreateTeamInput{LeaderID: leader.ID, Name: "First"})
	require.NoError(t, err)

	_, err = f.svc.CreateTeam(ctx, roster.CreateTeamInput{LeaderID: leader.ID, Name: "Second"})
	assert.ErrorIs(t, err, apperr.ErrAlreadyOnTeam)
}

func TestCreateTeam_ExistingMemberEmailConflicts(t *testing.T) {
	f := setup(t)
	leader := f.solo(t, "l@example.com")
	f.solo(t, "taken@example.com")

	_, err := f.svc.CreateTeam(context.Background(), roster.CreateTeamInput{
		LeaderID: leader.ID,
		Name:     "Clash",
		Members:  []roster.MemberInput{member("taken@example.com")},
	})
	assert.ErrorIs(t, err, apperr.ErrDuplicateEmail)

	l := f.user(t, leader.ID)
	assert.Equal(t, models.RoleSolo, l.Role)
	assert.Nil(t, l.TeamID)
}

func TestCreateTeam_FailureUndoesUserWrites(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	leader := f.solo(t, "undo@example.com")
	f.teams.createErr = errors.New("disk full")

	_, err := f.svc.CreateTeam(ctx, roster.CreateTeamInput{
		LeaderID:      leader.ID,
		Name:          "Doomed",
		LeaderProfile: models.Profile{Name: "Changed Name"},
		Members:       []roster.MemberInput{member("gone1@example.com"), member("gone2@example.com")},
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))

	l := f.user(t, leader.ID)
	assert.Equal(t, models.RoleSolo, l.Role)
	assert.Nil(t, l.TeamID)
	assert.Equal(t, leader.Name, l.Name)

	for _, email := range []string{"gone1@example.com", "gone2@example.com"} {
		_, err := f.db.Users.GetByEmail(ctx, email)
		assert.Error(t, err, "member %s should have been removed", email)
	}
	n, _ := f.db.Teams.Count(ctx)
	assert.Zero(t, n)
}

func (f *fixture) teamWith(t *testing.T, prefix string, members int) *models.Team {
	t.Helper()
	leader := f.solo(t, prefix+"-lead@example.com")
	in := roster.CreateTeamInput{LeaderID: leader.ID, Name: prefix}
	for i := 0; i < members; i++ {
		in.Members = append(in.Members, member(fmt.Sprintf("%s-m%d@example.com", prefix, i)))
	}
	team, err := f.svc.CreateTeam(context.Background(), in)
	require.NoError(t, err)
	return team
}

func TestAddMember_RespectsCapacity(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	team := f.teamWith(t, "cap", 2)

	s1 := f.solo(t, "s1@example.com")
	got, err := f.svc.AddMember(ctx, team.ID, s1.ID)
	require.NoError(t, err)
	assert.True(t, got.IsFull())
	f.assertConsistent(t, got)

	s2 := f.solo(t, "s2@example.com")
	_, err = f.svc.AddMember(ctx, team.ID, s2.ID)
	assert.ErrorIs(t, err, apperr.ErrTeamFull)

	u := f.user(t, s2.ID)
	assert.Equal(t, models.RoleSolo, u.Role)
	assert.Nil(t, u.TeamID)
}

func TestAddMember_ConcurrentLastSlotHasOneWinner(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	team := f.teamWith(t, "race", 2)

	const n = 8
	solos := make([]*models.User, n)
	for i := range solos {
		solos[i] = f.solo(t, fmt.Sprintf("racer%d@example.com", i))
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = f.svc.AddMember(ctx, team.ID, solos[i].ID)
		}(i)
	}
	close(start)
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, apperr.ErrTeamFull)
	}
	assert.Equal(t, 1, wins)

	final, err := f.db.Teams.GetByID(ctx, team.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, final.Size())
	f.assertConsistent(t, final)

	members := 0
	for _, s := range solos {
		if f.user(t, s.ID).Role == models.RoleMember {
			members++
		}
	}
	assert.Equal(t, 1, members)
}

func TestAddMember_PaidAndAlreadyOnTeam(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	team := f.teamWith(t, "paid", 0)
	other := f.teamWith(t, "other", 1)

	require.NoError(t, f.svc.LockTeam(ctx, team.ID))
	s := f.solo(t, "late@example.com")
	got, err := f.svc.AddMember(ctx, team.ID, s.ID)
	require.NoError(t, err)
	assert.True(t, got.HasMember(s.ID))

	_, err = f.svc.AddMember(ctx, other.ID, other.MemberIDs[0])
	assert.ErrorIs(t, err, apperr.ErrAlreadyOnTeam)

	_, err = f.svc.AddMember(ctx, primitive.NewObjectID(), s.ID)
	assert.ErrorIs(t, err, apperr.ErrTeamNotFound)
}

func TestRegisterSolo(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	s := f.solo(t, "solo@example.com")

	p := models.Profile{Name: "Solo Person", PhoneNumber: "+91 98765-43210", ResidenceType: "day scholar"}
	u, err := f.svc.RegisterSolo(ctx, s.ID, p)
	require.NoError(t, err)
	assert.Equal(t, models.RoleSolo, u.Role)
	assert.Equal(t, "+919876543210", u.PhoneNumber)
	assert.Equal(t, models.ResidenceDayScholar, u.ResidenceType)

	_, err = f.svc.RegisterSolo(ctx, s.ID, p)
	assert.NoError(t, err)

	team := f.teamWith(t, "taken", 1)
	_, err = f.svc.RegisterSolo(ctx, team.LeaderID, p)
	assert.ErrorIs(t, err, apperr.ErrAlreadyOnTeam)

	_, err = f.svc.RegisterSolo(ctx, primitive.NewObjectID(), p)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRemoveTeam_ReturnsEveryoneToSolo(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	team := f.teamWith(t, "bye", 2)
	asker := f.solo(t, "asker@example.com")
	_, err := f.db.JoinRequests.Create(ctx, models.JoinRequest{TeamID: team.ID, SoloID: asker.ID})
	require.NoError(t, err)

	require.NoError(t, f.svc.RemoveTeam(ctx, team.ID))

	for _, id := range append([]primitive.ObjectID{team.LeaderID}, team.MemberIDs...) {
		u := f.user(t, id)
		assert.Equal(t, models.RoleSolo, u.Role)
		assert.Nil(t, u.TeamID)
	}
	_, err = f.db.Teams.GetByID(ctx, team.ID)
	assert.Error(t, err)
	n, _ := f.db.JoinRequests.CountPending(ctx)
	assert.Zero(t, n)

	assert.ErrorIs(t, f.svc.RemoveTeam(ctx, team.ID), apperr.ErrTeamNotFound)
}

func TestRemoveUser(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	team := f.teamWith(t, "rm", 2)

	require.NoError(t, f.svc.RemoveUser(ctx, team.MemberIDs[0]))
	got, err := f.db.Teams.GetByID(ctx, team.ID)
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{team.MemberIDs[1]}, got.MemberIDs)

	require.NoError(t, f.svc.RemoveUser(ctx, team.LeaderID))
	_, err = f.db.Teams.GetByID(ctx, team.ID)
	assert.Error(t, err)
	assert.Equal(t, models.RoleSolo, f.user(t, team.MemberIDs[1]).Role)

	assert.ErrorIs(t, f.svc.RemoveUser(ctx, team.LeaderID), apperr.ErrNotFound)
}
