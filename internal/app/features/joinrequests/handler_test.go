package joinrequests_test

import (
	"net/http"
	"testing"

	"github.com/dalemusser/teamreg/internal/app/features/joinrequests"
	"github.com/dalemusser/teamreg/internal/domain/models"
	"github.com/dalemusser/teamreg/internal/testutil"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	app    *testutil.App
	router http.Handler
	team   *models.Team
	leader testutil.TestUser
	solo   testutil.TestUser
}

func setup(t *testing.T, memberEmails ...string) *fixture {
	t.Helper()
	app := testutil.NewApp(t)
	h := joinrequests.NewHandler(app.Services.JoinFlow, app.Services.Roster, app.Services.Identity, nil, zap.NewNop())
	r := chi.NewRouter()
	r.Mount("/api/join-requests", joinrequests.Routes(h))

	leader := app.Register(t, "Lead", "lead@example.com")
	reg := app.Team(t, "Team", leader, memberEmails...)
	solo := app.Register(t, "Solo", "solo@example.com")

	return &fixture{
		app:    app,
		router: r,
		team:   reg.Team,
		leader: testutil.UserFrom(*app.User(t, leader.ID)),
		solo:   testutil.UserFrom(*solo),
	}
}

func (f *fixture) do(method, target string, body any, user testutil.TestUser) *testutil.ResponseRecorder {
	rec := testutil.NewRecorder()
	f.router.ServeHTTP(rec, testutil.NewAuthenticatedRequest(method, target, body, user))
	return rec
}

type requestBody struct {
	Request models.JoinRequest `json:"request"`
	Created bool               `json:"created"`
}

func (f *fixture) request(t *testing.T, user testutil.TestUser) models.JoinRequest {
	t.Helper()
	rec := f.do("POST", "/api/join-requests", map[string]string{"team_id": f.team.ID.Hex()}, user)
	var body requestBody
	require.NoError(t, rec.DecodeJSON(&body))
	return body.Request
}

func TestCreate_IdempotentWhilePending(t *testing.T) {
	f := setup(t)

	rec := f.do("POST", "/api/join-requests", map[string]string{"team_id": f.team.ID.Hex()}, f.solo)
	rec.AssertStatus(t, http.StatusCreated)
	var first requestBody
	require.NoError(t, rec.DecodeJSON(&first))
	assert.True(t, first.Created)
	assert.Equal(t, models.JoinPending, first.Request.Status)

	rec = f.do("POST", "/api/join-requests", map[string]string{"team_id": f.team.ID.Hex()}, f.solo)
	rec.AssertStatus(t, http.StatusOK)
	var second requestBody
	require.NoError(t, rec.DecodeJSON(&second))
	assert.False(t, second.Created)
	assert.Equal(t, first.Request.ID, second.Request.ID)
}

func TestCreate_Errors(t *testing.T) {
	f := setup(t)

	rec := f.do("POST", "/api/join-requests", map[string]string{"team_id": "nope"}, f.solo)
	rec.AssertStatus(t, http.StatusBadRequest)

	rec = f.do("POST", "/api/join-requests", map[string]string{"team_id": "64b7f0000000000000000000"}, f.solo)
	rec.AssertStatus(t, http.StatusNotFound)

	rec = f.do("POST", "/api/join-requests", map[string]string{"team_id": f.team.ID.Hex()}, f.leader)
	rec.AssertStatus(t, http.StatusForbidden)
}

func TestCreate_FullTeam(t *testing.T) {
	f := setup(t, "a@example.com", "b@example.com", "c@example.com")
	rec := f.do("POST", "/api/join-requests", map[string]string{"team_id": f.team.ID.Hex()}, f.solo)
	rec.AssertStatus(t, http.StatusConflict)
	rec.AssertContains(t, "team_full")
}

func TestPendingAndAccept(t *testing.T) {
	f := setup(t)
	jr := f.request(t, f.solo)

	rec := f.do("GET", "/api/join-requests/pending", nil, f.leader)
	rec.AssertStatus(t, http.StatusOK)
	var pending struct {
		Requests []joinrequests.View `json:"requests"`
	}
	require.NoError(t, rec.DecodeJSON(&pending))
	require.Len(t, pending.Requests, 1)
	require.NotNil(t, pending.Requests[0].Solo)
	assert.Equal(t, "solo@example.com", pending.Requests[0].Solo.Email)

	rec = f.do("POST", "/api/join-requests/"+jr.ID.Hex()+"/decision", map[string]string{"action": "accept"}, f.leader)
	rec.AssertStatus(t, http.StatusOK)
	var decided requestBody
	require.NoError(t, rec.DecodeJSON(&decided))
	assert.Equal(t, models.JoinAccepted, decided.Request.Status)

	u := f.app.User(t, jr.SoloID)
	assert.Equal(t, models.RoleMember, u.Role)
	require.NotNil(t, u.TeamID)
	assert.Equal(t, f.team.ID, *u.TeamID)

	// a second decision loses
	rec = f.do("POST", "/api/join-requests/"+jr.ID.Hex()+"/decision", map[string]string{"action": "reject"}, f.leader)
	rec.AssertStatus(t, http.StatusConflict)
	rec.AssertContains(t, "already_decided")
}

func TestDecide_Validation(t *testing.T) {
	f := setup(t)
	jr := f.request(t, f.solo)

	rec := f.do("POST", "/api/join-requests/"+jr.ID.Hex()+"/decision", map[string]string{"action": "maybe"}, f.leader)
	rec.AssertStatus(t, http.StatusBadRequest)

	rec = f.do("POST", "/api/join-requests/bad-id/decision", map[string]string{"action": "accept"}, f.leader)
	rec.AssertStatus(t, http.StatusBadRequest)
}

func TestDecide_OtherLeaderForbidden(t *testing.T) {
	f := setup(t)
	jr := f.request(t, f.solo)

	other := f.app.Register(t, "Other", "other@example.com")
	f.app.Team(t, "Other Team", other)
	otherLeader := testutil.UserFrom(*f.app.User(t, other.ID))

	rec := f.do("POST", "/api/join-requests/"+jr.ID.Hex()+"/decision", map[string]string{"action": "accept"}, otherLeader)
	rec.AssertStatus(t, http.StatusForbidden)
}

func TestRejectThenMine(t *testing.T) {
	f := setup(t)
	jr := f.request(t, f.solo)

	rec := f.do("POST", "/api/join-requests/"+jr.ID.Hex()+"/decision", map[string]string{"action": "reject"}, f.leader)
	rec.AssertStatus(t, http.StatusOK)

	rec = f.do("GET", "/api/join-requests/mine", nil, f.solo)
	rec.AssertStatus(t, http.StatusOK)
	var mine struct {
		Requests []joinrequests.View `json:"requests"`
	}
	require.NoError(t, rec.DecodeJSON(&mine))
	require.Len(t, mine.Requests, 1)
	assert.Equal(t, models.JoinRejected, mine.Requests[0].Status)
	require.NotNil(t, mine.Requests[0].Team)
	assert.Equal(t, "Team", mine.Requests[0].Team.Name)
	assert.Equal(t, models.RoleSolo, f.app.User(t, jr.SoloID).Role)
}

func TestCancel(t *testing.T) {
	f := setup(t)
	jr := f.request(t, f.solo)

	intruder := testutil.UserFrom(*f.app.Register(t, "Intruder", "intruder@example.com"))
	rec := f.do("POST", "/api/join-requests/"+jr.ID.Hex()+"/cancel", nil, intruder)
	rec.AssertStatus(t, http.StatusForbidden)

	rec = f.do("POST", "/api/join-requests/"+jr.ID.Hex()+"/cancel", nil, f.solo)
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, models.JoinCancelled)

	rec = f.do("POST", "/api/join-requests/"+jr.ID.Hex()+"/decision", map[string]string{"action": "accept"}, f.leader)
	rec.AssertStatus(t, http.StatusConflict)
}
