package ctl

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dalemusser/teamreg/internal/domain/models"
	"github.com/dalemusser/teamreg/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func memoryOpener(app *testutil.App) Opener {
	return func(context.Context, Options, *zap.Logger) (*Env, error) {
		return &Env{
			Services: app.Services,
			Close:    func(context.Context) error { return nil },
		}, nil
	}
}

func execute(t *testing.T, app *testutil.App, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd(memoryOpener(app))
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRegistrationCommands(t *testing.T) {
	app := testutil.NewApp(t)

	out, err := execute(t, app, "registration", "status")
	require.NoError(t, err)
	assert.Equal(t, "registration is open\n", out)

	out, err = execute(t, app, "registration", "close")
	require.NoError(t, err)
	assert.Equal(t, "registration is closed\n", out)

	open, err := app.Services.Orchestrator.RegistrationOpen(context.Background())
	require.NoError(t, err)
	assert.False(t, open)

	_, err = execute(t, app, "registration", "open")
	require.NoError(t, err)
	open, _ = app.Services.Orchestrator.RegistrationOpen(context.Background())
	assert.True(t, open)
}

func TestExport_Stdout(t *testing.T) {
	app := testutil.NewApp(t)
	leader := app.Register(t, "Lead", "lead@example.com")
	app.Team(t, "Rocket Owls", leader, "m1@example.com")

	out, err := execute(t, app, "export", "teams")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "\ufeffteam_id,team_name"))
	assert.Contains(t, out, "Rocket Owls")
	assert.Contains(t, out, "m1@example.com")
}

func TestExport_File(t *testing.T) {
	app := testutil.NewApp(t)
	app.Register(t, "Solo Sam", "sam@example.com")
	path := filepath.Join(t.TempDir(), "solos.csv")

	out, err := execute(t, app, "export", "solos", "--out", path)
	require.NoError(t, err)
	assert.Contains(t, out, "to "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "sam@example.com")
}

func TestExport_UnknownKind(t *testing.T) {
	app := testutil.NewApp(t)

	_, err := execute(t, app, "export", "audit")
	assert.Error(t, err)
}

func TestOrganizerPromote(t *testing.T) {
	app := testutil.NewApp(t)
	u := app.Register(t, "Priya", "priya@example.com")

	out, err := execute(t, app, "organizer", "promote", "Priya@Example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "promoted priya@example.com")
	assert.Equal(t, models.RoleOrganizer, app.User(t, u.ID).Role)

	out, err = execute(t, app, "organizer", "promote", "priya@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "already an organizer")

	_, err = execute(t, app, "organizer", "promote", "ghost@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no account registered")
}

func TestPaymentsPoll_NothingStale(t *testing.T) {
	app := testutil.NewApp(t)

	out, err := execute(t, app, "payments", "poll")
	require.NoError(t, err)
	assert.Equal(t, "checked 0, applied 0, errors 0\n", out)
}

func TestIndexes_RequireMongo(t *testing.T) {
	app := testutil.NewApp(t)

	_, err := execute(t, app, "indexes")
	assert.Error(t, err)
}

func TestIndexes_Mongo(t *testing.T) {
	db := testutil.SetupTestDB(t)
	app := testutil.NewApp(t)
	open := func(context.Context, Options, *zap.Logger) (*Env, error) {
		return &Env{Services: app.Services, DB: db, Close: func(context.Context) error { return nil }}, nil
	}

	cmd := NewRootCmd(open)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"indexes"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Equal(t, "indexes ensured\n", out.String())
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("TEAMREG_MONGO_DATABASE", "event2026")
	t.Setenv("TEAMREG_TEAM_FEE_PAISE", "75000")
	t.Setenv("TEAMREG_SOLO_FEE_PAISE", "not-a-number")

	cfg := configFromEnv()
	assert.Equal(t, "event2026", cfg.MongoDatabase)
	assert.Equal(t, int64(75000), cfg.TeamFeePaise)
	assert.Equal(t, int64(15000), cfg.SoloFeePaise)
	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoURI)
}
