package testutil

import (
	"context"
	"sync"
	"testing"

	"github.com/dalemusser/teamreg/internal/app/service/identity"
	"github.com/dalemusser/teamreg/internal/app/service/orchestrator"
	"github.com/dalemusser/teamreg/internal/app/service/roster"
	"github.com/dalemusser/teamreg/internal/app/services"
	"github.com/dalemusser/teamreg/internal/app/store/memory"
	userstore "github.com/dalemusser/teamreg/internal/app/store/users"
	"github.com/dalemusser/teamreg/internal/app/system/auth"
	"github.com/dalemusser/teamreg/internal/app/system/gateway"
	"github.com/dalemusser/teamreg/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Mail records verification messages instead of sending them.
type Mail struct {
	mu   sync.Mutex
	Sent []SentMail
}

// SentMail is one recorded verification message.
type SentMail struct {
	To, Name, Token string
}

// SendVerificationEmail records the message.
func (m *Mail) SendVerificationEmail(_ context.Context, to, name, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, SentMail{To: to, Name: name, Token: token})
	return nil
}

// Last returns the most recent message, or the zero value.
func (m *Mail) Last() SentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sent) == 0 {
		return SentMail{}
	}
	return m.Sent[len(m.Sent)-1]
}

// App is the full service graph over in-memory stores, for handler tests.
type App struct {
	DB       *memory.DB
	Services *services.Set
	Gateway  *gateway.Fake
	Issuer   *auth.Issuer
	Mail     *Mail
	Sessions *auth.SessionManager
}

// NewApp builds an App with cheap bcrypt and a fake gateway.
func NewApp(t *testing.T) *App {
	t.Helper()
	db := memory.New()
	issuer := auth.NewIssuer("handler-test-secret-0123456789abcdef", 0)
	mail := &Mail{}
	gw := gateway.NewFake()

	idCfg := identity.DefaultConfig()
	idCfg.BcryptCost = bcrypt.MinCost

	set := services.Build(services.MemoryStores(db), services.Config{Identity: idCfg}, services.Deps{
		Issuer:   issuer,
		Notifier: mail,
		Gateway:  gw,
		Log:      zap.NewNop(),
	})

	sm, err := auth.NewSessionManager("test-session-key-for-testing-only-0123", "test-session", "", false, issuer, MemoryFetcher{DB: db}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSessionManager failed: %v", err)
	}
	return &App{DB: db, Services: set, Gateway: gw, Issuer: issuer, Mail: mail, Sessions: sm}
}

// Register creates a verified solo account.
func (a *App) Register(t *testing.T, name, email string) *models.User {
	t.Helper()
	ctx := context.Background()
	u, err := a.Services.Identity.Register(ctx, models.Profile{Name: name, Email: email}, "secret123")
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	if _, err := a.Services.Identity.VerifyEmail(ctx, u.VerifyToken); err != nil {
		t.Fatalf("verify %s: %v", email, err)
	}
	fresh, _ := a.DB.Users.GetByID(ctx, u.ID)
	return fresh
}

// User reloads a user by id.
func (a *App) User(t *testing.T, id primitive.ObjectID) *models.User {
	t.Helper()
	u, err := a.DB.Users.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("load user: %v", err)
	}
	return u
}

// Organizer creates an organizer account.
func (a *App) Organizer(t *testing.T, email string) *models.User {
	t.Helper()
	u := a.Register(t, "Organizer", email)
	if err := a.DB.Users.SetRole(context.Background(), u.ID, models.RoleOrganizer); err != nil {
		t.Fatalf("set role: %v", err)
	}
	return a.User(t, u.ID)
}

// Team registers a team led by leader with one member per email and
// returns the registration including its payment intent.
func (a *App) Team(t *testing.T, name string, leader *models.User, memberEmails ...string) *orchestrator.TeamRegistration {
	t.Helper()
	in := roster.CreateTeamInput{
		LeaderID:      leader.ID,
		Name:          name,
		LeaderProfile: leader.Profile(),
	}
	for _, email := range memberEmails {
		in.Members = append(in.Members, roster.MemberInput{Profile: models.Profile{Name: "Member", Email: email}})
	}
	reg, err := a.Services.Orchestrator.RegisterTeam(context.Background(), in)
	if err != nil {
		t.Fatalf("register team %s: %v", name, err)
	}
	return reg
}

// MemoryFetcher implements auth.UserFetcher over the in-memory store.
type MemoryFetcher struct {
	DB *memory.DB
}

// FetchUser returns nil for unknown or malformed ids.
func (f MemoryFetcher) FetchUser(ctx context.Context, id string) *auth.SessionUser {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil
	}
	u, err := f.DB.Users.GetByID(ctx, oid)
	if err != nil {
		return nil
	}
	return userstore.SessionUserOf(u)
}
