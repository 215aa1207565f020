package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/teamreg/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures inserts documents directly, bypassing stores, for test setup.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser inserts a verified user with the given role and no team.
func (f *Fixtures) CreateUser(ctx context.Context, name, email, role string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	user := models.User{
		ID:                 primitive.NewObjectID(),
		Name:               name,
		Email:              email,
		RegistrationNumber: "21BCE0001",
		YearOfStudy:        2,
		PhoneNumber:        "9876543210",
		ResidenceType:      models.ResidenceHosteller,
		Role:               role,
		EmailVerified:      true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if _, err := f.db.Collection("users").InsertOne(ctx, user); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateSolo inserts a solo participant.
func (f *Fixtures) CreateSolo(ctx context.Context, name, email string) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, name, email, models.RoleSolo)
}

// CreateOrganizer inserts an organizer.
func (f *Fixtures) CreateOrganizer(ctx context.Context, name, email string) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, name, email, models.RoleOrganizer)
}

// CreateTeam inserts a team led by leader with the given members and
// back-links every user to it.
func (f *Fixtures) CreateTeam(ctx context.Context, name string, leader models.User, members ...models.User) models.Team {
	f.t.Helper()

	now := time.Now().UTC()
	team := models.Team{
		ID:        primitive.NewObjectID(),
		Name:      name,
		NameCI:    text.Fold(name),
		LeaderID:  leader.ID,
		MemberIDs: []primitive.ObjectID{},
		MaxSize:   models.DefaultMaxTeamSize,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, m := range members {
		team.MemberIDs = append(team.MemberIDs, m.ID)
	}
	if _, err := f.db.Collection("teams").InsertOne(ctx, team); err != nil {
		f.t.Fatalf("failed to create test team: %v", err)
	}

	users := f.db.Collection("users")
	if _, err := users.UpdateOne(ctx, bson.M{"_id": leader.ID},
		bson.M{"$set": bson.M{"role": models.RoleLeader, "team_id": team.ID}}); err != nil {
		f.t.Fatalf("failed to link leader: %v", err)
	}
	for _, m := range members {
		if _, err := users.UpdateOne(ctx, bson.M{"_id": m.ID},
			bson.M{"$set": bson.M{"role": models.RoleMember, "team_id": team.ID}}); err != nil {
			f.t.Fatalf("failed to link member: %v", err)
		}
	}
	return team
}

// CreatePayment inserts a payment for payer in the given status.
func (f *Fixtures) CreatePayment(ctx context.Context, payer primitive.ObjectID, mode, status string, teamID *primitive.ObjectID) models.Payment {
	f.t.Helper()

	now := time.Now().UTC()
	p := models.Payment{
		ID:            primitive.NewObjectID(),
		PayerID:       payer,
		TeamID:        teamID,
		AmountInPaise: 15000,
		Currency:      models.CurrencyINR,
		Status:        status,
		Mode:          mode,
		Open:          !models.IsTerminalPaymentStatus(status),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if mode == models.ModeTeam {
		p.AmountInPaise = 50000
	}
	p.GatewayOrderID = "ORD_" + p.ID.Hex()
	if _, err := f.db.Collection("payments").InsertOne(ctx, p); err != nil {
		f.t.Fatalf("failed to create test payment: %v", err)
	}
	return p
}
