package teamstore_test

import (
	"errors"
	"sync"
	"testing"

	teamstore "github.com/dalemusser/teamreg/internal/app/store/teams"
	"github.com/dalemusser/teamreg/internal/app/system/sentinel"
	"github.com/dalemusser/teamreg/internal/domain/models"
	"github.com/dalemusser/teamreg/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := teamstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	leader := primitive.NewObjectID()
	created, err := store.Create(ctx, models.Team{Name: "  Byte Me ", LeaderID: leader})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.Name != "Byte Me" || created.NameCI == "" {
		t.Errorf("name not normalized: %q / %q", created.Name, created.NameCI)
	}
	if created.MaxSize != models.DefaultMaxTeamSize {
		t.Errorf("MaxSize: got %d", created.MaxSize)
	}

	if _, err := store.Create(ctx, models.Team{Name: "Other", LeaderID: leader}); !errors.Is(err, sentinel.ErrDuplicate) {
		t.Errorf("second team for leader: expected ErrDuplicate, got %v", err)
	}

	// Names are not unique.
	if _, err := store.Create(ctx, models.Team{Name: "Byte Me", LeaderID: primitive.NewObjectID()}); err != nil {
		t.Errorf("duplicate name should be allowed: %v", err)
	}
}

func TestStore_Create_OverCapacity(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := teamstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	members := []primitive.ObjectID{primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()}
	_, err := store.Create(ctx, models.Team{Name: "Big", LeaderID: primitive.NewObjectID(), MemberIDs: members})
	if !errors.Is(err, sentinel.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState, got %v", err)
	}
}

func TestStore_AddMember_Capacity(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := teamstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	team, err := store.Create(ctx, models.Team{Name: "T", LeaderID: primitive.NewObjectID()})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := store.AddMember(ctx, team.ID, primitive.NewObjectID()); err != nil {
			t.Fatalf("AddMember #%d failed: %v", i, err)
		}
	}
	if _, err := store.AddMember(ctx, team.ID, primitive.NewObjectID()); !errors.Is(err, sentinel.ErrInvalidState) {
		t.Errorf("fifth person: expected ErrInvalidState, got %v", err)
	}
	if _, err := store.AddMember(ctx, primitive.NewObjectID(), primitive.NewObjectID()); !errors.Is(err, sentinel.ErrNotFound) {
		t.Errorf("missing team: expected ErrNotFound, got %v", err)
	}

	got, _ := store.GetByID(ctx, team.ID)
	if got.Size() != 4 {
		t.Errorf("Size: got %d, want 4", got.Size())
	}
}

func TestStore_AddMember_LastSlotRace(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := teamstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	team, err := store.Create(ctx, models.Team{
		Name:      "Race",
		LeaderID:  primitive.NewObjectID(),
		MemberIDs: []primitive.ObjectID{primitive.NewObjectID(), primitive.NewObjectID()},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	const racers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.AddMember(ctx, team.ID, primitive.NewObjectID()); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("expected exactly one winner, got %d", wins)
	}
	got, _ := store.GetByID(ctx, team.ID)
	if got.Size() != models.DefaultMaxTeamSize {
		t.Errorf("Size: got %d, want %d", got.Size(), models.DefaultMaxTeamSize)
	}
}

func TestStore_AddMember_DuplicateAndPaid(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := teamstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	team, _ := store.Create(ctx, models.Team{Name: "L", LeaderID: primitive.NewObjectID()})
	user := primitive.NewObjectID()
	if _, err := store.AddMember(ctx, team.ID, user); err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}
	if _, err := store.AddMember(ctx, team.ID, user); !errors.Is(err, sentinel.ErrInvalidState) {
		t.Errorf("duplicate member: expected ErrInvalidState, got %v", err)
	}
	if _, err := store.AddMember(ctx, team.ID, team.LeaderID); !errors.Is(err, sentinel.ErrInvalidState) {
		t.Errorf("leader as member: expected ErrInvalidState, got %v", err)
	}

	if err := store.SetLocked(ctx, team.ID, true); err != nil {
		t.Fatalf("SetLocked failed: %v", err)
	}
	if _, err := store.AddMember(ctx, team.ID, primitive.NewObjectID()); err != nil {
		t.Errorf("paid team should still take members, got %v", err)
	}

	if err := store.RemoveMember(ctx, team.ID, user); err != nil {
		t.Fatalf("RemoveMember failed: %v", err)
	}
	got, _ := store.GetByID(ctx, team.ID)
	if got.HasMember(user) {
		t.Error("expected member removed")
	}
}

func TestStore_ListOpen(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := teamstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	full := []primitive.ObjectID{primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()}
	if _, err := store.Create(ctx, models.Team{Name: "Full", LeaderID: primitive.NewObjectID(), MemberIDs: full}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	paid, _ := store.Create(ctx, models.Team{Name: "Paid", LeaderID: primitive.NewObjectID()})
	_ = store.SetLocked(ctx, paid.ID, true)
	open, _ := store.Create(ctx, models.Team{Name: "Open", LeaderID: primitive.NewObjectID()})

	teams, err := store.ListOpen(ctx)
	if err != nil {
		t.Fatalf("ListOpen failed: %v", err)
	}
	if len(teams) != 2 || teams[0].ID != open.ID || teams[1].ID != paid.ID {
		t.Errorf("expected the open and paid teams, got %d teams", len(teams))
	}
}
