package oauthstate_test

import (
	"testing"
	"time"

	"github.com/dalemusser/teamreg/internal/app/store/oauthstate"
	"github.com/dalemusser/teamreg/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Consume(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := oauthstate.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	if err := store.Save(ctx, "state-1", userID, "/dashboard", time.Now().Add(10*time.Minute)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	st, valid, err := store.Consume(ctx, "state-1")
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if !valid {
		t.Fatal("expected state to be valid")
	}
	if st.UserID != userID {
		t.Errorf("UserID: got %v, want %v", st.UserID, userID)
	}
	if st.ReturnURL != "/dashboard" {
		t.Errorf("ReturnURL: got %q", st.ReturnURL)
	}

	// Single use.
	_, valid, err = store.Consume(ctx, "state-1")
	if err != nil {
		t.Fatalf("second Consume error: %v", err)
	}
	if valid {
		t.Error("expected second consume to fail")
	}
}

func TestStore_Consume_UnknownAndExpired(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := oauthstate.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, valid, err := store.Consume(ctx, "nope")
	if err != nil {
		t.Fatalf("Consume error: %v", err)
	}
	if valid {
		t.Error("expected unknown state to be invalid")
	}

	if err := store.Save(ctx, "old", primitive.NewObjectID(), "", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	_, valid, err = store.Consume(ctx, "old")
	if err != nil {
		t.Fatalf("Consume error: %v", err)
	}
	if valid {
		t.Error("expected expired state to be invalid")
	}
}

func TestStore_CleanupExpired(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := oauthstate.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	uid := primitive.NewObjectID()
	for i := 0; i < 3; i++ {
		if err := store.Save(ctx, "expired-"+string(rune('a'+i)), uid, "", time.Now().Add(-time.Minute)); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}
	for i := 0; i < 2; i++ {
		if err := store.Save(ctx, "valid-"+string(rune('a'+i)), uid, "", time.Now().Add(10*time.Minute)); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	deleted, err := store.CleanupExpired(ctx)
	if err != nil {
		t.Fatalf("CleanupExpired failed: %v", err)
	}
	if deleted != 3 {
		t.Errorf("expected 3 deleted, got %d", deleted)
	}
}
