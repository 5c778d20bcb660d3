package services

import (
	"context"
	"testing"
	"time"

	"debateBack/internal/models"
)

type fakeTrialStore struct {
	byUser map[string]models.TrialHistoryRecord
	byHash map[string]models.TrialHistoryRecord

	creates int
}

func newFakeTrialStore() *fakeTrialStore {
	return &fakeTrialStore{
		byUser: make(map[string]models.TrialHistoryRecord),
		byHash: make(map[string]models.TrialHistoryRecord),
	}
}

func (f *fakeTrialStore) Get(ctx context.Context, userID string) (models.TrialHistoryRecord, error) {
	rec, ok := f.byUser[userID]
	if !ok {
		return models.TrialHistoryRecord{}, models.ErrNoRecord
	}
	return rec, nil
}

func (f *fakeTrialStore) FindByIdentityHash(ctx context.Context, hash string) (models.TrialHistoryRecord, error) {
	rec, ok := f.byHash[hash]
	if !ok {
		return models.TrialHistoryRecord{}, models.ErrNoRecord
	}
	return rec, nil
}

func (f *fakeTrialStore) Create(ctx context.Context, rec models.TrialHistoryRecord) error {
	f.creates++
	if _, ok := f.byUser[rec.UserID]; ok {
		return nil
	}
	f.byUser[rec.UserID] = rec
	if rec.IdentityHash != "" {
		f.byHash[rec.IdentityHash] = rec
	}
	return nil
}

func TestIdentityHashNormalizes(t *testing.T) {
	guard := &TrialGuardService{Salt: "pepper"}

	a := guard.IdentityHash("User@Example.com")
	b := guard.IdentityHash("  user@example.com  ")
	if a == "" || a != b {
		t.Errorf("hash should be case- and whitespace-insensitive: %q vs %q", a, b)
	}
	if guard.IdentityHash("   ") != "" {
		t.Error("blank identity should hash to empty")
	}

	other := (&TrialGuardService{Salt: "different"}).IdentityHash("user@example.com")
	if other == a {
		t.Error("different salts should produce different hashes")
	}
}

func TestHasUsedTrialByUserID(t *testing.T) {
	store := newFakeTrialStore()
	guard := &TrialGuardService{Repo: store, Salt: "pepper"}
	ctx := context.Background()

	used, err := guard.HasUsedTrial(ctx, "u1", "a@x.com")
	if err != nil || used {
		t.Fatalf("fresh user: used=%v err=%v", used, err)
	}

	if err := guard.RecordTrialUsage(ctx, "u1", "a@x.com", time.Now()); err != nil {
		t.Fatal(err)
	}

	used, err = guard.HasUsedTrial(ctx, "u1", "a@x.com")
	if err != nil || !used {
		t.Fatalf("after recording: used=%v err=%v", used, err)
	}
}

func TestHasUsedTrialSurvivesAccountRecreation(t *testing.T) {
	store := newFakeTrialStore()
	guard := &TrialGuardService{Repo: store, Salt: "pepper"}
	ctx := context.Background()

	if err := guard.RecordTrialUsage(ctx, "old-uid", "a@x.com", time.Now()); err != nil {
		t.Fatal(err)
	}

	// New user id, same email with different casing and spacing.
	used, err := guard.HasUsedTrial(ctx, "new-uid", " A@X.com ")
	if err != nil {
		t.Fatal(err)
	}
	if !used {
		t.Error("identity hash lookup should catch the recreated account")
	}

	// New user id and unknown email: nothing to match on.
	used, err = guard.HasUsedTrial(ctx, "new-uid", "b@x.com")
	if err != nil || used {
		t.Errorf("unrelated identity: used=%v err=%v", used, err)
	}
}
