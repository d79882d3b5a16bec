package sqlite_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/dgallion1/fieldmap/internal/people"
	"github.com/dgallion1/fieldmap/internal/sqlite"
)

func setupTestDB(t *testing.T) (*sqlite.DB, func()) {
	t.Helper()

	f, err := os.CreateTemp("", "fieldmap-test-*.db")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	path := f.Name()
	f.Close()

	db, err := sqlite.Open(path)
	if err != nil {
		os.Remove(path)
		t.Fatalf("open database: %v", err)
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		os.Remove(path)
		t.Fatalf("migrate: %v", err)
	}

	cleanup := func() {
		db.Close()
		os.Remove(path)
	}

	return db, cleanup
}

func TestMigrate_Idempotent(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	if err := db.Migrate(); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}
}

func TestPersonStore_CreateAndGet(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewPersonStore(db)
	ctx := context.Background()

	p, err := people.New("Ada", "Lovelace", "ada@example.com", time.Now())
	if err != nil {
		t.Fatalf("new person: %v", err)
	}
	if err := store.Create(ctx, p); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := store.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.FirstName != "Ada" || got.LastName != "Lovelace" || got.Email != "ada@example.com" {
		t.Errorf("unexpected person %+v", got)
	}

	if _, err := store.Get(ctx, "missing"); err != people.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPersonStore_List(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewPersonStore(db)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, name := range []string{"First", "Second", "Third"} {
		p, err := people.New(name, "", "", base.Add(time.Duration(i)*time.Minute))
		if err != nil {
			t.Fatalf("new person: %v", err)
		}
		if err := store.Create(ctx, p); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	list, err := store.List(ctx, 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 people, got %d", len(list))
	}
	if list[0].FirstName != "First" || list[2].FirstName != "Third" {
		t.Errorf("expected oldest first, got %s..%s", list[0].FirstName, list[2].FirstName)
	}

	limited, err := store.List(ctx, 2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("expected limit to apply, got %d", len(limited))
	}
}
