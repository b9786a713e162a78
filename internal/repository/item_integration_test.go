//go:build integration

package repository

import (
	"testing"

	"github.com/itemdesk/itemdesk/internal/testutil"
)

// ============================================================================
// Item Repository Integration Tests
// ============================================================================

func TestIntegrationItemRepository_CreateItem(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)

	owner := testutil.NewTestUser(t, "owner")
	if err := repo.CreateUser(ctx, owner); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	item := testutil.NewTestItem(t, owner.ID, "Widget")
	item.Price = "10.5"
	if err := repo.CreateItem(ctx, item); err != nil {
		t.Fatalf("CreateItem failed: %v", err)
	}

	if item.ID == 0 {
		t.Error("ID should be assigned by the database")
	}
	if item.CreatedAt.IsZero() {
		t.Error("CreatedAt should default server-side")
	}
	if item.Price != "10.50" {
		t.Errorf("Price should be stored as NUMERIC(10,2), got %q", item.Price)
	}
}

func TestIntegrationItemRepository_ListNewestFirst(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)

	owner := testutil.NewTestUser(t, "lister")
	if err := repo.CreateUser(ctx, owner); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	for _, name := range []string{"first", "second", "third"} {
		if err := repo.CreateItem(ctx, testutil.NewTestItem(t, owner.ID, name)); err != nil {
			t.Fatalf("CreateItem(%s) failed: %v", name, err)
		}
	}

	items, err := repo.ListItemsByOwner(ctx, owner.ID)
	if err != nil {
		t.Fatalf("ListItemsByOwner failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[0].Name != "third" || items[2].Name != "first" {
		t.Errorf("expected newest first, got %s..%s", items[0].Name, items[2].Name)
	}
	if !items[0].IsOwnedBy(owner.ID) {
		t.Error("listed item should reference its owner")
	}
}

func TestIntegrationItemRepository_ListScopedToOwner(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)

	alice := testutil.NewTestUser(t, "alice")
	bob := testutil.NewTestUser(t, "bob")
	if err := repo.CreateUser(ctx, alice); err != nil {
		t.Fatalf("CreateUser(alice) failed: %v", err)
	}
	if err := repo.CreateUser(ctx, bob); err != nil {
		t.Fatalf("CreateUser(bob) failed: %v", err)
	}

	if err := repo.CreateItem(ctx, testutil.NewTestItem(t, alice.ID, "alice-item")); err != nil {
		t.Fatalf("CreateItem failed: %v", err)
	}

	items, err := repo.ListItemsByOwner(ctx, bob.ID)
	if err != nil {
		t.Fatalf("ListItemsByOwner failed: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("bob should not see alice's items, got %d", len(items))
	}
}
