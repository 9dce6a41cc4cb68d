package order

import (
	"context"
	"errors"
	"testing"

	"fulfillmentservice/internal/domain"
	"fulfillmentservice/internal/platform/database/dbtest"
)

func TestGormStore_CreateAndFind(t *testing.T) {
	store := NewGormStore(dbtest.Open(t))
	ctx := context.Background()

	order := &domain.Order{ID: "O1", Items: []domain.OrderItem{
		{ID: "I1", OrderID: "O1", ProductID: "P1", Quantity: 2, Status: domain.ItemUnfulfilled},
		{ID: "I2", OrderID: "O1", ProductID: "P2", Quantity: 1, Status: domain.ItemUnfulfilled},
	}}
	if err := store.Create(ctx, order); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	found, err := store.FindByID(ctx, "O1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(found.Items) != 2 {
		t.Errorf("expected 2 items, got %d", len(found.Items))
	}

	if _, err := store.FindByID(ctx, "missing"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestGormStore_FindItemsAndUpdateStatus(t *testing.T) {
	store := NewGormStore(dbtest.Open(t))
	ctx := context.Background()

	for _, o := range []*domain.Order{
		{ID: "O1", Items: []domain.OrderItem{
			{ID: "I1", OrderID: "O1", ProductID: "P1", Quantity: 2, Status: domain.ItemUnfulfilled},
			{ID: "I2", OrderID: "O1", ProductID: "P2", Quantity: 1, Status: domain.ItemUnfulfilled},
		}},
		{ID: "O2", Items: []domain.OrderItem{
			{ID: "I3", OrderID: "O2", ProductID: "P1", Quantity: 5, Status: domain.ItemUnfulfilled},
		}},
	} {
		if err := store.Create(ctx, o); err != nil {
			t.Fatal(err)
		}
	}

	items, err := store.FindItems(ctx, "O1", []string{"P1", "P3"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 || items[0].ID != "I1" {
		t.Errorf("expected only I1, got %+v", items)
	}

	if err := store.UpdateItemStatus(ctx, "O1", "P1", domain.ItemFulfilled); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	o1, _ := store.FindByID(ctx, "O1")
	for _, item := range o1.Items {
		want := domain.ItemUnfulfilled
		if item.ProductID == "P1" {
			want = domain.ItemFulfilled
		}
		if item.Status != want {
			t.Errorf("item %s: expected %s, got %s", item.ID, want, item.Status)
		}
	}

	o2, _ := store.FindByID(ctx, "O2")
	if o2.Items[0].Status != domain.ItemUnfulfilled {
		t.Error("items of other orders must not change")
	}
}
