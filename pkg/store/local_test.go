package store

import (
	"path/filepath"
	"testing"
)

func openTestCart(t *testing.T) *LocalCart {
	t.Helper()
	cart, err := Open(filepath.Join(t.TempDir(), "local.db"))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	t.Cleanup(func() { _ = cart.Close() })
	return cart
}

func TestLocalCartAddAndList(t *testing.T) {
	cart := openTestCart(t)

	item, err := cart.Add(LocalItem{Name: "ARROZ TIO JOAO 5KG", PrecoAvulso: 2150})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if item.ID == "" {
		t.Fatalf("expected an assigned id")
	}
	if item.Quantity != 1 {
		t.Fatalf("expected default quantity 1, got %d", item.Quantity)
	}
	if item.AddedAt.IsZero() {
		t.Fatalf("expected a timestamp")
	}

	items, err := cart.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(items) != 1 || items[0].Name != "ARROZ TIO JOAO 5KG" {
		t.Fatalf("unexpected listing %+v", items)
	}
}

func TestLocalCartGetUpdateRemove(t *testing.T) {
	cart := openTestCart(t)

	item, err := cart.Add(LocalItem{Name: "CAFE PILAO 500G", PrecoAvulso: 1890, Quantity: 2})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}

	got, err := cart.Get(item.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Quantity != 2 || got.PrecoAvulso != 1890 {
		t.Fatalf("unexpected item %+v", got)
	}

	got.Quantity = 3
	if err := cart.Update(*got); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	again, err := cart.Get(item.ID)
	if err != nil {
		t.Fatalf("get after update failed: %v", err)
	}
	if again.Quantity != 3 {
		t.Fatalf("update did not stick, got %d", again.Quantity)
	}

	if err := cart.Update(LocalItem{ID: "missing"}); err == nil {
		t.Fatalf("updating a missing item must fail")
	}

	if err := cart.Remove(item.ID); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if _, err := cart.Get(item.ID); err == nil {
		t.Fatalf("removed item should not resolve")
	}
}

func TestLocalCartClear(t *testing.T) {
	cart := openTestCart(t)

	for _, name := range []string{"LEITE INTEGRAL 1L", "ACUCAR CRISTAL 1KG"} {
		if _, err := cart.Add(LocalItem{Name: name, PrecoAvulso: 500}); err != nil {
			t.Fatalf("add failed: %v", err)
		}
	}
	if err := cart.Clear(); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	items, err := cart.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected an empty cart, got %d items", len(items))
	}

	// The bucket survives a clear.
	if _, err := cart.Add(LocalItem{Name: "SAL REFINADO 1KG", PrecoAvulso: 299}); err != nil {
		t.Fatalf("add after clear failed: %v", err)
	}
}
