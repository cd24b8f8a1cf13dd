package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Glassolution/berry/internal/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "berry.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestKV(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	if _, ok, err := db.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing) = ok %v, err %v", ok, err)
	}

	if err := db.Set(ctx, "k", `[1]`); err != nil {
		t.Fatal(err)
	}
	if err := db.Set(ctx, "k", `[1,2]`); err != nil {
		t.Fatal(err)
	}
	v, ok, err := db.Get(ctx, "k")
	if err != nil || !ok || v != `[1,2]` {
		t.Fatalf("Get(k) = %q %v %v", v, ok, err)
	}

	if err := db.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := db.Get(ctx, "k"); ok {
		t.Fatal("key still present after delete")
	}
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "berry.db")

	db, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Set(ctx, "meals", `[]`); err != nil {
		t.Fatal(err)
	}
	db.Close()

	db, err = New(path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if v, ok, _ := db.Get(ctx, "meals"); !ok || v != `[]` {
		t.Fatalf("after reopen got %q ok=%v", v, ok)
	}
}

func TestSubscribers(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	if s, err := db.GetSubscriber(ctx, 42); err != nil || s != nil {
		t.Fatalf("GetSubscriber on empty table = %v, %v", s, err)
	}

	if err := db.UpsertSubscriber(ctx, &models.Subscriber{ChatID: 42, TZ: "UTC"}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertSubscriber(ctx, &models.Subscriber{ChatID: 42, TZ: "America/Sao_Paulo"}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertSubscriber(ctx, &models.Subscriber{ChatID: 7, TZ: "UTC"}); err != nil {
		t.Fatal(err)
	}

	s, err := db.GetSubscriber(ctx, 42)
	if err != nil || s == nil {
		t.Fatalf("GetSubscriber: %v %v", s, err)
	}
	if s.TZ != "America/Sao_Paulo" || s.CreatedAt == 0 {
		t.Errorf("unexpected subscriber %+v", s)
	}

	list, err := db.ListSubscribers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("want 2 subscribers, got %d", len(list))
	}

	if err := db.DeleteSubscriber(ctx, 42); err != nil {
		t.Fatal(err)
	}
	list, _ = db.ListSubscribers(ctx)
	if len(list) != 1 || list[0].ChatID != 7 {
		t.Fatalf("after delete: %+v", list)
	}
}
