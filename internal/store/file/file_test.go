package file_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/mfigueredo/tokenbridge/internal/store"
	"github.com/mfigueredo/tokenbridge/internal/store/file"
)

func newStore(t *testing.T) *file.Store {
	t.Helper()
	return file.New(filepath.Join(t.TempDir(), "users.json"))
}

func TestMissingFileReadsEmpty(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	users, err := s.ListAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 0 {
		t.Fatalf("expected empty list, got %d", len(users))
	}
	if _, err := s.GetByID(ctx, "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateAndGet(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, store.User{UserID: "u1", Email: "a@b.com", Name: "Ana"})
	if err != nil {
		t.Fatal(err)
	}
	if created.CreatedAt.IsZero() {
		t.Fatal("CreatedAt not defaulted")
	}

	got, err := s.GetByID(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Email != "a@b.com" || got.Name != "Ana" {
		t.Fatalf("got %+v", got)
	}

	byEmail, err := s.GetByEmail(ctx, "a@b.com")
	if err != nil {
		t.Fatal(err)
	}
	if byEmail.UserID != "u1" {
		t.Fatalf("byEmail = %+v", byEmail)
	}
}

func TestCreateDuplicateID(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if _, err := s.Create(ctx, store.User{UserID: "u1", Email: "a@b.com"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Create(ctx, store.User{UserID: "u1", Email: "other@b.com"}); !errors.Is(err, store.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	ctx := context.Background()

	s1 := file.New(path)
	if _, err := s1.Create(ctx, store.User{UserID: "u1", Email: "a@b.com"}); err != nil {
		t.Fatal(err)
	}

	s2 := file.New(path)
	got, err := s2.GetByID(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Email != "a@b.com" {
		t.Fatalf("got %+v", got)
	}
}

func TestConcurrentCreates(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("u%d", i)
			if _, err := s.Create(ctx, store.User{UserID: id, Email: id + "@b.com"}); err != nil {
				t.Errorf("create %s: %v", id, err)
			}
		}(i)
	}
	wg.Wait()

	users, err := s.ListAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 20 {
		t.Fatalf("expected 20 users, got %d", len(users))
	}
}
