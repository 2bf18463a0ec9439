package identity

import (
	"context"
	"sync"
	"testing"
	"time"

	"shelf/cmd/internal/apperr"
	"shelf/cmd/internal/storage/storagetest"
)

func mustNewPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()

	pool := storagetest.OpenPool(t)
	schema := storagetest.MigratedSchema(t, pool)
	s, err := NewPostgresStore(pool, WithSchema(schema))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func TestPostgresStore_CreateUser_ConflictUsername_CaseInsensitive(t *testing.T) {
	t.Parallel()

	s := mustNewPostgresStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if _, err := s.CreateUser(ctx, CreateUserInput{Username: "Navid", PasswordHash: "h1"}); err != nil {
		t.Fatalf("create user 1: %v", err)
	}
	_, err := s.CreateUser(ctx, CreateUserInput{Username: "nAvId", PasswordHash: "h2"})
	if err == nil {
		t.Fatalf("expected conflict, got nil")
	}
	if !IsConflict(err) {
		t.Fatalf("expected conflict error, got: %v", err)
	}
}

func TestPostgresStore_UserByUsername_RoundTrip(t *testing.T) {
	t.Parallel()

	s := mustNewPostgresStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	created, err := s.CreateUser(ctx, CreateUserInput{Username: "reader", PasswordHash: "$argon2id$stub"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := s.UserByUsername(ctx, " READER ")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.ID != created.ID || got.PasswordHash != "$argon2id$stub" {
		t.Fatalf("unexpected user: %+v", got)
	}

	_, err = s.UserByUsername(ctx, "nobody")
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got: %v", err)
	}
}

func TestPostgresStore_ConcurrentRegistration_OneWins(t *testing.T) {
	t.Parallel()

	s := mustNewPostgresStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok, confl int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CreateUser(ctx, CreateUserInput{Username: "racer", PasswordHash: "h"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case IsConflict(err):
				confl++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok != 1 || confl != n-1 {
		t.Fatalf("expected 1 success and %d conflicts, got %d/%d", n-1, ok, confl)
	}
}
