package identity

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryAccountRepository_SetExternalIDMissingRow(t *testing.T) {
	repo := NewMemoryAccountRepository()
	err := repo.SetExternalID(context.Background(), "acct-999999", "ext-1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a mapping write to a missing row, got %v", err)
	}
}

func TestMemoryAccountRepository_SetExternalIDRecordsMapping(t *testing.T) {
	repo := NewMemoryAccountRepository()
	ctx := context.Background()
	a, err := repo.Insert(ctx, &Account{Name: "Acme", AdminEmail: "a@x.com"})
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	if err := repo.SetExternalID(ctx, a.ID, "ext-1"); err != nil {
		t.Fatalf("SetExternalID failed: %v", err)
	}
	got, err := repo.GetByExternalID(ctx, "ext-1")
	if err != nil || got == nil || got.ID != a.ID {
		t.Fatalf("mapping not persisted: row=%+v err=%v", got, err)
	}
}

func TestMemoryUserRepository_SetExternalIDMissingRow(t *testing.T) {
	repo := NewMemoryUserRepository()
	err := repo.SetExternalID(context.Background(), "user-999999", "ext-u1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a mapping write to a missing row, got %v", err)
	}
}

func TestMemoryUserRepository_SetExternalIDDuplicateInAccount(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()
	first, _ := repo.Insert(ctx, &User{AccountID: "acct-1", ExternalID: "ext-u1", Username: "a"})
	second, _ := repo.Insert(ctx, &User{AccountID: "acct-1", Username: "b"})

	err := repo.SetExternalID(ctx, second.ID, first.ExternalID)
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}
