package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/foxseedlab/roomcall/internal/repository"
)

func TestNoopRepository(t *testing.T) {
	repo := NewNoopRepository()
	ctx := context.Background()
	if err := repo.StartReception(ctx, repository.StartReceptionInput{ID: "x", Kind: repository.ReceptionKindUnicast, StartedAt: time.Now()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.RecordSender(ctx, repository.RecordSenderInput{ReceptionID: "x", SSRC: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.EndReception(ctx, repository.EndReceptionInput{ReceptionID: "x", EndedAt: time.Now()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	list, err := repo.ListRecentReceptions(ctx, 10)
	if err != nil || len(list) != 0 {
		t.Fatalf("expected empty list, got %v, %v", list, err)
	}
}

func TestMigrationStatements_AreIdempotent(t *testing.T) {
	for _, stmt := range migrationStatements {
		if !containsAny(stmt, "IF NOT EXISTS", "duplicate_object") {
			t.Fatalf("migration statement is not idempotent: %s", stmt)
		}
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
