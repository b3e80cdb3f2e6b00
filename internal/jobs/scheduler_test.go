package jobs

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/timelylabs/timely-backend/internal/domain"
	"github.com/timelylabs/timely-backend/internal/services"
	"github.com/timelylabs/timely-backend/internal/store"
)

func newTestMaint(t *testing.T) (*services.MaintenanceService, *store.Store) {
	t.Helper()
	dsn := fmt.Sprintf("file:jobs_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	s, err := store.New(db)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	return services.NewMaintenanceService(s, domain.DefaultEconomy()), s
}

func TestScheduler_RunOnceSettlesExpiredPosts(t *testing.T) {
	maint, s := newTestMaint(t)

	// An already expired post with enough backing to pay out.
	now := time.Now().UTC()
	err := s.Update(context.Background(), func(l *domain.Ledger) error {
		l.Accounts["grace"] = &domain.Account{Username: "grace", CreatedAt: now}
		l.Accounts["linus"] = &domain.Account{Username: "linus", CreatedAt: now}
		l.Posts = append(l.Posts, &domain.Post{
			ID:        "p1",
			Author:    "ada",
			Content:   "gone",
			CreatedAt: now.Add(-48 * time.Hour),
			ExpiresAt: now.Add(-time.Hour),
			Extensions: []domain.Extension{
				{By: "grace", Amount: 4, At: now.Add(-47 * time.Hour)},
				{By: "linus", Amount: 4, At: now.Add(-46 * time.Hour)},
			},
		})
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	sched, err := NewScheduler(maint, time.Hour, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	sched.runOnce()

	err = s.View(context.Background(), func(l *domain.Ledger) error {
		if l.Post("p1") != nil {
			t.Fatalf("expired post not settled")
		}
		if got := l.Accounts["grace"].Balance; got != 1 {
			t.Fatalf("grace payout = %d, want 1", got)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
}

func TestScheduler_StartStop(t *testing.T) {
	maint, _ := newTestMaint(t)
	sched, err := NewScheduler(maint, time.Hour, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	sched.Start()
	sched.Stop()
}
