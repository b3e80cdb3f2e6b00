package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/timelylabs/timely-backend/internal/domain"
	"github.com/timelylabs/timely-backend/internal/store"
)

// fixture bundles every service over one in-memory ledger with a settable
// test clock.
type fixture struct {
	ledger     *store.Store
	accounts   *AccountService
	posts      *PostService
	challenges *ChallengeService
	shop       *ShopService
	maint      *MaintenanceService
	now        time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())
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

	f := &fixture{
		ledger: s,
		now:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	econ := domain.DefaultEconomy()
	clock := func() time.Time { return f.now }

	f.accounts = NewAccountService(s, econ)
	f.accounts.Now = clock
	f.posts = NewPostService(s, econ)
	f.posts.Now = clock
	f.challenges = NewChallengeService(s, econ)
	f.challenges.Now = clock
	f.shop = NewShopService(s, econ)
	f.shop.Now = clock
	f.maint = NewMaintenanceService(s, econ)
	f.maint.Now = clock
	return f
}

// advance moves the test clock forward.
func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

// balance reads a user's current balance straight from the ledger.
func (f *fixture) balance(t *testing.T, user string) int {
	t.Helper()
	var out int
	err := f.ledger.View(context.Background(), func(l *domain.Ledger) error {
		a := l.Accounts[user]
		if a == nil {
			t.Fatalf("no account %q", user)
		}
		out = a.Balance
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	return out
}

// credit tops up a user's balance directly, outside the earn cap.
func (f *fixture) credit(t *testing.T, user string, amount int) {
	t.Helper()
	err := f.ledger.Update(context.Background(), func(l *domain.Ledger) error {
		a := l.Accounts[user]
		if a == nil {
			a = &domain.Account{Username: user, CreatedAt: f.now}
			l.Accounts[user] = a
		}
		a.Balance += amount
		return nil
	})
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
}

// publish creates a post for author and returns its id.
func (f *fixture) publish(t *testing.T, author, content string) string {
	t.Helper()
	view, _, err := f.posts.Publish(context.Background(), author, content, "")
	if err != nil {
		t.Fatalf("publish for %s: %v", author, err)
	}
	return view.ID
}
