package services

import (
	"context"
	"errors"
	"testing"

	"github.com/timelylabs/timely-backend/internal/domain"
)

func TestShopSeed_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.shop.Seed(ctx); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if err := f.shop.Seed(ctx); err != nil {
		t.Fatalf("Seed again: %v", err)
	}
	items, err := f.shop.Items(ctx)
	if err != nil || len(items) != 4 {
		t.Fatalf("Items after double seed: %d %v", len(items), err)
	}
}

func TestShopBuy_ThemeApplies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.shop.Seed(ctx); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	f.credit(t, "ada", 20)

	applied, balance, err := f.shop.Buy(ctx, "ada", "theme_ocean")
	if err != nil || !applied {
		t.Fatalf("Buy: applied=%v err=%v", applied, err)
	}
	if balance != 10 {
		t.Fatalf("balance = %d, want 10", balance)
	}
	err = f.ledger.View(ctx, func(l *domain.Ledger) error {
		if got := l.Accounts["ada"].Theme; got != "ocean" {
			t.Fatalf("theme = %q, want ocean", got)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
}

func TestShopBuy_BadgeNeverDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.shop.Seed(ctx); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	f.credit(t, "ada", 20)

	for i := 0; i < 2; i++ {
		if _, _, err := f.shop.Buy(ctx, "ada", "badge_curator"); err != nil {
			t.Fatalf("Buy %d: %v", i, err)
		}
	}
	err := f.ledger.View(ctx, func(l *domain.Ledger) error {
		a := l.Accounts["ada"]
		// The debit repeats but the badge does not.
		if len(a.Badges) != 1 || !a.HasBadge("Curator") {
			t.Fatalf("badges = %v", a.Badges)
		}
		if a.Balance != 4 {
			t.Fatalf("balance = %d, want 4 (20 - 2*8)", a.Balance)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
}

func TestShopBuy_BoostStacksInInventory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.shop.Seed(ctx); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	f.credit(t, "ada", 30)

	applied, _, err := f.shop.Buy(ctx, "ada", "start_boost")
	if err != nil {
		t.Fatalf("Buy: %v", err)
	}
	// Boosts apply later, on publish.
	if applied {
		t.Fatalf("boost reported as applied immediately")
	}
	if _, _, err := f.shop.Buy(ctx, "ada", "start_boost"); err != nil {
		t.Fatalf("Buy second boost: %v", err)
	}
	err = f.ledger.View(ctx, func(l *domain.Ledger) error {
		if got := l.Accounts["ada"].Inventory; len(got) != 2 {
			t.Fatalf("inventory = %v, want two boosts", got)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
}

func TestShopBuy_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.shop.Seed(ctx); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	if _, _, err := f.shop.Buy(ctx, "ada", "nope"); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("unknown item err = %v", err)
	}
	// Start balance of 5 cannot afford any catalog item.
	if _, _, err := f.shop.Buy(ctx, "ada", "theme_ocean"); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("poor buyer err = %v", err)
	}
}
