// Package services – ShopService
//
// This file implements the cosmetics shop. Purchases are the only debits
// outside publishing and extensions; applying an item mutates the buyer's
// account (theme swap, badge grant, or boost inventory) within the same
// ledger transaction as the debit.
package services

import (
	"context"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/timelylabs/timely-backend/internal/domain"
	"github.com/timelylabs/timely-backend/internal/store"
)

// ShopService provides the item catalog and purchases.
type ShopService struct {
	// Ledger is the serialized document store.
	Ledger *store.Store
	// Econ holds the economy rule set.
	Econ domain.Economy
	// Now supplies the clock; tests override it.
	Now func() time.Time
}

// NewShopService constructs a ShopService with production defaults.
func NewShopService(ledger *store.Store, econ domain.Economy) *ShopService {
	return &ShopService{Ledger: ledger, Econ: econ, Now: time.Now}
}

// categoryTitle renders an apply-kind ("theme", "badge", "boost") as a
// display category.
var categoryTitle = cases.Title(language.English)

// defaultCatalog is the seeded shop inventory.
func defaultCatalog() []domain.ShopItem {
	item := func(id, kind, name, desc string, price int, value string) domain.ShopItem {
		return domain.ShopItem{
			ID:          id,
			Category:    categoryTitle.String(kind),
			Name:        name,
			Description: desc,
			Price:       price,
			Apply:       kind + ":" + value,
		}
	}
	return []domain.ShopItem{
		item("theme_ocean", "theme", "Ocean Theme", "Blue and teal palette", 10, "ocean"),
		item("theme_neon", "theme", "Neon Theme", "Fluorescent accents", 12, "neon"),
		item("badge_curator", "badge", "Curator Badge", "For supporters of other authors", 8, "Curator"),
		item("start_boost", "boost", "Start Boost +30", "New posts start with +30 min", 15, "start30"),
	}
}

// Seed writes the default catalog into the ledger if the shop is empty.
// Safe to call on every boot.
func (s *ShopService) Seed(ctx context.Context) error {
	return s.Ledger.Update(ctx, func(l *domain.Ledger) error {
		if len(l.Shop) == 0 {
			l.Shop = defaultCatalog()
		}
		return nil
	})
}

// Items returns the current catalog.
func (s *ShopService) Items(ctx context.Context) ([]domain.ShopItem, error) {
	var out []domain.ShopItem
	err := s.Ledger.View(ctx, func(l *domain.Ledger) error {
		out = append([]domain.ShopItem{}, l.Shop...)
		return nil
	})
	return out, err
}

// Buy debits the item price and applies its effect. Theme purchases switch
// the active theme, badge grants are idempotent per SKU, and boosts stack in
// the inventory until consumed by a publish. Reports whether the effect
// applied immediately (boosts apply later, on publish).
func (s *ShopService) Buy(ctx context.Context, username, itemID string) (applied bool, balance int, err error) {
	username, err = normalizeUsername(username)
	if err != nil {
		return false, 0, err
	}
	err = s.Ledger.Update(ctx, func(l *domain.Ledger) error {
		a := ensureAccount(l, username, s.Econ, s.Now())
		var item *domain.ShopItem
		for i := range l.Shop {
			if l.Shop[i].ID == itemID {
				item = &l.Shop[i]
				break
			}
		}
		if item == nil {
			return ErrItemNotFound
		}
		if a.Balance < item.Price {
			return ErrInsufficientFunds
		}
		a.Balance -= item.Price

		kind, value, _ := strings.Cut(item.Apply, ":")
		switch kind {
		case "theme":
			a.Theme = value
			applied = true
		case "badge":
			if !a.HasBadge(value) {
				a.Badges = append(a.Badges, value)
			}
			applied = true
		case "boost":
			a.Inventory = append(a.Inventory, value)
		}
		balance = a.Balance
		return nil
	})
	return applied, balance, err
}
