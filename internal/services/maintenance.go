// Package services – MaintenanceService
//
// This file implements the maintenance pass: the settlement sweep followed
// by challenge finalization, in one ledger transaction. Settlement runs
// first so a finalization time bonus can never resurrect a post that already
// expired. The pass is invoked opportunistically by request paths and by the
// background scheduler; it is safe to run redundantly in rapid succession —
// settled posts are gone and finalized challenges are flagged, so nothing
// pays twice.
package services

import (
	"context"
	"time"

	"github.com/timelylabs/timely-backend/internal/domain"
	"github.com/timelylabs/timely-backend/internal/store"
)

// MaintenanceService runs the periodic settlement and finalization pass.
type MaintenanceService struct {
	// Ledger is the serialized document store.
	Ledger *store.Store
	// Econ holds the economy rule set.
	Econ domain.Economy
	// Now supplies the clock; tests override it.
	Now func() time.Time
}

// NewMaintenanceService constructs a MaintenanceService with production
// defaults.
func NewMaintenanceService(ledger *store.Store, econ domain.Economy) *MaintenanceService {
	return &MaintenanceService{Ledger: ledger, Econ: econ, Now: time.Now}
}

// Result reports what a maintenance pass did.
type Result struct {
	PostsSettled        int `json:"posts_settled"`
	ChallengesFinalized int `json:"challenges_finalized"`
}

// Run executes one maintenance pass.
func (s *MaintenanceService) Run(ctx context.Context) (Result, error) {
	var res Result
	err := s.Ledger.Update(ctx, func(l *domain.Ledger) error {
		now := s.Now()
		res.PostsSettled = settleAndPrune(l, s.Econ, now)
		res.ChallengesFinalized = finalizeDue(l, s.Econ, now)
		return nil
	})
	return res, err
}
