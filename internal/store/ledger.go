// Package store — ledger document storage and the write serializer.
//
// The ledger is one shared mutable document with no row-level isolation, so
// every read-modify-write cycle must run end-to-end in mutual exclusion.
// Store owns that critical section: Update and View hold a single mutex
// across load → mutate → save, which makes redundant maintenance passes and
// overlapping requests safe by construction. Callers that need bounded
// latency should wrap calls with their own context deadline.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/timelylabs/timely-backend/internal/domain"
)

// ledgerRowID is the primary key of the single snapshot row.
const ledgerRowID = 1

// LedgerRecord is the GORM model holding the serialized ledger document.
type LedgerRecord struct {
	ID        int       `gorm:"primaryKey"`
	Doc       []byte    `gorm:"type:BLOB NOT NULL"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName implements the GORM tabler interface.
func (LedgerRecord) TableName() string { return "ledger_snapshots" }

// Store serializes all access to the persisted ledger document.
type Store struct {
	db *gorm.DB
	mu chan struct{} // capacity-1 semaphore: context-aware mutex
}

// Open opens the SQLite database at path, migrates the schema, and returns
// a ready Store.
func Open(path string) (*Store, error) {
	db, err := OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	return New(db)
}

// New wraps an existing GORM handle (used by tests with in-memory SQLite).
func New(db *gorm.DB) (*Store, error) {
	if err := AutoMigrate(db); err != nil {
		return nil, err
	}
	s := &Store{db: db, mu: make(chan struct{}, 1)}
	return s, nil
}

// DB exposes the underlying handle for sibling tables (idempotency records).
func (s *Store) DB() *gorm.DB { return s.db }

// acquire takes the write lock, or gives up when ctx expires first. Callers
// that impose a deadline receive ErrBusy and should surface a retry hint.
var ErrBusy = errors.New("ledger busy")

func (s *Store) acquire(ctx context.Context) error {
	select {
	case s.mu <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ErrBusy
	}
}

func (s *Store) release() { <-s.mu }

// Update runs fn on the current ledger inside the critical section and, when
// fn succeeds, persists the mutated document atomically. When fn returns an
// error nothing is saved, so a failed operation never partially applies.
func (s *Store) Update(ctx context.Context, fn func(l *domain.Ledger) error) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	l, err := s.load(ctx)
	if err != nil {
		return err
	}
	if err := fn(l); err != nil {
		return err
	}
	return s.save(ctx, l)
}

// View runs fn on a freshly loaded ledger under the same lock as Update but
// never persists. Use it only for operations that are pure reads; anything
// that may lazily create an account or sweep expired posts must use Update.
func (s *Store) View(ctx context.Context, fn func(l *domain.Ledger) error) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	l, err := s.load(ctx)
	if err != nil {
		return err
	}
	return fn(l)
}

// load reads and decodes the snapshot row, returning an empty ledger when
// none exists yet.
func (s *Store) load(ctx context.Context) (*domain.Ledger, error) {
	var rec LedgerRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", ledgerRowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.NewLedger(), nil
	}
	if err != nil {
		return nil, err
	}
	l := domain.NewLedger()
	if err := json.Unmarshal(rec.Doc, l); err != nil {
		return nil, err
	}
	if l.Accounts == nil {
		l.Accounts = make(map[string]*domain.Account)
	}
	return l, nil
}

// save encodes the ledger and replaces the whole snapshot row.
func (s *Store) save(ctx context.Context, l *domain.Ledger) error {
	doc, err := json.Marshal(l)
	if err != nil {
		return err
	}
	rec := LedgerRecord{ID: ledgerRowID, Doc: doc}
	return s.db.WithContext(ctx).Save(&rec).Error
}
