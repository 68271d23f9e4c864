// Package memstore is an in-process backend for local development and
// tests. It stands in for Supabase: an owner-scoped facture table and an
// email/password identity service issuing HS256 access tokens.
package memstore

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/boddenberg/facture-btp-bfa/internal/domain"

	"go.uber.org/zap"
)

// Store implements port.FactureStore and port.AuthProvider in memory.
type Store struct {
	mu       sync.RWMutex
	factures []domain.Facture
	nextID   int64
	users    map[string]*user // by email
	revoked  map[string]struct{}

	auth   authConfig
	seed   bool
	logger *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithSeed gives every new account a set of demo factures.
func WithSeed() Option {
	return func(s *Store) { s.seed = true }
}

// New creates an empty store signing tokens with jwtSecret.
func New(jwtSecret string, logger *zap.Logger, opts ...Option) *Store {
	s := &Store{
		nextID:  1,
		users:   make(map[string]*user),
		revoked: make(map[string]struct{}),
		auth:    newAuthConfig(jwtSecret),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Insert adds factures, assigning ids to those without one.
func (s *Store) Insert(factures ...domain.Facture) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range factures {
		if f.ID == 0 {
			f.ID = s.nextID
		}
		if f.ID >= s.nextID {
			s.nextID = f.ID + 1
		}
		s.factures = append(s.factures, f)
	}
}

// QueryFactures returns ownerID's factures matching filter, newest first.
func (s *Store) QueryFactures(ctx context.Context, ownerID string, filter domain.FilterState) ([]domain.Facture, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Facture, 0)
	for _, f := range s.factures {
		if f.UserID != ownerID {
			continue
		}
		if !filter.Imported.Matches(f.Imported) || !filter.Range.Contains(f.Date) {
			continue
		}
		out = append(out, f)
	}
	slices.SortStableFunc(out, func(a, b domain.Facture) int {
		if c := b.Date.Time().Compare(a.Date.Time()); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out, nil
}

// MarkImported flips importe on ownerID's factures in ids.
func (s *Store) MarkImported(ctx context.Context, ownerID string, ids []int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for i := range s.factures {
		if s.factures[i].UserID == ownerID && slices.Contains(ids, s.factures[i].ID) {
			s.factures[i].Imported = true
			n++
		}
	}
	s.logger.Debug("memstore: factures marked imported",
		zap.String("user_id", ownerID),
		zap.Int("requested", len(ids)),
		zap.Int("updated", n),
	)
	return nil
}
