// Package artifacts keeps generated export files until they are downloaded:
// in process memory with a TTL, optionally archived to an S3 bucket.
package artifacts

import (
	"context"
	"time"

	"github.com/boddenberg/facture-btp-bfa/internal/domain"
	"github.com/boddenberg/facture-btp-bfa/internal/infra/cache"
	"github.com/boddenberg/facture-btp-bfa/internal/port"
)

// MemoryStore holds artifacts in a TTL cache.
type MemoryStore struct {
	cache *cache.InMemory[*domain.Artifact]
}

// NewMemoryStore keeps each artifact for ttl after it was stored.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{cache: cache.New[*domain.Artifact](ttl)}
}

func (m *MemoryStore) Put(_ context.Context, a *domain.Artifact) error {
	m.cache.Set(a.ID, a)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*domain.Artifact, error) {
	a, ok := m.cache.Get(id)
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "export", ID: id}
	}
	return a, nil
}

// Close stops the expiry loop.
func (m *MemoryStore) Close() {
	m.cache.Close()
}

// Tiered writes to both stores and reads from front first.
type Tiered struct {
	front port.ArtifactStore
	back  port.ArtifactStore
}

// NewTiered combines a fast front store with a durable back store.
func NewTiered(front, back port.ArtifactStore) *Tiered {
	return &Tiered{front: front, back: back}
}

// Put stores a in back, then front. A failed archive fails the put.
func (t *Tiered) Put(ctx context.Context, a *domain.Artifact) error {
	if err := t.back.Put(ctx, a); err != nil {
		return err
	}
	return t.front.Put(ctx, a)
}

func (t *Tiered) Get(ctx context.Context, id string) (*domain.Artifact, error) {
	if a, err := t.front.Get(ctx, id); err == nil {
		return a, nil
	}
	a, err := t.back.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	_ = t.front.Put(ctx, a)
	return a, nil
}
