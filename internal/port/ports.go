// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/boddenberg/facture-btp-bfa/internal/domain"
)

// FactureStore reads and updates the facture_btp table. Every call is scoped
// to ownerID; implementations must never return or touch another owner's rows.
type FactureStore interface {
	QueryFactures(ctx context.Context, ownerID string, filter domain.FilterState) ([]domain.Facture, error)
	// MarkImported sets importe=true on ids in a single round trip.
	MarkImported(ctx context.Context, ownerID string, ids []int64) error
}

// AuthProvider is the identity backend (Supabase GoTrue or the dev store).
type AuthProvider interface {
	SignIn(ctx context.Context, email, password string) (*domain.Session, error)
	SignUp(ctx context.Context, email, password string) error
	SignOut(ctx context.Context, accessToken string) error
	VerifyToken(accessToken string) (*domain.Identity, error)
}

// SpreadsheetExporter turns ordered rows into a downloadable workbook.
// A failure must not leave a partial artifact behind.
type SpreadsheetExporter interface {
	Export(ctx context.Context, sheet string, columns []string, rows []map[string]string) (*domain.Artifact, error)
}

// ArtifactStore keeps generated files until they are downloaded.
type ArtifactStore interface {
	Put(ctx context.Context, a *domain.Artifact) error
	Get(ctx context.Context, id string) (*domain.Artifact, error)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
