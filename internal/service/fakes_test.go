package service_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/boddenberg/facture-btp-bfa/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const owner = "user-1"

func day(y int, m time.Month, d int) domain.Date {
	return domain.NewDate(y, m, d)
}

func facture(id int64, date domain.Date, amount string, imported bool) domain.Facture {
	return domain.Facture{
		ID:          id,
		Number:      "F-" + date.String(),
		Date:        date,
		Description: "Travaux",
		Quantity:    1,
		TotalAmount: decimal.RequireFromString(amount),
		Imported:    imported,
		UserID:      owner,
	}
}

// fakeStore filters an in-memory slice like the real store would.
// gate, when set, is called before answering and may block.
type fakeStore struct {
	mu       sync.Mutex
	factures []domain.Facture
	queryErr error
	markErr  error
	queries  []domain.FilterState
	marks    [][]int64
	gate     func(filter domain.FilterState)
}

func (s *fakeStore) QueryFactures(ctx context.Context, ownerID string, filter domain.FilterState) ([]domain.Facture, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.queries = append(s.queries, filter)
	gate := s.gate
	s.mu.Unlock()

	if gate != nil {
		gate(filter)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	var out []domain.Facture
	for _, f := range s.factures {
		if f.UserID != ownerID || !filter.Imported.Matches(f.Imported) || !filter.Range.Contains(f.Date) {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

func (s *fakeStore) MarkImported(_ context.Context, ownerID string, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.marks = append(s.marks, slices.Clone(ids))
	if s.markErr != nil {
		return s.markErr
	}
	for i := range s.factures {
		if s.factures[i].UserID == ownerID && slices.Contains(ids, s.factures[i].ID) {
			s.factures[i].Imported = true
		}
	}
	return nil
}

func (s *fakeStore) queryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queries)
}

func (s *fakeStore) markCalls() [][]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.marks)
}

func (s *fakeStore) setMarkErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markErr = err
}

func (s *fakeStore) setQueryErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queryErr = err
}

type exportCall struct {
	sheet   string
	columns []string
	rows    []map[string]string
}

type fakeExporter struct {
	mu    sync.Mutex
	err   error
	calls []exportCall
	block chan struct{}
}

func (e *fakeExporter) Export(_ context.Context, sheet string, columns []string, rows []map[string]string) (*domain.Artifact, error) {
	if e.block != nil {
		<-e.block
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.calls = append(e.calls, exportCall{sheet: sheet, columns: columns, rows: rows})
	if e.err != nil {
		return nil, e.err
	}
	return &domain.Artifact{
		ID:          uuid.NewString(),
		FileName:    domain.ExportFileName,
		ContentType: domain.XLSXContentType,
		Data:        []byte("xlsx"),
		CreatedAt:   time.Now(),
	}, nil
}

func (e *fakeExporter) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

type memArtifacts struct {
	mu    sync.Mutex
	items map[string]*domain.Artifact
}

func newMemArtifacts() *memArtifacts {
	return &memArtifacts{items: map[string]*domain.Artifact{}}
}

func (m *memArtifacts) Put(_ context.Context, a *domain.Artifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[a.ID] = a
	return nil
}

func (m *memArtifacts) Get(_ context.Context, id string) (*domain.Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.items[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "export", ID: id}
	}
	return a, nil
}

type fakeAuth struct {
	signInErr  error
	signUpErr  error
	signOutErr error
	signedOut  []string
}

func (a *fakeAuth) SignIn(_ context.Context, email, _ string) (*domain.Session, error) {
	if a.signInErr != nil {
		return nil, a.signInErr
	}
	return &domain.Session{AccessToken: "tok", UserID: owner, Email: email}, nil
}

func (a *fakeAuth) SignUp(context.Context, string, string) error { return a.signUpErr }

func (a *fakeAuth) SignOut(_ context.Context, token string) error {
	a.signedOut = append(a.signedOut, token)
	return a.signOutErr
}

func (a *fakeAuth) VerifyToken(token string) (*domain.Identity, error) {
	if token != "tok" {
		return nil, errors.New("bad signature")
	}
	return &domain.Identity{UserID: owner, Token: token}, nil
}
