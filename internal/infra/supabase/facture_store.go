package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/boddenberg/facture-btp-bfa/internal/domain"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// DefaultFactureTable is the PostgREST table holding factures.
const DefaultFactureTable = "facture_btp"

// FactureStore implements port.FactureStore over PostgREST.
type FactureStore struct {
	client *Client
	table  string
}

// NewFactureStore creates a store reading and updating table.
func NewFactureStore(client *Client, table string) *FactureStore {
	if table == "" {
		table = DefaultFactureTable
	}
	return &FactureStore{client: client, table: table}
}

// factureRow maps facture_btp columns. Every column but id, date and owner
// is nullable.
type factureRow struct {
	ID           int64               `json:"id"`
	NFacture     *string             `json:"nfacture"`
	DateFacture  domain.Date         `json:"date_facture"`
	Description  *string             `json:"description"`
	Quantite     *float64            `json:"quantite"`
	MontantTotal decimal.NullDecimal `json:"montant_total"`
	Importe      *bool               `json:"importe"`
	URLFacture   *string             `json:"url_facture"`
	UserID       string              `json:"user_id"`
}

func (r factureRow) toDomain() domain.Facture {
	f := domain.Facture{
		ID:          r.ID,
		Number:      deref(r.NFacture),
		Date:        r.DateFacture,
		Description: deref(r.Description),
		TotalAmount: decimal.Zero,
		URL:         deref(r.URLFacture),
		UserID:      r.UserID,
	}
	if r.Quantite != nil {
		f.Quantity = *r.Quantite
	}
	if r.MontantTotal.Valid {
		f.TotalAmount = r.MontantTotal.Decimal
	}
	if r.Importe != nil {
		f.Imported = *r.Importe
	}
	return f
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// QueryFactures lists the owner's factures matching filter, newest first.
func (s *FactureStore) QueryFactures(ctx context.Context, ownerID string, filter domain.FilterState) ([]domain.Facture, error) {
	ctx, span := tracer.Start(ctx, "Supabase.QueryFactures")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", ownerID))

	var factures []domain.Facture
	err := s.client.call(ctx, "supabase/factures", func() error {
		body, err := s.client.doRequest(ctx, http.MethodGet, s.queryPath(ownerID, filter))
		if err != nil {
			return err
		}
		if len(body) == 0 {
			factures = []domain.Facture{}
			return nil
		}

		var rows []factureRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode factures: %w", err)
		}

		factures = make([]domain.Facture, 0, len(rows))
		for _, r := range rows {
			factures = append(factures, r.toDomain())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("factures.count", len(factures)))
	return factures, nil
}

// MarkImported sets importe=true on all ids with a single PATCH.
func (s *FactureStore) MarkImported(ctx context.Context, ownerID string, ids []int64) error {
	ctx, span := tracer.Start(ctx, "Supabase.MarkImported")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", ownerID),
		attribute.Int("factures.count", len(ids)),
	)

	if len(ids) == 0 {
		return nil
	}

	q := url.Values{}
	q.Set("user_id", "eq."+ownerID)
	q.Set("id", "in.("+joinIDs(ids)+")")
	path := s.table + "?" + q.Encode()

	err := s.client.call(ctx, "supabase/factures", func() error {
		return s.client.doPatch(ctx, path, map[string]any{"importe": true})
	})
	if err != nil {
		return err
	}

	s.client.logger.Info("factures marked imported",
		zap.String("user_id", ownerID),
		zap.Int("count", len(ids)),
	)
	return nil
}

func (s *FactureStore) queryPath(ownerID string, filter domain.FilterState) string {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("user_id", "eq."+ownerID)
	if v, ok := filter.Imported.Value(); ok {
		q.Set("importe", "eq."+strconv.FormatBool(v))
	}
	if !filter.Range.Start.IsZero() {
		q.Add("date_facture", "gte."+filter.Range.Start.String())
	}
	if !filter.Range.End.IsZero() {
		q.Add("date_facture", "lte."+filter.Range.End.String())
	}
	q.Set("order", "date_facture.desc,id.desc")
	return s.table + "?" + q.Encode()
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
