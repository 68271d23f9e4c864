package memstore

import (
	"fmt"
	"time"

	"github.com/boddenberg/facture-btp-bfa/internal/domain"

	"github.com/shopspring/decimal"
)

var demoLines = []struct {
	description string
	quantity    float64
	amount      string
}{
	{"Maçonnerie mur de clôture", 12, "1840.00"},
	{"Fourniture parpaings 20x20x50", 300, "615.60"},
	{"Pose carrelage salle de bain", 8.5, "722.50"},
	{"Location mini-pelle (jour)", 3, "540.00"},
	{"Enduit façade", 45, "2137.50"},
	{"Plomberie raccordement évier", 1, "310.00"},
}

// demoFactures spreads a few factures over the last five weeks of now.
func demoFactures(ownerID string, now time.Time) []domain.Facture {
	today := domain.DateOf(now)
	out := make([]domain.Facture, 0, len(demoLines))
	for i, l := range demoLines {
		out = append(out, domain.Facture{
			Number:      fmt.Sprintf("FB-%s-%03d", today.Time().Format("2006"), i+1),
			Date:        today.AddDays(-i * 6),
			Description: l.description,
			Quantity:    l.quantity,
			TotalAmount: decimal.RequireFromString(l.amount),
			Imported:    i%3 == 2,
			UserID:      ownerID,
		})
	}
	return out
}
