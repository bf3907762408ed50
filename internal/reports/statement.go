package reports

import (
	"fmt"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/weblate/abrechnung/internal/groups"
	"github.com/weblate/abrechnung/internal/money"
	"github.com/weblate/abrechnung/internal/transactions"
)

type StatementItem struct {
	ID                     int64   `json:"id"`
	Type                   string  `json:"type"` // purchase/transfer
	Description            string  `json:"description"`
	Value                  float64 `json:"value"`
	CurrencySymbol         string  `json:"currency_symbol"`
	CurrencyConversionRate float64 `json:"currency_conversion_rate"`
	// value in the group currency
	ConvertedCents int64 `json:"converted_cents"`
	Creditors      int   `json:"creditors"`
	Debitors       int   `json:"debitors"`
}

type Statement struct {
	GroupID        int64           `json:"group_id"`
	GroupName      string          `json:"group_name"`
	CurrencySymbol string          `json:"currency_symbol"`
	GeneratedAt    time.Time       `json:"generated_at"`
	Items          []StatementItem `json:"items"`
	TotalCents     int64           `json:"total_cents"`
	// uncommitted transactions left out of the statement
	Pending int `json:"pending"`
}

// Build lists the committed transactions of g in id order.
func Build(g groups.Group, txs []transactions.Transaction, now time.Time) (Statement, error) {
	s := Statement{
		GroupID:        g.ID,
		GroupName:      g.Name,
		CurrencySymbol: g.CurrencySymbol,
		GeneratedAt:    now,
		Items:          []StatementItem{},
	}

	for _, t := range txs {
		if !t.Committed {
			s.Pending++
			continue
		}
		converted, err := money.Convert(t.Value, t.CurrencyConversionRate)
		if err != nil {
			return Statement{}, fmt.Errorf("transaction %d: %w", t.ID, err)
		}
		s.Items = append(s.Items, StatementItem{
			ID:                     t.ID,
			Type:                   t.Type,
			Description:            t.Description,
			Value:                  t.Value,
			CurrencySymbol:         t.CurrencySymbol,
			CurrencyConversionRate: t.CurrencyConversionRate,
			ConvertedCents:         converted,
			Creditors:              len(t.CreditorShares),
			Debitors:               len(t.DebitorShares),
		})
		s.TotalCents += converted
	}

	sort.Slice(s.Items, func(i, j int) bool { return s.Items[i].ID < s.Items[j].ID })
	return s, nil
}

func (h *Handler) Statement(c *fiber.Ctx) error {
	_, s, err := h.load(c)
	if err != nil {
		return err
	}
	return c.JSON(s)
}
