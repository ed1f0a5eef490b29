package mapper

import (
	"strings"
	"time"

	"github.com/dmitrijs2005/autoledger/internal/client/models"
	"github.com/shopspring/decimal"
)

// Normalize returns f with fields that do not apply to kind cleared, the
// date truncated to a UTC calendar day, cost rounded to cents and text
// trimmed.
func Normalize(kind models.Kind, f models.ExpenseFields) models.ExpenseFields {
	if !f.Date.IsZero() {
		y, m, d := f.Date.Date()
		f.Date = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	f.Cost = f.Cost.Round(2)
	f.Description = strings.TrimSpace(f.Description)
	f.Notes = strings.TrimSpace(f.Notes)

	if !kind.HasFuelFields() {
		f.Liters = decimal.NullDecimal{}
		f.FillToFull = nil
		f.MissedFill = nil
	}
	if !kind.HasRecurring() {
		f.Recurring = nil
	}
	return f
}
