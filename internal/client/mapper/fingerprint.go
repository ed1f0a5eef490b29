package mapper

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/autoledger/internal/client/models"
)

const fieldSep = "|"

// Fingerprint returns the SHA-256 hex digest of the kind and the business
// fields relevant to it. Fields that do not apply to kind are ignored.
func Fingerprint(kind models.Kind, f models.ExpenseFields) string {
	f = Normalize(kind, f)

	parts := []string{
		string(kind),
		f.Date.Format(models.DateLayout),
		f.Cost.StringFixed(2),
		formatOdometer(f.Odometer),
		f.Description,
		f.Notes,
		"",
		"",
		"",
		"",
	}

	if kind.HasFuelFields() {
		if f.Liters.Valid {
			parts[6] = f.Liters.Decimal.String()
		}
		parts[7] = strconv.FormatBool(deref(f.FillToFull))
		parts[8] = strconv.FormatBool(deref(f.MissedFill))
	}
	if kind.HasRecurring() {
		parts[9] = strconv.FormatBool(deref(f.Recurring))
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, fieldSep)))
	return hex.EncodeToString(sum[:])
}

// ExpenseFingerprint fingerprints the current local content of e.
func ExpenseFingerprint(e *models.Expense) string {
	return Fingerprint(e.Kind, e.ExpenseFields)
}

// RemoteFingerprint fingerprints a remote snapshot.
func RemoteFingerprint(r models.RemoteExpense) string {
	return Fingerprint(r.Kind, r.ExpenseFields)
}

func formatOdometer(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func deref(b *bool) bool {
	return b != nil && *b
}
