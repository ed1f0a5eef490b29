package mapper

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/autoledger/internal/client/models"
	"github.com/shopspring/decimal"
)

// Wire form field names.
const (
	FieldVehicleID   = "vehicleId"
	FieldDate        = "date"
	FieldCost        = "cost"
	FieldOdometer    = "odometer"
	FieldDescription = "description"
	FieldNotes       = "notes"
	FieldLiters      = "fuelConsumed"
	FieldFillToFull  = "isFillToFull"
	FieldMissedFill  = "missedFuelUp"
	FieldRecurring   = "isRecurring"
)

// Scalar is a JSON value the remote may send as a string, a number or a
// boolean. It keeps the textual form; null and "" are both empty.
type Scalar string

func (s *Scalar) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = Scalar(strings.TrimSpace(v))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*s = Scalar(n.String())
		return nil
	}
	var v bool
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("unsupported scalar %s", string(b))
	}
	*s = Scalar(strconv.FormatBool(v))
	return nil
}

// WireRecord is one expense record as returned by the remote list endpoints.
type WireRecord struct {
	ID          Scalar `json:"id"`
	Date        Scalar `json:"date"`
	Cost        Scalar `json:"cost"`
	Odometer    Scalar `json:"odometer"`
	Description Scalar `json:"description"`
	Notes       Scalar `json:"notes"`
	Liters      Scalar `json:"fuelConsumed"`
	FillToFull  Scalar `json:"isFillToFull"`
	MissedFill  Scalar `json:"missedFuelUp"`
	Recurring   Scalar `json:"isRecurring"`
}

// ToForm encodes fields as the form body of a remote create call: ISO dates,
// two-decimal amounts and "true"/"false" booleans.
func ToForm(kind models.Kind, vehicleID int64, fields models.ExpenseFields) url.Values {
	f := Normalize(kind, fields)

	v := url.Values{}
	v.Set(FieldVehicleID, strconv.FormatInt(vehicleID, 10))
	v.Set(FieldDate, f.Date.Format(models.DateLayout))
	v.Set(FieldCost, f.Cost.StringFixed(2))
	v.Set(FieldOdometer, formatOdometer(f.Odometer))
	v.Set(FieldDescription, f.Description)
	v.Set(FieldNotes, f.Notes)

	if kind.HasFuelFields() {
		liters := ""
		if f.Liters.Valid {
			liters = f.Liters.Decimal.String()
		}
		v.Set(FieldLiters, liters)
		v.Set(FieldFillToFull, strconv.FormatBool(deref(f.FillToFull)))
		v.Set(FieldMissedFill, strconv.FormatBool(deref(f.MissedFill)))
	}
	if kind.HasRecurring() {
		v.Set(FieldRecurring, strconv.FormatBool(deref(f.Recurring)))
	}
	return v
}

// FromWire converts a fetched record of the given kind into a snapshot.
func FromWire(kind models.Kind, vehicleID int64, w WireRecord) (models.RemoteExpense, error) {
	id, err := strconv.ParseInt(string(w.ID), 10, 64)
	if err != nil {
		return models.RemoteExpense{}, fmt.Errorf("invalid record id %q: %w", w.ID, err)
	}

	date, err := ParseDate(string(w.Date))
	if err != nil {
		return models.RemoteExpense{}, fmt.Errorf("record %d: %w", id, err)
	}

	cost := decimal.Zero
	if w.Cost != "" {
		cost, err = decimal.NewFromString(string(w.Cost))
		if err != nil {
			return models.RemoteExpense{}, fmt.Errorf("record %d: invalid cost %q: %w", id, w.Cost, err)
		}
	}

	f := models.ExpenseFields{
		Date:        date,
		Cost:        cost,
		Description: string(w.Description),
		Notes:       string(w.Notes),
	}

	if w.Odometer != "" {
		odo, err := parseOdometer(string(w.Odometer))
		if err != nil {
			return models.RemoteExpense{}, fmt.Errorf("record %d: invalid odometer %q: %w", id, w.Odometer, err)
		}
		f.Odometer = &odo
	}

	if kind.HasFuelFields() {
		if w.Liters != "" {
			l, err := decimal.NewFromString(string(w.Liters))
			if err != nil {
				return models.RemoteExpense{}, fmt.Errorf("record %d: invalid liters %q: %w", id, w.Liters, err)
			}
			f.Liters = decimal.NewNullDecimal(l)
		}
		f.FillToFull = parseFlag(w.FillToFull)
		f.MissedFill = parseFlag(w.MissedFill)
	}
	if kind.HasRecurring() {
		f.Recurring = parseFlag(w.Recurring)
	}

	return models.RemoteExpense{
		VehicleID:     vehicleID,
		RemoteID:      id,
		Kind:          kind,
		ExpenseFields: Normalize(kind, f),
	}, nil
}

// ParseDate accepts an ISO date, optionally followed by a time part.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) >= len(models.DateLayout) {
		if d, err := time.Parse(models.DateLayout, s[:len(models.DateLayout)]); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

// odometers occasionally arrive as "1000.0"
func parseOdometer(s string) (int64, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return d.IntPart(), nil
}

func parseFlag(s Scalar) *bool {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseBool(string(s))
	if err != nil {
		return nil
	}
	return &v
}
