package mapper

import (
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/autoledger/internal/client/models"
	"github.com/shopspring/decimal"
)

// Snapshot is the serialized form of a record stored in the conflict log.
type Snapshot struct {
	RemoteID    *int64      `json:"remoteId"`
	VehicleID   int64       `json:"vehicleId"`
	Kind        models.Kind `json:"kind"`
	Date        string      `json:"date"`
	Cost        string      `json:"cost"`
	Odometer    *int64      `json:"odometer"`
	Description string      `json:"description"`
	Notes       string      `json:"notes"`
	Liters      *string     `json:"liters"`
	FillToFull  *bool       `json:"fillToFull"`
	MissedFill  *bool       `json:"missedFill"`
	Recurring   *bool       `json:"recurring"`
	Fingerprint string      `json:"fingerprint"`
}

func newSnapshot(remoteID *int64, vehicleID int64, kind models.Kind, fields models.ExpenseFields) Snapshot {
	f := Normalize(kind, fields)
	s := Snapshot{
		RemoteID:    remoteID,
		VehicleID:   vehicleID,
		Kind:        kind,
		Date:        f.Date.Format(models.DateLayout),
		Cost:        f.Cost.StringFixed(2),
		Odometer:    f.Odometer,
		Description: f.Description,
		Notes:       f.Notes,
		FillToFull:  f.FillToFull,
		MissedFill:  f.MissedFill,
		Recurring:   f.Recurring,
		Fingerprint: Fingerprint(kind, f),
	}
	if f.Liters.Valid {
		l := f.Liters.Decimal.String()
		s.Liters = &l
	}
	return s
}

// LocalSnapshot serializes the current local content of e.
func LocalSnapshot(e *models.Expense) (json.RawMessage, error) {
	return json.Marshal(newSnapshot(e.RemoteID, e.VehicleID, e.Kind, e.ExpenseFields))
}

// RemoteSnapshot serializes a remote snapshot. A nil r marks a vanished
// remote record and encodes to nil.
func RemoteSnapshot(r *models.RemoteExpense) (json.RawMessage, error) {
	if r == nil {
		return nil, nil
	}
	id := r.RemoteID
	return json.Marshal(newSnapshot(&id, r.VehicleID, r.Kind, r.ExpenseFields))
}

// DecodeSnapshot parses a conflict-log snapshot.
func DecodeSnapshot(raw json.RawMessage) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if _, err := models.ParseKind(string(s.Kind)); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

// Fields converts the snapshot back into business fields.
func (s Snapshot) Fields() (models.ExpenseFields, error) {
	date, err := ParseDate(s.Date)
	if err != nil {
		return models.ExpenseFields{}, err
	}
	cost, err := decimal.NewFromString(s.Cost)
	if err != nil {
		return models.ExpenseFields{}, fmt.Errorf("invalid cost %q: %w", s.Cost, err)
	}
	f := models.ExpenseFields{
		Date:        date,
		Cost:        cost,
		Odometer:    s.Odometer,
		Description: s.Description,
		Notes:       s.Notes,
		FillToFull:  s.FillToFull,
		MissedFill:  s.MissedFill,
		Recurring:   s.Recurring,
	}
	if s.Liters != nil {
		l, err := decimal.NewFromString(*s.Liters)
		if err != nil {
			return models.ExpenseFields{}, fmt.Errorf("invalid liters %q: %w", *s.Liters, err)
		}
		f.Liters = decimal.NewNullDecimal(l)
	}
	return Normalize(s.Kind, f), nil
}

// Remote converts a snapshot that carries a remote id back into a
// RemoteExpense.
func (s Snapshot) Remote() (models.RemoteExpense, error) {
	if s.RemoteID == nil {
		return models.RemoteExpense{}, fmt.Errorf("snapshot has no remote id")
	}
	f, err := s.Fields()
	if err != nil {
		return models.RemoteExpense{}, err
	}
	return models.RemoteExpense{VehicleID: s.VehicleID, RemoteID: *s.RemoteID, Kind: s.Kind, ExpenseFields: f}, nil
}
