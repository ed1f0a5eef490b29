// Package models defines the local domain types of the expense sync engine:
// expense records, queued operations, conflicts and the vehicle cache.
package models

import (
	"fmt"

	"github.com/dmitrijs2005/autoledger/internal/common"
)

// Kind classifies an expense record. The set is closed; use ParseKind to
// convert untrusted strings.
type Kind string

const (
	KindService Kind = "SERVICE"
	KindRepair  Kind = "REPAIR"
	KindUpgrade Kind = "UPGRADE"
	KindFuel    Kind = "FUEL"
	KindTax     Kind = "TAX"
)

// AllKinds lists every kind in a fixed order.
func AllKinds() []Kind {
	return []Kind{KindService, KindRepair, KindUpgrade, KindFuel, KindTax}
}

// ParseKind validates s as a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", common.ErrInvalidKind, s)
	}
	return k, nil
}

func (k Kind) Valid() bool {
	switch k {
	case KindService, KindRepair, KindUpgrade, KindFuel, KindTax:
		return true
	default:
		return false
	}
}

// HasFuelFields reports whether liters, fill-to-full and missed-fill apply.
func (k Kind) HasFuelFields() bool {
	switch k {
	case KindFuel:
		return true
	case KindService, KindRepair, KindUpgrade, KindTax:
		return false
	default:
		return false
	}
}

// HasRecurring reports whether the recurring flag applies.
func (k Kind) HasRecurring() bool {
	switch k {
	case KindTax:
		return true
	case KindService, KindRepair, KindUpgrade, KindFuel:
		return false
	default:
		return false
	}
}

func (k Kind) String() string { return string(k) }
