// internal/policy/domain.go
package policy

import (
	"strconv"
	"time"
)

// Well-known circulation setting keys.
const (
	KeyLoanPeriodDays           = "loan_period_days"
	KeyGracePeriodDays          = "grace_period_days"
	KeyFinePerDay               = "fine_per_day"
	KeyMaxFineAmount            = "max_fine_amount"
	KeyAllowRenewals            = "allow_renewals"
	KeyMaxRenewals              = "max_renewals"
	KeyAllowReservations        = "allow_reservations"
	KeyReservationHoldDays      = "reservation_hold_days"
	KeyMaxReservationsPerMember = "max_reservations_per_member"
	KeyMaxBooksPerMember        = "max_books_per_member"
)

// Setting value types.
const (
	TypeBoolean = "boolean"
	TypeInteger = "integer"
	TypeDecimal = "decimal"
	TypeString  = "string"
)

// Setting is one row of the flat key/value/type settings table.
type Setting struct {
	Key       string    `db:"key" json:"key"`
	Value     string    `db:"value" json:"value"`
	Type      string    `db:"type" json:"type"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Bool converts the stored value according to its declared type.
func (s Setting) Bool() bool {
	switch s.Value {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// Int returns the value as an integer, 0 if it does not parse.
func (s Setting) Int() int {
	n, _ := strconv.Atoi(s.Value)
	return n
}

// Float returns the value as a float, 0 if it does not parse.
func (s Setting) Float() float64 {
	f, _ := strconv.ParseFloat(s.Value, 64)
	return f
}

// Circulation is the typed snapshot of every policy parameter the
// circulation engine consults. A snapshot is taken once per operation so
// that an issue and its fine assessment always see the same parameters.
type Circulation struct {
	LoanPeriodDays           int     `json:"loan_period_days"`
	GracePeriodDays          int     `json:"grace_period_days"`
	FinePerDay               float64 `json:"fine_per_day"`
	MaxFineAmount            float64 `json:"max_fine_amount"`
	AllowRenewals            bool    `json:"allow_renewals"`
	MaxRenewals              int     `json:"max_renewals"`
	AllowReservations        bool    `json:"allow_reservations"`
	ReservationHoldDays      int     `json:"reservation_hold_days"`
	MaxReservationsPerMember int     `json:"max_reservations_per_member"`
	MaxBooksPerMember        int     `json:"max_books_per_member"`
}

// DefaultCirculation returns the parameters used when a key is missing
// from the settings table.
func DefaultCirculation() Circulation {
	return Circulation{
		LoanPeriodDays:           14,
		GracePeriodDays:          0,
		FinePerDay:               10,
		MaxFineAmount:            0,
		AllowRenewals:            true,
		MaxRenewals:              2,
		AllowReservations:        true,
		ReservationHoldDays:      3,
		MaxReservationsPerMember: 5,
		MaxBooksPerMember:        5,
	}
}

// circulationFrom builds a typed snapshot from raw settings, falling back
// to defaults for absent keys.
func circulationFrom(settings map[string]Setting) Circulation {
	pol := DefaultCirculation()

	if s, ok := settings[KeyLoanPeriodDays]; ok {
		pol.LoanPeriodDays = s.Int()
	}
	if s, ok := settings[KeyGracePeriodDays]; ok {
		pol.GracePeriodDays = s.Int()
	}
	if s, ok := settings[KeyFinePerDay]; ok {
		pol.FinePerDay = s.Float()
	}
	if s, ok := settings[KeyMaxFineAmount]; ok {
		pol.MaxFineAmount = s.Float()
	}
	if s, ok := settings[KeyAllowRenewals]; ok {
		pol.AllowRenewals = s.Bool()
	}
	if s, ok := settings[KeyMaxRenewals]; ok {
		pol.MaxRenewals = s.Int()
	}
	if s, ok := settings[KeyAllowReservations]; ok {
		pol.AllowReservations = s.Bool()
	}
	if s, ok := settings[KeyReservationHoldDays]; ok {
		pol.ReservationHoldDays = s.Int()
	}
	if s, ok := settings[KeyMaxReservationsPerMember]; ok {
		pol.MaxReservationsPerMember = s.Int()
	}
	if s, ok := settings[KeyMaxBooksPerMember]; ok {
		pol.MaxBooksPerMember = s.Int()
	}

	return pol
}

// detectType classifies a raw value for a key that has no existing row.
// Existing rows keep their declared type on update.
func detectType(value string) string {
	if value == "true" || value == "false" {
		return TypeBoolean
	}
	if _, err := strconv.Atoi(value); err == nil {
		return TypeInteger
	}
	if _, err := strconv.ParseFloat(value, 64); err == nil {
		return TypeDecimal
	}
	return TypeString
}
