// internal/policy/domain_test.go
package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSettingConversions(t *testing.T) {
	assert.True(t, Setting{Value: "1", Type: TypeBoolean}.Bool())
	assert.True(t, Setting{Value: "true", Type: TypeBoolean}.Bool())
	assert.False(t, Setting{Value: "0", Type: TypeBoolean}.Bool())
	assert.False(t, Setting{Value: "false", Type: TypeBoolean}.Bool())

	assert.Equal(t, 14, Setting{Value: "14", Type: TypeInteger}.Int())
	assert.Equal(t, 0, Setting{Value: "not a number", Type: TypeInteger}.Int())

	assert.Equal(t, 10.5, Setting{Value: "10.5", Type: TypeDecimal}.Float())
}

func TestDetectType(t *testing.T) {
	assert.Equal(t, TypeBoolean, detectType("true"))
	assert.Equal(t, TypeBoolean, detectType("false"))
	assert.Equal(t, TypeInteger, detectType("14"))
	assert.Equal(t, TypeDecimal, detectType("10.5"))
	assert.Equal(t, TypeString, detectType("hello@bookhive.test"))
}

func TestCirculationFromDefaults(t *testing.T) {
	pol := circulationFrom(nil)
	assert.Equal(t, DefaultCirculation(), pol)
}

func TestCirculationFromOverrides(t *testing.T) {
	pol := circulationFrom(map[string]Setting{
		KeyLoanPeriodDays:  {Key: KeyLoanPeriodDays, Value: "21", Type: TypeInteger},
		KeyFinePerDay:      {Key: KeyFinePerDay, Value: "2.5", Type: TypeDecimal},
		KeyMaxFineAmount:   {Key: KeyMaxFineAmount, Value: "50", Type: TypeDecimal},
		KeyAllowRenewals:   {Key: KeyAllowRenewals, Value: "0", Type: TypeBoolean},
		KeyGracePeriodDays: {Key: KeyGracePeriodDays, Value: "2", Type: TypeInteger},
	})

	assert.Equal(t, 21, pol.LoanPeriodDays)
	assert.Equal(t, 2.5, pol.FinePerDay)
	assert.Equal(t, 50.0, pol.MaxFineAmount)
	assert.False(t, pol.AllowRenewals)
	assert.Equal(t, 2, pol.GracePeriodDays)

	// Untouched keys keep defaults.
	assert.Equal(t, 3, pol.ReservationHoldDays)
	assert.Equal(t, 5, pol.MaxBooksPerMember)
}
