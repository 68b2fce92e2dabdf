package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// TermID identifies a payment term.
type TermID int

// Payment terms, in the order they are presented to the operator.
const (
	TermCash TermID = iota
	Term30
	Term60
	Term15x45
	Term30x60
	Term30x60x90
)

// Quantity tier thresholds, in sacks. Checked from highest to lowest.
const (
	HighVolumeThreshold   = 600
	MediumVolumeThreshold = 300
)

// FallbackCoefficient applies to any term without a coefficient table.
var FallbackCoefficient = decimal.RequireFromString("0.05")

// CoefficientTiers holds the interest coefficient per quantity tier.
type CoefficientTiers struct {
	High   decimal.Decimal // quantity total >= 600
	Medium decimal.Decimal // 300 <= quantity total < 600
	Low    decimal.Decimal // quantity total < 300
}

// forQuantity selects the tier for a quantity total.
func (t CoefficientTiers) forQuantity(quantityTotal int) decimal.Decimal {
	switch {
	case quantityTotal >= HighVolumeThreshold:
		return t.High
	case quantityTotal >= MediumVolumeThreshold:
		return t.Medium
	default:
		return t.Low
	}
}

// PaymentTerm describes one entry of the static term table.
type PaymentTerm struct {
	ID           TermID
	Code         string
	Label        string
	Installments int
	// Tiers is nil for cash, which carries no coefficient.
	Tiers *CoefficientTiers
}

func tiers(high, medium, low string) *CoefficientTiers {
	return &CoefficientTiers{
		High:   decimal.RequireFromString(high),
		Medium: decimal.RequireFromString(medium),
		Low:    decimal.RequireFromString(low),
	}
}

var paymentTerms = []PaymentTerm{
	{ID: TermCash, Code: "CASH", Label: "A VISTA", Installments: 1},
	{
		ID: Term30, Code: "TERM_30", Label: "PRAZO 30", Installments: 1,
		Tiers: tiers("0.0212940034619435", "0.0272940034619435", "0.0332940034619435"),
	},
	{
		ID: Term60, Code: "TERM_60", Label: "PRAZO 60", Installments: 1,
		Tiers: tiers("0.0393507895679797", "0.0453507895679797", "0.0513507895679797"),
	},
	{
		ID: Term15x45, Code: "TERM_15_45", Label: "PRAZO 15/45", Installments: 2,
		Tiers: tiers("0.021294003", "0.027294003", "0.033294003"),
	},
	{
		ID: Term30x60, Code: "TERM_30_60", Label: "PRAZO 30/60", Installments: 2,
		Tiers: tiers("0.030248473", "0.036248473", "0.042248473"),
	},
	{
		ID: Term30x60x90, Code: "TERM_30_60_90", Label: "PRAZO 30/60/90", Installments: 3,
		Tiers: tiers("0.03935079", "0.04535079", "0.05135079"),
	},
}

// legacyKeys maps the short keys used by older clients onto terms.
var legacyKeys = map[string]TermID{
	"avista":   TermCash,
	"30":       Term30,
	"60":       Term60,
	"15/45":    Term15x45,
	"30/60":    Term30x60,
	"30/60/90": Term30x60x90,
}

// PaymentTerms returns the term table in presentation order.
func PaymentTerms() []PaymentTerm {
	out := make([]PaymentTerm, len(paymentTerms))
	copy(out, paymentTerms)
	return out
}

// Term returns the table entry for id and whether it exists.
func (id TermID) Term() (PaymentTerm, bool) {
	if id < 0 || int(id) >= len(paymentTerms) {
		return PaymentTerm{}, false
	}
	return paymentTerms[id], true
}

// Valid reports whether id is one of the known terms.
func (id TermID) Valid() bool {
	_, ok := id.Term()
	return ok
}

// Code returns the stable identifier, e.g. "TERM_30".
func (id TermID) Code() string {
	if t, ok := id.Term(); ok {
		return t.Code
	}
	return "UNKNOWN"
}

// String returns the display label, e.g. "PRAZO 30".
func (id TermID) String() string {
	if t, ok := id.Term(); ok {
		return t.Label
	}
	return "UNKNOWN"
}

// Installments returns the number of installments for the term.
// Unknown terms are paid in a single installment.
func (id TermID) Installments() int {
	if t, ok := id.Term(); ok {
		return t.Installments
	}
	return 1
}

// ParseTermID accepts a term code ("TERM_30_60"), a label ("PRAZO 30/60")
// or a legacy short key ("30/60"). Matching is case-insensitive.
func ParseTermID(s string) (TermID, error) {
	key := strings.TrimSpace(s)
	for _, t := range paymentTerms {
		if strings.EqualFold(key, t.Code) || strings.EqualFold(key, t.Label) {
			return t.ID, nil
		}
	}

	if id, ok := legacyKeys[strings.ToLower(key)]; ok {
		return id, nil
	}

	return 0, NewValidationErrorWithValue("term", "unknown payment term", s)
}

// MarshalText implements encoding.TextMarshaler using the term code.
func (id TermID) MarshalText() ([]byte, error) {
	return []byte(id.Code()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *TermID) UnmarshalText(text []byte) error {
	parsed, err := ParseTermID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
