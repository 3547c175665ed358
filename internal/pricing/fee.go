// Package pricing implements the platform surcharge applied to paid
// documents. The schedule is a step function of the seller's list
// price; the buyer-facing price is list price plus surcharge. All
// amounts are integer kobo (1 naira = 100 kobo) so the schedule is
// exact integer arithmetic with no I/O.
package pricing

import "errors"

// ErrInvalidPrice is returned when a paid document carries a
// non-positive list price. Callers must reject the document rather
// than clamp the price.
var ErrInvalidPrice = errors.New("price must be greater than 0 for paid PDFs")

// Schedule thresholds in kobo. Above the top band the surcharge
// grows by stepCharge for every started stepSize of price.
const (
	stepSize   int64 = 100_000 // 1,000 naira
	stepCharge int64 = 5_000   // 50 naira
	topBand    int64 = 3_000_000
)

// AdditionalCharge returns the platform surcharge for a list price.
// Prices below 100 naira carry no surcharge.
func AdditionalCharge(priceKobo int64) int64 {
	switch {
	case priceKobo < 10_000:
		return 0
	case priceKobo <= 50_000:
		return 5_000
	case priceKobo <= 200_000:
		return 10_000
	case priceKobo <= 500_000:
		return 20_000
	case priceKobo <= 1_500_000:
		return 30_000
	case priceKobo <= topBand:
		return 50_000
	default:
		over := priceKobo - topBand
		steps := (over + stepSize - 1) / stepSize // ceil
		return 50_000 + steps*stepCharge
	}
}

// FinalPrice validates the list price of a paid document and returns
// the buyer-facing price including the surcharge. It is invoked both
// at document creation and on every update that marks a document
// paid.
func FinalPrice(priceKobo int64) (int64, error) {
	if priceKobo <= 0 {
		return 0, ErrInvalidPrice
	}
	return priceKobo + AdditionalCharge(priceKobo), nil
}
