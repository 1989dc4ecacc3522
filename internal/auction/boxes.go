package auction

import "github.com/shopspring/decimal"

// RoundsPerHour is the number of bidding rounds in one auction hour.
const RoundsPerHour = 4

// HourBoxes builds the six fixed slots of an auction hour: the entry-fee pair followed by
// one box per round. Box ids start at 1.
func HourBoxes(entryFee decimal.Decimal, hasPaid bool) []Box {
	boxes := make([]Box, 0, 2+RoundsPerHour)
	for i := 0; i < 2; i++ {
		fee := entryFee
		paid := hasPaid
		boxes = append(boxes, Box{
			ID:       len(boxes) + 1,
			Type:     BoxTypeEntry,
			EntryFee: &fee,
			HasPaid:  &paid,
		})
	}
	for round := 1; round <= RoundsPerHour; round++ {
		boxes = append(boxes, Box{
			ID:          len(boxes) + 1,
			Type:        BoxTypeRound,
			RoundNumber: round,
		})
	}
	return boxes
}
