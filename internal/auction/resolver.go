package auction

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

const completedStatus = "completed"

// ResolveRounds maps round boxes plus authoritative round records into render-ready views.
// Entry boxes contribute only their fee and payment hint. Output follows the order of the
// round boxes in the input; inputs are never mutated.
func ResolveRounds(
	boxes []Box,
	records []RoundRecord,
	serverTime *ServerTime,
	flags AuctionFlags,
	entry EntryContext,
) []ResolvedRoundView {
	byRound := indexRecords(records)
	entryBox := EntryBox(boxes)

	var entryFee *decimal.Decimal
	hasPaid := entry.HasPaidEntry
	if entryBox != nil {
		if entryBox.EntryFee != nil {
			fee := *entryBox.EntryFee
			entryFee = &fee
		}
		if entryBox.HasPaid != nil && *entryBox.HasPaid {
			hasPaid = true
		}
	}

	views := make([]ResolvedRoundView, 0, len(boxes))
	for _, box := range boxes {
		if box.Type != BoxTypeRound {
			continue
		}

		record, found := byRound[box.RoundNumber]
		isOpen := resolveOpen(box, serverTime)

		view := ResolvedRoundView{
			BoxID:       box.ID,
			RoundNumber: box.RoundNumber,
			IsOpen:      isOpen,
			Status:      resolveStatus(record, found, isOpen, flags),
			HighestBid:  decimal.Zero,
			PrizeAmount: decimal.Zero,
			HasPaid:     hasPaid,
			EntryFee:    entryFee,
		}

		if found {
			view.HighestBid = HighestBid(record.PlayersData)
			view.OpensAt = record.StartedAt
			view.ClosesAt = record.CompletedAt
			view.PrizeAmount = record.PrizeAmount
			if len(record.PlayersData) > 0 {
				view.Leaderboard = append([]PlayerBid(nil), record.PlayersData...)
			}
		}

		view.DisplayBid = view.HighestBid
		if box.CurrentBid != nil {
			view.DisplayBid = *box.CurrentBid
		}
		if box.HasBid != nil {
			view.HasBid = *box.HasBid
		}
		if box.Bidder != nil {
			view.Bidder = *box.Bidder
		}
		if box.IsQualified != nil {
			view.IsQualified = *box.IsQualified
		}

		views = append(views, view)
	}

	return views
}

// IsRoundOpenAt reports whether minute-of-hour falls inside the round's 15-minute window.
func IsRoundOpenAt(roundNumber, minute int) bool {
	if roundNumber <= 0 {
		return false
	}
	start := (roundNumber - 1) * RoundMinutes
	end := roundNumber * RoundMinutes
	return start <= minute && minute < end
}

// IsJoinWindowOpen reports whether the entry boxes accept payment. Without a server clock the
// caller-supplied policy decides.
func IsJoinWindowOpen(serverTime *ServerTime, defaultOpen bool) bool {
	if serverTime == nil {
		return defaultOpen
	}
	return serverTime.Minute < RoundMinutes
}

// HighestBid returns the largest amount in players, or zero.
func HighestBid(players []PlayerBid) decimal.Decimal {
	highest := decimal.Zero
	for _, p := range players {
		if p.Amount.GreaterThan(highest) {
			highest = p.Amount
		}
	}
	return highest
}

// UserHasPaidEntry reports whether userID is among the snapshot's participants.
func UserHasPaidEntry(snapshot Snapshot, userID string) bool {
	if userID == "" {
		return false
	}
	for _, p := range snapshot.Participants {
		if p.PlayerID == userID {
			return true
		}
	}
	return false
}

// DuplicateRoundNumbers lists round numbers that occur more than once, ascending.
func DuplicateRoundNumbers(records []RoundRecord) []int {
	seen := make(map[int]int, len(records))
	for _, r := range records {
		if r.RoundNumber == 0 {
			continue
		}
		seen[r.RoundNumber]++
	}

	var dups []int
	for round, count := range seen {
		if count > 1 {
			dups = append(dups, round)
		}
	}
	sort.Ints(dups)
	return dups
}

// RoundForBox returns the round number bound to boxID. When no round box matches, the raw
// box id is returned with matched=false.
func RoundForBox(boxes []Box, boxID int) (round int, matched bool) {
	for _, b := range boxes {
		if b.ID == boxID && b.Type == BoxTypeRound && b.RoundNumber > 0 {
			return b.RoundNumber, true
		}
	}
	return boxID, false
}

// EntryBox returns the first entry box, if any.
func EntryBox(boxes []Box) *Box {
	for i := range boxes {
		if boxes[i].Type == BoxTypeEntry {
			b := boxes[i]
			return &b
		}
	}
	return nil
}

// Leaderboard returns the player data the snapshot carries for round, in server order.
func Leaderboard(snapshot Snapshot, round int) ([]PlayerBid, bool) {
	record, ok := indexRecords(snapshot.Rounds)[round]
	if !ok {
		return nil, false
	}
	return append([]PlayerBid(nil), record.PlayersData...), true
}

// indexRecords keys records by round number; zero round numbers are skipped and the last
// duplicate wins.
func indexRecords(records []RoundRecord) map[int]RoundRecord {
	byRound := make(map[int]RoundRecord, len(records))
	for _, r := range records {
		if r.RoundNumber == 0 {
			continue
		}
		byRound[r.RoundNumber] = r
	}
	return byRound
}

func resolveOpen(box Box, serverTime *ServerTime) bool {
	if box.IsOpen != nil {
		return *box.IsOpen
	}
	if serverTime == nil {
		return false
	}
	return IsRoundOpenAt(box.RoundNumber, serverTime.Minute)
}

func resolveStatus(record RoundRecord, found, isOpen bool, flags AuctionFlags) RoundStatus {
	completed := found && strings.EqualFold(record.Status, completedStatus)
	switch {
	case flags.WinnersAnnounced && !completed:
		return StatusWinnersAnnounced
	case completed:
		return StatusCompleted
	case isOpen:
		return StatusActive
	default:
		return StatusUpcoming
	}
}
