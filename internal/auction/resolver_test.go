package auction

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
)

func boolPtr(v bool) *bool { return &v }

func decPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func sampleBoxes() []Box {
	return []Box{
		{ID: 1, Type: BoxTypeEntry, EntryFee: decPtr(100)},
		{ID: 2, Type: BoxTypeRound, RoundNumber: 1},
	}
}

func TestResolveRounds_ActiveRoundWithoutRecords(t *testing.T) {
	views := ResolveRounds(sampleBoxes(), nil, &ServerTime{Minute: 5}, AuctionFlags{}, EntryContext{})

	check.Equal(t, 1, len(views))
	check.Equal(t, 2, views[0].BoxID)
	check.Equal(t, 1, views[0].RoundNumber)
	check.True(t, views[0].IsOpen)
	check.Equal(t, StatusActive, views[0].Status)
	check.True(t, views[0].HighestBid.IsZero())
	check.True(t, views[0].DisplayBid.IsZero())
	check.NotNil(t, views[0].EntryFee)
	check.True(t, views[0].EntryFee.Equal(decimal.NewFromInt(100)))
}

func TestResolveRounds_CompletedRecordWins(t *testing.T) {
	records := []RoundRecord{{RoundNumber: 1, Status: "completed"}}

	views := ResolveRounds(sampleBoxes(), records, &ServerTime{Minute: 20}, AuctionFlags{}, EntryContext{})

	check.Equal(t, 1, len(views))
	check.False(t, views[0].IsOpen)
	check.Equal(t, StatusCompleted, views[0].Status)
}

func TestResolveRounds_CompletedIsCaseInsensitive(t *testing.T) {
	boxes := []Box{{ID: 3, Type: BoxTypeRound, RoundNumber: 2, IsOpen: boolPtr(true)}}
	records := []RoundRecord{{RoundNumber: 2, Status: "COMPLETED"}}

	views := ResolveRounds(boxes, records, nil, AuctionFlags{}, EntryContext{})

	check.True(t, views[0].IsOpen)
	check.Equal(t, StatusCompleted, views[0].Status)
}

func TestResolveRounds_ExplicitHintIsKept(t *testing.T) {
	boxes := []Box{
		{ID: 3, Type: BoxTypeRound, RoundNumber: 1, IsOpen: boolPtr(false)},
		{ID: 4, Type: BoxTypeRound, RoundNumber: 2, IsOpen: boolPtr(true)},
	}

	views := ResolveRounds(boxes, nil, &ServerTime{Minute: 5}, AuctionFlags{}, EntryContext{})

	check.False(t, views[0].IsOpen)
	check.Equal(t, StatusUpcoming, views[0].Status)
	check.True(t, views[1].IsOpen)
	check.Equal(t, StatusActive, views[1].Status)
}

func TestResolveRounds_TimeWindowHeuristic(t *testing.T) {
	for minute := 0; minute < 60; minute++ {
		for round := 1; round <= RoundsPerHour; round++ {
			boxes := []Box{{ID: 10, Type: BoxTypeRound, RoundNumber: round}}
			views := ResolveRounds(boxes, nil, &ServerTime{Minute: minute}, AuctionFlags{}, EntryContext{})

			want := (round-1)*15 <= minute && minute < round*15
			if views[0].IsOpen != want {
				t.Fatalf("round %d minute %d: want open=%v, got %v", round, minute, want, views[0].IsOpen)
			}
		}
	}
}

func TestResolveRounds_NoServerTimeIsClosed(t *testing.T) {
	boxes := []Box{{ID: 3, Type: BoxTypeRound, RoundNumber: 1}}

	views := ResolveRounds(boxes, nil, nil, AuctionFlags{}, EntryContext{})

	check.False(t, views[0].IsOpen)
	check.Equal(t, StatusUpcoming, views[0].Status)
}

func TestResolveRounds_MissingRoundNumberIsUpcoming(t *testing.T) {
	boxes := []Box{{ID: 7, Type: BoxTypeRound}}
	records := []RoundRecord{{RoundNumber: 0, Status: "completed"}}

	views := ResolveRounds(boxes, records, &ServerTime{Minute: 0}, AuctionFlags{}, EntryContext{})

	check.Equal(t, 1, len(views))
	check.False(t, views[0].IsOpen)
	check.Equal(t, StatusUpcoming, views[0].Status)
}

func TestResolveRounds_WinnersAnnounced(t *testing.T) {
	boxes := []Box{
		{ID: 3, Type: BoxTypeRound, RoundNumber: 1},
		{ID: 4, Type: BoxTypeRound, RoundNumber: 2},
		{ID: 5, Type: BoxTypeRound, RoundNumber: 3},
	}
	records := []RoundRecord{
		{RoundNumber: 1, Status: "completed"},
		{RoundNumber: 2, Status: "active"},
	}

	views := ResolveRounds(boxes, records, &ServerTime{Minute: 20}, AuctionFlags{WinnersAnnounced: true}, EntryContext{})

	check.Equal(t, StatusCompleted, views[0].Status)
	check.Equal(t, StatusWinnersAnnounced, views[1].Status)
	check.Equal(t, StatusWinnersAnnounced, views[2].Status)
}

func TestResolveRounds_HighestBidAndDisplayFallback(t *testing.T) {
	started := time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)
	boxes := []Box{
		{ID: 3, Type: BoxTypeRound, RoundNumber: 1},
		{ID: 4, Type: BoxTypeRound, RoundNumber: 2, CurrentBid: decPtr(75), HasBid: boolPtr(true), Bidder: strPtr("me")},
	}
	records := []RoundRecord{
		{
			RoundNumber: 1,
			StartedAt:   &started,
			PrizeAmount: decimal.NewFromInt(5000),
			PlayersData: []PlayerBid{
				{PlayerID: "a", Amount: decimal.NewFromInt(120)},
				{PlayerID: "b", Amount: decimal.NewFromInt(340)},
				{PlayerID: "c", Amount: decimal.NewFromInt(90)},
			},
		},
		{
			RoundNumber: 2,
			PlayersData: []PlayerBid{{PlayerID: "a", Amount: decimal.NewFromInt(60)}},
		},
	}

	views := ResolveRounds(boxes, records, nil, AuctionFlags{}, EntryContext{HasPaidEntry: true})

	check.True(t, views[0].HighestBid.Equal(decimal.NewFromInt(340)))
	check.True(t, views[0].DisplayBid.Equal(decimal.NewFromInt(340)))
	check.True(t, views[0].PrizeAmount.Equal(decimal.NewFromInt(5000)))
	check.Equal(t, 3, len(views[0].Leaderboard))
	check.NotNil(t, views[0].OpensAt)
	check.True(t, views[0].OpensAt.Equal(started))
	check.True(t, views[0].HasPaid)

	check.True(t, views[1].HighestBid.Equal(decimal.NewFromInt(60)))
	check.True(t, views[1].DisplayBid.Equal(decimal.NewFromInt(75)))
	check.True(t, views[1].HasBid)
	check.Equal(t, "me", views[1].Bidder)
}

func TestResolveRounds_DoesNotMutateInput(t *testing.T) {
	boxes := []Box{{ID: 3, Type: BoxTypeRound, RoundNumber: 1}}
	records := []RoundRecord{{
		RoundNumber: 1,
		PlayersData: []PlayerBid{{PlayerID: "a", Amount: decimal.NewFromInt(10)}},
	}}

	views := ResolveRounds(boxes, records, &ServerTime{Minute: 1}, AuctionFlags{}, EntryContext{})
	views[0].Leaderboard[0].PlayerID = "changed"

	check.Equal(t, "a", records[0].PlayersData[0].PlayerID)
	check.True(t, boxes[0].IsOpen == nil)
}

func TestResolveRounds_PreservesInputOrder(t *testing.T) {
	boxes := []Box{
		{ID: 9, Type: BoxTypeRound, RoundNumber: 4},
		{ID: 1, Type: BoxTypeEntry},
		{ID: 7, Type: BoxTypeRound, RoundNumber: 2},
		{ID: 8, Type: BoxTypeRound, RoundNumber: 3},
	}

	views := ResolveRounds(boxes, nil, nil, AuctionFlags{}, EntryContext{})

	check.Equal(t, 3, len(views))
	check.Equal(t, 9, views[0].BoxID)
	check.Equal(t, 7, views[1].BoxID)
	check.Equal(t, 8, views[2].BoxID)
}

func TestResolveRounds_EmptyInput(t *testing.T) {
	views := ResolveRounds(nil, nil, nil, AuctionFlags{}, EntryContext{})
	check.Equal(t, 0, len(views))
}

func TestResolveRounds_DuplicateRecordsLastWins(t *testing.T) {
	boxes := []Box{{ID: 3, Type: BoxTypeRound, RoundNumber: 1}}
	records := []RoundRecord{
		{RoundNumber: 1, Status: "completed"},
		{RoundNumber: 1, Status: "active"},
	}

	views := ResolveRounds(boxes, records, nil, AuctionFlags{}, EntryContext{})

	check.Equal(t, StatusUpcoming, views[0].Status)
	check.Equal(t, []int{1}, DuplicateRoundNumbers(records))
}

func TestHighestBid_Empty(t *testing.T) {
	check.True(t, HighestBid(nil).IsZero())
	check.True(t, HighestBid([]PlayerBid{}).IsZero())
}

func TestPlayerBid_AcceptsBothAmountFields(t *testing.T) {
	payload := `[
		{"playerId":"a","auctionPlacedAmount":250},
		{"playerId":"b","amount":"410.50"},
		{"playerId":"c"}
	]`

	var players []PlayerBid
	check.NoError(t, json.Unmarshal([]byte(payload), &players))

	check.Equal(t, 3, len(players))
	check.True(t, players[0].Amount.Equal(decimal.NewFromInt(250)))
	check.True(t, players[1].Amount.Equal(decimal.RequireFromString("410.50")))
	check.True(t, players[2].Amount.IsZero())
	check.True(t, HighestBid(players).Equal(decimal.RequireFromString("410.50")))
}

func TestIsJoinWindowOpen(t *testing.T) {
	check.True(t, IsJoinWindowOpen(&ServerTime{Minute: 0}, false))
	check.True(t, IsJoinWindowOpen(&ServerTime{Minute: 14}, false))
	check.False(t, IsJoinWindowOpen(&ServerTime{Minute: 15}, true))
	check.True(t, IsJoinWindowOpen(nil, true))
	check.False(t, IsJoinWindowOpen(nil, false))
}

func TestUserHasPaidEntry(t *testing.T) {
	snap := Snapshot{Participants: []Participant{{PlayerID: "u1"}, {PlayerID: "u2"}}}

	check.True(t, UserHasPaidEntry(snap, "u2"))
	check.False(t, UserHasPaidEntry(snap, "u3"))
	check.False(t, UserHasPaidEntry(snap, ""))
}

func TestRoundForBox(t *testing.T) {
	boxes := HourBoxes(decimal.NewFromInt(100), false)

	round, matched := RoundForBox(boxes, 4)
	check.True(t, matched)
	check.Equal(t, 2, round)

	round, matched = RoundForBox(boxes, 1)
	check.False(t, matched)
	check.Equal(t, 1, round)

	round, matched = RoundForBox(nil, 42)
	check.False(t, matched)
	check.Equal(t, 42, round)
}

func TestLeaderboard(t *testing.T) {
	snap := Snapshot{Rounds: []RoundRecord{{
		RoundNumber: 2,
		PlayersData: []PlayerBid{{PlayerID: "x", Amount: decimal.NewFromInt(1)}, {PlayerID: "y", Amount: decimal.NewFromInt(3)}},
	}}}

	entries, ok := Leaderboard(snap, 2)
	check.True(t, ok)
	check.Equal(t, 2, len(entries))
	check.Equal(t, "x", entries[0].PlayerID)

	_, ok = Leaderboard(snap, 3)
	check.False(t, ok)
}

func strPtr(v string) *string { return &v }
