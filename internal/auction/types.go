package auction

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// BoxType tags the variant of a Box.
type BoxType string

const (
	BoxTypeEntry BoxType = "entry"
	BoxTypeRound BoxType = "round"
)

// RoundStatus is the display status of a resolved round.
type RoundStatus string

const (
	StatusWinnersAnnounced RoundStatus = "winners-announced"
	StatusCompleted        RoundStatus = "completed"
	StatusActive           RoundStatus = "active"
	StatusUpcoming         RoundStatus = "upcoming"
)

// RoundMinutes is the length of one bidding window.
const RoundMinutes = 15

// Box is one client-side slot of an auction hour. Round hints may be stale or absent.
type Box struct {
	ID   int     `json:"id"`
	Type BoxType `json:"type"`

	// entry variant
	EntryFee *decimal.Decimal `json:"entryFee,omitempty"`
	HasPaid  *bool            `json:"hasPaid,omitempty"`

	// round variant; RoundNumber 0 means absent
	RoundNumber int              `json:"roundNumber,omitempty"`
	HasBid      *bool            `json:"hasBid,omitempty"`
	CurrentBid  *decimal.Decimal `json:"currentBid,omitempty"`
	Bidder      *string          `json:"bidder,omitempty"`
	IsOpen      *bool            `json:"isOpen,omitempty"`
	IsQualified *bool            `json:"isQualified,omitempty"`
}

// PlayerBid is one entry of a round's player data.
type PlayerBid struct {
	PlayerID       string          `json:"playerId"`
	PlayerUsername string          `json:"playerUsername"`
	Amount         decimal.Decimal `json:"amount"`
}

// UnmarshalJSON accepts the bid amount as either auctionPlacedAmount or amount.
func (p *PlayerBid) UnmarshalJSON(data []byte) error {
	var raw struct {
		PlayerID            string           `json:"playerId"`
		PlayerUsername      string           `json:"playerUsername"`
		AuctionPlacedAmount *decimal.Decimal `json:"auctionPlacedAmount"`
		Amount              *decimal.Decimal `json:"amount"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	p.PlayerID = raw.PlayerID
	p.PlayerUsername = raw.PlayerUsername
	switch {
	case raw.AuctionPlacedAmount != nil:
		p.Amount = *raw.AuctionPlacedAmount
	case raw.Amount != nil:
		p.Amount = *raw.Amount
	default:
		p.Amount = decimal.Zero
	}
	return nil
}

// RoundRecord is the server's authoritative view of a round.
type RoundRecord struct {
	RoundNumber int             `json:"roundNumber"`
	StartedAt   *time.Time      `json:"startedAt,omitempty"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
	Status      string          `json:"status"`
	PlayersData []PlayerBid     `json:"playersData"`
	PrizeAmount decimal.Decimal `json:"prizeAmount"`
}

// ServerTime is a snapshot of the backend clock.
type ServerTime struct {
	Timestamp time.Time `json:"timestamp"`
	Minute    int       `json:"minute"`
}

// Participant is a player who paid the entry fee for the hour.
type Participant struct {
	PlayerID       string `json:"playerId"`
	PlayerUsername string `json:"playerUsername"`
}

// Snapshot is the live hourly auction as reported by the backend.
type Snapshot struct {
	HourlyAuctionID  string          `json:"hourlyAuctionId"`
	PrizeValue       decimal.Decimal `json:"prizeValue"`
	WinnersAnnounced bool            `json:"winnersAnnounced"`
	Rounds           []RoundRecord   `json:"rounds"`
	Participants     []Participant   `json:"participants"`
}

// AuctionFlags carries auction-level state that overrides per-round display.
type AuctionFlags struct {
	WinnersAnnounced bool
}

// EntryContext carries what is known about the current user's entry payment.
type EntryContext struct {
	HasPaidEntry bool
}

// ResolvedRoundView is the render-ready state of one round box.
type ResolvedRoundView struct {
	BoxID       int
	RoundNumber int
	IsOpen      bool
	Status      RoundStatus
	HighestBid  decimal.Decimal
	// DisplayBid is the box's CurrentBid hint, or HighestBid when the hint is absent.
	DisplayBid  decimal.Decimal
	HasBid      bool
	Bidder      string
	OpensAt     *time.Time
	ClosesAt    *time.Time
	Leaderboard []PlayerBid
	PrizeAmount decimal.Decimal
	HasPaid     bool
	IsQualified bool
	EntryFee    *decimal.Decimal
}
