package storage

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// RoundView is a persisted observation of one resolved round.
type RoundView struct {
	AuctionID   string
	RoundNumber int
	ObservedAt  time.Time
	Status      string
	IsOpen      bool
	HighestBid  decimal.Decimal
	PrizeAmount decimal.Decimal
	Bidders     int
	Leaderboard json.RawMessage
	CreatedAt   time.Time
}
