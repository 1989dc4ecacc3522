package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dream60/internal/auction"
	"dream60/internal/bidding"
	"dream60/internal/fetcher"
)

// ErrBidNotPlaced is returned after a bid failure has already been reported.
var ErrBidNotPlaced = errors.New("bid not placed")

// PlaceBid places one bid on the live hour and prints the outcome.
func (a *App) PlaceBid(ctx context.Context, opts BidOptions) error {
	var recorder bidding.AttemptRecorder
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("bid attempts will not be recorded")
	} else if store != nil {
		recorder = store
		defer closeStore()
	}

	session := bidding.Session{UserID: opts.UserID, Username: opts.Username}
	actx := a.auctionContext(ctx, a.newAPI(), session)

	out := a.newPlacer(recorder).PlaceBid(ctx, opts.BoxID, opts.Amount, session, actx, bidding.Callbacks{})
	fmt.Fprintln(a.Out, bidding.Describe(out))
	if out.AliasedBoxID {
		fmt.Fprintf(a.Out, "note: box %d is not a round box; it was sent as the round number\n", opts.BoxID)
	}
	if !out.Success {
		return ErrBidNotPlaced
	}
	return nil
}

// auctionContext resolves what the placer needs from the live snapshot. A failed fetch
// yields an empty auction id, which the placer reports as no active auction.
func (a *App) auctionContext(ctx context.Context, snapshots fetcher.SnapshotFetcher, session bidding.Session) bidding.AuctionContext {
	if strings.TrimSpace(session.UserID) == "" {
		return bidding.AuctionContext{Boxes: auction.HourBoxes(a.entryFee(), false)}
	}

	snapshot, err := snapshots.FetchSnapshot(ctx)
	if err != nil {
		a.Logger.Error().Err(err).Msg("fetch snapshot before bidding")
		return bidding.AuctionContext{Boxes: auction.HourBoxes(a.entryFee(), false)}
	}

	paid := auction.UserHasPaidEntry(snapshot, session.UserID)
	if !paid {
		a.Logger.Warn().Str("user_id", session.UserID).Msg("user not listed among participants; the server decides")
	}
	return bidding.AuctionContext{
		HourlyAuctionID: snapshot.HourlyAuctionID,
		Boxes:           auction.HourBoxes(a.entryFee(), paid),
	}
}
