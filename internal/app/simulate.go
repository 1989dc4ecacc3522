package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"dream60/internal/alerting"
	"dream60/internal/auction"
	"dream60/internal/fetcher"
	"dream60/internal/service"
)

// SimulateRoundClose drives two ticks against a synthetic auction in which round goes from
// active to completed, so the configured notifier receives a real transition.
func (a *App) SimulateRoundClose(ctx context.Context, round int, highest decimal.Decimal) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting is not enabled")
	}
	if round < 1 || round > auction.RoundsPerHour {
		return fmt.Errorf("round must be between 1 and %d", auction.RoundsPerHour)
	}
	return simulateRoundClose(ctx, a, a.newNotifier(), round, highest)
}

func simulateRoundClose(ctx context.Context, a *App, notifier alerting.Notifier, round int, highest decimal.Decimal) error {
	if notifier == nil {
		return errors.New("no notifier configured")
	}

	now := time.Now().UTC()
	static := &staticAuction{
		snapshot: auction.Snapshot{
			HourlyAuctionID: "simulated-" + now.Format("2006010215"),
			Rounds: []auction.RoundRecord{{
				RoundNumber: round,
				Status:      "active",
				PlayersData: []auction.PlayerBid{{PlayerID: "sim", PlayerUsername: "simulated", Amount: highest}},
			}},
		},
		minute: (round-1)*auction.RoundMinutes + 1,
	}

	opts := service.OptionsFromConfig(a.Config)
	opts.LockKey = 0
	svc := service.New(opts, nil, static, static, nil, notifier, a.Logger)

	if err := svc.ProcessTick(ctx, now); err != nil {
		return err
	}
	static.snapshot.Rounds[0].Status = "completed"
	return svc.ProcessTick(ctx, now.Add(a.Config.Scheduler.Interval))
}

// staticAuction serves a fixed snapshot and minute.
type staticAuction struct {
	snapshot auction.Snapshot
	minute   int
}

func (s *staticAuction) FetchSnapshot(context.Context) (auction.Snapshot, error) {
	return s.snapshot, nil
}

func (s *staticAuction) FetchServerTime(context.Context) (auction.ServerTime, error) {
	now := time.Now().UTC()
	return auction.ServerTime{Timestamp: now, Minute: s.minute}, nil
}

var _ fetcher.SnapshotFetcher = (*staticAuction)(nil)
var _ fetcher.ClockFetcher = (*staticAuction)(nil)
