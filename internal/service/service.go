package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dream60/internal/alerting"
	"dream60/internal/auction"
	"dream60/internal/config"
	"dream60/internal/fetcher"
	"dream60/internal/scheduler"
	"dream60/internal/storage"
)

// Observation is one resolved look at the live auction hour.
type Observation struct {
	ObservedAt time.Time
	Snapshot   auction.Snapshot
	// ServerTime is nil when the clock endpoint could not be reached.
	ServerTime *auction.ServerTime
	Views      []auction.ResolvedRoundView
	JoinOpen   bool
	Duplicates []int
}

// Options tune the watcher.
type Options struct {
	EntryFee              decimal.Decimal
	JoinWindowDefaultOpen bool
	AlertsEnabled         bool
	LockKey               int64
	// Clock defaults to the real clock.
	Clock clockwork.Clock
}

// OptionsFromConfig maps application config onto service options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		EntryFee:              decimal.NewFromFloat(cfg.Auction.EntryFee),
		JoinWindowDefaultOpen: cfg.Auction.JoinWindowDefaultOpen,
		AlertsEnabled:         cfg.Alerting.Enabled,
		LockKey:               cfg.Scheduler.AdvisoryLockKey,
	}
}

// Service orchestrates polling, resolution, persistence, and notifications.
type Service struct {
	opts      Options
	clock     clockwork.Clock
	scheduler *scheduler.Scheduler
	snapshots fetcher.SnapshotFetcher
	clocks    fetcher.ClockFetcher
	store     storage.RoundViewStore
	notifier  alerting.Notifier
	locker    storage.AdvisoryLocker
	logger    zerolog.Logger

	mu       sync.Mutex
	previous map[roundKey]auction.RoundStatus
}

type roundKey struct {
	auctionID string
	round     int
}

// New constructs the watcher. store, notifier, and clocks may be nil.
func New(opts Options, sched *scheduler.Scheduler, snapshots fetcher.SnapshotFetcher, clocks fetcher.ClockFetcher, store storage.RoundViewStore, notifier alerting.Notifier, logger zerolog.Logger) *Service {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	var locker storage.AdvisoryLocker
	if l, ok := store.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Service{
		opts:      opts,
		clock:     clock,
		scheduler: sched,
		snapshots: snapshots,
		clocks:    clocks,
		store:     store,
		notifier:  notifier,
		locker:    locker,
		logger:    logger.With().Str("component", "service").Logger(),
		previous:  make(map[roundKey]auction.RoundStatus),
	}
}

// Run begins the polling loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessTick)
}

// Observe fetches the live hour and resolves its round boxes without side effects.
func (s *Service) Observe(ctx context.Context) (Observation, error) {
	return s.observe(ctx, s.clock.Now().UTC())
}

func (s *Service) observe(ctx context.Context, at time.Time) (Observation, error) {
	snapshot, err := s.snapshots.FetchSnapshot(ctx)
	if err != nil {
		return Observation{}, fmt.Errorf("fetch snapshot: %w", err)
	}

	var serverTime *auction.ServerTime
	if s.clocks != nil {
		st, clockErr := s.clocks.FetchServerTime(ctx)
		if clockErr != nil {
			s.logger.Warn().Err(clockErr).Msg("server time unavailable; round boxes keep their own open hints")
		} else {
			serverTime = &st
		}
	}

	boxes := auction.HourBoxes(s.opts.EntryFee, false)
	views := auction.ResolveRounds(boxes, snapshot.Rounds, serverTime,
		auction.AuctionFlags{WinnersAnnounced: snapshot.WinnersAnnounced},
		auction.EntryContext{})

	return Observation{
		ObservedAt: at,
		Snapshot:   snapshot,
		ServerTime: serverTime,
		Views:      views,
		JoinOpen:   auction.IsJoinWindowOpen(serverTime, s.opts.JoinWindowDefaultOpen),
		Duplicates: auction.DuplicateRoundNumbers(snapshot.Rounds),
	}, nil
}

// ProcessTick runs one polling cycle.
func (s *Service) ProcessTick(ctx context.Context, tick time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("tick", tick).Msg("skip tick because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	obs, err := s.observe(ctx, tick)
	if err != nil {
		return err
	}

	if len(obs.Duplicates) > 0 {
		s.logger.Warn().Ints("rounds", obs.Duplicates).
			Str("auction_id", obs.Snapshot.HourlyAuctionID).
			Msg("snapshot carries duplicate round records; last one wins")
	}

	for _, view := range obs.Views {
		s.persist(ctx, obs, view)
	}

	s.logger.Info().Time("tick", tick).
		Str("auction_id", obs.Snapshot.HourlyAuctionID).
		Int("rounds", len(obs.Views)).
		Bool("join_open", obs.JoinOpen).
		Msg("rounds resolved")

	for _, note := range s.transitions(obs) {
		if !s.opts.AlertsEnabled || s.notifier == nil {
			continue
		}
		if err := s.notifier.Notify(ctx, note); err != nil {
			s.logger.Error().Err(err).Int("round", note.RoundNumber).Msg("failed to dispatch notification")
		}
	}

	return nil
}

func (s *Service) persist(ctx context.Context, obs Observation, view auction.ResolvedRoundView) {
	if s.store == nil || obs.Snapshot.HourlyAuctionID == "" {
		return
	}

	leaderboard := json.RawMessage("[]")
	if len(view.Leaderboard) > 0 {
		raw, err := json.Marshal(view.Leaderboard)
		if err != nil {
			s.logger.Error().Err(err).Int("round", view.RoundNumber).Msg("failed to encode leaderboard")
		} else {
			leaderboard = raw
		}
	}

	record := storage.RoundView{
		AuctionID:   obs.Snapshot.HourlyAuctionID,
		RoundNumber: view.RoundNumber,
		ObservedAt:  obs.ObservedAt,
		Status:      string(view.Status),
		IsOpen:      view.IsOpen,
		HighestBid:  view.HighestBid,
		PrizeAmount: view.PrizeAmount,
		Bidders:     len(view.Leaderboard),
		Leaderboard: leaderboard,
	}
	if err := s.store.UpsertRoundView(ctx, record); err != nil {
		s.logger.Error().Err(err).Int("round", view.RoundNumber).Msg("failed to upsert round view")
	}
}

// transitions diffs the observation against the previous tick. The first sighting of an
// auction only seeds state.
func (s *Service) transitions(obs Observation) []alerting.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	auctionID := obs.Snapshot.HourlyAuctionID
	var notes []alerting.Notification
	for _, view := range obs.Views {
		key := roundKey{auctionID: auctionID, round: view.RoundNumber}
		prev, seen := s.previous[key]
		s.previous[key] = view.Status
		if !seen {
			continue
		}
		kind, ok := alerting.KindFor(prev, view.Status)
		if !ok {
			continue
		}
		notes = append(notes, alerting.Notification{
			Kind:           kind,
			AuctionID:      auctionID,
			RoundNumber:    view.RoundNumber,
			PreviousStatus: prev,
			CurrentStatus:  view.Status,
			HighestBid:     view.HighestBid,
			PrizeAmount:    view.PrizeAmount,
			Bidder:         leader(view.Leaderboard),
			ObservedAt:     obs.ObservedAt,
		})
	}

	for key := range s.previous {
		if key.auctionID != auctionID {
			delete(s.previous, key)
		}
	}
	return notes
}

func leader(players []auction.PlayerBid) string {
	var (
		best  string
		top   = decimal.Zero
		found bool
	)
	for _, p := range players {
		if !found || p.Amount.GreaterThan(top) {
			best, top, found = p.PlayerUsername, p.Amount, true
		}
	}
	return best
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.opts.LockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.opts.LockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
