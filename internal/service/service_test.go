package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dream60/internal/alerting"
	"dream60/internal/auction"
	"dream60/internal/storage"
)

type stubSnapshots struct {
	snapshot auction.Snapshot
	err      error
}

func (s *stubSnapshots) FetchSnapshot(context.Context) (auction.Snapshot, error) {
	return s.snapshot, s.err
}

type stubClock struct {
	minute int
	err    error
}

func (s *stubClock) FetchServerTime(context.Context) (auction.ServerTime, error) {
	if s.err != nil {
		return auction.ServerTime{}, s.err
	}
	return auction.ServerTime{Minute: s.minute}, nil
}

type memoryStore struct {
	views []storage.RoundView
}

func (m *memoryStore) UpsertRoundView(_ context.Context, view storage.RoundView) error {
	m.views = append(m.views, view)
	return nil
}

func (m *memoryStore) ListRoundViewsBetween(context.Context, time.Time, time.Time) ([]storage.RoundView, error) {
	return m.views, nil
}

func (m *memoryStore) ListRecentRoundViews(context.Context, int) ([]storage.RoundView, error) {
	return m.views, nil
}

type lockingStore struct {
	memoryStore
	acquired bool
	released int
}

func (l *lockingStore) TryAdvisoryLock(context.Context, int64) (func(), bool, error) {
	if !l.acquired {
		return nil, false, nil
	}
	return func() { l.released++ }, true, nil
}

type recordingNotifier struct {
	notes []alerting.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, note alerting.Notification) error {
	r.notes = append(r.notes, note)
	return nil
}

func liveSnapshot() auction.Snapshot {
	return auction.Snapshot{
		HourlyAuctionID: "HA-1",
		Rounds: []auction.RoundRecord{
			{RoundNumber: 1, Status: "completed", PlayersData: []auction.PlayerBid{
				{PlayerID: "u1", PlayerUsername: "ann", Amount: decimal.NewFromInt(300)},
				{PlayerID: "u2", PlayerUsername: "bob", Amount: decimal.NewFromInt(450)},
			}},
			{RoundNumber: 2, Status: "active"},
		},
	}
}

func newTestService(snapshots *stubSnapshots, clocks *stubClock, store storage.RoundViewStore, notifier alerting.Notifier) *Service {
	opts := Options{
		EntryFee:              decimal.NewFromInt(100),
		JoinWindowDefaultOpen: true,
		AlertsEnabled:         true,
		LockKey:               42,
		Clock:                 clockwork.NewFakeClockAt(time.Date(2026, 10, 17, 10, 20, 0, 0, time.UTC)),
	}
	return New(opts, nil, snapshots, clocks, store, notifier, zerolog.Nop())
}

func TestProcessTickPersistsViews(t *testing.T) {
	store := &memoryStore{}
	svc := newTestService(&stubSnapshots{snapshot: liveSnapshot()}, &stubClock{minute: 20}, store, nil)
	tick := time.Date(2026, 10, 17, 10, 20, 0, 0, time.UTC)

	if err := svc.ProcessTick(context.Background(), tick); err != nil {
		t.Fatalf("process tick: %v", err)
	}

	if len(store.views) != auction.RoundsPerHour {
		t.Fatalf("expected %d views, got %d", auction.RoundsPerHour, len(store.views))
	}
	first := store.views[0]
	if first.RoundNumber != 1 || first.Status != string(auction.StatusCompleted) || first.Bidders != 2 {
		t.Fatalf("unexpected round 1 view %+v", first)
	}
	if !first.HighestBid.Equal(decimal.NewFromInt(450)) || !first.ObservedAt.Equal(tick) {
		t.Fatalf("unexpected round 1 view %+v", first)
	}
	var board []auction.PlayerBid
	if err := json.Unmarshal(first.Leaderboard, &board); err != nil || len(board) != 2 {
		t.Fatalf("leaderboard should round trip: %v %s", err, first.Leaderboard)
	}
	second := store.views[1]
	if !second.IsOpen || second.Status != string(auction.StatusActive) {
		t.Fatalf("round 2 should be active at minute 20, got %+v", second)
	}
	if string(store.views[3].Leaderboard) != "[]" {
		t.Fatalf("empty leaderboard should persist as [], got %s", store.views[3].Leaderboard)
	}
}

func TestProcessTickNotifiesOnTransitions(t *testing.T) {
	snapshots := &stubSnapshots{snapshot: liveSnapshot()}
	clocks := &stubClock{minute: 20}
	notifier := &recordingNotifier{}
	svc := newTestService(snapshots, clocks, nil, notifier)
	ctx := context.Background()

	if err := svc.ProcessTick(ctx, time.Now()); err != nil {
		t.Fatalf("first tick: %v", err)
	}
	if len(notifier.notes) != 0 {
		t.Fatalf("first sighting must only seed state, got %+v", notifier.notes)
	}

	next := liveSnapshot()
	next.Rounds[1].Status = "completed"
	snapshots.snapshot = next
	clocks.minute = 31

	if err := svc.ProcessTick(ctx, time.Now()); err != nil {
		t.Fatalf("second tick: %v", err)
	}
	if len(notifier.notes) != 2 {
		t.Fatalf("expected two notifications, got %+v", notifier.notes)
	}
	if notifier.notes[0].RoundNumber != 2 || notifier.notes[0].Kind != alerting.KindRoundCompleted {
		t.Fatalf("unexpected first notification %+v", notifier.notes[0])
	}
	if notifier.notes[1].RoundNumber != 3 || notifier.notes[1].Kind != alerting.KindRoundOpened {
		t.Fatalf("unexpected second notification %+v", notifier.notes[1])
	}

	announced := next
	announced.WinnersAnnounced = true
	snapshots.snapshot = announced
	if err := svc.ProcessTick(ctx, time.Now()); err != nil {
		t.Fatalf("third tick: %v", err)
	}
	var winners int
	for _, n := range notifier.notes {
		if n.Kind == alerting.KindWinnersAnnounced {
			winners++
		}
	}
	if winners != 2 {
		t.Fatalf("rounds 3 and 4 should flip to winners-announced, got %d", winners)
	}
}

func TestProcessTickNewAuctionResetsState(t *testing.T) {
	snapshots := &stubSnapshots{snapshot: liveSnapshot()}
	notifier := &recordingNotifier{}
	svc := newTestService(snapshots, &stubClock{minute: 20}, nil, notifier)
	ctx := context.Background()

	_ = svc.ProcessTick(ctx, time.Now())
	fresh := liveSnapshot()
	fresh.HourlyAuctionID = "HA-2"
	fresh.Rounds = nil
	snapshots.snapshot = fresh
	_ = svc.ProcessTick(ctx, time.Now())

	if len(notifier.notes) != 0 {
		t.Fatalf("a new auction should not diff against the old one, got %+v", notifier.notes)
	}
	if len(svc.previous) != auction.RoundsPerHour {
		t.Fatalf("stale auction state should be dropped, got %d keys", len(svc.previous))
	}
}

func TestProcessTickSnapshotError(t *testing.T) {
	store := &memoryStore{}
	svc := newTestService(&stubSnapshots{err: errors.New("boom")}, &stubClock{}, store, nil)
	if err := svc.ProcessTick(context.Background(), time.Now()); err == nil {
		t.Fatal("snapshot failure should surface")
	}
	if len(store.views) != 0 {
		t.Fatalf("nothing should be persisted, got %d", len(store.views))
	}
}

func TestObserveWithoutServerTime(t *testing.T) {
	svc := newTestService(&stubSnapshots{snapshot: liveSnapshot()}, &stubClock{err: errors.New("down")}, nil, nil)
	obs, err := svc.Observe(context.Background())
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	if obs.ServerTime != nil {
		t.Fatal("server time should be nil when the clock endpoint fails")
	}
	if !obs.JoinOpen {
		t.Fatal("join window should fall back to the configured default")
	}
	for _, v := range obs.Views {
		if v.IsOpen {
			t.Fatalf("no round can be open without a clock, got %+v", v)
		}
	}
	if !obs.ObservedAt.Equal(time.Date(2026, 10, 17, 10, 20, 0, 0, time.UTC)) {
		t.Fatalf("observation should use the injected clock, got %s", obs.ObservedAt)
	}
}

func TestProcessTickSkipsWhenLockHeld(t *testing.T) {
	store := &lockingStore{}
	svc := newTestService(&stubSnapshots{snapshot: liveSnapshot()}, &stubClock{minute: 5}, store, nil)
	if err := svc.ProcessTick(context.Background(), time.Now()); err != nil {
		t.Fatalf("process tick: %v", err)
	}
	if len(store.views) != 0 {
		t.Fatal("tick should be skipped while another instance holds the lock")
	}

	store.acquired = true
	if err := svc.ProcessTick(context.Background(), time.Now()); err != nil {
		t.Fatalf("process tick: %v", err)
	}
	if len(store.views) != auction.RoundsPerHour || store.released != 1 {
		t.Fatalf("expected persisted views and released lock, got %d views %d releases", len(store.views), store.released)
	}
}

func TestLeader(t *testing.T) {
	got := leader([]auction.PlayerBid{
		{PlayerUsername: "ann", Amount: decimal.NewFromInt(10)},
		{PlayerUsername: "bob", Amount: decimal.NewFromInt(30)},
		{PlayerUsername: "cy", Amount: decimal.NewFromInt(30)},
	})
	if got != "bob" {
		t.Fatalf("first highest bidder should lead, got %q", got)
	}
	if leader(nil) != "" {
		t.Fatal("empty leaderboard has no leader")
	}
}
