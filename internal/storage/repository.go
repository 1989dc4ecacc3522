package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"dream60/internal/bidding"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	upsertRoundViewSQL = `INSERT INTO round_views (
        auction_id,
        round_number,
        observed_at,
        status,
        is_open,
        highest_bid,
        prize_amount,
        bidders,
        leaderboard
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9
    )
    ON CONFLICT (auction_id, round_number, observed_at) DO UPDATE
    SET
        status       = EXCLUDED.status,
        is_open      = EXCLUDED.is_open,
        highest_bid  = EXCLUDED.highest_bid,
        prize_amount = EXCLUDED.prize_amount,
        bidders      = EXCLUDED.bidders,
        leaderboard  = EXCLUDED.leaderboard;`

	listRoundViewsBetweenSQL = `SELECT
        auction_id,
        round_number,
        observed_at,
        status,
        is_open,
        highest_bid::text,
        prize_amount::text,
        bidders,
        leaderboard,
        created_at
    FROM round_views
    WHERE observed_at >= $1
      AND observed_at < $2
    ORDER BY observed_at, round_number;`

	listRecentRoundViewsSQL = `SELECT
        auction_id,
        round_number,
        observed_at,
        status,
        is_open,
        highest_bid::text,
        prize_amount::text,
        bidders,
        leaderboard,
        created_at
    FROM round_views
    ORDER BY observed_at DESC, round_number
    LIMIT $1;`

	insertBidAttemptSQL = `INSERT INTO bid_attempts (
        id,
        auction_id,
        round_number,
        box_id,
        player_id,
        amount,
        success,
        message,
        created_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9
    )
    ON CONFLICT (id) DO NOTHING;`

	listRecentBidAttemptsSQL = `SELECT
        id::text,
        auction_id,
        round_number,
        box_id,
        player_id,
        amount::text,
        success,
        message,
        created_at
    FROM bid_attempts
    ORDER BY created_at DESC
    LIMIT $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// RoundViewStore defines operations for round observation persistence.
type RoundViewStore interface {
	UpsertRoundView(ctx context.Context, view RoundView) error
	ListRoundViewsBetween(ctx context.Context, from, to time.Time) ([]RoundView, error)
	ListRecentRoundViews(ctx context.Context, limit int) ([]RoundView, error)
}

// BidAttemptStore defines operations for bid auditing.
type BidAttemptStore interface {
	bidding.AttemptRecorder
	ListRecentBidAttempts(ctx context.Context, limit int) ([]bidding.Attempt, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to round views and bid attempts.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// best effort; the lock is dropped with the session anyway
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// UpsertRoundView persists or updates a round observation.
func (s *Store) UpsertRoundView(ctx context.Context, view RoundView) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	leaderboard := []byte(view.Leaderboard)
	if len(leaderboard) == 0 {
		leaderboard = []byte("[]")
	}

	_, execErr := pool.Exec(ctx, upsertRoundViewSQL,
		view.AuctionID,
		view.RoundNumber,
		view.ObservedAt,
		view.Status,
		view.IsOpen,
		view.HighestBid.String(),
		view.PrizeAmount.String(),
		view.Bidders,
		leaderboard,
	)
	if execErr != nil {
		return fmt.Errorf("upsert round view: %w", execErr)
	}
	return nil
}

// ListRoundViewsBetween lists observations within a time window.
func (s *Store) ListRoundViewsBetween(ctx context.Context, from, to time.Time) ([]RoundView, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRoundViewsBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list round views between: %w", queryErr)
	}
	defer rows.Close()

	views := make([]RoundView, 0)
	for rows.Next() {
		view, scanErr := scanRoundView(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		views = append(views, view)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return views, nil
}

// ListRecentRoundViews lists the most recent observations, newest first.
func (s *Store) ListRecentRoundViews(ctx context.Context, limit int) ([]RoundView, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentRoundViewsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent round views: %w", queryErr)
	}
	defer rows.Close()

	views := make([]RoundView, 0, limit)
	for rows.Next() {
		view, scanErr := scanRoundView(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		views = append(views, view)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return views, nil
}

// InsertBidAttempt persists a bid attempt.
func (s *Store) InsertBidAttempt(ctx context.Context, attempt bidding.Attempt) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var message interface{}
	if attempt.Message != "" {
		message = attempt.Message
	}

	_, execErr := pool.Exec(ctx, insertBidAttemptSQL,
		attempt.ID,
		attempt.HourlyAuctionID,
		attempt.RoundNumber,
		attempt.BoxID,
		attempt.PlayerID,
		attempt.Amount.String(),
		attempt.Success,
		message,
		attempt.CreatedAt,
	)
	if execErr != nil {
		return fmt.Errorf("insert bid attempt: %w", execErr)
	}
	return nil
}

// ListRecentBidAttempts lists the most recent bid attempts.
func (s *Store) ListRecentBidAttempts(ctx context.Context, limit int) ([]bidding.Attempt, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentBidAttemptsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent bid attempts: %w", queryErr)
	}
	defer rows.Close()

	attempts := make([]bidding.Attempt, 0, limit)
	for rows.Next() {
		var (
			rec       bidding.Attempt
			id        string
			amountStr string
			message   sql.NullString
		)
		if err := rows.Scan(
			&id,
			&rec.HourlyAuctionID,
			&rec.RoundNumber,
			&rec.BoxID,
			&rec.PlayerID,
			&amountStr,
			&rec.Success,
			&message,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}

		var convErr error
		rec.ID, convErr = uuid.Parse(id)
		if convErr != nil {
			return nil, fmt.Errorf("parse attempt id: %w", convErr)
		}
		rec.Amount, convErr = decimal.NewFromString(amountStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse amount: %w", convErr)
		}
		if message.Valid {
			rec.Message = message.String
		}

		attempts = append(attempts, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return attempts, nil
}

func scanRoundView(rows pgx.Rows) (RoundView, error) {
	var (
		view        RoundView
		highestStr  string
		prizeStr    string
		leaderboard []byte
	)

	if err := rows.Scan(
		&view.AuctionID,
		&view.RoundNumber,
		&view.ObservedAt,
		&view.Status,
		&view.IsOpen,
		&highestStr,
		&prizeStr,
		&view.Bidders,
		&leaderboard,
		&view.CreatedAt,
	); err != nil {
		return RoundView{}, err
	}

	highest, err := decimal.NewFromString(highestStr)
	if err != nil {
		return RoundView{}, fmt.Errorf("parse highest bid: %w", err)
	}
	prize, err := decimal.NewFromString(prizeStr)
	if err != nil {
		return RoundView{}, fmt.Errorf("parse prize amount: %w", err)
	}

	view.HighestBid = highest
	view.PrizeAmount = prize
	view.Leaderboard = json.RawMessage(leaderboard)
	return view, nil
}

var _ RoundViewStore = (*Store)(nil)
var _ BidAttemptStore = (*Store)(nil)
var _ AdvisoryLocker = (*Store)(nil)
