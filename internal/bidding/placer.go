package bidding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dream60/internal/auction"
)

// User-facing failure messages.
const (
	MsgNotLoggedIn     = "Please log in to place a bid."
	MsgNoActiveAuction = "No active auction found. Please refresh."
	MsgGenericFailure  = "Failed to place bid. Please try again."
)

// Session identifies the bidding user. An empty UserID means not logged in.
type Session struct {
	UserID   string
	Username string
}

// AuctionContext is what the caller knows about the live auction when bidding.
type AuctionContext struct {
	HourlyAuctionID string
	Boxes           []auction.Box
}

// Callbacks receive exactly one notification per PlaceBid call. Nil callbacks are skipped.
type Callbacks struct {
	OnSuccess func(roundNumber int, amount decimal.Decimal)
	OnFailure func(roundNumber int, amount decimal.Decimal, message string)
}

// Outcome reports the result of a bid attempt.
type Outcome struct {
	RequestID   string
	RoundNumber int
	Amount      decimal.Decimal
	Success     bool
	Message     string
	// AliasedBoxID is set when no round box matched and the box id was sent as the round number.
	AliasedBoxID bool
	// Sent is false when a precondition failed before any request was issued.
	Sent bool
}

// Attempt is the audit record of one bid attempt.
type Attempt struct {
	ID              uuid.UUID
	HourlyAuctionID string
	RoundNumber     int
	BoxID           int
	PlayerID        string
	Amount          decimal.Decimal
	Success         bool
	Message         string
	CreatedAt       time.Time
}

// AttemptRecorder persists bid attempts.
type AttemptRecorder interface {
	InsertBidAttempt(ctx context.Context, attempt Attempt) error
}

// Options parameterise the bid placer.
type Options struct {
	BaseURL   string
	BidPath   string
	Timeout   time.Duration
	UserAgent string
}

// Placer sends bids to the backend.
type Placer struct {
	opts     Options
	client   *http.Client
	baseURL  string
	recorder AttemptRecorder
	logger   zerolog.Logger
}

// NewPlacer constructs a bid placer. recorder may be nil.
func NewPlacer(opts Options, recorder AttemptRecorder, logger zerolog.Logger) *Placer {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Placer{
		opts:     opts,
		client:   &http.Client{Timeout: timeout},
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		recorder: recorder,
		logger:   logger.With().Str("component", "bid_placer").Logger(),
	}
}

// PlaceBid places amount on the round bound to boxID. Preconditions are checked before any
// network call; failures are reported through the outcome and OnFailure, never as errors.
// No retries are made.
func (p *Placer) PlaceBid(ctx context.Context, boxID int, amount decimal.Decimal, session Session, actx AuctionContext, cb Callbacks) Outcome {
	round, matched := auction.RoundForBox(actx.Boxes, boxID)
	out := Outcome{RoundNumber: round, Amount: amount, AliasedBoxID: !matched}

	if strings.TrimSpace(session.UserID) == "" {
		return p.finish(ctx, out, boxID, session, actx, MsgNotLoggedIn, cb)
	}
	if strings.TrimSpace(actx.HourlyAuctionID) == "" {
		return p.finish(ctx, out, boxID, session, actx, MsgNoActiveAuction, cb)
	}

	if !matched {
		p.logger.Warn().Int("box_id", boxID).Msg("no round box matched; sending box id as round number")
	}

	out.RequestID = uuid.NewString()
	out.Sent = true
	msg := p.send(ctx, out, session, actx)
	return p.finish(ctx, out, boxID, session, actx, msg, cb)
}

// send issues the request and returns "" on success or the failure message.
func (p *Placer) send(ctx context.Context, out Outcome, session Session, actx AuctionContext) string {
	payload := bidRequest{
		PlayerID:        session.UserID,
		PlayerUsername:  session.Username,
		AuctionValue:    json.Number(out.Amount.String()),
		HourlyAuctionID: actx.HourlyAuctionID,
		RoundNumber:     out.RoundNumber,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error().Err(err).Msg("marshal bid payload")
		return MsgGenericFailure
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+p.opts.BidPath, bytes.NewReader(body))
	if err != nil {
		p.logger.Error().Err(err).Msg("create bid request")
		return MsgGenericFailure
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", out.RequestID)
	if ua := strings.TrimSpace(p.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Error().Err(err).Str("request_id", out.RequestID).Msg("send bid request")
		return MsgGenericFailure
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		p.logger.Error().Err(err).Str("request_id", out.RequestID).Msg("read bid response")
		return MsgGenericFailure
	}

	var res bidResponse
	decodeErr := json.Unmarshal(raw, &res)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		p.logger.Warn().Int("status", resp.StatusCode).Str("request_id", out.RequestID).Msg("bid rejected")
		if decodeErr == nil && res.Message != "" {
			return res.Message
		}
		return MsgGenericFailure
	}
	if decodeErr != nil {
		p.logger.Error().Err(decodeErr).Str("request_id", out.RequestID).Msg("decode bid response")
		return MsgGenericFailure
	}
	if res.Success != nil && !*res.Success {
		if res.Message != "" {
			return res.Message
		}
		return MsgGenericFailure
	}
	return ""
}

func (p *Placer) finish(ctx context.Context, out Outcome, boxID int, session Session, actx AuctionContext, msg string, cb Callbacks) Outcome {
	out.Success = msg == ""
	out.Message = msg

	if out.Success {
		p.logger.Info().
			Int("round", out.RoundNumber).
			Str("amount", out.Amount.String()).
			Str("request_id", out.RequestID).
			Msg("bid placed")
		if cb.OnSuccess != nil {
			cb.OnSuccess(out.RoundNumber, out.Amount)
		}
	} else {
		p.logger.Info().
			Int("round", out.RoundNumber).
			Str("amount", out.Amount.String()).
			Bool("sent", out.Sent).
			Str("reason", msg).
			Msg("bid failed")
		if cb.OnFailure != nil {
			cb.OnFailure(out.RoundNumber, out.Amount, msg)
		}
	}

	p.record(ctx, out, boxID, session, actx)
	return out
}

func (p *Placer) record(ctx context.Context, out Outcome, boxID int, session Session, actx AuctionContext) {
	if p.recorder == nil || !out.Sent {
		return
	}

	id, err := uuid.Parse(out.RequestID)
	if err != nil {
		id = uuid.New()
	}
	attempt := Attempt{
		ID:              id,
		HourlyAuctionID: actx.HourlyAuctionID,
		RoundNumber:     out.RoundNumber,
		BoxID:           boxID,
		PlayerID:        session.UserID,
		Amount:          out.Amount,
		Success:         out.Success,
		Message:         out.Message,
		CreatedAt:       time.Now().UTC(),
	}
	if err := p.recorder.InsertBidAttempt(ctx, attempt); err != nil {
		p.logger.Error().Err(err).Str("request_id", out.RequestID).Msg("failed to persist bid attempt")
	}
}

type bidRequest struct {
	PlayerID        string      `json:"playerId"`
	PlayerUsername  string      `json:"playerUsername"`
	AuctionValue    json.Number `json:"auctionValue"`
	HourlyAuctionID string      `json:"hourlyAuctionId"`
	RoundNumber     int         `json:"roundNumber"`
}

type bidResponse struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
}

// Describe renders an outcome for terminal output.
func Describe(out Outcome) string {
	if out.Success {
		return fmt.Sprintf("bid of %s placed on round %d", out.Amount.String(), out.RoundNumber)
	}
	return fmt.Sprintf("bid of %s on round %d failed: %s", out.Amount.String(), out.RoundNumber, out.Message)
}
