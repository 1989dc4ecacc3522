package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dream60/internal/auction"
)

// Kind classifies a round transition.
type Kind string

const (
	KindRoundOpened      Kind = "round_opened"
	KindRoundCompleted   Kind = "round_completed"
	KindWinnersAnnounced Kind = "winners_announced"
)

// Notification carries one observed round transition.
type Notification struct {
	Kind           Kind
	AuctionID      string
	RoundNumber    int
	PreviousStatus auction.RoundStatus
	CurrentStatus  auction.RoundStatus
	HighestBid     decimal.Decimal
	PrizeAmount    decimal.Decimal
	Bidder         string
	ObservedAt     time.Time
}

// KindFor maps a status change to a notification kind. ok is false for
// transitions nobody needs to hear about.
func KindFor(previous, current auction.RoundStatus) (Kind, bool) {
	if previous == current {
		return "", false
	}
	switch current {
	case auction.StatusActive:
		return KindRoundOpened, true
	case auction.StatusCompleted:
		return KindRoundCompleted, true
	case auction.StatusWinnersAnnounced:
		return KindWinnersAnnounced, true
	default:
		return "", false
	}
}

// Notifier delivers round notifications.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// LogNotifier writes notifications to the structured log only.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "alert_log").Logger()}
}

// Notify logs the notification at info level.
func (n *LogNotifier) Notify(_ context.Context, note Notification) error {
	n.logger.Info().
		Str("kind", string(note.Kind)).
		Str("auction_id", note.AuctionID).
		Int("round", note.RoundNumber).
		Str("previous", string(note.PreviousStatus)).
		Str("current", string(note.CurrentStatus)).
		Str("highest_bid", note.HighestBid.String()).
		Msg("round transition")
	return nil
}

// TelegramNotifier pushes notifications through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram notifier.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify calls sendMessage with the rendered text.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram unexpected status: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().
		Str("kind", string(note.Kind)).
		Int("round", note.RoundNumber).
		Msg("notification sent (telegram)")
	return nil
}

func renderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString("[Dream60 Round Alert]\n")
	builder.WriteString(fmt.Sprintf("Auction: %s\n", note.AuctionID))
	builder.WriteString(fmt.Sprintf("Round: %d\n", note.RoundNumber))
	builder.WriteString(fmt.Sprintf("Event: %s\n", note.Kind))
	if note.PreviousStatus != "" {
		builder.WriteString(fmt.Sprintf("Status: %s -> %s\n", note.PreviousStatus, note.CurrentStatus))
	} else {
		builder.WriteString(fmt.Sprintf("Status: %s\n", note.CurrentStatus))
	}
	builder.WriteString(fmt.Sprintf("Highest bid: %s\n", note.HighestBid.StringFixed(2)))
	if note.Bidder != "" {
		builder.WriteString(fmt.Sprintf("Leader: %s\n", note.Bidder))
	}
	if note.PrizeAmount.IsPositive() {
		builder.WriteString(fmt.Sprintf("Prize: %s\n", note.PrizeAmount.StringFixed(2)))
	}
	builder.WriteString(fmt.Sprintf("Observed: %s UTC\n", note.ObservedAt.UTC().Format(time.RFC3339)))
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
var _ Notifier = (*LogNotifier)(nil)
