package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dream60/internal/auction"
)

func sampleNotification() Notification {
	return Notification{
		Kind:           KindRoundCompleted,
		AuctionID:      "HA-1",
		RoundNumber:    2,
		PreviousStatus: auction.StatusActive,
		CurrentStatus:  auction.StatusCompleted,
		HighestBid:     decimal.NewFromInt(450),
		Bidder:         "ann",
		ObservedAt:     time.Date(2026, 10, 17, 10, 30, 0, 0, time.UTC),
	}
}

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottoken/sendMessage" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, zerolog.Nop())
	if err := notifier.Notify(context.Background(), sampleNotification()); err != nil {
		t.Fatalf("notify should succeed: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("unexpected chat_id: %#v", received)
	}
	if !strings.Contains(received["text"], "Round: 2") {
		t.Fatalf("text should mention the round: %q", received["text"])
	}
}

func TestTelegramNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, zerolog.Nop())
	if err := notifier.Notify(context.Background(), sampleNotification()); err == nil {
		t.Fatal("ok=false should surface an error")
	}
}

func TestTelegramNotifierBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, zerolog.Nop())
	if err := notifier.Notify(context.Background(), sampleNotification()); err == nil {
		t.Fatal("non-2xx should surface an error")
	}
}

func TestRenderMessage(t *testing.T) {
	msg := renderMessage(sampleNotification())
	for _, want := range []string{
		"[Dream60 Round Alert]",
		"Auction: HA-1",
		"Status: active -> completed",
		"Highest bid: 450.00",
		"Leader: ann",
		"Observed: 2026-10-17T10:30:00Z UTC",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message missing %q:\n%s", want, msg)
		}
	}
	if strings.Contains(msg, "Prize:") {
		t.Fatalf("zero prize should be omitted:\n%s", msg)
	}
}

func TestKindFor(t *testing.T) {
	cases := []struct {
		prev, cur auction.RoundStatus
		want      Kind
		ok        bool
	}{
		{auction.StatusUpcoming, auction.StatusActive, KindRoundOpened, true},
		{auction.StatusActive, auction.StatusCompleted, KindRoundCompleted, true},
		{auction.StatusCompleted, auction.StatusWinnersAnnounced, KindWinnersAnnounced, true},
		{auction.StatusActive, auction.StatusActive, "", false},
		{auction.StatusActive, auction.StatusUpcoming, "", false},
	}
	for _, tc := range cases {
		got, ok := KindFor(tc.prev, tc.cur)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("KindFor(%s,%s) = %s,%v want %s,%v", tc.prev, tc.cur, got, ok, tc.want, tc.ok)
		}
	}
}
