package fetcher

import (
	"context"

	"dream60/internal/auction"
)

// SnapshotFetcher retrieves the live hourly auction from the backend.
type SnapshotFetcher interface {
	FetchSnapshot(ctx context.Context) (auction.Snapshot, error)
}

// ClockFetcher retrieves the authoritative server clock.
type ClockFetcher interface {
	FetchServerTime(ctx context.Context) (auction.ServerTime, error)
}
