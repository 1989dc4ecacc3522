package app

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dream60/internal/alerting"
	"dream60/internal/bidding"
	"dream60/internal/config"
	"dream60/internal/fetcher"
	"dream60/internal/scheduler"
	"dream60/internal/service"
	"dream60/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	// Out receives tables and reports; defaults to stdout.
	Out io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger(), Out: os.Stdout}
}

func (a *App) newAPI() *fetcher.API {
	return fetcher.NewAPI(fetcher.Options{
		BaseURL:           a.Config.API.BaseURL,
		SnapshotPath:      a.Config.API.SnapshotPath,
		ServerTimePath:    a.Config.API.ServerTimePath,
		Timeout:           a.Config.API.RequestTimeout,
		UserAgent:         a.Config.API.UserAgent,
		RequestsPerSecond: a.Config.API.RequestsPerSecond,
		Burst:             a.Config.API.Burst,
	}, a.Logger)
}

func (a *App) newPlacer(recorder bidding.AttemptRecorder) *bidding.Placer {
	return bidding.NewPlacer(bidding.Options{
		BaseURL:   a.Config.API.BaseURL,
		BidPath:   a.Config.API.BidPath,
		Timeout:   a.Config.API.RequestTimeout,
		UserAgent: a.Config.API.UserAgent,
	}, recorder, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if !a.Config.Alerting.Enabled {
		return nil
	}
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return alerting.NewLogNotifier(a.Logger)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// requireStore opens the database or fails with a message naming the command.
func (a *App) requireStore(ctx context.Context, what string) (*storage.Store, func(), error) {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if store == nil {
		return nil, nil, errors.New("database not configured; cannot " + what)
	}
	return store, closeStore, nil
}

// newService builds a watcher for one-shot use: no scheduler, no persistence.
func (a *App) newService(notifier alerting.Notifier) *service.Service {
	api := a.newAPI()
	return service.New(service.OptionsFromConfig(a.Config), nil, api, api, nil, notifier, a.Logger)
}

func (a *App) entryFee() decimal.Decimal {
	return decimal.NewFromFloat(a.Config.Auction.EntryFee)
}

// Watch runs the long-lived round poller until interrupted.
func (a *App) Watch(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	var views storage.RoundViewStore
	if store != nil {
		views = store
	}

	api := a.newAPI()
	svc := service.New(service.OptionsFromConfig(a.Config), sched, api, api, views, a.newNotifier(), a.Logger)

	a.Logger.Info().Dur("interval", a.Config.Scheduler.Interval).Msg("starting round watcher")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("watcher terminated with error")
		return err
	}

	a.Logger.Info().Msg("round watcher stopped")
	return nil
}

// ExportOptions hold parameters for exporting round history.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// HistoryOptions configure the history command.
type HistoryOptions struct {
	Limit int
	Bids  bool
}

// BidOptions configure a single bid.
type BidOptions struct {
	BoxID    int
	Amount   decimal.Decimal
	UserID   string
	Username string
}
