package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"pumptrader/internal/alerting"
	"pumptrader/internal/cache"
	"pumptrader/internal/chat"
	"pumptrader/internal/config"
	"pumptrader/internal/fetcher"
	"pumptrader/internal/ledger"
	"pumptrader/internal/market"
	"pumptrader/internal/scheduler"
	"pumptrader/internal/service"
	"pumptrader/internal/storage"
	"pumptrader/internal/trading"
	"pumptrader/internal/venue"
	"pumptrader/internal/version"
)

const shutdownTimeout = 10 * time.Second

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	logger = logger.With().Str("service", cfg.App.Name).Logger()
	return &App{Config: cfg, Logger: logger}
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

func (a *App) openCache(ctx context.Context) (cache.Store, func(), error) {
	cfg := a.Config.Cache
	if cfg.RedisAddr == "" {
		return cache.NewMemoryStore(), func() {}, nil
	}

	store, err := cache.NewRedisStore(ctx, &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, cfg.Prefix)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { _ = store.Close() }, nil
}

func (a *App) newSource(cacheStore cache.Store, fromFile string) market.Source {
	if fromFile != "" {
		return fetcher.FileSource{Path: fromFile}
	}
	ua := a.Config.Scanner.UserAgent
	if ua == "" {
		ua = version.UserAgent()
	}
	return fetcher.NewFeed(fetcher.FeedOptions{
		URL:       a.Config.Scanner.SourceURL,
		Timeout:   a.Config.Scanner.RequestTimeout,
		UserAgent: ua,
		Cache:     cacheStore,
		CacheTTL:  a.Config.Scanner.CacheTTL,
	}, a.Logger)
}

func (a *App) newVenue() *venue.Client {
	return venue.NewClient(venue.Options{
		Endpoint:  a.Config.Venue.Endpoint,
		APIKey:    a.Config.Venue.APIKey,
		Timeout:   a.Config.Venue.RequestTimeout,
		UserAgent: version.UserAgent(),
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Telegram.Enabled() {
		cfg := a.Config.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, cfg.RequestTimeout, a.Logger)
	}
	a.Logger.Warn().Msg("telegram.bot_token not configured; messages go to the log")
	return alerting.NewLogNotifier(a.Logger)
}

// Run executes the long-running trading service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	var (
		trades storage.TradeStore
		locker storage.AdvisoryLocker
	)
	if store != nil {
		defer closeStore()
		if err := storage.Migrate(ctx, store.Pool()); err != nil {
			return err
		}
		trades, locker = store, store
	} else {
		a.Logger.Warn().Msg("database.dsn not configured; trade ledger kept in memory")
		trades = storage.NewMemoryStore()
	}

	cacheStore, closeCache, err := a.openCache(ctx)
	if err != nil {
		return err
	}
	defer closeCache()

	dispatcher := alerting.NewDispatcher(a.newNotifier(), alerting.DispatcherOptions{
		QueueSize:   a.Config.Notifications.QueueSize,
		SendTimeout: a.Config.Telegram.RequestTimeout,
	}, a.Logger)
	defer func() {
		flushCtx, cancelFlush := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelFlush()
		if err := dispatcher.Close(flushCtx); err != nil {
			a.Logger.Warn().Err(err).Int64("dropped", dispatcher.Dropped()).Msg("notification queue not drained")
		}
	}()

	tradeVenue := a.newVenue()
	book := ledger.New(trades, a.Logger)
	executor := trading.NewExecutor(tradeVenue, book, dispatcher, a.Logger)
	scanner := market.NewScanner(a.newSource(cacheStore, ""), a.Logger)

	svc, err := service.New(a.Config.Policy(), service.Deps{
		Scanner:  scanner,
		Executor: executor,
		Ledger:   book,
		Sender:   dispatcher,
		Locker:   locker,
		LockKey:  a.Config.Scheduler.AdvisoryLockKey,
	}, a.Logger)
	if err != nil {
		return err
	}

	sched, err := scheduler.New(scheduler.Options{
		Interval:       a.Config.Scheduler.Interval,
		StartupDelay:   a.Config.Scheduler.StartupDelay,
		RunImmediately: a.Config.Scheduler.RunImmediately,
	}, svc.Tick, a.Logger)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sched.Run(gctx)
	})

	if a.Config.Telegram.Enabled() && a.Config.Telegram.Commands {
		bot, err := a.newBot(chat.NewHandler(executor, tradeVenue, dispatcher, a.Logger))
		if err != nil {
			return err
		}
		g.Go(func() error {
			if err := bot.Run(gctx); err != nil {
				a.Logger.Error().Err(err).Msg("chat commands unavailable")
			}
			return nil
		})
	}

	policy := a.Config.Policy()
	a.Logger.Info().
		Bool("auto_trade", policy.AutoTrade.Enabled).
		Str("auto_trade_amount", policy.AutoTrade.Amount.String()).
		Dur("cooldown", policy.Cooldown).
		Dur("interval", a.Config.Scheduler.Interval).
		Msg("starting trading service")

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Int64("dropped_observations", scanner.Dropped()).Msg("trading service stopped")
	return nil
}

func (a *App) newBot(handler *chat.Handler) (*chat.Bot, error) {
	cfg := a.Config.Telegram
	poller, err := chat.NewTelegramPoller(cfg.BotToken, cfg.APIBase, cfg.PollTimeout)
	if err != nil {
		return nil, err
	}
	return chat.NewBot(poller, handler, cfg.ChatID, a.Logger)
}

// ExportOptions hold parameters for exporting ledger history.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// TradesOptions configure the trades command.
type TradesOptions struct {
	Limit int
}

// ScanOptions configure a one-shot scan.
type ScanOptions struct {
	FromFile string
}
