package bot

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"

	"indexticker/internal/broadcast"
	"indexticker/internal/config"
	"indexticker/internal/discord"
	"indexticker/internal/httpx"
	"indexticker/internal/instruments"
	"indexticker/internal/scheduler"
	"indexticker/internal/sources"
)

// Providers that bill per call get a longer floor between attempts than the
// free feeds we own no quota on.
const (
	yahooMinInterval   = 2 * time.Second
	stooqMinInterval   = 5 * time.Second
	finnhubMinInterval = 1 * time.Second
)

type App struct {
	cfg config.Config
	log zerolog.Logger

	session   *discord.Bot
	sched     *scheduler.Scheduler
	providers int
}

func New(cfg config.Config) (*App, error) {
	log := newLogger(cfg.Debug)

	session, err := discord.NewBot(cfg.BotToken, cfg.GuildIDs, log)
	if err != nil {
		return nil, err
	}

	client := httpx.New(10 * time.Second)

	// Priority order: paid low-latency API when configured, then the primary
	// quote API, then history-derived quotes on the same vendor, then the
	// independent secondary vendor.
	var chain []sources.Provider
	if cfg.FinnhubAPIKey != "" {
		chain = append(chain, sources.Gate(sources.NewFinnhub(client, cfg.FinnhubAPIKey), finnhubMinInterval))
	}
	chain = append(chain,
		sources.Gate(sources.NewYahooQuote(client), yahooMinInterval),
		sources.Gate(sources.NewYahooChart(client), yahooMinInterval),
		sources.Gate(sources.NewStooq(client), stooqMinInterval),
	)

	resolver := sources.NewResolver(log, sources.DefaultPolicy(), chain...)
	bcast := broadcast.New(session, log)
	sched := scheduler.New(resolver, bcast, log, instruments.All, cfg.Interval(), cfg.Jitter())

	return &App{cfg: cfg, log: log, session: session, sched: sched, providers: len(chain)}, nil
}

// Run connects the destination session and starts the update loop. It blocks
// until Close is called.
func (a *App) Run(ctx context.Context) error {
	readyCtx, cancel := context.WithTimeout(ctx, discord.ReadyTimeout)
	defer cancel()
	if err := a.session.Open(readyCtx); err != nil {
		return err
	}

	a.log.Info().
		Int("interval_s", a.cfg.IntervalSeconds).
		Int("providers", a.providers).
		Int("guild_filter", len(a.cfg.GuildIDs)).
		Msg("updater loop starting")
	a.sched.Start()

	<-ctx.Done()
	return nil
}

func (a *App) Close() {
	a.sched.Stop()
	if err := a.session.Close(); err != nil {
		a.log.Warn().Err(err).Msg("session close")
	}
}

func newLogger(debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
