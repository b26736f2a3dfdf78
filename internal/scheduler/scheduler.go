package scheduler

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"indexticker/internal/broadcast"
	"indexticker/internal/instruments"
	"indexticker/internal/render"
	"indexticker/internal/sources"
)

const cycleTimeout = 45 * time.Second

// Scheduler drives the fixed-interval update loop. It is the only writer of
// the alternation index and the quote cache; destination fan-out happens in
// the broadcaster but never mutates scheduler state.
type Scheduler struct {
	resolver *sources.Resolver
	cache    *sources.Cache
	bcast    *broadcast.Broadcaster
	log      zerolog.Logger

	insts    []instruments.Instrument
	interval time.Duration
	jitter   time.Duration

	next int

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func New(resolver *sources.Resolver, bcast *broadcast.Broadcaster, log zerolog.Logger, insts []instruments.Instrument, interval, jitter time.Duration) *Scheduler {
	return &Scheduler{
		resolver: resolver,
		cache:    sources.NewCache(),
		bcast:    bcast,
		log:      log.With().Str("component", "scheduler").Logger(),
		insts:    insts,
		interval: interval,
		jitter:   jitter,
		stopCh:   make(chan struct{}),
	}
}

func (s *Scheduler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
}

func (s *Scheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *Scheduler) loop() {
	for {
		s.runCycle()

		wait := s.interval
		if s.jitter > 0 {
			// Small random jitter so independent deployments don't hit the
			// shared providers in lockstep.
			wait += time.Duration(rand.Int64N(int64(s.jitter) + 1))
		}
		select {
		case <-time.After(wait):
		case <-s.stopCh:
			return
		}
	}
}

// runCycle executes one iteration. Anything unexpected is caught here: a bad
// cycle is logged and skipped, never allowed to kill the loop.
func (s *Scheduler) runCycle() {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("cycle panicked")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), cycleTimeout)
	defer cancel()

	active := s.insts[s.next%len(s.insts)]
	s.next++

	log := s.log.With().Str("cycle", uuid.NewString()[:8]).Str("active", active.Name).Logger()

	out := s.resolver.Resolve(ctx, s.insts)
	up := s.buildUpdate(log, active, out)
	s.bcast.Apply(ctx, up)
}

// buildUpdate turns the cycle outcome into the broadcastable label/status
// pair. Failure keeps the previous label and shows the fixed unavailable
// status; a stale cache value is never presented as fresh data.
func (s *Scheduler) buildUpdate(log zerolog.Logger, active instruments.Instrument, out sources.Outcome) broadcast.Update {
	if out.Err != nil {
		event := log.Error().Int("attempts", out.Attempts).Err(out.Err)
		if age, ok := s.cache.Age(active.ID, time.Now()); ok {
			event = event.Dur("last_good_age", age)
		}
		event.Msg("quote fetch failed")
		return broadcast.Update{Status: render.StatusUnavailable, Reason: "quote fetch failed"}
	}

	s.cache.Update(out.Quotes)

	q, ok := out.Quotes[active.ID]
	if !ok {
		log.Warn().Bool("degraded", out.Degraded).Msg("no quote for active instrument")
		return broadcast.Update{
			Status: fmt.Sprintf("%s quote: n/a", active.Name),
			Reason: "partial quote result",
		}
	}

	label := render.Label(q)
	status := render.Status(active.Name, q)
	log.Info().
		Str("source", q.Source).
		Float64("price", q.Price).
		Str("label", label).
		Str("status", status).
		Bool("degraded", out.Degraded).
		Int("attempts", out.Attempts).
		Msg("cycle resolved")
	return broadcast.Update{
		Label:  label,
		Status: status,
		Reason: fmt.Sprintf("Auto %s price update", active.Name),
	}
}
