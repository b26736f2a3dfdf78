package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"indexticker/internal/broadcast"
	"indexticker/internal/discord"
	"indexticker/internal/instruments"
	"indexticker/internal/render"
	"indexticker/internal/sources"
)

type stubProvider struct {
	name string
	fn   func(ctx context.Context, insts []instruments.Instrument) (map[string]sources.Quote, error)
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Fetch(ctx context.Context, insts []instruments.Instrument) (map[string]sources.Quote, error) {
	return s.fn(ctx, insts)
}

type recordingSession struct {
	mu       sync.Mutex
	labels   []string
	statuses []string
}

func (r *recordingSession) Destinations() []discord.Destination {
	return []discord.Destination{{ID: "g1", Name: "guild one"}}
}

func (r *recordingSession) Destination(id string) (discord.Destination, bool) {
	return discord.Destination{ID: "g1", Name: "guild one"}, id == "g1"
}

func (r *recordingSession) Capabilities(discord.Destination) discord.Capabilities {
	return discord.Capabilities{CanEditLabel: true}
}

func (r *recordingSession) SetLabel(_ context.Context, _ discord.Destination, text, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.labels = append(r.labels, text)
	return nil
}

func (r *recordingSession) SetStatus(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, text)
	return nil
}

func (r *recordingSession) snapshot() (labels, statuses []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.labels...), append([]string(nil), r.statuses...)
}

func fullQuotes(price float64) map[string]sources.Quote {
	change := 1.15
	out := map[string]sources.Quote{}
	for _, it := range instruments.All {
		out[it.ID] = sources.Quote{Price: price, ChangePct: &change, Source: "stub", FetchedAt: time.Now()}
	}
	return out
}

func newTestScheduler(sess discord.Session, provider sources.Provider) *Scheduler {
	policy := sources.Policy{Delays: []time.Duration{0}}
	resolver := sources.NewResolver(zerolog.Nop(), policy, provider)
	bcast := broadcast.New(sess, zerolog.Nop())
	return New(resolver, bcast, zerolog.Nop(), instruments.All, 10*time.Millisecond, 0)
}

func TestCycleAlternatesInstruments(t *testing.T) {
	sess := &recordingSession{}
	ok := &stubProvider{name: "stub", fn: func(context.Context, []instruments.Instrument) (map[string]sources.Quote, error) {
		return fullQuotes(17003.1), nil
	}}
	s := newTestScheduler(sess, ok)

	s.runCycle()
	s.runCycle()
	s.runCycle()

	_, statuses := sess.snapshot()
	require.Len(t, statuses, 3)
	assert.True(t, strings.HasPrefix(statuses[0], "NASDAQ "))
	assert.True(t, strings.HasPrefix(statuses[1], "S&P 500 "))
	// Round-robin wraps back to the first instrument.
	assert.True(t, strings.HasPrefix(statuses[2], "NASDAQ "))
}

func TestCycleSuccessUpdatesLabelsAndCache(t *testing.T) {
	sess := &recordingSession{}
	ok := &stubProvider{name: "stub", fn: func(context.Context, []instruments.Instrument) (map[string]sources.Quote, error) {
		return fullQuotes(17003.1), nil
	}}
	s := newTestScheduler(sess, ok)

	s.runCycle()

	labels, statuses := sess.snapshot()
	require.Len(t, labels, 1)
	assert.Equal(t, "$17,003.10 🟢", labels[0])
	require.Len(t, statuses, 1)
	assert.Equal(t, "NASDAQ 1D +1.15%", statuses[0])

	q, okCache := s.cache.Last("IXIC")
	require.True(t, okCache)
	assert.Equal(t, 17003.1, q.Price)
}

func TestCycleFailureKeepsLabelAndCache(t *testing.T) {
	sess := &recordingSession{}
	good := fullQuotes(17003.1)
	calls := 0
	flaky := &stubProvider{name: "stub", fn: func(context.Context, []instruments.Instrument) (map[string]sources.Quote, error) {
		calls++
		if calls == 1 {
			return good, nil
		}
		return nil, errors.New("provider down")
	}}
	s := newTestScheduler(sess, flaky)

	s.runCycle()
	s.runCycle()

	labels, statuses := sess.snapshot()
	// Failed cycle sends no label; the previous one is never overwritten.
	require.Len(t, labels, 1)
	require.Len(t, statuses, 2)
	assert.Equal(t, render.StatusUnavailable, statuses[1])

	// Last-known quote survives the failed cycle.
	q, okCache := s.cache.Last("IXIC")
	require.True(t, okCache)
	assert.Equal(t, 17003.1, q.Price)
}

func TestCycleMissingActiveInstrument(t *testing.T) {
	sess := &recordingSession{}
	partial := &stubProvider{name: "stub", fn: func(context.Context, []instruments.Instrument) (map[string]sources.Quote, error) {
		change := 0.5
		return map[string]sources.Quote{
			"GSPC": {Price: 4783.45, ChangePct: &change, Source: "stub", FetchedAt: time.Now()},
		}, nil
	}}
	s := newTestScheduler(sess, partial)

	// First cycle's active instrument is NASDAQ, which is missing.
	s.runCycle()

	labels, statuses := sess.snapshot()
	assert.Empty(t, labels)
	require.Len(t, statuses, 1)
	assert.Equal(t, "NASDAQ quote: n/a", statuses[0])
}

func TestCyclePanicDoesNotKillLoop(t *testing.T) {
	sess := &recordingSession{}
	bad := &stubProvider{name: "stub", fn: func(context.Context, []instruments.Instrument) (map[string]sources.Quote, error) {
		panic("adapter bug")
	}}
	s := newTestScheduler(sess, bad)

	require.NotPanics(t, func() { s.runCycle() })
}

func TestStartStop(t *testing.T) {
	sess := &recordingSession{}
	ok := &stubProvider{name: "stub", fn: func(context.Context, []instruments.Instrument) (map[string]sources.Quote, error) {
		return fullQuotes(100), nil
	}}
	s := newTestScheduler(sess, ok)

	s.Start()
	require.Eventually(t, func() bool {
		_, statuses := sess.snapshot()
		return len(statuses) >= 1
	}, 2*time.Second, 5*time.Millisecond)
	s.Stop()
}
