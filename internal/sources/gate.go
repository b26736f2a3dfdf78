package sources

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"indexticker/internal/instruments"
)

// Gated enforces a minimum interval between calls to one provider, so
// back-to-back cycles (or a hot fallback chain) cannot hammer a free vendor.
// The wait happens before the attempt and respects ctx cancellation.
type Gated struct {
	P   Provider
	lim *rate.Limiter
}

func Gate(p Provider, minInterval time.Duration) *Gated {
	if minInterval <= 0 {
		minInterval = time.Second
	}
	return &Gated{P: p, lim: rate.NewLimiter(rate.Every(minInterval), 1)}
}

func (g *Gated) Name() string { return g.P.Name() }

func (g *Gated) Fetch(ctx context.Context, insts []instruments.Instrument) (map[string]Quote, error) {
	if err := g.lim.Wait(ctx); err != nil {
		return nil, transportErr(g.Name(), err)
	}
	return g.P.Fetch(ctx, insts)
}
