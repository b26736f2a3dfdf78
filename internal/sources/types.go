package sources

import (
	"context"
	"time"

	"indexticker/internal/instruments"
)

// Quote is the normalized result of one successful fetch for one instrument.
// A new cycle produces a new Quote; values are never mutated after creation.
type Quote struct {
	Price float64
	// ChangePct is the one-day percent change. Nil when the provider cannot
	// supply it (and it cannot be derived from history).
	ChangePct *float64
	Source    string
	FetchedAt time.Time
}

// Provider fetches quotes for a set of instruments in a single attempt.
// Implementations must not retry internally; retry and fallback policy
// live in Policy and Resolver.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, insts []instruments.Instrument) (map[string]Quote, error)
}

// Outcome is the cycle-scope result of resolving all tracked instruments.
// Either Quotes is populated (possibly partially, with Degraded set) or
// Err carries the aggregated failure.
type Outcome struct {
	Quotes map[string]Quote
	// Degraded marks a partial result: some requested instruments are
	// missing from Quotes even after the full provider chain.
	Degraded bool
	Attempts int
	Err      error
}

func (o Outcome) OK() bool { return o.Err == nil && len(o.Quotes) > 0 }

func changePtr(v float64) *float64 { return &v }
