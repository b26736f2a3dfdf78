package sources

import (
	"context"
	"time"

	"indexticker/internal/instruments"
)

// Policy is the bounded linear backoff shared by every adapter: one attempt
// per delay slot, waiting the slot's delay first. The first delay is zero so
// the first attempt is immediate. Rate-limit failures consume a normal slot;
// provider-specific throttling is not this layer's job.
type Policy struct {
	Delays []time.Duration
}

func DefaultPolicy() Policy {
	return Policy{Delays: []time.Duration{0, 1500 * time.Millisecond, 3 * time.Second, 5 * time.Second}}
}

// Run invokes the provider up to len(Delays) times and returns the first
// success, or the last error with the number of attempts actually made.
func (p Policy) Run(ctx context.Context, prov Provider, insts []instruments.Instrument) (map[string]Quote, int, error) {
	var lastErr error
	attempts := 0
	for _, delay := range p.Delays {
		if delay > 0 {
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				if lastErr == nil {
					lastErr = ctx.Err()
				}
				return nil, attempts, lastErr
			case <-t.C:
			}
		}
		attempts++
		quotes, err := prov.Fetch(ctx, insts)
		if err == nil {
			return quotes, attempts, nil
		}
		lastErr = err
	}
	return nil, attempts, lastErr
}
