package sources

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"indexticker/internal/instruments"
)

// ResolveError aggregates each provider's last error after the whole chain
// was exhausted. Diagnostics only; never shown verbatim to destinations.
type ResolveError struct {
	Errs map[string]error
}

func (e *ResolveError) Error() string {
	names := make([]string, 0, len(e.Errs))
	for name := range e.Errs {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %v", name, e.Errs[name]))
	}
	return "all providers failed: " + strings.Join(parts, "; ")
}

// Resolver tries providers strictly in priority order, wrapping each call in
// the shared retry policy and short-circuiting on the first complete answer.
type Resolver struct {
	chain  []Provider
	policy Policy
	log    zerolog.Logger
}

func NewResolver(log zerolog.Logger, policy Policy, chain ...Provider) *Resolver {
	return &Resolver{chain: chain, policy: policy, log: log.With().Str("component", "resolver").Logger()}
}

// Resolve fetches quotes for all tracked instruments in one pass. A provider
// answering only a subset does not stop the chain; later providers get a
// chance to produce a complete set. If the chain ends with only partial data,
// the partial set is returned marked Degraded instead of being silently
// padded from the cache.
func (r *Resolver) Resolve(ctx context.Context, insts []instruments.Instrument) Outcome {
	var (
		total   int
		partial map[string]Quote
		errs    = map[string]error{}
	)

	for _, prov := range r.chain {
		quotes, attempts, err := r.policy.Run(ctx, prov, insts)
		total += attempts
		if err != nil {
			errs[prov.Name()] = err
			r.log.Warn().Str("provider", prov.Name()).Int("attempts", attempts).Err(err).Msg("provider exhausted")
			continue
		}
		if len(quotes) >= len(insts) {
			return Outcome{Quotes: quotes, Attempts: total}
		}
		r.log.Warn().Str("provider", prov.Name()).
			Int("got", len(quotes)).Int("want", len(insts)).
			Msg("provider returned a subset")
		errs[prov.Name()] = malformedErr(prov.Name(), fmt.Sprintf("partial result: %d of %d instruments", len(quotes), len(insts)))
		if len(quotes) > len(partial) {
			partial = quotes
		}
	}

	if len(partial) > 0 {
		return Outcome{Quotes: partial, Degraded: true, Attempts: total}
	}
	return Outcome{Attempts: total, Err: &ResolveError{Errs: errs}}
}
