package broadcast

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"indexticker/internal/discord"
)

// Update is one cycle's outcome, ready to apply. An empty Label means "leave
// the current label alone" (failed cycles never overwrite a good label);
// Status is always set so the loop stays visibly alive.
type Update struct {
	Label  string
	Status string
	Reason string
}

// Broadcaster fans one Update out to every destination concurrently. One slow
// or failing destination never delays or aborts the others; the cycle is done
// when every destination task has finished.
type Broadcaster struct {
	sess discord.Session
	log  zerolog.Logger
}

func New(sess discord.Session, log zerolog.Logger) *Broadcaster {
	return &Broadcaster{sess: sess, log: log.With().Str("component", "broadcast").Logger()}
}

func (b *Broadcaster) Apply(ctx context.Context, up Update) {
	dests := b.sess.Destinations()
	if len(dests) == 0 {
		b.log.Info().Msg("no destinations to update yet")
	}

	var g errgroup.Group
	g.SetLimit(8)
	for _, d := range dests {
		d := d
		g.Go(func() error {
			b.applyOne(ctx, d, up)
			return nil
		})
	}
	// Tasks report nothing upward; Wait is purely the join point.
	_ = g.Wait()

	// The global status is a single shared value and does not depend on any
	// per-destination label succeeding.
	if err := b.sess.SetStatus(up.Status); err != nil {
		b.log.Warn().Err(err).Msg("could not set status")
	}
}

func (b *Broadcaster) applyOne(ctx context.Context, d discord.Destination, up Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().Str("guild", d.Name).Interface("panic", r).Msg("destination update panicked")
		}
	}()

	if up.Label == "" {
		return
	}

	// Permission state is re-read every cycle; it can change externally.
	if !b.sess.Capabilities(d).CanEditLabel {
		b.log.Info().Str("guild", d.Name).Msg("missing nickname permission; label skipped")
		return
	}

	err := b.sess.SetLabel(ctx, d, up.Label, up.Reason)
	switch {
	case err == nil:
		b.log.Debug().Str("guild", d.Name).Str("label", up.Label).Msg("label updated")
	case errors.Is(err, discord.ErrPermissionDenied):
		// Hierarchy rules can deny the edit even though the permission
		// check passed.
		b.log.Info().Str("guild", d.Name).Msg("label edit forbidden by role hierarchy")
	default:
		b.log.Warn().Str("guild", d.Name).Err(err).Msg("label update failed")
	}
}
