package discord

import (
	"context"
	"errors"
)

// Destination is one guild the bot can update.
type Destination struct {
	ID   string
	Name string
}

// Capabilities is the destination-side permission state. It can change at any
// time through external administrative action, so callers re-read it each
// cycle instead of caching it.
type Capabilities struct {
	CanEditLabel bool
}

// ErrPermissionDenied is returned when the destination refuses a label change
// at apply time. Role hierarchy can deny the edit even after a passing
// capability check.
var ErrPermissionDenied = errors.New("permission denied")

// Session is the destination-session collaborator consumed by the scheduler
// and broadcaster. The concrete implementation wraps a Discord gateway
// session; tests substitute a fake.
type Session interface {
	Destinations() []Destination
	Destination(id string) (Destination, bool)
	Capabilities(d Destination) Capabilities
	SetLabel(ctx context.Context, d Destination, text, reason string) error
	SetStatus(text string) error
}
