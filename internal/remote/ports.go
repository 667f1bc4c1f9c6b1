// Package remote defines the sync collaborator the tracker pushes to and
// pulls from. Adapters live in the subpackages.
package remote

import (
	"context"
	"errors"

	"spendwise/internal/core"
)

// ErrDisabled is returned by the no-op client when no remote is configured.
var ErrDisabled = errors.New("remote sync disabled")

// Ports for outbound adapters.
type (
	// Pusher replaces the remote copy with a full snapshot.
	Pusher interface {
		Push(ctx context.Context, s core.Snapshot) error
	}

	// Puller downloads the remote copy as a raw JSON object. Decoding and
	// merging are left to the caller so malformed fields can be skipped.
	Puller interface {
		Pull(ctx context.Context) ([]byte, error)
	}

	// EventSink receives per-mutation audit events.
	EventSink interface {
		Publish(ctx context.Context, ev core.Event) error
	}

	Client interface {
		Pusher
		Puller
		EventSink
	}
)

// Nop is the client used when sync is turned off.
type Nop struct{}

var _ Client = Nop{}

func (Nop) Push(context.Context, core.Snapshot) error { return ErrDisabled }
func (Nop) Pull(context.Context) ([]byte, error)      { return nil, ErrDisabled }
func (Nop) Publish(context.Context, core.Event) error { return ErrDisabled }
