// Package memory is an in-process remote used by tests and the "memory"
// sync backend. Pushed snapshots become what Pull returns, and published
// events are folded into the last pushed snapshot.
package memory

import (
	"context"
	"encoding/json"
	"sync"

	"spendwise/internal/core"
	"spendwise/internal/remote"
)

type Remote struct {
	mu        sync.Mutex
	snapshots []core.Snapshot
	events    []core.Event
	current   *core.Snapshot
	pullBody  []byte

	// Err, when set, fails every call.
	Err error
}

var _ remote.Client = (*Remote)(nil)

func New() *Remote { return &Remote{} }

// SetPullBody overrides what Pull returns until the next Push. Events
// published meanwhile are recorded but leave the body alone.
func (r *Remote) SetPullBody(b []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = nil
	r.pullBody = append([]byte(nil), b...)
}

func (r *Remote) SetErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Err = err
}

func (r *Remote) Push(_ context.Context, s core.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.snapshots = append(r.snapshots, s)
	cur := core.Snapshot{
		Action:           s.Action,
		Wallets:          append([]core.Wallet(nil), s.Wallets...),
		Categories:       append([]core.Category(nil), s.Categories...),
		Favorites:        append([]core.FavoriteItem(nil), s.Favorites...),
		Transactions:     append([]core.Transaction(nil), s.Transactions...),
		SettingsPassword: s.SettingsPassword,
	}
	r.current = &cur
	return r.render()
}

// render rebuilds the pull body from the current collections.
func (r *Remote) render() error {
	b, err := json.Marshal(r.current)
	if err != nil {
		return err
	}
	r.pullBody = b
	return nil
}

func (r *Remote) Publish(_ context.Context, ev core.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, ev)
	if r.current != nil && r.current.ApplyEvent(ev) {
		return r.render()
	}
	return nil
}

func (r *Remote) Pull(_ context.Context) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	if r.pullBody == nil {
		return []byte(`{}`), nil
	}
	return append([]byte(nil), r.pullBody...), nil
}

// Snapshots returns every pushed snapshot in order.
func (r *Remote) Snapshots() []core.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.Snapshot(nil), r.snapshots...)
}

// Events returns every published event in order.
func (r *Remote) Events() []core.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.Event(nil), r.events...)
}
