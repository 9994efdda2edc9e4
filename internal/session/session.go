// Package session owns the live entitlement state for one signed-in
// identity: it watches the user's access profile, clamps the observed level,
// and keeps exactly one entitled-document subscription open for the most
// recent level. Stale deliveries from superseded subscriptions are discarded,
// as are snapshots served purely from cache with no pending local write.
package session

import (
	"context"
	"sync"

	"vendocs/internal/catalog"
	"vendocs/internal/model"
)

// CancelFunc tears down a subscription. Implementations must be idempotent
// and must prevent further channel deliveries after the first call.
type CancelFunc = func()

// ProfileSource streams profile snapshots for one identity.
type ProfileSource interface {
	WatchProfile(ctx context.Context, uid string) (<-chan model.ProfileSnapshot, CancelFunc, error)
}

// DocumentSource streams entitled-document snapshots for one access level.
type DocumentSource interface {
	WatchEntitled(ctx context.Context, level int) (<-chan model.DocumentSnapshot, CancelFunc, error)
}

// Engine is the two-stage state machine: (1) awaiting level resolution,
// (2) entitled set established. It owns currentLevel and the active
// subscriptions; consumers read snapshots from Snapshots().
type Engine struct {
	profiles ProfileSource
	docs     DocumentSource
	onError  func(error)

	mu            sync.Mutex
	level         int
	levelKnown    bool
	profileGen    uint64
	docGen        uint64
	cancelProfile CancelFunc
	cancelDocs    CancelFunc
	stopped       bool

	out chan model.DocumentSnapshot
}

// Option configures an Engine.
type Option func(*Engine)

// WithErrorHandler installs a callback for subscription errors (permission
// denied, store unavailable). Errors never stop the engine.
func WithErrorHandler(fn func(error)) Option {
	return func(e *Engine) { e.onError = fn }
}

func NewEngine(profiles ProfileSource, docs DocumentSource, opts ...Option) *Engine {
	e := &Engine{
		profiles: profiles,
		docs:     docs,
		onError:  func(error) {},
		out:      make(chan model.DocumentSnapshot, 8),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Snapshots delivers every authoritative entitled-document snapshot for the
// most recent known level. The channel closes on Stop.
func (e *Engine) Snapshots() <-chan model.DocumentSnapshot {
	return e.out
}

// Level returns the current clamped level and whether it has been resolved.
func (e *Engine) Level() (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.level, e.levelKnown
}

// SetIdentity switches the engine to a new identity. An empty uid means
// unauthenticated and resolves the level to 0 immediately. The previous
// profile subscription is cancelled before the new one starts so no stale
// identity can update state.
func (e *Engine) SetIdentity(ctx context.Context, uid string) error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return nil
	}
	if e.cancelProfile != nil {
		e.cancelProfile()
		e.cancelProfile = nil
	}
	e.profileGen++
	gen := e.profileGen
	e.mu.Unlock()

	if uid == "" {
		e.applyLevel(ctx, gen, catalog.MinLevel)
		return nil
	}

	ch, cancel, err := e.profiles.WatchProfile(ctx, uid)
	if err != nil {
		e.onError(err)
		e.applyLevel(ctx, gen, catalog.MinLevel)
		return err
	}

	e.mu.Lock()
	if e.stopped || gen != e.profileGen {
		e.mu.Unlock()
		cancel()
		return nil
	}
	e.cancelProfile = cancel
	e.mu.Unlock()

	go func() {
		for snap := range ch {
			if !snap.Authoritative() {
				// Cache-only snapshot with nothing pending locally: the
				// authoritative value is still on its way.
				continue
			}
			lv := catalog.MinLevel
			if snap.Exists {
				lv = catalog.ClampLevel(snap.Profile.Level)
			}
			e.applyLevel(ctx, gen, lv)
		}
	}()
	return nil
}

// applyLevel publishes a resolved level and resubscribes the document query
// when it changed. Idempotent for an unchanged level. Deliveries from a
// superseded profile subscription are dropped (last value wins per key, not
// per arrival order).
func (e *Engine) applyLevel(ctx context.Context, profileGen uint64, level int) {
	e.mu.Lock()
	if e.stopped || profileGen != e.profileGen {
		e.mu.Unlock()
		return
	}
	if e.levelKnown && e.level == level {
		e.mu.Unlock()
		return
	}
	e.level = level
	e.levelKnown = true

	// Cancel the previous query first to avoid duplicate delivery.
	if e.cancelDocs != nil {
		e.cancelDocs()
		e.cancelDocs = nil
	}
	e.docGen++
	gen := e.docGen
	e.mu.Unlock()

	ch, cancel, err := e.docs.WatchEntitled(ctx, level)
	if err != nil {
		e.onError(err)
		return
	}

	e.mu.Lock()
	if e.stopped || gen != e.docGen {
		e.mu.Unlock()
		cancel()
		return
	}
	e.cancelDocs = cancel
	e.mu.Unlock()

	go func() {
		for snap := range ch {
			if !snap.Authoritative() {
				continue
			}
			e.mu.Lock()
			stale := e.stopped || gen != e.docGen
			e.mu.Unlock()
			if stale {
				return
			}
			e.publish(snap)
		}
	}()
}

// publish delivers a snapshot, dropping the oldest buffered one when the
// consumer lags; the list only ever needs to reflect the latest state.
func (e *Engine) publish(snap model.DocumentSnapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return
	}
	for {
		select {
		case e.out <- snap:
			return
		default:
			select {
			case <-e.out:
			default:
			}
		}
	}
}

// Stop tears down all subscriptions and closes the snapshot channel.
// Idempotent; no callback is delivered after it returns.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return
	}
	e.stopped = true
	if e.cancelProfile != nil {
		e.cancelProfile()
		e.cancelProfile = nil
	}
	if e.cancelDocs != nil {
		e.cancelDocs()
		e.cancelDocs = nil
	}
	close(e.out)
}
