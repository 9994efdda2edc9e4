package session

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"time"

	"vendocs/internal/model"
	"vendocs/internal/repository"
)

// PollWatcher adapts the SQL repositories into live subscription sources by
// re-reading on an interval and emitting only when the result changed.
// Snapshots from here are always authoritative (never cache-origin).
type PollWatcher struct {
	docs     repository.DocumentRepository
	profiles repository.ProfileRepository
	interval time.Duration
	limit    int
	onError  func(error)
}

func NewPollWatcher(docs repository.DocumentRepository, profiles repository.ProfileRepository, interval time.Duration, limit int, onError func(error)) *PollWatcher {
	if onError == nil {
		onError = func(error) {}
	}
	return &PollWatcher{docs: docs, profiles: profiles, interval: interval, limit: limit, onError: onError}
}

var (
	_ DocumentSource = (*PollWatcher)(nil)
	_ ProfileSource  = (*PollWatcher)(nil)
)

// WatchEntitled polls the entitlement query. The first read is emitted
// immediately; later reads only when the document set changed.
func (w *PollWatcher) WatchEntitled(ctx context.Context, level int) (<-chan model.DocumentSnapshot, CancelFunc, error) {
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan model.DocumentSnapshot, 1)

	go func() {
		defer close(ch)

		var last []model.Document
		first := true
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			docs, err := w.docs.ListEntitled(ctx, level, w.limit)
			switch {
			case err == nil:
				if first || !reflect.DeepEqual(docs, last) {
					last = docs
					first = false
					snap := model.DocumentSnapshot{Level: level, Documents: docs}
					select {
					case ch <- snap:
					case <-ctx.Done():
						return
					}
				}
			case errors.Is(err, context.Canceled):
				return
			default:
				w.onError(err)
			}

			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, cancel, nil
}

// WatchProfile polls one user profile. A missing row is a valid snapshot
// with Exists=false, not an error.
func (w *PollWatcher) WatchProfile(ctx context.Context, uid string) (<-chan model.ProfileSnapshot, CancelFunc, error) {
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan model.ProfileSnapshot, 1)

	go func() {
		defer close(ch)

		var last model.ProfileSnapshot
		first := true
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			snap, err := w.readProfile(ctx, uid)
			switch {
			case err == nil:
				if first || snap != last {
					last = snap
					first = false
					select {
					case ch <- snap:
					case <-ctx.Done():
						return
					}
				}
			case errors.Is(err, context.Canceled):
				return
			default:
				w.onError(err)
			}

			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, cancel, nil
}

func (w *PollWatcher) readProfile(ctx context.Context, uid string) (model.ProfileSnapshot, error) {
	p, err := w.profiles.FindByUID(ctx, uid)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ProfileSnapshot{Exists: false}, nil
	}
	if err != nil {
		return model.ProfileSnapshot{}, err
	}
	return model.ProfileSnapshot{Exists: true, Profile: *p}, nil
}
