// Package flags holds beta feature toggles. Toggles are read from a file
// into an immutable snapshot; a change produces a new snapshot that is
// swapped in atomically, so request handling never observes a half-updated
// configuration and nothing mutates shared state in place.
package flags

import (
	"context"
	"encoding/json"
	"os"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Snapshot is the set of toggles in effect for a single request.
type Snapshot struct {
	// CreatorInvites allows admins to issue CREATOR-kind invites.
	CreatorInvites bool `json:"creator_invites"`
	// InvitePreview exposes the public non-mutating code validity check.
	InvitePreview bool `json:"invite_preview"`
}

func defaults() Snapshot {
	return Snapshot{
		CreatorInvites: true,
		InvitePreview:  true,
	}
}

// Store serves the current snapshot and reloads it on file change.
type Store struct {
	log     *zap.Logger
	path    string
	current atomic.Pointer[Snapshot]
}

func NewStore(path string, log *zap.Logger) *Store {
	s := &Store{
		log:  log.Named("flags"),
		path: path,
	}
	snap := s.load()
	s.current.Store(&snap)
	return s
}

// Current returns the snapshot in effect. The returned value is a copy;
// callers hold it for the duration of one request.
func (s *Store) Current() Snapshot {
	return *s.current.Load()
}

func (s *Store) load() Snapshot {
	snap := defaults()
	if s.path == "" {
		return snap
	}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		s.log.Warn("flags file unreadable, using defaults", zap.String("path", s.path), zap.Error(err))
		return snap
	}
	if err := json.Unmarshal(raw, &snap); err != nil {
		s.log.Warn("flags file malformed, using defaults", zap.String("path", s.path), zap.Error(err))
		return defaults()
	}
	return snap
}

func (s *Store) reload() {
	snap := s.load()
	s.current.Store(&snap)
	s.log.Info("flags reloaded",
		zap.Bool("creator_invites", snap.CreatorInvites),
		zap.Bool("invite_preview", snap.InvitePreview),
	)
}

// Watch reloads the snapshot whenever the flags file changes.
func (s *Store) Watch(lc fx.Lifecycle) error {
	if s.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(s.path); err != nil {
		_ = watcher.Close()
		s.log.Warn("flags file not watchable", zap.String("path", s.path), zap.Error(err))
		return nil
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
					s.reload()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.log.Warn("flags watcher error", zap.Error(err))
			case <-done:
				return
			}
		}
	}()

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			close(done)
			return watcher.Close()
		},
	})
	return nil
}
