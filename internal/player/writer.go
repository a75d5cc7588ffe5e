package player

import (
	"context"
	"sync"

	"github.com/metcalfc/readaloud/internal/state"
	"go.uber.org/zap"
)

// writer saves position and preferences off the controller lock. Only the
// newest pending value of each reaches the store.
type writer struct {
	store state.Store
	docID string
	log   *zap.Logger

	// writeMu orders writes so an older value never lands after a newer one.
	writeMu sync.Mutex

	mu    sync.Mutex
	pos   *state.Position
	prefs *state.Preferences

	kick    chan struct{}
	done    chan struct{}
	stopped chan struct{}
}

func newWriter(store state.Store, docID string, log *zap.Logger) *writer {
	w := &writer{
		store:   store,
		docID:   docID,
		log:     log,
		kick:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *writer) run() {
	defer close(w.stopped)
	for {
		select {
		case <-w.kick:
			w.drain()
		case <-w.done:
			w.drain()
			return
		}
	}
}

func (w *writer) position(pos state.Position) {
	w.mu.Lock()
	w.pos = &pos
	w.mu.Unlock()
	w.signal()
}

func (w *writer) preferences(prefs state.Preferences) {
	w.mu.Lock()
	w.prefs = &prefs
	w.mu.Unlock()
	w.signal()
}

func (w *writer) signal() {
	select {
	case w.kick <- struct{}{}:
	default:
	}
}

// drain writes whatever is pending. Failures are logged, never surfaced.
func (w *writer) drain() {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	w.mu.Lock()
	pos, prefs := w.pos, w.prefs
	w.pos, w.prefs = nil, nil
	w.mu.Unlock()

	if pos == nil && prefs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if pos != nil {
		if err := w.store.Save(ctx, w.docID, *pos); err != nil {
			w.log.Warn("failed to save position", zap.Error(err))
		}
	}
	if prefs != nil {
		if err := w.store.SavePreferences(ctx, w.docID, *prefs); err != nil {
			w.log.Warn("failed to save preferences", zap.Error(err))
		}
	}
}

// close writes the last pending values and stops the goroutine.
func (w *writer) close() {
	close(w.done)
	<-w.stopped
}
