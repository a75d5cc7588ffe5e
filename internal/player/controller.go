// Package player drives a speech backend through a document and keeps the
// saved position in step with what has been heard.
package player

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/metcalfc/readaloud/internal/reader"
	"github.com/metcalfc/readaloud/internal/speech"
	"github.com/metcalfc/readaloud/internal/state"
	"go.uber.org/zap"
)

const (
	MinSpeed     = 0.5
	MaxSpeed     = 2.0
	DefaultSpeed = 1.0

	persistTimeout = 5 * time.Second
)

var (
	ErrSpeedOutOfRange = errors.New("speed out of range")
	ErrClosed          = errors.New("player closed")
	ErrNoSuchChunk     = errors.New("chunk out of range")
)

// State of the playback session.
type State int

const (
	Stopped State = iota
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "stopped"
	}
}

// Status is a snapshot of the controller.
type Status struct {
	State      State
	ChunkIndex int
	ChunkCount int
	Offset     float64
	Unit       speech.Unit
	Speed      float64
	Voice      string
	Finished   bool
	Err        error
}

// Prefetcher is implemented by backends that can render chunks ahead of time.
type Prefetcher interface {
	Prefetch(ctx context.Context, chunks []reader.Chunk, voice string) error
}

// Options tune a Controller.
type Options struct {
	// Speed and Voice apply when the document has no saved preferences.
	Speed float64
	Voice string
	// Prefetch is how many chunks past the current one to render ahead.
	Prefetch int
	// Fresh ignores the saved position.
	Fresh bool
	// OnChange is called after every status change, outside the lock.
	OnChange func(Status)
}

// Controller is the only writer of a document's playback position.
type Controller struct {
	doc     *reader.Document
	backend speech.Backend
	store   state.Store
	saver   *writer
	log     *zap.Logger
	opts    Options

	base     context.Context
	shutdown context.CancelFunc
	wg       sync.WaitGroup

	mu       sync.Mutex
	state    State
	chunk    int
	offset   float64
	speed    float64
	voice    string
	finished bool
	err      error
	closed   bool
	// gen identifies the current Speak session; progress from older
	// sessions is dropped.
	gen    uint64
	cancel context.CancelFunc
}

// New creates a stopped controller for doc. Call Open before playing.
func New(doc *reader.Document, backend speech.Backend, store state.Store, log *zap.Logger, opts Options) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	base, shutdown := context.WithCancel(context.Background())
	speed := opts.Speed
	if !validSpeed(speed) {
		speed = DefaultSpeed
	}
	log = log.With(zap.String("doc", doc.ID))
	return &Controller{
		doc:      doc,
		backend:  backend,
		store:    store,
		saver:    newWriter(store, doc.ID, log),
		log:      log,
		opts:     opts,
		base:     base,
		shutdown: shutdown,
		speed:    speed,
		voice:    opts.Voice,
	}
}

func validSpeed(s float64) bool {
	return s >= MinSpeed && s <= MaxSpeed
}

// Open restores the saved position and preferences, clamped to the document.
func (c *Controller) Open(ctx context.Context) error {
	var pos state.Position
	if !c.opts.Fresh {
		var err error
		pos, err = c.store.Load(ctx, c.doc.ID)
		if err != nil {
			return fmt.Errorf("failed to load position: %w", err)
		}
	}
	prefs, err := c.store.LoadPreferences(ctx, c.doc.ID)
	if err != nil {
		return fmt.Errorf("failed to load preferences: %w", err)
	}

	c.mu.Lock()
	if validSpeed(prefs.Speed) {
		c.speed = prefs.Speed
	}
	if prefs.Voice != "" {
		c.voice = prefs.Voice
	}
	c.chunk, c.offset = c.clamp(pos.ChunkIndex, pos.Offset)
	c.log.Info("opened document",
		zap.Int("chunk", c.chunk),
		zap.Float64("offset", c.offset),
		zap.Int("chunks", c.doc.ChunkCount()))
	status := c.statusLocked()
	c.mu.Unlock()

	c.notify(status)
	return nil
}

// clamp keeps a position inside the document.
func (c *Controller) clamp(chunk int, offset float64) (int, float64) {
	n := c.doc.ChunkCount()
	chunk = max(0, min(chunk, n-1))
	if offset < 0 || math.IsNaN(offset) || math.IsInf(offset, 0) {
		offset = 0
	}
	if c.backend.Unit() == speech.UnitWords && n > 0 {
		words := len(reader.Words(c.doc.Chunks[chunk].Text))
		offset = min(math.Floor(offset), float64(words))
	}
	return chunk, offset
}

// Play starts or resumes playback at the current position.
func (c *Controller) Play() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state == Playing || c.doc.ChunkCount() == 0 {
		c.mu.Unlock()
		return nil
	}
	c.state = Playing
	c.finished = false
	c.err = nil
	c.startLocked()
	status := c.statusLocked()
	c.mu.Unlock()

	c.notify(status)
	return nil
}

// Pause stops speech and keeps the offset for a later Play.
func (c *Controller) Pause() {
	c.update(func() bool {
		if c.state != Playing {
			return false
		}
		c.cancelLocked()
		c.state = Paused
		c.persistLocked()
		return true
	})
}

// TogglePause plays when paused or stopped and pauses when playing.
func (c *Controller) TogglePause() error {
	c.mu.Lock()
	playing := c.state == Playing
	c.mu.Unlock()
	if playing {
		c.Pause()
		return nil
	}
	return c.Play()
}

// Stop ends playback and rewinds to the start of the current chunk.
func (c *Controller) Stop() {
	c.update(func() bool {
		c.cancelLocked()
		c.state = Stopped
		c.offset = 0
		c.persistLocked()
		return true
	})
}

// Reset stops and rewinds to the start of the document.
func (c *Controller) Reset() {
	c.update(func() bool {
		c.cancelLocked()
		c.state = Stopped
		c.chunk = 0
		c.offset = 0
		c.finished = false
		c.err = nil
		c.persistLocked()
		return true
	})
}

// Next moves to the start of the following chunk, pausing a playing session.
// It does nothing on the last.
func (c *Controller) Next() {
	c.jump(1)
}

// Previous moves to the start of the preceding chunk, pausing a playing
// session. It does nothing on the first.
func (c *Controller) Previous() {
	c.jump(-1)
}

func (c *Controller) jump(delta int) {
	c.update(func() bool {
		target := c.chunk + delta
		if target < 0 || target >= c.doc.ChunkCount() {
			return false
		}
		c.moveLocked(target)
		return true
	})
}

// Seek moves to the start of chunk i, used to jump to a section heading. Like
// Next it pauses a playing session.
func (c *Controller) Seek(i int) error {
	if i < 0 || i >= c.doc.ChunkCount() {
		return fmt.Errorf("%w: %d of %d", ErrNoSuchChunk, i, c.doc.ChunkCount())
	}
	c.update(func() bool {
		c.moveLocked(i)
		return true
	})
	return nil
}

func (c *Controller) moveLocked(target int) {
	if c.state == Playing {
		c.cancelLocked()
		c.state = Paused
	}
	c.chunk = target
	c.offset = 0
	c.finished = false
	c.persistLocked()
}

// SetSpeed changes the speaking rate. A playing session restarts at the
// current offset with the new rate.
func (c *Controller) SetSpeed(speed float64) error {
	if !validSpeed(speed) {
		return fmt.Errorf("%w: %.2f is outside %.1f-%.1f", ErrSpeedOutOfRange, speed, MinSpeed, MaxSpeed)
	}
	c.update(func() bool {
		if c.speed == speed {
			return false
		}
		c.speed = speed
		c.savePreferencesLocked()
		if c.state == Playing {
			c.startLocked()
		}
		return true
	})
	return nil
}

// SetVoice changes the voice. A playing session restarts at the current offset.
func (c *Controller) SetVoice(voice string) {
	c.update(func() bool {
		if c.voice == voice {
			return false
		}
		c.voice = voice
		c.savePreferencesLocked()
		if c.state == Playing {
			c.startLocked()
		}
		return true
	})
}

// Status returns the current snapshot.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// Close stops playback, saves the position and waits for background work.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.cancelLocked()
	if c.state == Playing {
		c.state = Paused
	}
	c.persistLocked()
	c.mu.Unlock()

	c.shutdown()
	c.wg.Wait()
	c.saver.close()
	return nil
}

// update runs fn under the lock and notifies when fn reports a change.
func (c *Controller) update(fn func() bool) {
	c.mu.Lock()
	if c.closed || !fn() {
		c.mu.Unlock()
		return
	}
	status := c.statusLocked()
	c.mu.Unlock()
	c.notify(status)
}

func (c *Controller) statusLocked() Status {
	return Status{
		State:      c.state,
		ChunkIndex: c.chunk,
		ChunkCount: c.doc.ChunkCount(),
		Offset:     c.offset,
		Unit:       c.backend.Unit(),
		Speed:      c.speed,
		Voice:      c.voice,
		Finished:   c.finished,
		Err:        c.err,
	}
}

func (c *Controller) notify(s Status) {
	if c.opts.OnChange != nil {
		c.opts.OnChange(s)
	}
}

// startLocked begins a new Speak session at the current position, replacing
// any running one.
func (c *Controller) startLocked() {
	c.cancelLocked()
	gen := c.gen

	ctx, cancel := context.WithCancel(c.base)
	c.cancel = cancel
	chunk := c.doc.Chunks[c.chunk]
	req := speech.Request{
		Index:  chunk.Index,
		Text:   chunk.Text,
		Offset: c.offset,
		Speed:  c.speed,
		Voice:  c.voice,
	}

	ch, err := c.backend.Speak(ctx, req)
	if err != nil {
		c.failLocked(err)
		return
	}
	c.log.Debug("speaking chunk",
		zap.Int("chunk", req.Index),
		zap.Float64("offset", req.Offset),
		zap.Float64("speed", req.Speed))

	c.wg.Add(1)
	go c.consume(gen, ch)
	c.prefetchLocked()
}

// cancelLocked ends the running session and invalidates its progress.
func (c *Controller) cancelLocked() {
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Controller) failLocked(err error) {
	c.cancelLocked()
	c.state = Stopped
	c.err = err
	c.persistLocked()
	c.log.Error("playback failed", zap.Int("chunk", c.chunk), zap.Error(err))
}

func (c *Controller) consume(gen uint64, ch <-chan speech.Progress) {
	defer c.wg.Done()
	for p := range ch {
		c.mu.Lock()
		if gen != c.gen {
			c.mu.Unlock()
			continue
		}
		switch {
		case p.Err != nil:
			c.failLocked(p.Err)
		case p.Done:
			c.advanceLocked()
		default:
			c.offset = p.Offset
			c.persistLocked()
		}
		status := c.statusLocked()
		c.mu.Unlock()
		c.notify(status)
	}
}

// advanceLocked moves past a finished chunk, stopping after the last one.
func (c *Controller) advanceLocked() {
	if c.chunk >= c.doc.ChunkCount()-1 {
		c.cancelLocked()
		c.state = Stopped
		c.offset = 0
		c.finished = true
		c.persistLocked()
		c.log.Info("finished document")
		return
	}
	c.chunk++
	c.offset = 0
	c.persistLocked()
	c.startLocked()
}

func (c *Controller) prefetchLocked() {
	pf, ok := c.backend.(Prefetcher)
	if !ok || c.opts.Prefetch <= 0 {
		return
	}
	from := c.chunk + 1
	to := min(from+c.opts.Prefetch, c.doc.ChunkCount())
	if from >= to {
		return
	}
	chunks := c.doc.Chunks[from:to]
	voice := c.voice

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := pf.Prefetch(c.base, chunks, voice); err != nil && c.base.Err() == nil {
			c.log.Warn("prefetch failed", zap.Error(err))
		}
	}()
}

// persistLocked queues the position for the writer.
func (c *Controller) persistLocked() {
	c.saver.position(state.Position{ChunkIndex: c.chunk, Offset: c.offset, UpdatedAt: time.Now().UTC()})
}

func (c *Controller) savePreferencesLocked() {
	c.saver.preferences(state.Preferences{Voice: c.voice, Speed: c.speed})
}
