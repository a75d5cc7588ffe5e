package main

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/metcalfc/readaloud/internal/config"
	"github.com/metcalfc/readaloud/internal/logging"
	"github.com/metcalfc/readaloud/internal/player"
	"github.com/metcalfc/readaloud/internal/reader"
	"github.com/metcalfc/readaloud/internal/speech"
	"github.com/metcalfc/readaloud/internal/state"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// newLogger logs to a file for the interactive players, which own the
// terminal, and to stderr otherwise.
func newLogger(cfg *config.Config, interactive bool) (*zap.Logger, error) {
	output := cfg.Log.File
	if output == "" {
		output = logging.Stderr
		if interactive {
			output = filepath.Join(state.StateDir(), "readaloud.log")
		}
	}
	return logging.New(cfg.Log.Level, output)
}

func newStore(ctx context.Context, cfg *config.Config) (state.Store, error) {
	switch cfg.Store.Type {
	case config.StoreMemory:
		return state.NewMemoryStore(), nil

	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Store.Redis.Addr, err)
		}
		return state.NewRedisStore(client, cfg.Store.Redis.Prefix), nil

	case config.StoreNATS:
		conn, err := nats.Connect(cfg.Store.NATS.URL, nats.Name("readaloud"))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to nats at %s: %w", cfg.Store.NATS.URL, err)
		}
		store, err := state.NewNATSStore(conn, cfg.Store.NATS.Bucket)
		if err != nil {
			conn.Close()
			return nil, err
		}
		return store, nil

	default:
		return state.NewFileStore(cfg.Store.Dir)
	}
}

func newRemote(cfg *config.Config, log *zap.Logger) *speech.Remote {
	rc := cfg.Speech.Remote
	client := speech.NewHTTPClient(rc.URL, rc.Timeout())
	return speech.NewRemote(client, speech.RemoteOptions{
		Language:    rc.Language,
		Temperature: rc.Temperature,
		CacheSize:   rc.CacheSize,
		CacheTTL:    rc.CacheTTL(),
		Workers:     rc.Workers,
		Player:      rc.Player,
		Tick:        rc.Tick(),
	}, log)
}

func newBackend(cfg *config.Config, log *zap.Logger) speech.Backend {
	if cfg.Speech.Backend == config.BackendRemote {
		return newRemote(cfg, log)
	}
	return speech.NewLocal(speech.LocalOptions{
		WPM:     cfg.Speech.Local.WPM,
		Command: cfg.Speech.Local.Command,
	}, log)
}

// session is one open document with its controller and resources.
type session struct {
	doc     *reader.Document
	ctrl    *player.Controller
	backend speech.Backend
	store   state.Store
	log     *zap.Logger

	mu       sync.Mutex
	onChange func(player.Status)
}

// openSession loads the document at path and restores its position.
func openSession(ctx context.Context, cfg *config.Config, log *zap.Logger, path string, fresh bool) (*session, error) {
	doc, err := reader.OpenFile(path, reader.ChunkOptions{MinLength: cfg.Chunk.MinLength})
	if err != nil {
		return nil, err
	}
	store, err := newStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	backend := newBackend(cfg, log)

	s := &session{doc: doc, backend: backend, store: store, log: log}
	s.ctrl = player.New(doc, backend, store, log, player.Options{
		Speed:    cfg.Speech.Speed,
		Voice:    cfg.Speech.Voice,
		Prefetch: cfg.Speech.Remote.Prefetch,
		Fresh:    fresh,
		OnChange: s.notify,
	})
	if err := s.ctrl.Open(ctx); err != nil {
		s.Close()
		return nil, err
	}
	log.Info("session opened",
		zap.String("doc", doc.ID),
		zap.String("format", string(doc.Format)),
		zap.String("backend", backend.Name()),
		zap.String("store", cfg.Store.Type))
	return s, nil
}

// OnChange sets the UI hook for controller updates.
func (s *session) OnChange(fn func(player.Status)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

func (s *session) notify(st player.Status) {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn(st)
	}
}

func (s *session) Close() {
	if err := s.ctrl.Close(); err != nil {
		s.log.Warn("failed to close player", zap.Error(err))
	}
	if err := s.backend.Close(); err != nil {
		s.log.Warn("failed to close backend", zap.Error(err))
	}
	if err := s.store.Close(); err != nil {
		s.log.Warn("failed to close store", zap.Error(err))
	}
}
