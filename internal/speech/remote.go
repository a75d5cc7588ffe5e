package speech

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/metcalfc/readaloud/internal/reader"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	outputFileFormat = "chunk_%04d.wav"
	filePermissions  = 0o600
	dirPermissions   = 0o750

	defaultTick    = 250 * time.Millisecond
	defaultWorkers = 2
	renderTimeout  = 5 * time.Minute
)

// Synthesizer renders text to WAV audio. HTTPClient is the production one.
type Synthesizer interface {
	GenerateSpeech(ctx context.Context, req SynthesisRequest) ([]byte, error)
	HealthCheck(ctx context.Context) error
}

// RemoteOptions configures a Remote backend.
type RemoteOptions struct {
	Language    string
	Temperature float64
	CacheSize   int
	CacheTTL    time.Duration
	Workers     int
	// Player is an argv template for an external audio player. {file},
	// {offset} and {speed} are substituted; the file is appended when the
	// template has no {file}. Empty means silent playback on the clock alone.
	Player []string
	Tick   time.Duration
}

// AudioAsset is the rendered audio for one chunk.
type AudioAsset struct {
	Index    int
	Voice    string
	Data     []byte
	Duration time.Duration
}

type cacheKey struct {
	voice  string
	digest string
}

func (k cacheKey) String() string { return k.voice + "/" + k.digest }

var _ Backend = (*Remote)(nil)

// Remote speaks chunks rendered by a synthesis service.
type Remote struct {
	client Synthesizer
	opts   RemoteOptions
	cache  *expirable.LRU[cacheKey, AudioAsset]
	group  singleflight.Group
	log    *zap.Logger
}

// NewRemote creates a remote backend around client.
func NewRemote(client Synthesizer, opts RemoteOptions, log *zap.Logger) *Remote {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Tick <= 0 {
		opts.Tick = defaultTick
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	return &Remote{
		client: client,
		opts:   opts,
		cache:  expirable.NewLRU[cacheKey, AudioAsset](opts.CacheSize, nil, opts.CacheTTL),
		log:    log.Named("remote"),
	}
}

func (r *Remote) Name() string { return "remote" }

func (r *Remote) Unit() Unit { return UnitSeconds }

func (r *Remote) Close() error {
	r.cache.Purge()
	return nil
}

// HealthCheck asks the service whether it can synthesize.
func (r *Remote) HealthCheck(ctx context.Context) error {
	return r.client.HealthCheck(ctx)
}

// textDigest identifies chunk text in cache keys.
func textDigest(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:16])
}

// Render returns the audio for a chunk, synthesizing it on a cache miss.
// Concurrent renders of the same chunk share one request. The shared request
// runs detached from any single caller, so a caller that gives up only stops
// waiting.
func (r *Remote) Render(ctx context.Context, index int, text, voice string) (AudioAsset, error) {
	key := cacheKey{voice: voice, digest: textDigest(text)}
	if asset, ok := r.cache.Get(key); ok {
		r.log.Debug("audio cache hit", zap.Int("chunk", index))
		asset.Index = index
		return asset, nil
	}

	res := r.group.DoChan(key.String(), func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), renderTimeout)
		defer cancel()
		return r.synthesize(rctx, key, index, text, voice)
	})

	select {
	case <-ctx.Done():
		return AudioAsset{}, &SynthesisError{Index: index, Err: ctx.Err()}
	case out := <-res:
		if out.Err != nil {
			return AudioAsset{}, &SynthesisError{Index: index, Err: out.Err}
		}
		asset := out.Val.(AudioAsset)
		asset.Index = index
		return asset, nil
	}
}

func (r *Remote) synthesize(ctx context.Context, key cacheKey, index int, text, voice string) (AudioAsset, error) {
	start := time.Now()
	data, err := r.client.GenerateSpeech(ctx, SynthesisRequest{
		Text:        text,
		Voice:       voice,
		Language:    r.opts.Language,
		Temperature: r.opts.Temperature,
	})
	if err != nil {
		return AudioAsset{}, err
	}
	dur, err := WAVDuration(data)
	if err != nil {
		return AudioAsset{}, err
	}
	asset := AudioAsset{Index: index, Voice: voice, Data: data, Duration: dur}
	r.cache.Add(key, asset)
	r.log.Debug("rendered chunk",
		zap.Int("chunk", index),
		zap.Int("bytes", len(data)),
		zap.Duration("audio", dur),
		zap.Duration("took", time.Since(start)))
	return asset, nil
}

// Prefetch renders chunks ahead of playback on a bounded worker pool.
func (r *Remote) Prefetch(ctx context.Context, chunks []reader.Chunk, voice string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for _, c := range chunks {
		g.Go(func() error {
			_, err := r.Render(ctx, c.Index, c.Text, voice)
			return err
		})
	}
	return g.Wait()
}

// RenderAll writes every chunk to dir as chunk_0001.wav, chunk_0002.wav, ...
// and returns the paths in chunk order.
func (r *Remote) RenderAll(ctx context.Context, chunks []reader.Chunk, dir, voice string) ([]string, error) {
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	paths := make([]string, len(chunks))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for i, c := range chunks {
		g.Go(func() error {
			asset, err := r.Render(ctx, c.Index, c.Text, voice)
			if err != nil {
				return err
			}
			path := filepath.Join(dir, fmt.Sprintf(outputFileFormat, c.Index+1))
			if err := os.WriteFile(path, asset.Data, filePermissions); err != nil {
				return fmt.Errorf("failed to write audio file: %w", err)
			}
			r.log.Info("generated audio", zap.String("path", path), zap.Int("bytes", len(asset.Data)))
			paths[i] = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

// Speak renders the chunk and plays it from req.Offset seconds.
func (r *Remote) Speak(ctx context.Context, req Request) (<-chan Progress, error) {
	if req.Speed <= 0 {
		req.Speed = 1
	}
	ch := make(chan Progress, 1)
	go func() {
		defer close(ch)
		asset, err := r.Render(ctx, req.Index, req.Text, req.Voice)
		if err != nil {
			if ctx.Err() == nil {
				send(ctx, ch, Progress{Index: req.Index, Offset: req.Offset, Err: err})
			}
			return
		}
		r.play(ctx, asset, req, ch)
	}()
	return ch, nil
}

func (r *Remote) play(ctx context.Context, asset AudioAsset, req Request, ch chan<- Progress) {
	total := asset.Duration.Seconds()
	start := min(req.Offset, total)

	var player *process
	if len(r.opts.Player) > 0 {
		path, err := writeTempWAV(asset.Data)
		if err != nil {
			send(ctx, ch, Progress{Index: req.Index, Offset: start, Err: err})
			return
		}
		defer os.Remove(path)

		argv := expandArgs(r.opts.Player, map[string]string{
			"file":   path,
			"offset": strconv.FormatFloat(start, 'f', 3, 64),
			"speed":  strconv.FormatFloat(req.Speed, 'f', 2, 64),
		}, "file")
		player, err = startProcess(ctx, argv)
		if err != nil {
			send(ctx, ch, Progress{Index: req.Index, Offset: start, Err: err})
			return
		}
		// The temp file must outlive the player.
		defer player.wait()
	}

	if !send(ctx, ch, Progress{Index: req.Index, Offset: start}) {
		return
	}

	ticker := time.NewTicker(r.opts.Tick)
	defer ticker.Stop()
	begin := time.Now()
	for offset := start; offset < total; {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			offset = min(start+time.Since(begin).Seconds()*req.Speed, total)
			if !send(ctx, ch, Progress{Index: req.Index, Offset: offset}) {
				return
			}
		}
	}

	if player != nil {
		select {
		case <-ctx.Done():
			return
		case <-player.Done():
			if err := player.Err(); err != nil {
				send(ctx, ch, Progress{Index: req.Index, Offset: total, Err: err})
				return
			}
		}
	}
	send(ctx, ch, Progress{Index: req.Index, Offset: total, Done: true})
}

func writeTempWAV(data []byte) (string, error) {
	f, err := os.CreateTemp("", "readaloud-*.wav")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file for audio: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write temp audio: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write temp audio: %w", err)
	}
	return f.Name(), nil
}
