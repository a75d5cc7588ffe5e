package speech

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/metcalfc/readaloud/internal/reader"
	"go.uber.org/zap"
)

const defaultWPM = 180

// LocalOptions configures a Local backend.
type LocalOptions struct {
	// WPM is the speaking rate at speed 1.0.
	WPM int
	// Command is an argv template for a local speech engine such as espeak-ng.
	// {rate}, {voice} and {text} are substituted; the text is appended when the
	// template has no {text}. Empty means the word clock runs silently.
	Command []string
}

var _ Backend = (*Local)(nil)

// Local paces chunks word by word at play time. Offsets are word indexes.
type Local struct {
	opts LocalOptions
	log  *zap.Logger
}

// NewLocal creates a word-paced backend.
func NewLocal(opts LocalOptions, log *zap.Logger) *Local {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.WPM <= 0 {
		opts.WPM = defaultWPM
	}
	return &Local{opts: opts, log: log.Named("local")}
}

func (l *Local) Name() string { return "local" }

func (l *Local) Unit() Unit { return UnitWords }

func (l *Local) Close() error { return nil }

// WordDelay is how long each word is shown as current at the given speed.
func (l *Local) WordDelay(speed float64) time.Duration {
	if speed <= 0 {
		speed = 1
	}
	return time.Duration(float64(time.Minute) / (float64(l.opts.WPM) * speed))
}

// Speak emits one Progress per word starting at word int(req.Offset).
func (l *Local) Speak(ctx context.Context, req Request) (<-chan Progress, error) {
	if req.Speed <= 0 {
		req.Speed = 1
	}
	words := reader.Words(req.Text)
	start := min(max(int(req.Offset), 0), len(words))
	delay := l.WordDelay(req.Speed)

	ch := make(chan Progress, 1)
	go func() {
		defer close(ch)

		var engine *process
		if len(l.opts.Command) > 0 && start < len(words) {
			rate := int(float64(l.opts.WPM) * req.Speed)
			argv := expandArgs(l.opts.Command, map[string]string{
				"rate":  strconv.Itoa(rate),
				"voice": req.Voice,
				"text":  strings.Join(words[start:], " "),
			}, "text")
			var err error
			engine, err = startProcess(ctx, argv)
			if err != nil {
				send(ctx, ch, Progress{Index: req.Index, Offset: float64(start), Err: err})
				return
			}
			defer engine.wait()
			l.log.Debug("speaking", zap.Int("chunk", req.Index), zap.Int("from_word", start))
		}

		ticker := time.NewTicker(delay)
		defer ticker.Stop()
		for i := start; i < len(words); i++ {
			if !send(ctx, ch, Progress{Index: req.Index, Offset: float64(i)}) {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}

		if engine != nil {
			select {
			case <-ctx.Done():
				return
			case <-engine.Done():
				if err := engine.Err(); err != nil {
					send(ctx, ch, Progress{Index: req.Index, Offset: float64(len(words)), Err: err})
					return
				}
			}
		}
		send(ctx, ch, Progress{Index: req.Index, Offset: float64(len(words)), Done: true})
	}()
	return ch, nil
}
