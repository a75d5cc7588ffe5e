package speech

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestLocalWordDelay(t *testing.T) {
	tests := []struct {
		wpm   int
		speed float64
		want  time.Duration
	}{
		{300, 1.0, 200 * time.Millisecond},
		{300, 2.0, 100 * time.Millisecond},
		{300, 0.5, 400 * time.Millisecond},
		{600, 1.0, 100 * time.Millisecond},
		{300, 0, 200 * time.Millisecond},
	}
	for _, tt := range tests {
		l := NewLocal(LocalOptions{WPM: tt.wpm}, nil)
		assert.Equal(t, tt.want, l.WordDelay(tt.speed), "wpm=%d speed=%v", tt.wpm, tt.speed)
	}
}

func TestLocalDefaults(t *testing.T) {
	l := NewLocal(LocalOptions{}, nil)
	assert.Equal(t, "local", l.Name())
	assert.Equal(t, UnitWords, l.Unit())
	assert.Equal(t, time.Minute/defaultWPM, l.WordDelay(1))
}

func TestLocalSpeakFromWord(t *testing.T) {
	l := NewLocal(LocalOptions{WPM: 60000}, zaptest.NewLogger(t))

	ch, err := l.Speak(context.Background(), Request{Index: 1, Text: "one two three four", Offset: 2, Speed: 1})
	require.NoError(t, err)
	progress := collect(t, ch)

	require.Len(t, progress, 3)
	assert.Equal(t, 2.0, progress[0].Offset)
	assert.Equal(t, 3.0, progress[1].Offset)
	assert.True(t, progress[2].Done)
	assert.Equal(t, 4.0, progress[2].Offset)
	for _, p := range progress {
		assert.Equal(t, 1, p.Index)
	}
}

func TestLocalSpeakPastEnd(t *testing.T) {
	l := NewLocal(LocalOptions{WPM: 60000}, nil)

	ch, err := l.Speak(context.Background(), Request{Text: "only two", Offset: 9})
	require.NoError(t, err)
	progress := collect(t, ch)
	require.Len(t, progress, 1)
	assert.True(t, progress[0].Done)
	assert.Equal(t, 2.0, progress[0].Offset)
}

func TestLocalSpeakCancel(t *testing.T) {
	l := NewLocal(LocalOptions{WPM: 1}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := l.Speak(ctx, Request{Text: "slow words here"})
	require.NoError(t, err)

	first := <-ch
	assert.Equal(t, 0.0, first.Offset)
	cancel()
	for p := range ch {
		assert.False(t, p.Done)
	}
}

func TestLocalSpeakCommandMissing(t *testing.T) {
	l := NewLocal(LocalOptions{WPM: 60000, Command: []string{"readaloud-no-such-engine", "-s", "{rate}"}}, nil)

	ch, err := l.Speak(context.Background(), Request{Text: "hello world", Offset: 1})
	require.NoError(t, err)
	progress := collect(t, ch)
	require.Len(t, progress, 1)
	assert.Error(t, progress[0].Err)
	assert.Equal(t, 1.0, progress[0].Offset)
}
