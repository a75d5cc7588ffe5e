//go:build !gui

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/metcalfc/readaloud/internal/player"
	"github.com/metcalfc/readaloud/internal/reader"
	"github.com/metcalfc/readaloud/internal/speech"
)

const speedStep = 0.25

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Padding(0, 1)

	currentWordStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#FFFFFF"))

	focusStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF0000"))

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00AAFF")).
			Padding(0, 1)

	textStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Padding(1, 2)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Padding(0, 1)

	pausedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFAA00")).
			Bold(true)

	playingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00AAFF")).
			Bold(true)

	completeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555"))
)

// playback is the part of player.Controller the UI drives.
type playback interface {
	Status() player.Status
	TogglePause() error
	Stop()
	Reset()
	Next()
	Previous()
	Seek(int) error
	SetSpeed(float64) error
}

type keyMap struct {
	Toggle   key.Binding
	Stop     key.Binding
	Prev     key.Binding
	Next     key.Binding
	PrevSec  key.Binding
	NextSec  key.Binding
	Faster   key.Binding
	Slower   key.Binding
	Reset    key.Binding
	Quit     key.Binding
	ShowHelp key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Prev, k.Next, k.Faster, k.Slower, k.ShowHelp, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Toggle, k.Stop, k.Reset},
		{k.Prev, k.Next, k.PrevSec, k.NextSec},
		{k.Faster, k.Slower},
		{k.ShowHelp, k.Quit},
	}
}

var keys = keyMap{
	Toggle:   key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
	Stop:     key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stop")),
	Prev:     key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←", "previous")),
	Next:     key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→", "next")),
	PrevSec:  key.NewBinding(key.WithKeys("["), key.WithHelp("[", "previous section")),
	NextSec:  key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "next section")),
	Faster:   key.NewBinding(key.WithKeys("+", "=", "up"), key.WithHelp("+", "faster")),
	Slower:   key.NewBinding(key.WithKeys("-", "down"), key.WithHelp("-", "slower")),
	Reset:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "restart")),
	Quit:     key.NewBinding(key.WithKeys("q", "Q", "ctrl+c"), key.WithHelp("q", "quit")),
	ShowHelp: key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
}

type statusMsg player.Status

type model struct {
	ctrl     playback
	doc      *reader.Document
	status   player.Status
	updates  <-chan player.Status
	help     help.Model
	bar      progress.Model
	notice   string
	quitting bool
	width    int
	height   int
}

func newModel(doc *reader.Document, ctrl playback, updates <-chan player.Status) model {
	return model{
		ctrl:    ctrl,
		doc:     doc,
		status:  ctrl.Status(),
		updates: updates,
		help:    help.New(),
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		width:   80,
		height:  24,
	}
}

// waitForStatus delivers the next controller update to Update.
func waitForStatus(ch <-chan player.Status) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		st, ok := <-ch
		if !ok {
			return nil
		}
		return statusMsg(st)
	}
}

func (m model) Init() tea.Cmd {
	return waitForStatus(m.updates)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		m.notice = ""
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Toggle):
			if err := m.ctrl.TogglePause(); err != nil {
				m.notice = err.Error()
			}
		case key.Matches(msg, keys.Stop):
			m.ctrl.Stop()
		case key.Matches(msg, keys.Reset):
			m.ctrl.Reset()
		case key.Matches(msg, keys.Prev):
			m.ctrl.Previous()
		case key.Matches(msg, keys.Next):
			m.ctrl.Next()
		case key.Matches(msg, keys.PrevSec):
			if chunk, ok := m.doc.PreviousSection(m.ctrl.Status().ChunkIndex); ok {
				m.seek(chunk)
			}
		case key.Matches(msg, keys.NextSec):
			if chunk, ok := m.doc.NextSection(m.ctrl.Status().ChunkIndex); ok {
				m.seek(chunk)
			}
		case key.Matches(msg, keys.Faster):
			m.changeSpeed(speedStep)
		case key.Matches(msg, keys.Slower):
			m.changeSpeed(-speedStep)
		case key.Matches(msg, keys.ShowHelp):
			m.help.ShowAll = !m.help.ShowAll
		}
		m.status = m.ctrl.Status()
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.bar.Width = max(msg.Width-4, 10)
		return m, nil

	case statusMsg:
		m.status = player.Status(msg)
		return m, waitForStatus(m.updates)
	}

	return m, nil
}

func (m *model) seek(chunk int) {
	if err := m.ctrl.Seek(chunk); err != nil {
		m.notice = err.Error()
	}
}

func (m *model) changeSpeed(delta float64) {
	speed := m.ctrl.Status().Speed + delta
	if err := m.ctrl.SetSpeed(speed); err != nil {
		m.notice = fmt.Sprintf("speed stays at %.2fx", m.ctrl.Status().Speed)
	}
}

// fraction is how far through the document playback is.
func fraction(st player.Status, chunkWords int) float64 {
	if st.ChunkCount == 0 {
		return 0
	}
	within := 0.0
	if st.Unit == speech.UnitWords && chunkWords > 0 {
		within = min(st.Offset/float64(chunkWords), 1)
	}
	if st.Finished {
		return 1
	}
	return (float64(st.ChunkIndex) + within) / float64(st.ChunkCount)
}

func (m model) View() string {
	if m.quitting {
		if m.status.Finished {
			return completeStyle.Render("\n  Reading complete!\n")
		}
		return ""
	}

	st := m.status
	chunk, ok := m.doc.Chunk(st.ChunkIndex)
	if !ok {
		return "No text to read."
	}
	words := reader.Words(chunk.Text)

	var state string
	switch {
	case st.Finished:
		state = completeStyle.Render(" [DONE]")
	case st.State == player.Playing:
		state = playingStyle.Render(" [PLAYING]")
	case st.State == player.Paused:
		state = pausedStyle.Render(" [PAUSED]")
	default:
		state = pausedStyle.Render(" [STOPPED]")
	}

	voice := ""
	if st.Voice != "" {
		voice = " | " + st.Voice
	}
	status := statusStyle.Render(fmt.Sprintf("Paragraph %d/%d | %.2fx%s%s",
		st.ChunkIndex+1, st.ChunkCount, st.Speed, voice, state))

	var sb strings.Builder
	sb.WriteString(titleStyle.Render(m.doc.Name))
	sb.WriteString("\n")
	sb.WriteString(status)
	sb.WriteString("\n")
	if i := m.doc.SectionAt(st.ChunkIndex); i >= 0 {
		sb.WriteString(sectionStyle.Render(m.doc.Sections[i].Title))
		sb.WriteString("\n")
	}
	sb.WriteString(" " + m.bar.ViewAs(fraction(st, len(words))))
	sb.WriteString("\n")
	sb.WriteString(textStyle.Width(max(m.width-2, 20)).Render(highlight(words, st)))
	sb.WriteString("\n")
	if st.Err != nil {
		sb.WriteString(errorStyle.Render(" " + st.Err.Error()))
		sb.WriteString("\n")
	}
	if m.notice != "" {
		sb.WriteString(statusStyle.Render(m.notice))
		sb.WriteString("\n")
	}
	sb.WriteString(m.help.View(keys))
	return sb.String()
}

// highlight marks the word being spoken when the backend reports words.
func highlight(words []string, st player.Status) string {
	current := -1
	if st.Unit == speech.UnitWords && st.State != player.Stopped {
		current = int(st.Offset)
	}
	out := make([]string, len(words))
	for i, w := range words {
		if i == current {
			out[i] = renderFocus(w)
			continue
		}
		out[i] = w
	}
	return strings.Join(out, " ")
}

// renderFocus colors the focus letter of the spoken word.
func renderFocus(word string) string {
	runes := []rune(word)
	if len(runes) == 0 {
		return word
	}
	orp := min(reader.FocusPoint(word), len(runes)-1)
	return currentWordStyle.Render(string(runes[:orp])) +
		focusStyle.Render(string(runes[orp])) +
		currentWordStyle.Render(string(runes[orp+1:]))
}

// latest keeps only the newest status so a slow UI never blocks the player.
func latest(ch chan player.Status) func(player.Status) {
	return func(st player.Status) {
		for {
			select {
			case ch <- st:
				return
			default:
			}
			select {
			case <-ch:
			default:
			}
		}
	}
}

func runPlayer(ctx context.Context, s *session) error {
	updates := make(chan player.Status, 1)
	s.OnChange(latest(updates))

	p := tea.NewProgram(newModel(s.doc, s.ctrl, updates), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	s.OnChange(nil)
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
