//go:build gui

package main

import (
	"context"
	"fmt"
	"image/color"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/metcalfc/readaloud/internal/player"
	"github.com/metcalfc/readaloud/internal/reader"
	"github.com/metcalfc/readaloud/internal/speech"
)

const speedStep = 0.25

type window struct {
	s *session
	w fyne.Window

	title    *canvas.Text
	status   *widget.Label
	text     *widget.RichText
	bar      *widget.ProgressBar
	toggle   *widget.Button
	speed    *widget.Slider
	errLabel *widget.Label
	sections *widget.Select
}

func stateText(st player.Status) string {
	switch {
	case st.Finished:
		return "[DONE]"
	case st.State == player.Playing:
		return "[PLAYING]"
	case st.State == player.Paused:
		return "[PAUSED]"
	}
	return "[STOPPED]"
}

// render redraws the window from st. Must run on the fyne goroutine.
func (g *window) render(st player.Status) {
	chunk, _ := g.s.doc.Chunk(st.ChunkIndex)
	words := reader.Words(chunk.Text)

	voice := ""
	if st.Voice != "" {
		voice = " | " + st.Voice
	}
	g.status.SetText(fmt.Sprintf("Paragraph %d/%d | %.2fx%s %s",
		st.ChunkIndex+1, st.ChunkCount, st.Speed, voice, stateText(st)))

	current := -1
	if st.Unit == speech.UnitWords && st.State != player.Stopped {
		current = int(st.Offset)
	}
	segments := make([]widget.RichTextSegment, 0, len(words))
	for i, w := range words {
		style := widget.RichTextStyleInline
		if i == current {
			style = widget.RichTextStyleStrong
			style.ColorName = theme.ColorNameError
		}
		segments = append(segments, &widget.TextSegment{Text: w + " ", Style: style})
	}
	g.text.Segments = segments
	g.text.Refresh()

	done := float64(st.ChunkIndex)
	if st.Unit == speech.UnitWords && len(words) > 0 {
		done += min(st.Offset/float64(len(words)), 1)
	}
	if st.Finished {
		done = float64(st.ChunkCount)
	}
	if st.ChunkCount > 0 {
		g.bar.SetValue(done / float64(st.ChunkCount))
	}

	if st.State == player.Playing {
		g.toggle.SetText("Pause")
	} else {
		g.toggle.SetText("Play")
	}
	if g.speed.Value != st.Speed {
		g.speed.SetValue(st.Speed)
	}
	if i := g.s.doc.SectionAt(st.ChunkIndex); i >= 0 && g.sections != nil {
		g.sections.SetSelectedIndex(i)
	}
	if st.Err != nil {
		g.errLabel.SetText(st.Err.Error())
		g.errLabel.Show()
	} else {
		g.errLabel.Hide()
	}
}

func (g *window) refresh() {
	g.render(g.s.ctrl.Status())
}

func (g *window) changeSpeed(speed float64) {
	if err := g.s.ctrl.SetSpeed(speed); err != nil {
		g.s.log.Debug(err.Error())
	}
	g.refresh()
}

func (g *window) seek(chunk int, ok bool) {
	if !ok {
		return
	}
	if err := g.s.ctrl.Seek(chunk); err != nil {
		g.s.log.Debug(err.Error())
	}
}

func (g *window) content() fyne.CanvasObject {
	ctrl := g.s.ctrl

	g.title = canvas.NewText(g.s.doc.Name, color.White)
	g.title.TextStyle.Bold = true
	g.title.TextSize = 24
	g.title.Alignment = fyne.TextAlignCenter

	g.status = widget.NewLabel("")
	g.status.Alignment = fyne.TextAlignCenter

	g.text = widget.NewRichText()
	g.text.Wrapping = fyne.TextWrapWord

	g.bar = widget.NewProgressBar()
	g.bar.TextFormatter = func() string { return "" }

	g.errLabel = widget.NewLabel("")
	g.errLabel.Importance = widget.DangerImportance
	g.errLabel.Hide()

	g.toggle = widget.NewButton("Play", func() {
		if err := ctrl.TogglePause(); err != nil {
			g.s.log.Debug(err.Error())
		}
		g.refresh()
	})
	buttons := container.NewHBox(
		widget.NewButton("Prev", func() { ctrl.Previous(); g.refresh() }),
		g.toggle,
		widget.NewButton("Stop", func() { ctrl.Stop(); g.refresh() }),
		widget.NewButton("Next", func() { ctrl.Next(); g.refresh() }),
		widget.NewButton("Restart", func() { ctrl.Reset(); g.refresh() }),
	)

	g.speed = widget.NewSlider(player.MinSpeed, player.MaxSpeed)
	g.speed.Step = speedStep
	g.speed.SetValue(ctrl.Status().Speed)
	g.speed.OnChangeEnded = g.changeSpeed

	controls := widget.NewLabel("SPACE: play/pause  S: stop  ←/→: paragraph  [/]: section  ↑/↓ +/-: speed  R: restart  F: fullscreen  Q: quit")
	controls.Alignment = fyne.TextAlignCenter

	top := container.NewVBox(g.title, g.status, g.bar)
	if secs := g.s.doc.Sections; len(secs) > 0 {
		titles := make([]string, len(secs))
		for i, sec := range secs {
			titles[i] = strings.Repeat("  ", sec.Level) + sec.Title
		}
		g.sections = widget.NewSelect(titles, nil)
		g.sections.PlaceHolder = "Jump to section"
		g.sections.OnChanged = func(string) {
			i := g.sections.SelectedIndex()
			if i < 0 || g.s.doc.SectionAt(ctrl.Status().ChunkIndex) == i {
				return
			}
			g.seek(secs[i].Chunk, true)
		}
		top.Add(g.sections)
	}
	bottom := container.NewVBox(
		g.errLabel,
		container.NewCenter(buttons),
		container.NewBorder(nil, nil, widget.NewLabel("Speed"), nil, g.speed),
		controls,
	)
	return container.NewBorder(top, bottom, nil, nil, container.NewVScroll(g.text))
}

func (g *window) bindKeys(a fyne.App) {
	ctrl := g.s.ctrl
	g.w.Canvas().SetOnTypedKey(func(key *fyne.KeyEvent) {
		switch key.Name {
		case fyne.KeySpace:
			if err := ctrl.TogglePause(); err != nil {
				g.s.log.Debug(err.Error())
			}
		case fyne.KeyLeft:
			ctrl.Previous()
		case fyne.KeyRight:
			ctrl.Next()
		case fyne.KeyUp:
			g.changeSpeed(ctrl.Status().Speed + speedStep)
		case fyne.KeyDown:
			g.changeSpeed(ctrl.Status().Speed - speedStep)
		case fyne.KeyF:
			g.w.SetFullScreen(!g.w.FullScreen())
		case fyne.KeyQ:
			a.Quit()
			return
		}
		g.refresh()
	})

	g.w.Canvas().SetOnTypedRune(func(r rune) {
		switch r {
		case 's', 'S':
			ctrl.Stop()
		case 'r', 'R':
			ctrl.Reset()
		case '[':
			g.seek(g.s.doc.PreviousSection(ctrl.Status().ChunkIndex))
		case ']':
			g.seek(g.s.doc.NextSection(ctrl.Status().ChunkIndex))
		case '+', '=':
			g.changeSpeed(ctrl.Status().Speed + speedStep)
		case '-':
			g.changeSpeed(ctrl.Status().Speed - speedStep)
		default:
			return
		}
		g.refresh()
	})
}

func runPlayer(ctx context.Context, s *session) error {
	a := app.New()
	w := a.NewWindow("readaloud - " + s.doc.Name)

	g := &window{s: s, w: w}
	w.SetContent(g.content())
	g.bindKeys(a)
	w.Resize(fyne.NewSize(800, 600))

	s.OnChange(func(st player.Status) {
		fyne.Do(func() { g.render(st) })
	})
	defer s.OnChange(nil)

	go func() {
		<-ctx.Done()
		fyne.Do(a.Quit)
	}()

	g.refresh()
	w.ShowAndRun()
	return nil
}
