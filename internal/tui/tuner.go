// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"tuner/internal/export"
	"tuner/internal/session"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	DefaultRefreshInterval = 50 * time.Millisecond
	meterWidth             = 41
	maxEvents              = 5
	eventBuffer            = 16
)

var (
	noteStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 2).
			Foreground(lipgloss.Color("#FFFDF5"))

	inTuneStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#25A065")).Bold(true)
	closeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B")).Bold(true)
	offStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#E06C75")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#7F848E"))
)

var (
	keyQuit   = key.NewBinding(key.WithKeys("q", "ctrl+c"))
	keyToggle = key.NewBinding(key.WithKeys("s", " ", "space"))
)

// SessionControl is the part of session.Controller the tuner view drives.
type SessionControl interface {
	Start(meta session.Meta)
	Stop()
	Active() bool
	Latest() (session.Frame, bool)
}

// EventFeed forwards export events to a running tuner view. It satisfies
// export.EventSink; events are dropped while the feed is full.
type EventFeed struct {
	events chan export.Event
}

func NewEventFeed() *EventFeed {
	return &EventFeed{events: make(chan export.Event, eventBuffer)}
}

func (f *EventFeed) Send(data any) error {
	ev, ok := data.(export.Event)
	if !ok {
		return nil
	}
	select {
	case f.events <- ev:
	default:
	}
	return nil
}

type tickMsg time.Time

type eventMsg export.Event

// TunerModel is the live tuner screen. It polls the controller for the
// latest frame and toggles sessions on request.
type TunerModel struct {
	control  SessionControl
	meta     session.Meta
	feed     *EventFeed
	interval time.Duration

	frame    session.Frame
	hasFrame bool
	events   []export.Event
	width    int
}

// NewTunerModel creates the view. feed may be nil.
func NewTunerModel(control SessionControl, meta session.Meta, feed *EventFeed) TunerModel {
	return TunerModel{
		control:  control,
		meta:     meta,
		feed:     feed,
		interval: DefaultRefreshInterval,
	}
}

func (m TunerModel) Init() tea.Cmd {
	return tea.Batch(m.tick(), m.waitForEvent())
}

func (m TunerModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m TunerModel) waitForEvent() tea.Cmd {
	if m.feed == nil {
		return nil
	}
	return func() tea.Msg {
		return eventMsg(<-m.feed.events)
	}
}

func (m TunerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tickMsg:
		m.frame, m.hasFrame = m.control.Latest()
		return m, m.tick()

	case eventMsg:
		m.events = append(m.events, export.Event(msg))
		if len(m.events) > maxEvents {
			m.events = m.events[len(m.events)-maxEvents:]
		}
		return m, m.waitForEvent()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keyQuit):
			return m, tea.Quit
		case key.Matches(msg, keyToggle):
			if m.control.Active() {
				m.control.Stop()
			} else {
				m.control.Start(m.meta)
			}
		}
	}
	return m, nil
}

func (m TunerModel) View() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Tuner: " + m.meta.Instrument))
	sb.WriteString("\n\n")

	switch {
	case !m.hasFrame:
		sb.WriteString(dimStyle.Render("Waiting for audio..."))
		sb.WriteString("\n")
	case m.frame.Voiced:
		sb.WriteString(renderReading(m.frame.Note.Name, m.frame.Note.Cents, m.frame.Frequency))
	case m.frame.HasLast:
		sb.WriteString(dimStyle.Render(fmt.Sprintf("%s (last, %.1f Hz)",
			m.frame.LastNote, m.frame.LastFrequency)))
		sb.WriteString("\n")
	default:
		sb.WriteString(dimStyle.Render("--"))
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	if m.control.Active() {
		sb.WriteString(highlightStyle.Render("● Recording session"))
		sb.WriteString(fmt.Sprintf("  %d samples, %d notes, stable %d\n",
			m.frame.Samples, m.frame.Notes, m.frame.Stable))
	} else {
		sb.WriteString(infoStyle.Render("○ Idle"))
		sb.WriteString("\n")
	}

	if len(m.events) > 0 {
		sb.WriteString("\n")
		for _, ev := range m.events {
			sb.WriteString(renderEvent(ev))
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\n")
	sb.WriteString(infoStyle.Render("s/space: Start/Stop session • q: Quit"))
	return sb.String()
}

func renderReading(name string, cents, frequency float64) string {
	style := centsStyle(cents)
	return fmt.Sprintf("%s %s  %.2f Hz\n%s\n",
		noteStyle.Render(name),
		style.Render(fmt.Sprintf("%+.1f¢", cents)),
		frequency,
		style.Render(centsMeter(cents, meterWidth)))
}

func centsStyle(cents float64) lipgloss.Style {
	switch abs := math.Abs(cents); {
	case abs <= 5:
		return inTuneStyle
	case abs <= 15:
		return closeStyle
	default:
		return offStyle
	}
}

// centsMeter draws a horizontal gauge from -50 to +50 cents with a centre
// mark and the reading as a caret.
func centsMeter(cents float64, width int) string {
	if width < 3 {
		width = 3
	}
	if width%2 == 0 {
		width++
	}
	cents = max(-50, min(50, cents))
	pos := int(math.Round((cents + 50) / 100 * float64(width-1)))

	gauge := []rune(strings.Repeat("-", width))
	gauge[width/2] = '|'
	gauge[pos] = '^'
	return "[" + string(gauge) + "]"
}

func renderEvent(ev export.Event) string {
	switch ev.Type {
	case export.EventExported:
		return inTuneStyle.Render(fmt.Sprintf("Session %d exported to %s (%d notes)",
			ev.SessionID, ev.Exporter, ev.Notes))
	case export.EventFailed:
		return offStyle.Render(fmt.Sprintf("Session %d export to %s failed: %s",
			ev.SessionID, ev.Exporter, ev.Error))
	default:
		return dimStyle.Render(fmt.Sprintf("Session %d had no notes to export", ev.SessionID))
	}
}

// RunTuner runs the tuner view until the user quits.
func RunTuner(control SessionControl, meta session.Meta, feed *EventFeed) error {
	p := tea.NewProgram(NewTunerModel(control, meta, feed), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
