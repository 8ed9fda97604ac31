package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/oriel-shell/oriel/pkg/events"
)

const (
	tailScrollback = 2000
	maxDataLen     = 200
)

// frame is one event as received from the dev stream.
type frame struct {
	ID     string          `json:"id"`
	Kind   string          `json:"kind"`
	Window string          `json:"window,omitempty"`
	Time   time.Time       `json:"time"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// frameMsg delivers a decoded event from the reader goroutine.
type frameMsg struct {
	frame frame
}

// streamClosedMsg signals that the websocket read loop ended.
type streamClosedMsg struct {
	err error
}

// tailModel renders the live event stream in a scrollable viewport.
type tailModel struct {
	addr     string
	viewport viewport.Model
	lines    []string
	frames   int
	follow   bool
	closed   bool
	closeErr error
	ready    bool
	width    int
}

func newTailModel(addr string) tailModel {
	return tailModel{addr: addr, follow: true}
}

func (m tailModel) Init() tea.Cmd {
	return nil
}

func (m tailModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		vpHeight := max(msg.Height-2, 1) // minus header and status line
		if !m.ready {
			m.viewport = viewport.New(msg.Width, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = vpHeight
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "f":
			m.follow = !m.follow
			if m.follow && m.ready {
				m.viewport.GotoBottom()
			}
			return m, nil
		}

	case frameMsg:
		m.appendFrame(msg.frame)
		return m, nil

	case streamClosedMsg:
		m.closed = true
		m.closeErr = msg.err
		return m, nil
	}

	// Scrolling keys and mouse wheel go to the viewport.
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m tailModel) View() string {
	if !m.ready {
		return "Connecting to " + m.addr + "..."
	}
	return m.headerView() + "\n" + m.viewport.View() + "\n" + m.statusView()
}

func (m *tailModel) appendFrame(f frame) {
	m.frames++
	m.lines = append(m.lines, renderFrame(f))
	if len(m.lines) > tailScrollback {
		m.lines = m.lines[len(m.lines)-tailScrollback:]
	}
	m.refresh()
}

func (m *tailModel) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	if m.follow {
		m.viewport.GotoBottom()
	}
}

func (m tailModel) headerView() string {
	return tailTitleStyle.Render("oriel tail") + " " + tailAddrStyle.Render(m.addr)
}

func (m tailModel) statusView() string {
	follow := "following"
	if !m.follow {
		follow = "paused"
	}
	line := fmt.Sprintf(" %d events · %s · q quit · f follow", m.frames, follow)
	if m.closed {
		note := "stream closed"
		if m.closeErr != nil {
			note = fmt.Sprintf("stream closed: %v", m.closeErr)
		}
		return statusBarStyle.Render(line+" · ") + disconnectStyle.Render(note)
	}
	return statusBarStyle.Render(line)
}

// renderFrame formats one event as a single log line.
func renderFrame(f frame) string {
	var b strings.Builder
	b.WriteString(timeStyle.Render(f.Time.Local().Format("15:04:05.000")))
	b.WriteString(" ")
	b.WriteString(kindStyle(f.Kind).Render(f.Kind))
	if f.Window != "" {
		b.WriteString(" ")
		b.WriteString(windowStyle.Render("[" + f.Window + "]"))
	}
	if len(f.Data) > 0 && string(f.Data) != "null" {
		b.WriteString(" ")
		b.WriteString(dataStyle.Render(compactJSON(f.Data)))
	}
	return b.String()
}

func kindStyle(kind string) lipgloss.Style {
	if events.IsReserved(kind) {
		return reservedKindStyle
	}
	return appKindStyle
}

// compactJSON renders a payload on one line, truncated so a single event
// cannot flood the viewport.
func compactJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return truncate(string(raw), maxDataLen)
	}
	return truncate(buf.String(), maxDataLen)
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
