// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/lnbctl/pkg/lnb"
)

// Event log entry
type logEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

type keyMap struct {
	Power    key.Binding
	Channel  key.Binding
	Polarity key.Binding
	Band     key.Binding
	Restart  key.Binding
	Quit     key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Power, k.Channel, k.Polarity, k.Band, k.Restart, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var monitorKeys = keyMap{
	Power:    key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "power")),
	Channel:  key.NewBinding(key.WithKeys("tab", "1", "2"), key.WithHelp("tab/1/2", "channel")),
	Polarity: key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "polarity")),
	Band:     key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "band")),
	Restart:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "restart poller")),
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// Messages
type tickMsg time.Time

// stateMsg carries a poller snapshot into the UI
type stateMsg lnb.HardwareState

// pollerErrorMsg is the poller's terminal error
type pollerErrorMsg struct{ err error }

// actionMsg reports a foreground command issued from the UI
type actionMsg struct {
	desc string
	err  error
}

// TUI model
type model struct {
	ctx      context.Context
	session  *lnb.Session
	connInfo string
	started  time.Time

	state      *lnb.HardwareState
	lastUpdate time.Time
	updates    int
	channel    lnb.Channel
	polling    bool
	busy       bool

	log           []logEntry
	maxLogEntries int

	keys     keyMap
	help     help.Model
	width    int
	height   int
	quitting bool
}

func initialModel(ctx context.Context, s *lnb.Session, connInfo string) model {
	return model{
		ctx:           ctx,
		session:       s,
		connInfo:      connInfo,
		started:       time.Now(),
		channel:       lnb.Channel1,
		polling:       true,
		maxLogEntries: 100,
		keys:          monitorKeys,
		help:          help.New(),
		width:         80,
		height:        24,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// action runs fn off the UI goroutine and reports the result
func action(desc string, fn func() error) tea.Cmd {
	return func() tea.Msg {
		return actionMsg{desc: desc, err: fn()}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case tickMsg:
		return m, tickCmd()

	case stateMsg:
		st := lnb.HardwareState(msg)
		m.state = &st
		m.lastUpdate = time.Now()
		m.updates++

	case pollerErrorMsg:
		m.polling = false
		m.addLogEntry(fmt.Sprintf("Poller stopped: %v", msg.err), true)

	case actionMsg:
		m.busy = false
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("%s failed: %s", msg.desc, m.session.LastErrorDescription()), true)
		} else {
			m.addLogEntry(msg.desc, false)
		}
	}

	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Channel):
		switch msg.String() {
		case "1":
			m.channel = lnb.Channel1
		case "2":
			m.channel = lnb.Channel2
		default:
			if m.channel == lnb.Channel1 {
				m.channel = lnb.Channel2
			} else {
				m.channel = lnb.Channel1
			}
		}
		return m, nil

	case key.Matches(msg, m.keys.Restart):
		if m.polling {
			return m, nil
		}
		if err := m.session.StartPoller(m.ctx); err != nil {
			m.addLogEntry(fmt.Sprintf("Restart failed: %v", err), true)
			return m, nil
		}
		m.polling = true
		m.addLogEntry("Poller restarted", false)
		return m, nil
	}

	// Remaining keys change the device and need a snapshot to toggle from
	if m.state == nil || m.busy {
		return m, nil
	}
	s := m.session
	ch := m.channel
	cur := m.state.Channel(ch)

	switch {
	case key.Matches(msg, m.keys.Power):
		on := !m.state.PowerEnabled
		m.busy = true
		desc := "Power disabled"
		if on {
			desc = "Power enabled"
		}
		return m, action(desc, func() error { return s.SetPower(on) })

	case key.Matches(msg, m.keys.Polarity):
		p := lnb.PolarityHorizontal
		if cur.Polarity == lnb.PolarityHorizontal {
			p = lnb.PolarityVertical
		}
		m.busy = true
		desc := fmt.Sprintf("CH%d polarity %s", ch, p.Describe())
		return m, action(desc, func() error { return s.SetChannelPolarity(ch, p) })

	case key.Matches(msg, m.keys.Band):
		b := lnb.BandHigh
		if cur.Band == lnb.BandHigh {
			b = lnb.BandLow
		}
		m.busy = true
		desc := fmt.Sprintf("CH%d band %s", ch, b.Describe())
		return m, action(desc, func() error { return s.SetChannelBand(ch, b) })
	}

	return m, nil
}

func (m *model) addLogEntry(message string, isError bool) {
	m.log = append(m.log, logEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})

	// Keep only last N entries
	if len(m.log) > m.maxLogEntries {
		m.log = m.log[len(m.log)-m.maxLogEntries:]
	}
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	focusedBoxStyle = boxStyle.
			BorderForeground(lipgloss.Color("12"))
)

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render("LNBCTL - MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Session: %s", m.connInfo, formatUptime(time.Since(m.started)))))
	s.WriteString("\n\n")

	switch {
	case !m.polling:
		s.WriteString(errorStyle.Render("✗ Poller stopped, press 'r' to restart"))
	case m.state == nil:
		s.WriteString(warningStyle.Render("⏳ Waiting for first snapshot..."))
	default:
		s.WriteString(valueStyle.Render("✓ Polling"))
		s.WriteString(headerStyle.Render(fmt.Sprintf(" (%d snapshots, last %s ago)",
			m.updates, time.Since(m.lastUpdate).Round(100*time.Millisecond))))
	}
	s.WriteString("\n\n")

	if m.state != nil {
		s.WriteString(m.renderState())
		s.WriteString("\n")
	}

	s.WriteString(m.renderStatistics())
	s.WriteString("\n")
	s.WriteString(m.renderEventLog())
	s.WriteString("\n")
	s.WriteString(m.help.View(m.keys))

	return s.String()
}

func (m model) renderState() string {
	power := errorStyle.Render("DISABLED")
	if m.state.PowerEnabled {
		power = valueStyle.Render("ENABLED")
	}
	top := fmt.Sprintf("%s %s", labelStyle.Render("Power:"), power)

	panels := make([]string, 0, len(lnb.Channels))
	for _, ch := range lnb.Channels {
		c := m.state.Channel(ch)
		var b strings.Builder
		b.WriteString(labelStyle.Render(fmt.Sprintf("Channel %d", ch)))
		b.WriteString("\n")
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Voltage: "), valueStyle.Render(fmt.Sprintf("%.2fV", c.Voltage)))
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Polarity:"), valueStyle.Render(c.Polarity.Describe()))
		fmt.Fprintf(&b, "%s %s", labelStyle.Render("Band:    "), valueStyle.Render(c.Band.Describe()))

		style := boxStyle
		if ch == m.channel {
			style = focusedBoxStyle
		}
		panels = append(panels, style.Render(b.String()))
	}

	return top + "\n" + lipgloss.JoinHorizontal(lipgloss.Top, panels[0], " ", panels[1]) + "\n"
}

func (m model) renderStatistics() string {
	st := m.session.Statistics()

	var okPercent float64
	if st.Transactions > 0 {
		okPercent = float64(st.Completed) * 100.0 / float64(st.Transactions)
	}

	errs := valueStyle.Render(fmt.Sprintf("%d", st.Errors()))
	if st.Errors() > 0 {
		errs = errorStyle.Render(fmt.Sprintf("%d", st.Errors()))
	}

	content := fmt.Sprintf("%s %s   %s %s   %s %s\n%s %s   %s %s   %s %s",
		labelStyle.Render("Transactions:"), valueStyle.Render(fmt.Sprintf("%d", st.Transactions)),
		labelStyle.Render("OK:"), valueStyle.Render(fmt.Sprintf("%.1f%%", okPercent)),
		labelStyle.Render("Errors:"), errs,
		labelStyle.Render("Timeouts:"), valueStyle.Render(fmt.Sprintf("%d", st.Timeouts)),
		labelStyle.Render("Protocol:"), valueStyle.Render(fmt.Sprintf("%d", st.ProtocolErrors)),
		labelStyle.Render("Rate:"), valueStyle.Render(fmt.Sprintf("%.1f/s", st.TransactionRate)),
	)
	return boxStyle.Render(content)
}

func (m model) renderEventLog() string {
	logHeight := m.height - 22 // header, channel panels, statistics and help
	if logHeight < 3 {
		logHeight = 3
	}

	var content strings.Builder
	if len(m.log) == 0 {
		content.WriteString(headerStyle.Render("  (no events yet)"))
	}

	start := len(m.log) - logHeight
	if start < 0 {
		start = 0
	}
	for i := start; i < len(m.log); i++ {
		entry := m.log[i]
		ts := headerStyle.Render(entry.timestamp.Format("15:04:05.000"))
		if entry.isError {
			fmt.Fprintf(&content, "%s %s\n", ts, errorStyle.Render("✗ "+entry.message))
		} else {
			fmt.Fprintf(&content, "%s %s\n", ts, warningStyle.Render("ℹ "+entry.message))
		}
	}

	width := m.width - 4
	if width < 20 {
		width = 20
	}
	return labelStyle.Render("Recent Events:") + "\n" + boxStyle.Width(width).Render(strings.TrimRight(content.String(), "\n"))
}

// formatUptime formats a duration as "1 hour, 2 minutes and 3 seconds"
func formatUptime(d time.Duration) string {
	total := int64(d / time.Second)
	hours := total / 3600
	minutes := (total / 60) % 60
	seconds := total % 60

	unit := func(n int64, name string) string {
		if n == 1 {
			return "1 " + name
		}
		return fmt.Sprintf("%d %ss", n, name)
	}

	var parts []string
	if hours > 0 {
		parts = append(parts, unit(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, unit(minutes, "minute"))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, unit(seconds, "second"))
	}

	if len(parts) == 1 {
		return parts[0]
	}
	return strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1]
}
