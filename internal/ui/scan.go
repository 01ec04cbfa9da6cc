package ui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/ssdp-scan/internal/discovery"
	"github.com/muurk/ssdp-scan/internal/version"
)

// eventBuffer is how many undelivered scan events may queue before the
// discovering goroutine blocks
const eventBuffer = 16

// ScanFunc runs one discovery, calling onDevice for every accepted device
// as it arrives.
type ScanFunc func(ctx context.Context, req discovery.SearchRequest, onDevice func(discovery.Device)) ([]discovery.Device, error)

// SessionScanner adapts a discovery session to a ScanFunc. The session is
// copied so its own OnDevice callback is left untouched.
func SessionScanner(s *discovery.Session) ScanFunc {
	return func(ctx context.Context, req discovery.SearchRequest, onDevice func(discovery.Device)) ([]discovery.Device, error) {
		session := *s
		session.OnDevice = onDevice
		return session.DiscoverContext(ctx, req)
	}
}

// Messages for async operations
type scanStartMsg struct{}

type deviceFoundMsg struct {
	id     int
	device discovery.Device
}

type scanCompleteMsg struct {
	id  int
	err error
}

// scanningKeyMap defines key bindings while a scan is running
type scanningKeyMap struct {
	Quit key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k scanningKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k scanningKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Quit}}
}

// resultsKeyMap defines key bindings for the results screen
type resultsKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Filter key.Binding
	Rescan key.Binding
	Target key.Binding
	Quit   key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k resultsKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Filter, k.Rescan, k.Target, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k resultsKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Filter},
		{k.Rescan, k.Target, k.Quit},
	}
}

// targetKeyMap defines key bindings while editing the search target
type targetKeyMap struct {
	Confirm key.Binding
	Cancel  key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k targetKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Confirm, k.Cancel}
}

// FullHelp returns keybindings for the expanded help view
func (k targetKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Confirm, k.Cancel}}
}

// deviceItem wraps a Device for use with bubbles/list
type deviceItem struct {
	device   discovery.Device
	nickname string
}

// FilterValue matches on address, service type, USN and nickname
func (d deviceItem) FilterValue() string {
	return strings.Join([]string{d.device.IP, d.device.ServiceType, d.device.USN.String, d.nickname}, " ")
}

// deviceDelegate renders a device as a two line entry
type deviceDelegate struct{}

func (d deviceDelegate) Height() int { return 2 }

func (d deviceDelegate) Spacing() int { return 1 }

func (d deviceDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d deviceDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(deviceItem)
	if !ok {
		return
	}

	title := it.device.IP
	if it.nickname != "" {
		title += "  " + NicknameStyle.Render(it.nickname)
	}
	if index == m.Index() {
		title = SelectedItemStyle.Render("→ ") + title
	} else {
		title = "  " + title
	}

	usn := AbsentValue
	if it.device.USN.Valid {
		usn = it.device.USN.String
	}
	detail := MutedStyle.Render(fmt.Sprintf("    %s • %s • %s",
		orAbsent(it.device.ServiceType), orAbsent(usn), orAbsent(it.device.DescriptionURL)))

	_, _ = fmt.Fprint(w, title+"\n"+detail)
}

// ScanModel is an interactive scan screen. Devices are listed as their
// responses arrive; when the receive window closes the list can be filtered,
// rescanned, or searched again for a different target.
type ScanModel struct {
	Scan     ScanFunc
	Request  discovery.SearchRequest
	Nickname NicknameFunc

	// Scan state
	Scanning      bool
	Devices       []discovery.Device
	Err           error
	ScanStartTime time.Time

	// Search target entry state
	EditMode    bool
	TargetInput textinput.Model

	// UI state
	Width        int
	Height       int
	DeviceList   list.Model
	Spinner      spinner.Model
	ProgressBar  progress.Model
	Help         help.Model
	ScanningKeys scanningKeyMap
	ResultsKeys  resultsKeyMap
	TargetKeys   targetKeyMap

	scanID int
	cancel context.CancelFunc
	events <-chan tea.Msg
}

// NewScanModel creates a scan screen that discovers with scan
func NewScanModel(scan ScanFunc, req discovery.SearchRequest, nickname NicknameFunc) ScanModel {
	width, height := GetTerminalSize()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	targetInput := textinput.New()
	targetInput.Placeholder = discovery.SearchAll
	targetInput.CharLimit = 256
	targetInput.Width = 50

	progressBar := progress.New(progress.WithDefaultGradient())
	progressBar.Width = 40

	deviceList := list.New([]list.Item{}, deviceDelegate{}, width-4, listHeight(height))
	deviceList.Title = "Discovered Devices"
	deviceList.SetShowStatusBar(false)
	deviceList.SetShowHelp(false)
	deviceList.SetFilteringEnabled(true)
	deviceList.Styles.Title = TitleStyle

	return ScanModel{
		Scan:        scan,
		Request:     req,
		Nickname:    nickname,
		TargetInput: targetInput,
		Width:       width,
		Height:      height,
		DeviceList:  deviceList,
		Spinner:     s,
		ProgressBar: progressBar,
		Help:        help.New(),
		ScanningKeys: scanningKeyMap{
			Quit: key.NewBinding(
				key.WithKeys("q", "esc", "ctrl+c"),
				key.WithHelp("q", "quit"),
			),
		},
		ResultsKeys: resultsKeyMap{
			Up: key.NewBinding(
				key.WithKeys("up", "k"),
				key.WithHelp("↑/k", "move up"),
			),
			Down: key.NewBinding(
				key.WithKeys("down", "j"),
				key.WithHelp("↓/j", "move down"),
			),
			Filter: key.NewBinding(
				key.WithKeys("/"),
				key.WithHelp("/", "filter"),
			),
			Rescan: key.NewBinding(
				key.WithKeys("r"),
				key.WithHelp("r", "rescan"),
			),
			Target: key.NewBinding(
				key.WithKeys("t"),
				key.WithHelp("t", "search target"),
			),
			Quit: key.NewBinding(
				key.WithKeys("q", "ctrl+c"),
				key.WithHelp("q", "quit"),
			),
		},
		TargetKeys: targetKeyMap{
			Confirm: key.NewBinding(
				key.WithKeys("enter"),
				key.WithHelp("enter", "search"),
			),
			Cancel: key.NewBinding(
				key.WithKeys("esc"),
				key.WithHelp("esc", "cancel"),
			),
		},
	}
}

func listHeight(terminalHeight int) int {
	h := terminalHeight - 10 // Leave room for header, status and footer
	if h < 4 {
		h = 4
	}
	return h
}

// Init starts the first scan
func (m ScanModel) Init() tea.Cmd {
	return tea.Batch(
		func() tea.Msg { return scanStartMsg{} },
		m.Spinner.Tick,
	)
}

// Update handles messages and updates the model
func (m ScanModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case m.EditMode:
			return m.updateTargetEntry(msg)
		case m.Scanning:
			if key.Matches(msg, m.ScanningKeys.Quit) {
				return m.quit()
			}
			return m, nil
		default:
			return m.updateResults(msg)
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.DeviceList.SetWidth(msg.Width - 4)
		m.DeviceList.SetHeight(listHeight(msg.Height))
		return m, nil

	case scanStartMsg:
		return m, m.startScan()

	case deviceFoundMsg:
		if msg.id != m.scanID {
			return m, nil
		}
		m.Devices = append(m.Devices, msg.device)
		insert := m.DeviceList.InsertItem(len(m.DeviceList.Items()), m.item(msg.device))
		return m, tea.Batch(insert, waitForEvent(m.events))

	case scanCompleteMsg:
		if msg.id != m.scanID {
			return m, nil
		}
		m.Scanning = false
		m.Err = msg.err
		return m, nil

	case spinner.TickMsg:
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	if !m.Scanning && !m.EditMode {
		m.DeviceList, cmd = m.DeviceList.Update(msg)
	}
	return m, cmd
}

// updateResults handles keyboard input once a scan has finished
func (m ScanModel) updateResults(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// While the filter prompt is open every key belongs to the list
	if m.DeviceList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.DeviceList, cmd = m.DeviceList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.ResultsKeys.Quit):
		return m.quit()

	case key.Matches(msg, m.ResultsKeys.Rescan):
		return m, m.startScan()

	case key.Matches(msg, m.ResultsKeys.Target):
		m.EditMode = true
		m.TargetInput.SetValue(m.Request.SearchTarget)
		return m, m.TargetInput.Focus()
	}

	var cmd tea.Cmd
	m.DeviceList, cmd = m.DeviceList.Update(msg)
	return m, cmd
}

// updateTargetEntry handles keyboard input while editing the search target
func (m ScanModel) updateTargetEntry(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.TargetKeys.Cancel):
		m.EditMode = false
		m.TargetInput.Blur()
		return m, nil

	case key.Matches(msg, m.TargetKeys.Confirm):
		target := strings.TrimSpace(m.TargetInput.Value())
		if target == "" {
			target = discovery.SearchAll
		}
		m.Request.SearchTarget = target
		m.EditMode = false
		m.TargetInput.Blur()
		return m, m.startScan()
	}

	var cmd tea.Cmd
	m.TargetInput, cmd = m.TargetInput.Update(msg)
	return m, cmd
}

func (m ScanModel) quit() (tea.Model, tea.Cmd) {
	if m.cancel != nil {
		m.cancel()
	}
	return m, tea.Quit
}

// startScan cancels any running scan and begins a new one
func (m *ScanModel) startScan() tea.Cmd {
	if m.cancel != nil {
		m.cancel()
	}
	m.scanID++
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	events := make(chan tea.Msg, eventBuffer)
	m.events = events

	m.Scanning = true
	m.Err = nil
	m.Devices = nil
	m.ScanStartTime = time.Now()

	return tea.Batch(
		m.DeviceList.SetItems(nil),
		runScan(ctx, m.scanID, m.Scan, m.Request, events),
		waitForEvent(events),
	)
}

func (m ScanModel) item(d discovery.Device) deviceItem {
	it := deviceItem{device: d}
	if m.Nickname != nil {
		it.nickname = m.Nickname(d)
	}
	return it
}

// runScan performs the discovery and feeds its results into events,
// closing the channel when done
func runScan(ctx context.Context, id int, scan ScanFunc, req discovery.SearchRequest, events chan<- tea.Msg) tea.Cmd {
	return func() tea.Msg {
		defer close(events)

		_, err := scan(ctx, req, func(d discovery.Device) {
			select {
			case events <- deviceFoundMsg{id: id, device: d}:
			case <-ctx.Done():
			}
		})

		select {
		case events <- scanCompleteMsg{id: id, err: err}:
		case <-ctx.Done():
		}
		return nil
	}
}

// waitForEvent delivers the next scan event
func waitForEvent(events <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-events
		if !ok {
			return nil
		}
		return msg
	}
}

// View renders the scan screen
func (m ScanModel) View() string {
	width := m.Width
	if width == 0 {
		width = MinTerminalWidth
	}

	var content, helpText string
	switch {
	case m.EditMode:
		content = m.renderTargetEntry()
		helpText = m.Help.View(m.TargetKeys)
	case m.Scanning:
		content = lipgloss.JoinVertical(lipgloss.Left, m.renderScanning(width), m.renderDevices())
		helpText = m.Help.View(m.ScanningKeys)
	default:
		content = m.renderResults()
		helpText = m.Help.View(m.ResultsKeys)
	}

	return renderContainer(content, helpText, width, m.Height)
}

// renderScanning renders the spinner and the receive window progress
func (m ScanModel) renderScanning(width int) string {
	elapsed := time.Since(m.ScanStartTime)
	timeout := m.Request.Timeout
	if timeout <= 0 {
		timeout = discovery.DefaultTimeout
	}
	percent := float64(elapsed) / float64(timeout)
	if percent > 1 {
		percent = 1
	}

	title := fmt.Sprintf("%s SEARCHING FOR %s", m.Spinner.View(), strings.ToUpper(m.target()))
	status := fmt.Sprintf("Elapsed: %ds of %ds • %s", int(elapsed.Seconds()), int(timeout.Seconds()), DeviceCount(len(m.Devices)))

	content := lipgloss.JoinVertical(lipgloss.Center,
		"",
		TitleStyle.Render(title),
		"",
		m.ProgressBar.ViewAs(percent),
		"",
		SubtitleStyle.Render(status),
		"",
	)
	return lipgloss.Place(width-4, 0, lipgloss.Center, lipgloss.Top, content)
}

// renderDevices renders the device list, or nothing when it is empty
func (m ScanModel) renderDevices() string {
	if len(m.DeviceList.Items()) == 0 {
		return ""
	}
	return m.DeviceList.View()
}

// renderResults renders the finished scan
func (m ScanModel) renderResults() string {
	var b strings.Builder
	b.WriteString("\n")

	switch {
	case m.Err != nil:
		b.WriteString("  " + ErrorTitleStyle.Render(FailureMarker+" Scan failed: "+m.Err.Error()))
		b.WriteString("\n\n  ")
		b.WriteString(TroubleshootingItemStyle.Render(discovery.TroubleshootingHint(m.Err)))
		b.WriteString("\n")

	case len(m.Devices) == 0:
		b.WriteString("  " + WarningTitleStyle.Render(fmt.Sprintf("%s No devices answered %s", WarningMarker, m.target())))
		b.WriteString("\n\n  ")
		b.WriteString(TroubleshootingItemStyle.Render(discovery.TroubleshootingHint(discovery.ErrNoDevice)))
		b.WriteString("\n")

	default:
		b.WriteString("  " + SuccessTitleStyle.Render(fmt.Sprintf("%s %s for %s", SuccessMarker, DeviceCount(len(m.Devices)), m.target())))
		b.WriteString("\n\n")
		b.WriteString(m.DeviceList.View())
	}

	return b.String()
}

// renderTargetEntry renders the search target prompt
func (m ScanModel) renderTargetEntry() string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(SubtitleStyle.Render("  Enter a search target (e.g. upnp:rootdevice, urn:schemas-upnp-org:device:MediaRenderer:1)"))
	b.WriteString("\n\n  Search target: ")
	b.WriteString(m.TargetInput.View())
	b.WriteString("\n")
	return b.String()
}

func (m ScanModel) target() string {
	if m.Request.SearchTarget == "" {
		return discovery.SearchAll
	}
	return m.Request.SearchTarget
}

// DeviceCount formats a device count, e.g. "1 device" or "3 devices"
func DeviceCount(n int) string {
	if n == 1 {
		return "1 device"
	}
	return fmt.Sprintf("%d devices", n)
}

// renderContainer wraps a screen with the application header and a help footer
func renderContainer(content, footerText string, width, height int) string {
	header := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Foreground(TextColor).Bold(true).Render("SSDP-SCAN v"+version.Version),
		"  ",
		MutedStyle.Render("interactive scan"),
	)

	headerStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.Border{Bottom: "─"}).
		BorderForeground(PrimaryColor).
		Width(width-4).
		Padding(0, 1)

	footerStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.Border{Top: "─"}).
		BorderForeground(PrimaryColor).
		Width(width-4).
		Padding(0, 1)

	inner := lipgloss.JoinVertical(lipgloss.Left,
		headerStyle.Render(header),
		lipgloss.NewStyle().Width(width-4).Render(content),
		footerStyle.Render(MutedStyle.Render(footerText)),
	)

	outer := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(PrimaryColor).
		Width(width - 2)
	if height > 2 {
		outer = outer.Height(height - 2).AlignVertical(lipgloss.Top)
	}

	return outer.Render(inner)
}

// RunInteractiveScan runs the scan screen full-screen until the user quits
// and returns the devices from the last scan.
func RunInteractiveScan(model ScanModel) ([]discovery.Device, error) {
	final, err := tea.NewProgram(model, tea.WithAltScreen()).Run()
	if err != nil {
		return nil, fmt.Errorf("interactive scan failed: %w", err)
	}
	m, ok := final.(ScanModel)
	if !ok {
		return nil, nil
	}
	return m.Devices, m.Err
}
