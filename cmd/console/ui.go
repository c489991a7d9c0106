package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/jwebster45206/gm-engine/internal/services"
	"github.com/jwebster45206/gm-engine/internal/session"
	"github.com/jwebster45206/gm-engine/pkg/chat"
	"github.com/jwebster45206/gm-engine/pkg/state"
)

const (
	AgentName       = "Game Master"
	PlaceHolderText = "What do you do?"
)

// SeedSource lists and loads campaign seeds. *storage.SeedLoader implements it.
type SeedSource interface {
	ListSeeds(ctx context.Context) ([]string, error)
	GetSeed(ctx context.Context, seedID string) (*state.Seed, error)
}

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	seeds   SeedSource
	source  services.TextSource
	opts    session.Options
	session *session.Session

	// transcript is what the chat panel shows: player lines and game
	// master prose, shortcuts included.
	transcript []chat.ChatMessage
	notice     string

	chatViewport viewport.Model
	metaViewport viewport.Model
	textarea     textarea.Model
	ready        bool
	width        int
	height       int
	err          error
	loading      bool

	// Seed selection state
	showSeedModal bool
	seedIDs       []string
	selectedSeed  int
	loadingSeeds  bool

	// Quit confirmation state
	showQuitModal bool

	// Progress bar state
	progressTick int
}

type seedsLoadedMsg struct {
	ids []string
	err error
}

type sessionCreatedMsg struct {
	session *session.Session
	err     error
}

type turnMsg struct {
	turn    *session.Turn
	opening bool
	err     error
}

type progressTickMsg struct{}

var (
	chatPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	speakerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)

	narratorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	loadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)

	modalItemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	modalSelectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("205")).
				Bold(true)

	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey
)

const helpText = `
Commands:
• /help - Show this help
• /clear - Dismiss the current error
• /retry - Retry a failed opening
• inventory, party, status - Quick looks that skip the game master
• Esc - Cancel the turn in progress
• Ctrl+Y - Copy the last reply
• Ctrl+C - Quit
`

func NewConsoleUI(seeds SeedSource, source services.TextSource, opts session.Options) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = chat.MaxMessageLength
	ta.SetWidth(50)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	chatVp := viewport.New(50, 20)
	chatVp.MouseWheelEnabled = true

	metaVp := viewport.New(20, 20)

	return ConsoleUI{
		seeds:         seeds,
		source:        source,
		opts:          opts,
		textarea:      ta,
		chatViewport:  chatVp,
		metaViewport:  metaVp,
		showSeedModal: true,
		loadingSeeds:  true,
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	return m.loadSeeds()
}

// resize lays out both panels for the current terminal size.
func (m *ConsoleUI) resize() {
	chatWidth := int(float64(m.width)*0.7) - 4
	metaWidth := m.width - chatWidth - 6

	m.chatViewport.Width = chatWidth - 2
	m.chatViewport.Height = m.height - 7
	m.metaViewport.Width = metaWidth - 2
	m.metaViewport.Height = m.height - 4
	m.textarea.SetWidth(chatWidth - 4)
}

// writeChatContent rebuilds the chat panel for the current viewport width.
func (m *ConsoleUI) writeChatContent() {
	chatWidth := m.chatViewport.Width - 6
	if chatWidth < 20 {
		chatWidth = 20
	}

	var content strings.Builder
	title := "GM ENGINE"
	if m.session != nil {
		title = strings.ToUpper(m.session.State().Campaign.Name)
	}
	content.WriteString(titleStyle.Render(title) + "\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", chatWidth)) + "\n\n")

	for _, msg := range m.transcript {
		switch msg.Role {
		case chat.ChatRoleAgent:
			content.WriteString(formatNarratorResponse(msg.Content, chatWidth) + "\n\n")
		case chat.ChatRoleUser:
			content.WriteString(userStyle.Render("You: ") + wordwrap.String(msg.Content, chatWidth-5) + "\n\n")
		}
	}

	if m.err != nil {
		content.WriteString(errorStyle.Render(wordwrap.String("Error: "+m.err.Error(), chatWidth)) + "\n\n")
	}
	if m.notice != "" {
		content.WriteString(promptStyle.Render(m.notice) + "\n\n")
	}
	if m.loading {
		content.WriteString(m.renderProgressBar())
	}

	m.chatViewport.SetContent(content.String())
	m.chatViewport.GotoBottom()
}

func (m *ConsoleUI) refreshPanels() {
	m.writeChatContent()
	if m.session != nil {
		m.metaViewport.SetContent(writeMetadata(m.session.State()))
	}
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}
	if m.showSeedModal {
		return m.updateSeedModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		mvCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.chatViewport, vpCmd = m.chatViewport.Update(msg)
		m.metaViewport, mvCmd = m.metaViewport.Update(msg)
		return m, tea.Batch(vpCmd, mvCmd)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.ready = true
		m.refreshPanels()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			m.showQuitModal = true
			return m, nil
		case tea.KeyEsc:
			if m.loading {
				m.session.Cancel()
				return m, nil
			}
			m.showQuitModal = true
			return m, nil
		case tea.KeyCtrlY:
			m.notice = m.copyLastReply()
			m.writeChatContent()
			return m, nil
		case tea.KeyEnter:
			if m.loading {
				return m, nil
			}
			input := strings.TrimSpace(m.textarea.Value())
			if input == "" {
				return m, nil
			}
			if strings.HasPrefix(input, "/") {
				return m.handleCommand(input)
			}

			m.textarea.Reset()
			m.err = nil
			m.notice = ""
			m.loading = true
			m.progressTick = 0
			m.transcript = append(m.transcript, chat.ChatMessage{Role: chat.ChatRoleUser, Content: input})
			m.writeChatContent()

			return m, tea.Batch(m.submit(input), progressTick())
		}

	case turnMsg:
		m.loading = false
		m.err = msg.err
		if msg.err == nil {
			m.transcript = append(m.transcript, chat.ChatMessage{Role: chat.ChatRoleAgent, Content: msg.turn.Message})
		} else if errors.Is(msg.err, context.Canceled) {
			m.err = nil
			m.notice = "Turn cancelled."
		}
		if msg.err != nil && msg.opening {
			m.notice = strings.TrimSpace(m.notice + " Type /retry to try the opening again.")
		}
		m.refreshPanels()
		return m, nil

	case progressTickMsg:
		if m.loading {
			m.progressTick++
			m.writeChatContent()
			return m, progressTick()
		}
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.chatViewport, vpCmd = m.chatViewport.Update(msg)
	m.metaViewport, mvCmd = m.metaViewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, mvCmd)
}

// formatNarratorResponse wraps a reply to width and highlights "Name:"
// speaker prefixes. Replies without one are attributed to the game master.
func formatNarratorResponse(response string, width int) string {
	hasPrefix := speakerPrefix(response) != ""

	wrapWidth := width
	if !hasPrefix {
		wrapWidth = width - len(AgentName) - 2
	}

	lines := strings.Split(wordwrap.String(response, wrapWidth), "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if speaker := speakerPrefix(trimmed); speaker != "" {
			lines[i] = speakerStyle.Render(speaker+":") + trimmed[len(speaker)+1:]
		}
	}

	result := strings.Join(lines, "\n")
	if !hasPrefix {
		result = narratorStyle.Render(AgentName+": ") + result
	}
	return result
}

// speakerPrefix returns the "Name" of a leading "Name:" of at most two
// words, or "".
func speakerPrefix(line string) string {
	idx := strings.Index(line, ":")
	if idx <= 0 || idx > 20 {
		return ""
	}
	speaker := line[:idx]
	if n := len(strings.Fields(speaker)); n == 0 || n > 2 {
		return ""
	}
	return speaker
}

// lastReply returns the most recent game master prose, or "".
func (m ConsoleUI) lastReply() string {
	for i := len(m.transcript) - 1; i >= 0; i-- {
		if m.transcript[i].Role == chat.ChatRoleAgent {
			return m.transcript[i].Content
		}
	}
	return ""
}

func (m ConsoleUI) copyLastReply() string {
	reply := m.lastReply()
	if reply == "" {
		return "Nothing to copy yet."
	}
	if err := clipboard.WriteAll(reply); err != nil {
		return fmt.Sprintf("Clipboard unavailable: %v", err)
	}
	return "Copied the last reply."
}

func (m ConsoleUI) handleCommand(input string) (tea.Model, tea.Cmd) {
	m.textarea.Reset()
	m.notice = ""

	switch strings.ToLower(strings.TrimSpace(input)) {
	case "/help":
		m.notice = strings.TrimSpace(helpText)

	case "/clear":
		if err := m.session.ClearError(); err != nil {
			m.err = err
		} else {
			m.err = nil
			m.notice = "Error cleared."
		}

	case "/retry":
		if m.session.Started() {
			m.notice = "The adventure has already begun."
			break
		}
		m.err = nil
		m.loading = true
		m.progressTick = 0
		m.refreshPanels()
		return m, tea.Batch(m.start(), progressTick())

	default:
		m.notice = fmt.Sprintf("Unknown command %s. Try /help.", input)
	}

	m.refreshPanels()
	return m, nil
}

func (m ConsoleUI) loadSeeds() tea.Cmd {
	return func() tea.Msg {
		ids, err := m.seeds.ListSeeds(context.Background())
		if err == nil && len(ids) == 0 {
			err = errors.New("no seeds found; add one under the data directory's seeds folder")
		}
		return seedsLoadedMsg{ids: ids, err: err}
	}
}

func (m ConsoleUI) createSession(seedID string) tea.Cmd {
	return func() tea.Msg {
		seed, err := m.seeds.GetSeed(context.Background(), seedID)
		if err != nil {
			return sessionCreatedMsg{err: err}
		}
		ws, err := state.NewWorldState(*seed)
		if err != nil {
			return sessionCreatedMsg{err: fmt.Errorf("invalid seed %s: %w", seedID, err)}
		}
		return sessionCreatedMsg{session: session.New(ws, m.source, m.opts)}
	}
}

func (m ConsoleUI) start() tea.Cmd {
	s := m.session
	return func() tea.Msg {
		turn, err := s.Start(context.Background())
		return turnMsg{turn: turn, opening: true, err: err}
	}
}

func (m ConsoleUI) submit(input string) tea.Cmd {
	s := m.session
	return func() tea.Msg {
		turn, err := s.Submit(context.Background(), input)
		return turnMsg{turn: turn, err: err}
	}
}

func (m ConsoleUI) updateSeedModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case seedsLoadedMsg:
		m.loadingSeeds = false
		m.err = msg.err
		m.seedIDs = msg.ids

	case sessionCreatedMsg:
		if msg.err != nil {
			m.loading = false
			m.err = msg.err
			return m, nil
		}
		m.session = msg.session
		m.showSeedModal = false
		if m.width > 0 && m.height > 0 {
			m.resize()
		}
		m.ready = true
		m.progressTick = 0
		m.textarea.Focus()
		m.refreshPanels()
		return m, tea.Batch(textarea.Blink, m.start(), progressTick())

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			if m.loadingSeeds {
				return m, tea.Quit
			}
			m.showQuitModal = true
			return m, nil
		}
		if m.loadingSeeds || m.loading || m.err != nil {
			return m, nil
		}

		switch msg.Type {
		case tea.KeyUp:
			if m.selectedSeed > 0 {
				m.selectedSeed--
			}
		case tea.KeyDown:
			if m.selectedSeed < len(m.seedIDs)-1 {
				m.selectedSeed++
			}
		case tea.KeyEnter:
			if len(m.seedIDs) > 0 {
				m.loading = true
				return m, m.createSession(m.seedIDs[m.selectedSeed])
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.showSeedModal {
			m.resize()
			m.refreshPanels()
		}

	case turnMsg, progressTickMsg:
		// Let a turn that finishes behind the modal land normally.
		m.showQuitModal = false
		next, cmd := m.Update(msg)
		ui := next.(ConsoleUI)
		ui.showQuitModal = true
		return ui, cmd

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y":
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
				if m.showSeedModal {
					return m, nil
				}
				m.textarea.Focus()
				return m, textarea.Blink
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit Game?"))
	content.WriteString("\n\n")
	content.WriteString("Are you sure you want to leave your adventure?")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) renderSeedModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder

	switch {
	case m.loadingSeeds:
		content.WriteString(modalTitleStyle.Render("Loading Campaigns..."))
		content.WriteString("\n\n")
		content.WriteString(loadingStyle.Render("Reading seeds..."))
	case m.err != nil:
		content.WriteString(modalTitleStyle.Render("Error"))
		content.WriteString("\n\n")
		content.WriteString(errorStyle.Render(wordwrap.String(m.err.Error(), 50)))
		content.WriteString("\n\n")
		content.WriteString("Press Ctrl+C to exit")
	case m.loading:
		content.WriteString(modalTitleStyle.Render("Creating Game..."))
		content.WriteString("\n\n")
		content.WriteString(loadingStyle.Render("Setting up your adventure..."))
	default:
		content.WriteString(modalTitleStyle.Render("Select a Campaign"))
		content.WriteString("\n\n")

		for i, id := range m.seedIDs {
			label := titleCaser.String(strings.ReplaceAll(id, "_", " "))
			if i == m.selectedSeed {
				content.WriteString(modalSelectedItemStyle.Render("▶ " + label))
			} else {
				content.WriteString(modalItemStyle.Render("  " + label))
			}
			content.WriteString("\n")
		}

		content.WriteString("\n")
		content.WriteString(promptStyle.Render("Use ↑/↓ to navigate, Enter to select, Ctrl+C to exit"))
	}

	modal := modalStyle.Width(60).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}
	if m.showSeedModal {
		return m.renderSeedModal()
	}
	if !m.ready {
		return "\n  Initializing..."
	}

	chatWidth := int(float64(m.width)*0.7) - 4
	metaWidth := m.width - chatWidth - 6

	chatPanel := chatPanelStyle.Width(chatWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.chatViewport.View(),
			"",
			separatorStyle.Render(strings.Repeat("─", chatWidth-4)),
			m.textarea.View(),
		),
	)

	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(
		m.metaViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, chatPanel, metaPanel)
}

// renderProgressBar creates an animated progress bar for loading states
func (m ConsoleUI) renderProgressBar() string {
	usable := m.chatViewport.Width - 6
	if usable > 80 {
		usable = 80
	} else if usable < 10 {
		usable = 10
	}

	const totalFrames = 40
	frame := m.progressTick % totalFrames
	filled := (frame * usable) / totalFrames

	var bar strings.Builder
	for i := 0; i < usable; i++ {
		if i < filled {
			bar.WriteString("█")
		} else if i == filled && frame%4 < 2 {
			bar.WriteString("▓") // Blinking effect at the progress point
		} else {
			bar.WriteString("░")
		}
	}
	return separatorStyle.Render(bar.String())
}

// progressTick creates a command that sends a progress tick message
func progressTick() tea.Cmd {
	return tea.Tick(time.Millisecond*200, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}
