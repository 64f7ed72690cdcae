package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jwebster45206/npc-engine/internal/handlers"
)

const (
	PlaceHolderText = "Type a command (/help for options)..."
	pollInterval    = 2 * time.Second
)

var titleCaser = cases.Title(language.English)

// ConsoleUI is the BubbleTea model that runs the observer console.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config       *ConsoleConfig
	client       *http.Client
	chatViewport viewport.Model
	metaViewport viewport.Model
	textarea     textarea.Model
	ready        bool
	width        int
	height       int
	err          error
	notice       string

	// The conversation currently being watched, if any.
	watched *handlers.ConversationSummary
	actors  []handlers.ActorSummary

	// Conversation selection state
	showPickModal        bool
	conversations        []handlers.ConversationSummary
	selectedConversation int
	loadingConversations bool

	// Quit confirmation state
	showQuitModal bool
}

type conversationsLoadedMsg struct {
	conversations []handlers.ConversationSummary
	err           error
}

type conversationMsg struct {
	conversation *handlers.ConversationSummary
	err          error
}

type actorsMsg struct {
	actors []handlers.ActorSummary
	err    error
}

type eventInjectedMsg struct {
	response *handlers.WorldEventResponse
	err      error
}

type conversationEndedMsg struct {
	err error
}

type copiedMsg struct {
	err error
}

type pollTickMsg struct{}

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

	dialogueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	loadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	separatorStyle = lipgloss.NewStyle().
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
)

func NewConsoleUI(cfg *ConsoleConfig, client *http.Client) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 500
	ta.SetWidth(50)
	ta.SetHeight(2)
	ta.ShowLineNumbers = false

	chatVp := viewport.New(50, 20)
	chatVp.MouseWheelEnabled = true

	metaVp := viewport.New(20, 20)

	return ConsoleUI{
		config:               cfg,
		client:               client,
		textarea:             ta,
		chatViewport:         chatVp,
		metaViewport:         metaVp,
		ready:                false,
		showPickModal:        true,
		loadingConversations: true,
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	return tea.Batch(m.loadConversations(), m.refreshActors(), pollTick())
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}
	if m.showPickModal {
		return m.updatePickModal(msg)
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
		m.resize(msg.Width, msg.Height)
		m.writeChatContent()
		m.metaViewport.SetContent(m.writeMetadata())

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyCtrlY:
			return m, m.copyTranscript()
		case tea.KeyEnter:
			input := strings.TrimSpace(m.textarea.Value())
			if input == "" {
				return m, nil
			}
			m.textarea.Reset()
			if strings.HasPrefix(input, "/") {
				return m.handleCommand(input)
			}
			m.notice = "Commands start with / (try /help)"
			m.writeChatContent()
			return m, nil
		}

	case pollTickMsg:
		cmds := []tea.Cmd{pollTick(), m.refreshActors()}
		if m.watched != nil {
			cmds = append(cmds, m.refreshConversation(m.watched.ID))
		}
		return m, tea.Batch(cmds...)

	case conversationMsg:
		if msg.err != nil {
			m.notice = msg.err.Error() + ". /watch to pick another."
			m.writeChatContent()
			return m, nil
		}
		m.watched = msg.conversation
		m.writeChatContent()
		m.metaViewport.SetContent(m.writeMetadata())

	case actorsMsg:
		if msg.err == nil {
			m.actors = msg.actors
			m.metaViewport.SetContent(m.writeMetadata())
		}

	case conversationsLoadedMsg:
		// Arrived outside the pick modal; keep for the next /watch.
		if msg.err == nil {
			m.conversations = msg.conversations
		}

	case eventInjectedMsg:
		if msg.err != nil {
			m.notice = "Event failed: " + msg.err.Error()
		} else {
			topics := make([]string, 0, len(msg.response.Topics))
			for _, s := range msg.response.Topics {
				topics = append(topics, s.Topic)
			}
			if len(topics) == 0 {
				m.notice = "Event injected; no topics surfaced"
			} else {
				m.notice = "Event injected; topics: " + strings.Join(topics, ", ")
			}
		}
		m.writeChatContent()

	case conversationEndedMsg:
		if msg.err != nil {
			m.notice = "End failed: " + msg.err.Error()
			m.writeChatContent()
			return m, nil
		}
		m.notice = "Conversation ended."
		m.writeChatContent()

	case copiedMsg:
		if msg.err != nil {
			m.notice = "Copy failed: " + msg.err.Error()
		} else {
			m.notice = "Transcript copied to clipboard."
		}
		m.writeChatContent()
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.chatViewport, vpCmd = m.chatViewport.Update(msg)
	m.metaViewport, mvCmd = m.metaViewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, mvCmd)
}

func (m *ConsoleUI) resize(width, height int) {
	m.width = width
	m.height = height

	chatWidth := int(float64(m.width)*0.7) - 4
	metaWidth := m.width - chatWidth - 6

	m.chatViewport.Width = chatWidth - 2
	m.chatViewport.Height = m.height - 7
	m.metaViewport.Width = metaWidth - 2
	m.metaViewport.Height = m.height - 4
	m.textarea.SetWidth(chatWidth - 4)
	m.ready = true
}

// writeChatContent rebuilds the transcript for the current viewport width.
func (m *ConsoleUI) writeChatContent() {
	chatWidth := m.chatViewport.Width - 6
	if chatWidth < 20 {
		chatWidth = 20
	}

	var content strings.Builder
	content.WriteString(titleStyle.Render("NPC ENGINE") + "\n\n")

	if m.watched == nil {
		content.WriteString("No conversation selected. Use /watch to pick one.\n")
	} else {
		topic := m.watched.Topic
		if topic == "" {
			topic = "(none)"
		}
		content.WriteString(fmt.Sprintf("Watching %s — topic: %s\n\n", shortID(m.watched.ID.String()), topic))
		content.WriteString(separatorStyle.Render(strings.Repeat("─", chatWidth)) + "\n\n")

		for _, entry := range m.watched.Dialogue {
			speaker := speakerStyle.Render(titleCaser.String(entry.Speaker) + ": ")
			content.WriteString(speaker + dialogueStyle.Render(wordwrap.String(entry.Text, chatWidth-4)) + "\n\n")
		}
	}

	if m.notice != "" {
		content.WriteString(noticeStyle.Render(m.notice) + "\n")
	}
	if m.err != nil {
		content.WriteString(errorStyle.Render("Error: "+m.err.Error()) + "\n")
	}

	m.chatViewport.SetContent(content.String())
	m.chatViewport.GotoBottom()
}

func (m *ConsoleUI) writeMetadata() string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("TOWN") + "\n\n")

	if m.watched != nil {
		content.WriteString("Conversation:\n")
		content.WriteString(shortID(m.watched.ID.String()) + "...\n\n")
		content.WriteString("Participants:\n")
		for _, p := range m.watched.Participants {
			marker := "  "
			if p == m.watched.CurrentSpeaker {
				marker = "▶ "
			}
			content.WriteString(marker + titleCaser.String(p) + "\n")
		}
		content.WriteString(fmt.Sprintf("\nMood: %+.2f\n", m.watched.Mood.Valence))
		content.WriteString(fmt.Sprintf("Age: %ds\n\n", int(m.watched.Age)))
	}

	if len(m.actors) > 0 {
		content.WriteString("Actors:\n")
		for _, a := range m.actors {
			name := a.Name
			if name == "" {
				name = a.ID
			}
			status := "idle"
			if a.ConversationID != "" {
				status = "talking"
			}
			content.WriteString(fmt.Sprintf("• %s (%s, %s)\n", titleCaser.String(name), a.Location, status))
		}
		content.WriteString("\n")
	}

	content.WriteString("Commands:\n")
	content.WriteString("• /watch: Pick conversation\n")
	content.WriteString("• /start a,b [topic]\n")
	content.WriteString("• /event type [subtype]\n")
	content.WriteString("• /end: End watched\n")
	content.WriteString("• Ctrl+Y: Copy transcript\n")
	content.WriteString("• Ctrl+C: Quit\n")

	return content.String()
}

func (m ConsoleUI) handleCommand(input string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(input)
	cmd := strings.ToLower(fields[0])

	switch cmd {
	case "/help":
		m.notice = "Commands: /watch, /start a,b [topic], /event type [subtype], /end, /copy, /help"
		m.writeChatContent()
		return m, nil

	case "/watch":
		m.showPickModal = true
		m.loadingConversations = true
		m.selectedConversation = 0
		return m, m.loadConversations()

	case "/start":
		if len(fields) < 2 {
			m.notice = "Usage: /start actor1,actor2 [topic]"
			m.writeChatContent()
			return m, nil
		}
		actors := strings.Split(fields[1], ",")
		topic := ""
		if len(fields) > 2 {
			topic = fields[2]
		}
		return m, m.startNewConversation(actors, topic)

	case "/event":
		if len(fields) < 2 {
			m.notice = "Usage: /event type [subtype]"
			m.writeChatContent()
			return m, nil
		}
		var data map[string]any
		if len(fields) > 2 {
			data = map[string]any{"subtype": fields[2]}
		}
		return m, m.sendEvent(fields[1], data)

	case "/end":
		if m.watched == nil {
			m.notice = "No conversation selected."
			m.writeChatContent()
			return m, nil
		}
		return m, m.endWatched(m.watched.ID)

	case "/copy":
		return m, m.copyTranscript()

	default:
		m.notice = "Unknown command. Try /help."
		m.writeChatContent()
		return m, nil
	}
}

func (m ConsoleUI) loadConversations() tea.Cmd {
	return func() tea.Msg {
		conversations, err := listConversations(m.client, m.config.APIBaseURL)
		return conversationsLoadedMsg{conversations, err}
	}
}

func (m ConsoleUI) refreshConversation(id uuid.UUID) tea.Cmd {
	return func() tea.Msg {
		c, err := getConversation(m.client, m.config.APIBaseURL, id)
		return conversationMsg{c, err}
	}
}

func (m ConsoleUI) refreshActors() tea.Cmd {
	return func() tea.Msg {
		actors, err := listActors(m.client, m.config.APIBaseURL)
		return actorsMsg{actors, err}
	}
}

func (m ConsoleUI) startNewConversation(actors []string, topic string) tea.Cmd {
	return func() tea.Msg {
		c, err := startConversation(m.client, m.config.APIBaseURL, actors, topic)
		return conversationMsg{c, err}
	}
}

func (m ConsoleUI) sendEvent(eventType string, data map[string]any) tea.Cmd {
	return func() tea.Msg {
		resp, err := injectEvent(m.client, m.config.APIBaseURL, eventType, data)
		return eventInjectedMsg{resp, err}
	}
}

func (m ConsoleUI) endWatched(id uuid.UUID) tea.Cmd {
	return func() tea.Msg {
		return conversationEndedMsg{endConversation(m.client, m.config.APIBaseURL, id)}
	}
}

func (m ConsoleUI) copyTranscript() tea.Cmd {
	watched := m.watched
	return func() tea.Msg {
		if watched == nil {
			return copiedMsg{fmt.Errorf("no conversation selected")}
		}
		var text strings.Builder
		for _, entry := range watched.Dialogue {
			text.WriteString(titleCaser.String(entry.Speaker) + ": " + entry.Text + "\n")
		}
		return copiedMsg{clipboard.WriteAll(text.String())}
	}
}

func (m ConsoleUI) updatePickModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case conversationsLoadedMsg:
		m.loadingConversations = false
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.err = nil
			m.conversations = msg.conversations
			if m.selectedConversation >= len(m.conversations) {
				m.selectedConversation = 0
			}
		}

	case actorsMsg:
		if msg.err == nil {
			m.actors = msg.actors
		}

	case pollTickMsg:
		// Keep the list fresh while the modal is open.
		return m, tea.Batch(pollTick(), m.loadConversations())

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyUp:
			if m.selectedConversation > 0 {
				m.selectedConversation--
			}
		case tea.KeyDown:
			if m.selectedConversation < len(m.conversations)-1 {
				m.selectedConversation++
			}
		case tea.KeyEnter:
			if m.loadingConversations {
				return m, nil
			}
			m.showPickModal = false
			m.textarea.Focus()
			if len(m.conversations) > 0 {
				picked := m.conversations[m.selectedConversation]
				m.watched = &picked
				m.writeChatContent()
				m.metaViewport.SetContent(m.writeMetadata())
				return m, tea.Batch(m.refreshConversation(picked.ID), textarea.Blink)
			}
			m.writeChatContent()
			m.metaViewport.SetContent(m.writeMetadata())
			return m, textarea.Blink
		}
	}

	return m, nil
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case pollTickMsg:
		// Keep the poll chain alive while the modal is open.
		return m, pollTick()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEnter:
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y":
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
				if !m.showPickModal {
					m.textarea.Focus()
					return m, textarea.Blink
				}
				return m, nil
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
	content.WriteString(modalTitleStyle.Render("Quit Console?"))
	content.WriteString("\n\n")
	content.WriteString("The simulation keeps running without you.")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to keep watching"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) renderPickModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder

	if m.loadingConversations {
		content.WriteString(modalTitleStyle.Render("Loading Conversations..."))
		content.WriteString("\n\n")
		content.WriteString(loadingStyle.Render("Fetching active conversations..."))
	} else if m.err != nil {
		content.WriteString(modalTitleStyle.Render("Error"))
		content.WriteString("\n\n")
		content.WriteString(errorStyle.Render(fmt.Sprintf("Failed to load conversations: %v", m.err)))
		content.WriteString("\n\n")
		content.WriteString("Press Ctrl+C to exit")
	} else if len(m.conversations) == 0 {
		content.WriteString(modalTitleStyle.Render("No Active Conversations"))
		content.WriteString("\n\n")
		content.WriteString("The town is quiet right now. The list refreshes on its own.")
		content.WriteString("\n\n")
		content.WriteString(promptStyle.Render("Press Enter to watch the actor roster, Ctrl+C to exit"))
	} else {
		content.WriteString(modalTitleStyle.Render("Select a Conversation"))
		content.WriteString("\n\n")

		for i, c := range m.conversations {
			participants := make([]string, 0, len(c.Participants))
			for _, p := range c.Participants {
				participants = append(participants, titleCaser.String(p))
			}
			label := fmt.Sprintf("%s — %s", strings.Join(participants, ", "), c.Topic)
			if i == m.selectedConversation {
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
	if m.showPickModal {
		return m.renderPickModal()
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

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// pollTick drives the periodic refresh of the watched conversation
// and the actor roster.
func pollTick() tea.Cmd {
	return tea.Tick(pollInterval, func(time.Time) tea.Msg {
		return pollTickMsg{}
	})
}
